package placement

import (
	"context"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/testdb"
)

type countingProcedure struct {
	next  Procedure
	calls int
}

func (p *countingProcedure) Apply(ctx context.Context, tx bun.Tx, c Change) error {
	p.calls++
	return p.next.Apply(ctx, tx, c)
}

func newTestService(t *testing.T) (*Service, *countingProcedure) {
	t.Helper()
	db := testdb.Open(t)
	svc := NewService(db, audit.NewService(db))
	proc := &countingProcedure{next: svc.Procedure}
	svc.Procedure = proc
	return svc, proc
}

func TestMoveAssignsStatusFromCellType(t *testing.T) {
	svc, proc := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	unitID := testdb.Unit(t, db, whID, "U-1", nil, celltype.StatusReceiving)

	res, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &storage, Actor: actor, Source: SourceAssign})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if res.ToStatus != celltype.StatusStored || res.FromCellID != nil || res.Noop {
		t.Fatalf("unexpected result: %+v", res)
	}
	unit := testdb.LoadUnit(t, db, unitID)
	if unit.CellID == nil || *unit.CellID != storage || unit.Status != celltype.StatusStored {
		t.Fatalf("unexpected unit after move: %+v", unit)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM unit_moves WHERE unit_id = ? AND from_cell_id IS NULL AND to_cell_id = ?`, unitID, storage); n != 1 {
		t.Fatalf("expected one history row, got %d", n)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM audit_events WHERE action = 'unit.move'`); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
	if proc.calls != 1 {
		t.Fatalf("expected one procedure call, got %d", proc.calls)
	}
}

func TestMoveSameCellIsNoop(t *testing.T) {
	svc, proc := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	unitID := testdb.Unit(t, db, whID, "U-1", &storage, celltype.StatusStored)

	res, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &storage, Actor: actor})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !res.Noop {
		t.Fatalf("expected noop result, got %+v", res)
	}
	if proc.calls != 0 {
		t.Fatalf("procedure must not run for a noop, got %d calls", proc.calls)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM unit_moves`); n != 0 {
		t.Fatalf("expected no history rows, got %d", n)
	}
}

func TestMoveFailsWhileInventoryActive(t *testing.T) {
	svc, proc := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	from := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	targets := map[string]int64{
		celltype.Bin:      testdb.Cell(t, db, whID, "B-01", celltype.Bin),
		celltype.Storage:  testdb.Cell(t, db, whID, "S-02", celltype.Storage),
		celltype.Picking:  testdb.Cell(t, db, whID, "P-01", celltype.Picking),
		celltype.Shipping: testdb.Cell(t, db, whID, "SH-01", celltype.Shipping),
	}
	unitID := testdb.Unit(t, db, whID, "U-1", &from, celltype.StatusStored)
	testdb.Exec(t, db, `INSERT INTO inventory_sessions (warehouse_id, status, started_by, started_at) VALUES (?, 'active', ?, CURRENT_TIMESTAMP)`, whID, actor.UserID)

	for name, cellID := range targets {
		cellID := cellID
		_, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &cellID, Actor: actor})
		if !apperr.Is(err, apperr.KindLocked) {
			t.Fatalf("%s: expected locked, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "INVENTORY_ACTIVE") {
			t.Fatalf("%s: expected INVENTORY_ACTIVE marker, got %q", name, err.Error())
		}
	}
	if _, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, Actor: actor, ToStatus: celltype.StatusOut}); !apperr.Is(err, apperr.KindLocked) {
		t.Fatalf("unplace: expected locked, got %v", err)
	}
	if proc.calls != 0 {
		t.Fatalf("procedure must not run while locked, got %d calls", proc.calls)
	}
	if unit := testdb.LoadUnit(t, db, unitID); *unit.CellID != from {
		t.Fatalf("unit must stay put, got cell %v", unit.CellID)
	}
}

func TestMoveRejectedToBinForbidden(t *testing.T) {
	svc, proc := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	rejected := testdb.Cell(t, db, whID, "R-01", celltype.Rejected)
	bin := testdb.Cell(t, db, whID, "B-01", celltype.Bin)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	unitID := testdb.Unit(t, db, whID, "U-1", &rejected, celltype.StatusRejected)

	_, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &bin, Actor: actor})
	if !apperr.Is(err, apperr.KindPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if apperr.HTTPStatus(err) != 400 || !strings.Contains(err.Error(), "REJECTED_TO_BIN_FORBIDDEN") {
		t.Fatalf("unexpected error shape: %d %q", apperr.HTTPStatus(err), err.Error())
	}
	if proc.calls != 0 {
		t.Fatalf("procedure must not be invoked, got %d calls", proc.calls)
	}
	unit := testdb.LoadUnit(t, db, unitID)
	if *unit.CellID != rejected || unit.Status != celltype.StatusRejected {
		t.Fatalf("unit mutated: %+v", unit)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM unit_moves`); n != 0 {
		t.Fatalf("expected no history rows, got %d", n)
	}

	// Through an intermediate zone it is allowed.
	if _, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &storage, Actor: actor}); err != nil {
		t.Fatalf("rejected -> storage: %v", err)
	}
	if _, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &bin, Actor: actor}); err != nil {
		t.Fatalf("storage -> bin: %v", err)
	}
}

func TestMoveValidation(t *testing.T) {
	svc, _ := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	otherWH := testdb.Warehouse(t, db, "WH2")
	actor := testdb.User(t, db, "ops", "ops", whID)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	inactive := testdb.Cell(t, db, whID, "S-02", celltype.Storage)
	blocked := testdb.Cell(t, db, whID, "S-03", celltype.Storage)
	foreign := testdb.Cell(t, db, otherWH, "S-01", celltype.Storage)
	testdb.Exec(t, db, `UPDATE cells SET active = 0 WHERE id = ?`, inactive)
	testdb.Exec(t, db, `UPDATE cells SET meta = '{"blocked":true}' WHERE id = ?`, blocked)
	unitID := testdb.Unit(t, db, whID, "U-1", nil, celltype.StatusReceiving)
	foreignUnit := testdb.Unit(t, db, otherWH, "U-2", nil, celltype.StatusReceiving)
	missing := int64(9999)

	cases := []struct {
		name string
		req  Request
		kind apperr.Kind
	}{
		{name: "unknown unit", req: Request{WarehouseID: whID, UnitID: 9999, ToCellID: &storage}, kind: apperr.KindNotFound},
		{name: "unit of other warehouse", req: Request{WarehouseID: whID, UnitID: foreignUnit, ToCellID: &storage}, kind: apperr.KindNotFound},
		{name: "unknown cell", req: Request{WarehouseID: whID, UnitID: unitID, ToCellID: &missing}, kind: apperr.KindNotFound},
		{name: "cell of other warehouse", req: Request{WarehouseID: whID, UnitID: unitID, ToCellID: &foreign}, kind: apperr.KindNotFound},
		{name: "inactive cell", req: Request{WarehouseID: whID, UnitID: unitID, ToCellID: &inactive}, kind: apperr.KindConflict},
		{name: "blocked cell", req: Request{WarehouseID: whID, UnitID: unitID, ToCellID: &blocked}, kind: apperr.KindConflict},
		{name: "invalid status", req: Request{WarehouseID: whID, UnitID: unitID, ToCellID: &storage, ToStatus: "teleported"}, kind: apperr.KindInvalidInput},
	}
	for _, tc := range cases {
		tc.req.Actor = actor
		if _, err := svc.Move(context.Background(), tc.req); !apperr.Is(err, tc.kind) {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestMoveStatusOverrideAndFallback(t *testing.T) {
	svc, _ := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	receiving := testdb.Cell(t, db, whID, "RCV-01", celltype.Receiving)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	unitID := testdb.Unit(t, db, whID, "U-1", nil, celltype.StatusInTransit)

	res, err := svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &receiving, FallbackStatus: celltype.StatusReceiving, Actor: actor})
	if err != nil {
		t.Fatalf("move to receiving: %v", err)
	}
	if res.ToStatus != celltype.StatusReceiving {
		t.Fatalf("expected fallback status, got %q", res.ToStatus)
	}

	res, err = svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToCellID: &storage, ToStatus: celltype.StatusFF, Actor: actor})
	if err != nil {
		t.Fatalf("move with override: %v", err)
	}
	if res.ToStatus != celltype.StatusFF {
		t.Fatalf("expected explicit status to win, got %q", res.ToStatus)
	}

	res, err = svc.Move(context.Background(), Request{WarehouseID: whID, UnitID: unitID, ToStatus: celltype.StatusOut, Actor: actor})
	if err != nil {
		t.Fatalf("unplace: %v", err)
	}
	if res.ToCellID != nil || res.ToStatus != celltype.StatusOut {
		t.Fatalf("unexpected unplace result: %+v", res)
	}
	moves, err := History(context.Background(), db.R, unitID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(moves) != 3 || moves[2].ToCellID != nil {
		t.Fatalf("unexpected history: %+v", moves)
	}
}

func TestProcedureRejectsStaleUnit(t *testing.T) {
	svc, _ := newTestService(t)
	db := svc.db
	whID := testdb.Warehouse(t, db, "WH1")
	a := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	b := testdb.Cell(t, db, whID, "S-02", celltype.Storage)
	unitID := testdb.Unit(t, db, whID, "U-1", &a, celltype.StatusStored)
	stale := testdb.LoadUnit(t, db, unitID)
	testdb.Exec(t, db, `UPDATE units SET cell_id = ? WHERE id = ?`, b, unitID)

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return SQLProcedure{}.Apply(ctx, tx, Change{Unit: stale, ToCellID: &b, ToStatus: celltype.StatusStored})
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for stale unit, got %v", err)
	}
}
