package transfer

import (
	"context"
	"testing"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/placement"
	"wms/infrastructure/testdb"
)

func TestDispatchAndReceive(t *testing.T) {
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	svc := NewService(db, placement.NewService(db, auditSvc), auditSvc)
	ctx := context.Background()

	src := testdb.Warehouse(t, db, "SRC")
	dst := testdb.Warehouse(t, db, "DST")
	srcActor := testdb.User(t, db, "src-ops", "ops", src)
	dstActor := testdb.User(t, db, "dst-ops", "ops", dst)
	hub := testdb.Cell(t, db, src, "T-01", celltype.Transfer)
	storage := testdb.Cell(t, db, src, "S-01", celltype.Storage)
	receiving := testdb.Cell(t, db, dst, "R-01", celltype.Receiving)
	unitID := testdb.Unit(t, db, src, "U-1", &hub, celltype.StatusStored)
	stored := testdb.Unit(t, db, src, "U-2", &storage, celltype.StatusStored)

	if _, err := svc.Dispatch(ctx, srcActor, stored, dst); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state for unit outside transfer cell, got %v", err)
	}
	if _, err := svc.Dispatch(ctx, srcActor, unitID, src); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input for same warehouse, got %v", err)
	}

	tr, err := svc.Dispatch(ctx, srcActor, unitID, dst)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	unit := testdb.LoadUnit(t, db, unitID)
	if unit.CellID != nil || unit.Status != celltype.StatusInTransit || unit.WarehouseID != src {
		t.Fatalf("unexpected unit in transit: %+v", unit)
	}

	if _, err := svc.Receive(ctx, srcActor, tr.ID, storage); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("source warehouse must not receive, got %v", err)
	}

	received, err := svc.Receive(ctx, dstActor, tr.ID, receiving)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Status != StatusReceived || received.ReceivedCellID == nil {
		t.Fatalf("unexpected transfer: %+v", received)
	}
	unit = testdb.LoadUnit(t, db, unitID)
	if unit.WarehouseID != dst || unit.CellID == nil || *unit.CellID != receiving || unit.Status != celltype.StatusReceiving {
		t.Fatalf("unexpected received unit: %+v", unit)
	}

	if _, err := svc.Receive(ctx, dstActor, tr.ID, receiving); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state on second receive, got %v", err)
	}

	in, err := svc.List(ctx, dst, DirectionIn)
	if err != nil {
		t.Fatalf("list in: %v", err)
	}
	out, err := svc.List(ctx, dst, DirectionOut)
	if err != nil {
		t.Fatalf("list out: %v", err)
	}
	all, err := svc.List(ctx, src, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(in) != 1 || len(out) != 0 || len(all) != 1 {
		t.Fatalf("unexpected lists: in=%d out=%d all=%d", len(in), len(out), len(all))
	}
}

func TestDispatchRefusesReservedUnit(t *testing.T) {
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	moves := placement.NewService(db, auditSvc)
	svc := NewService(db, moves, auditSvc)
	tasks := pickingtask.NewService(db, moves, auditSvc, 0)
	ctx := context.Background()

	src := testdb.Warehouse(t, db, "SRC")
	dst := testdb.Warehouse(t, db, "DST")
	actor := testdb.User(t, db, "src-ops", "ops", src)
	hub := testdb.Cell(t, db, src, "T-01", celltype.Transfer)
	picking := testdb.Cell(t, db, src, "P-01", celltype.Picking)
	unitID := testdb.Unit(t, db, src, "U-1", &hub, celltype.StatusStored)

	task, err := tasks.Create(ctx, actor, pickingtask.CreateInput{TargetCellID: picking, UnitIDs: []int64{unitID}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := svc.Dispatch(ctx, actor, unitID, dst); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for reserved unit, got %v", err)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM transfers`); n != 0 {
		t.Fatalf("expected no transfers, got %d", n)
	}
	unit := testdb.LoadUnit(t, db, unitID)
	if unit.CellID == nil || *unit.CellID != hub {
		t.Fatalf("reserved unit left the hub: %+v", unit)
	}

	if _, err := tasks.Cancel(ctx, actor, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Dispatch(ctx, actor, unitID, dst); err != nil {
		t.Fatalf("dispatch after cancel: %v", err)
	}
}
