package inventory

import (
	"context"
	"reflect"
	"testing"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/testdb"
)

func TestDiff(t *testing.T) {
	missing, extra := Diff([]string{"A1", "A2", "A3"}, []string{"A3", "A1", "B9", "B9"})
	if !reflect.DeepEqual(missing, []string{"A2"}) {
		t.Fatalf("unexpected missing: %v", missing)
	}
	if !reflect.DeepEqual(extra, []string{"B9"}) {
		t.Fatalf("unexpected extra: %v", extra)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "sup", "supervisor", whID)
	svc := NewService(db, audit.NewService(db))
	ctx := context.Background()

	if s, err := svc.Status(ctx, whID); err != nil || s != nil {
		t.Fatalf("expected no active session, got %+v err=%v", s, err)
	}
	session, err := svc.Start(ctx, actor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Start(ctx, actor); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second start, got %v", err)
	}
	active, err := IsActive(ctx, db.R, whID)
	if err != nil || !active {
		t.Fatalf("expected active inventory, got %v err=%v", active, err)
	}

	stopped, err := svc.Stop(ctx, actor)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ID != session.ID || stopped.Status != StatusCompleted {
		t.Fatalf("unexpected stopped session: %+v", stopped)
	}
	if _, err := svc.Stop(ctx, actor); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state on second stop, got %v", err)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM audit_events WHERE entity_type = 'inventory_session'`); n != 2 {
		t.Fatalf("expected 2 inventory audit events, got %d", n)
	}
}

func TestRecordCountAndReport(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "worker", "worker", whID)
	cellID := testdb.Cell(t, db, whID, "A-01", celltype.Storage)
	testdb.Unit(t, db, whID, "P-1", &cellID, celltype.StatusStored)
	testdb.Unit(t, db, whID, "P-2", &cellID, celltype.StatusStored)
	svc := NewService(db, nil)
	ctx := context.Background()

	if _, err := svc.RecordCount(ctx, actor, CountInput{CellCode: "a-01", Barcodes: []string{"P-1"}}); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state without session, got %v", err)
	}

	session, err := svc.Start(ctx, actor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, actor, CountInput{CellCode: "a-01", Barcodes: []string{"P-1", "X-9"}}); err != nil {
		t.Fatalf("first count: %v", err)
	}
	count, err := svc.RecordCount(ctx, actor, CountInput{CellCode: " a-01 ", Barcodes: []string{"P-1", "P-2"}})
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	if count.ExpectedCount != 2 || count.ScannedCount != 2 {
		t.Fatalf("unexpected recount: %+v", count)
	}
	if _, err := svc.RecordCount(ctx, actor, CountInput{CellCode: "ZZ-99"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown cell, got %v", err)
	}

	report, err := svc.Report(ctx, whID, session.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CellsCounted != 1 {
		t.Fatalf("recount must replace earlier row, got %d rows", report.CellsCounted)
	}
	if report.CellsWithDiff != 0 || report.Rows[0].CellCode != "A-01" {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := svc.Report(ctx, whID+1, session.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected other warehouse to be filtered out, got %v", err)
	}
}
