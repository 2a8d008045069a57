package audit

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"wms/infrastructure/sqlite"
	"wms/models"
)

func openAuditTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "audit-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestEmitAndListFilters(t *testing.T) {
	db := openAuditTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	actor := models.Actor{UserID: 3, Username: "ops1", DisplayName: "Ops One", Role: "ops", WarehouseID: 1}

	svc.Emit(ctx, actor, Event{WarehouseID: 1, Action: "unit.move", EntityType: "unit", EntityID: "10", Summary: "moved"})
	svc.Emit(ctx, actor, Event{WarehouseID: 1, Action: "picking_task.cancel", EntityType: "picking_task", EntityID: "4", Summary: "canceled", Meta: map[string]any{"units_returned": 2}})
	svc.Emit(ctx, actor, Event{WarehouseID: 2, Action: "unit.move", EntityType: "unit", EntityID: "11", Summary: "other warehouse"})

	all, err := svc.List(ctx, Filter{WarehouseID: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events for warehouse 1, got %d", len(all))
	}
	if all[0].Action != "picking_task.cancel" {
		t.Fatalf("expected newest first, got %s", all[0].Action)
	}
	if all[0].ActorName != "Ops One" || all[0].ActorRole != "ops" {
		t.Fatalf("unexpected actor stamp: %+v", all[0])
	}
	if got, _ := all[0].Meta["units_returned"].(float64); got != 2 {
		t.Fatalf("expected meta to round trip, got %v", all[0].Meta)
	}

	moves, err := svc.List(ctx, Filter{WarehouseID: 1, Action: "unit.move", EntityID: "10"})
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("expected 1 move event, got %d", len(moves))
	}

	today, err := svc.List(ctx, Filter{WarehouseID: 1, Day: time.Now()})
	if err != nil {
		t.Fatalf("list today: %v", err)
	}
	if len(today) != 2 {
		t.Fatalf("expected 2 events today, got %d", len(today))
	}
	yesterday, err := svc.List(ctx, Filter{WarehouseID: 1, Day: time.Now().AddDate(0, 0, -2)})
	if err != nil {
		t.Fatalf("list past day: %v", err)
	}
	if len(yesterday) != 0 {
		t.Fatalf("expected no events two days ago, got %d", len(yesterday))
	}
}

func TestEmitOnNilServiceIsNoop(t *testing.T) {
	var svc *Service
	svc.Emit(context.Background(), models.Actor{}, Event{Action: "noop"})
}
