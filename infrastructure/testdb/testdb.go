// Package testdb opens migrated throwaway databases and seeds rows for tests.
package testdb

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/sqlite"
	"wms/models"
)

// Open returns a migrated database in t.TempDir(), closed on cleanup.
func Open(t testing.TB) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "test.db"))
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

// Exec runs a raw write statement.
func Exec(t testing.TB, db *sqlite.DB, query string, args ...any) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// Count runs a raw SELECT COUNT(*) style query.
func Count(t testing.TB, db *sqlite.DB, query string, args ...any) int {
	t.Helper()
	var n int
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(query, args...).Scan(ctx, &n)
	})
	if err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func insert(t testing.TB, db *sqlite.DB, model any) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(model).Exec(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("insert %T: %v", model, err)
	}
}

func Warehouse(t testing.TB, db *sqlite.DB, code string) int64 {
	t.Helper()
	wh := &models.Warehouse{Code: code, Name: "Warehouse " + code, CreatedAt: time.Now().UTC()}
	insert(t, db, wh)
	return wh.ID
}

// User seeds a user and returns it as a request actor.
func User(t testing.TB, db *sqlite.DB, username, role string, warehouseID int64) models.Actor {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if warehouseID > 0 {
		u.WarehouseID = &warehouseID
	}
	insert(t, db, u)
	return models.Actor{UserID: u.ID, Username: username, DisplayName: username, Role: role, WarehouseID: warehouseID}
}

func Cell(t testing.TB, db *sqlite.DB, warehouseID int64, code, cellType string) int64 {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Cell{
		WarehouseID: warehouseID,
		Code:        code,
		CellType:    cellType,
		Active:      true,
		W:           1,
		H:           1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	insert(t, db, c)
	return c.ID
}

// Unit seeds a unit; cellID may be nil for an unplaced unit.
func Unit(t testing.TB, db *sqlite.DB, warehouseID int64, barcode string, cellID *int64, status string) int64 {
	t.Helper()
	now := time.Now().UTC()
	u := &models.Unit{
		WarehouseID: warehouseID,
		Barcode:     barcode,
		CellID:      cellID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	insert(t, db, u)
	return u.ID
}

func LoadUnit(t testing.TB, db *sqlite.DB, id int64) models.Unit {
	t.Helper()
	var u models.Unit
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&u).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load unit %d: %v", id, err)
	}
	return u
}

func LoadTask(t testing.TB, db *sqlite.DB, id int64) models.PickingTask {
	t.Helper()
	var task models.PickingTask
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&task).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load task %d: %v", id, err)
	}
	return task
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
