// Package inventory runs warehouse-wide stock counts. While a session is
// active every placement in the warehouse is suspended.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// ActiveSession returns the active session of the warehouse, or nil.
func ActiveSession(ctx context.Context, db bun.IDB, warehouseID int64) (*models.InventorySession, error) {
	var session models.InventorySession
	err := db.NewSelect().Model(&session).
		Where("warehouse_id = ?", warehouseID).
		Where("status = ?", StatusActive).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// IsActive reports whether placements are currently suspended.
func IsActive(ctx context.Context, db bun.IDB, warehouseID int64) (bool, error) {
	return db.NewSelect().Model((*models.InventorySession)(nil)).
		Where("warehouse_id = ?", warehouseID).
		Where("status = ?", StatusActive).
		Exists(ctx)
}

type CountInput struct {
	CellCode string
	Barcodes []string
}

type ReportRow struct {
	CellID        int64     `json:"cellId"`
	CellCode      string    `json:"cellCode"`
	ExpectedCount int       `json:"expectedCount"`
	ScannedCount  int       `json:"scannedCount"`
	Missing       []string  `json:"missing"`
	Extra         []string  `json:"extra"`
	CountedAt     time.Time `json:"countedAt"`
}

type Report struct {
	Session       models.InventorySession `json:"session"`
	Rows          []ReportRow             `json:"rows"`
	CellsCounted  int                     `json:"cellsCounted"`
	CellsWithDiff int                     `json:"cellsWithDiff"`
}

type Service struct {
	db    *sqlite.DB
	audit *audit.Service
}

func NewService(db *sqlite.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc}
}

// Status returns the active session, or nil when none is running.
func (s *Service) Status(ctx context.Context, warehouseID int64) (*models.InventorySession, error) {
	var session *models.InventorySession
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		session, err = ActiveSession(ctx, tx, warehouseID)
		return err
	})
	return session, err
}

func (s *Service) Start(ctx context.Context, actor models.Actor) (models.InventorySession, error) {
	session := models.InventorySession{
		WarehouseID: actor.WarehouseID,
		Status:      StatusActive,
		StartedBy:   actor.UserID,
		StartedAt:   time.Now().UTC(),
	}
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		active, err := ActiveSession(ctx, tx, actor.WarehouseID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflict("INVENTORY_ACTIVE: inventory session %d is already running", active.ID)
		}
		_, err = tx.NewInsert().Model(&session).Exec(ctx)
		return err
	})
	if err != nil {
		return session, err
	}
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "inventory.start",
		EntityType:  "inventory_session",
		EntityID:    strconv.FormatInt(session.ID, 10),
		Summary:     fmt.Sprintf("%s started inventory; placements suspended", actor.Name()),
	})
	return session, nil
}

func (s *Service) Stop(ctx context.Context, actor models.Actor) (models.InventorySession, error) {
	var session models.InventorySession
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		active, err := ActiveSession(ctx, tx, actor.WarehouseID)
		if err != nil {
			return err
		}
		if active == nil {
			return apperr.InvalidState("no inventory session is running")
		}
		stoppedAt := time.Now().UTC()
		active.Status = StatusCompleted
		active.StoppedBy = &actor.UserID
		active.StoppedAt = &stoppedAt
		if _, err := tx.NewUpdate().Model(active).
			Column("status", "stopped_by", "stopped_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		session = *active
		return nil
	})
	if err != nil {
		return session, err
	}
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "inventory.stop",
		EntityType:  "inventory_session",
		EntityID:    strconv.FormatInt(session.ID, 10),
		Summary:     fmt.Sprintf("%s stopped inventory; placements resumed", actor.Name()),
	})
	return session, nil
}

// RecordCount stores the scanned contents of one cell, replacing any earlier
// count of the same cell in the running session.
func (s *Service) RecordCount(ctx context.Context, actor models.Actor, in CountInput) (models.InventoryCellCount, error) {
	var count models.InventoryCellCount
	code := scancode.Normalize(in.CellCode)
	if code == "" {
		return count, apperr.InvalidInput("cellCode is required")
	}
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		active, err := ActiveSession(ctx, tx, actor.WarehouseID)
		if err != nil {
			return err
		}
		if active == nil {
			return apperr.InvalidState("no inventory session is running")
		}

		var cell models.Cell
		err = tx.NewSelect().Model(&cell).
			Where("warehouse_id = ?", actor.WarehouseID).
			Where("code = ?", code).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "cell %s not found", code)
		}

		expected := make([]string, 0)
		if err := tx.NewSelect().Model((*models.Unit)(nil)).
			Column("barcode").
			Where("cell_id = ?", cell.ID).
			Scan(ctx, &expected); err != nil {
			return err
		}

		scanned := make([]string, 0, len(in.Barcodes))
		for _, b := range in.Barcodes {
			if v := scancode.Barcode(b); v != "" {
				scanned = append(scanned, v)
			}
		}
		missing, extra := Diff(expected, scanned)

		if _, err := tx.NewDelete().Model((*models.InventoryCellCount)(nil)).
			Where("session_id = ?", active.ID).
			Where("cell_id = ?", cell.ID).
			Exec(ctx); err != nil {
			return err
		}
		count = models.InventoryCellCount{
			SessionID:     active.ID,
			CellID:        cell.ID,
			ExpectedCount: len(expected),
			ScannedCount:  len(scanned),
			Missing:       missing,
			Extra:         extra,
			CountedBy:     actor.UserID,
			CountedAt:     time.Now().UTC(),
		}
		_, err = tx.NewInsert().Model(&count).Exec(ctx)
		return err
	})
	return count, err
}

// Report summarizes every cell count of a session in the warehouse.
func (s *Service) Report(ctx context.Context, warehouseID, sessionID int64) (Report, error) {
	report := Report{Rows: make([]ReportRow, 0)}
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&report.Session).
			Where("id = ?", sessionID).
			Where("warehouse_id = ?", warehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "inventory session %d not found", sessionID)
		}

		counts := make([]models.InventoryCellCount, 0)
		if err := tx.NewSelect().Model(&counts).
			Where("session_id = ?", sessionID).
			Order("cell_id").
			Scan(ctx); err != nil {
			return err
		}
		codes, err := cellCodes(ctx, tx, counts)
		if err != nil {
			return err
		}
		for _, c := range counts {
			row := ReportRow{
				CellID:        c.CellID,
				CellCode:      codes[c.CellID],
				ExpectedCount: c.ExpectedCount,
				ScannedCount:  c.ScannedCount,
				Missing:       nonNil(c.Missing),
				Extra:         nonNil(c.Extra),
				CountedAt:     c.CountedAt,
			}
			if len(row.Missing) > 0 || len(row.Extra) > 0 {
				report.CellsWithDiff++
			}
			report.Rows = append(report.Rows, row)
		}
		report.CellsCounted = len(report.Rows)
		return nil
	})
	return report, err
}

func cellCodes(ctx context.Context, tx bun.Tx, counts []models.InventoryCellCount) (map[int64]string, error) {
	out := make(map[int64]string, len(counts))
	if len(counts) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.CellID)
	}
	err := sqlite.InChunks(ids, 100, func(chunk []int64) error {
		cells := make([]models.Cell, 0, len(chunk))
		if err := tx.NewSelect().Model(&cells).Where("id IN (?)", bun.In(chunk)).Scan(ctx); err != nil {
			return err
		}
		for _, c := range cells {
			out[c.ID] = c.Code
		}
		return nil
	})
	return out, err
}

// Diff returns expected barcodes not scanned and scanned barcodes not
// expected, both sorted. Duplicated scans count once.
func Diff(expected, scanned []string) (missing, extra []string) {
	exp := make(map[string]struct{}, len(expected))
	for _, b := range expected {
		exp[b] = struct{}{}
	}
	seen := make(map[string]struct{}, len(scanned))
	for _, b := range scanned {
		seen[b] = struct{}{}
	}
	missing = make([]string, 0)
	for b := range exp {
		if _, ok := seen[b]; !ok {
			missing = append(missing, b)
		}
	}
	extra = make([]string, 0)
	for b := range seen {
		if _, ok := exp[b]; !ok {
			extra = append(extra, b)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
