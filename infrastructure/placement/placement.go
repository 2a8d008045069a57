// Package placement moves units between cells. It is the only writer of a
// unit's cell and status.
//
// A move runs as a single read-check-write inside one write transaction:
// the unit row is updated with a compare-and-swap on its previous cell and
// status, and a history row is appended in the same transaction.
package placement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/inventory"
	"wms/infrastructure/sqlite"
	"wms/models"
)

// Move sources recorded in history.
const (
	SourceManual        = "manual"
	SourceAssign        = "assign"
	SourcePickingScan   = "picking_scan"
	SourcePickingCancel = "picking_cancel"
	SourceShipOut       = "ship_out"
	SourceReturn        = "shipment_return"
	SourceTransferOut   = "transfer_out"
	SourceTransferIn    = "transfer_in"
)

// Request describes one placement. A nil ToCellID unplaces the unit.
type Request struct {
	WarehouseID int64
	UnitID      int64
	ToCellID    *int64
	// ToStatus overrides the status derived from the destination cell type.
	ToStatus string
	// FallbackStatus is used when the destination type maps to no status.
	FallbackStatus string
	Actor          models.Actor
	Note           string
	Source         string
}

type Result struct {
	UnitID       int64  `json:"unitId"`
	Barcode      string `json:"barcode"`
	FromCellID   *int64 `json:"fromCellId"`
	FromCellCode string `json:"fromCellCode,omitempty"`
	ToCellID     *int64 `json:"toCellId"`
	ToCellCode   string `json:"toCellCode,omitempty"`
	FromStatus   string `json:"fromStatus"`
	ToStatus     string `json:"toStatus"`
	Noop         bool   `json:"noop"`
}

// Change is a validated move handed to the Procedure.
type Change struct {
	Unit     models.Unit
	ToCellID *int64
	ToStatus string
	ActorID  int64
	Note     string
	Source   string
}

// Procedure applies a validated change to storage.
type Procedure interface {
	Apply(ctx context.Context, tx bun.Tx, c Change) error
}

type Service struct {
	db        *sqlite.DB
	audit     *audit.Service
	Procedure Procedure
}

func NewService(db *sqlite.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc, Procedure: SQLProcedure{}}
}

// Move runs MoveInTx in its own write transaction and audits the result.
func (s *Service) Move(ctx context.Context, req Request) (Result, error) {
	var res Result
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		res, err = s.MoveInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return res, err
	}
	s.AuditMove(ctx, req.Actor, req.WarehouseID, res)
	return res, nil
}

// MoveInTx validates and applies req inside tx. It does not audit; callers
// emit AuditMove after commit.
func (s *Service) MoveInTx(ctx context.Context, tx bun.Tx, req Request) (Result, error) {
	var res Result

	var unit models.Unit
	err := tx.NewSelect().Model(&unit).
		Where("id = ?", req.UnitID).
		Where("warehouse_id = ?", req.WarehouseID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return res, apperr.NotFoundIfNoRows(err, "unit %d not found", req.UnitID)
	}
	res = Result{
		UnitID:     unit.ID,
		Barcode:    unit.Barcode,
		FromCellID: unit.CellID,
		FromStatus: unit.Status,
	}

	locked, err := inventory.IsActive(ctx, tx, req.WarehouseID)
	if err != nil {
		return res, err
	}
	if locked {
		return res, apperr.Locked("INVENTORY_ACTIVE: placements are suspended while inventory is running")
	}

	var fromType string
	if unit.CellID != nil {
		from, err := loadCell(ctx, tx, *unit.CellID, 0)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return res, err
		}
		if err == nil {
			fromType = from.CellType
			res.FromCellCode = from.Code
		}
	}

	var toType string
	if req.ToCellID != nil {
		to, err := loadCell(ctx, tx, *req.ToCellID, req.WarehouseID)
		if err != nil {
			return res, err
		}
		if !to.Active {
			return res, apperr.Conflict("cell %s is inactive", to.Code)
		}
		if to.Blocked() {
			return res, apperr.Conflict("cell %s is blocked", to.Code)
		}
		toType = to.CellType
		res.ToCellCode = to.Code
	}
	res.ToCellID = req.ToCellID

	status, err := resolveStatus(req, toType, unit.Status)
	if err != nil {
		return res, err
	}
	res.ToStatus = status

	if req.ToCellID != nil && !celltype.IngressAllowed(fromType, toType) {
		return res, apperr.PolicyViolation("REJECTED_TO_BIN_FORBIDDEN: unit %s must leave the rejected zone before entering a bin cell", unit.Barcode)
	}

	if sameCell(unit.CellID, req.ToCellID) && unit.Status == status {
		res.Noop = true
		return res, nil
	}

	err = s.Procedure.Apply(ctx, tx, Change{
		Unit:     unit,
		ToCellID: req.ToCellID,
		ToStatus: status,
		ActorID:  req.Actor.UserID,
		Note:     req.Note,
		Source:   req.Source,
	})
	return res, err
}

// AuditMove records a completed move. No-op results are not audited.
func (s *Service) AuditMove(ctx context.Context, actor models.Actor, warehouseID int64, res Result) {
	if res.Noop {
		return
	}
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: warehouseID,
		Action:      "unit.move",
		EntityType:  "unit",
		EntityID:    strconv.FormatInt(res.UnitID, 10),
		Summary:     fmt.Sprintf("Unit %s moved from %s to %s (%s)", res.Barcode, cellLabel(res.FromCellCode), cellLabel(res.ToCellCode), res.ToStatus),
		Meta: map[string]any{
			"from_cell_id": res.FromCellID,
			"to_cell_id":   res.ToCellID,
			"from_status":  res.FromStatus,
			"to_status":    res.ToStatus,
		},
	})
}

func resolveStatus(req Request, toType, current string) (string, error) {
	if req.ToStatus != "" {
		if !celltype.IsKnownStatus(req.ToStatus) {
			return "", apperr.InvalidInput("invalid status %q", req.ToStatus)
		}
		return req.ToStatus, nil
	}
	if req.ToCellID != nil {
		if status, ok := celltype.StatusFor(toType); ok {
			return status, nil
		}
	}
	if req.FallbackStatus != "" {
		return req.FallbackStatus, nil
	}
	return current, nil
}

// loadCell loads a cell by id; warehouseID > 0 scopes the lookup.
func loadCell(ctx context.Context, tx bun.Tx, id, warehouseID int64) (models.Cell, error) {
	var cell models.Cell
	q := tx.NewSelect().Model(&cell).Where("id = ?", id)
	if warehouseID > 0 {
		q = q.Where("warehouse_id = ?", warehouseID)
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return cell, apperr.NotFoundIfNoRows(err, "cell %d not found", id)
	}
	return cell, nil
}

func sameCell(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cellLabel(code string) string {
	if code == "" {
		return "nowhere"
	}
	return code
}

// SQLProcedure is the storage implementation of Procedure.
type SQLProcedure struct{}

func (SQLProcedure) Apply(ctx context.Context, tx bun.Tx, c Change) error {
	now := time.Now().UTC()
	q := tx.NewUpdate().Model((*models.Unit)(nil)).
		Set("cell_id = ?", c.ToCellID).
		Set("status = ?", c.ToStatus).
		Set("updated_at = ?", now).
		Where("id = ?", c.Unit.ID).
		Where("status = ?", c.Unit.Status)
	if c.Unit.CellID == nil {
		q = q.Where("cell_id IS NULL")
	} else {
		q = q.Where("cell_id = ?", *c.Unit.CellID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperr.Conflict("unit %s was moved concurrently; retry", c.Unit.Barcode)
	}

	move := &models.UnitMove{
		UnitID:     c.Unit.ID,
		FromCellID: c.Unit.CellID,
		ToCellID:   c.ToCellID,
		FromStatus: c.Unit.Status,
		ToStatus:   c.ToStatus,
		ActorID:    c.ActorID,
		Note:       c.Note,
		Source:     c.Source,
		CreatedAt:  now,
	}
	_, err = tx.NewInsert().Model(move).Exec(ctx)
	return err
}

// History returns the move rows of a unit, oldest first.
func History(ctx context.Context, db bun.IDB, unitID int64) ([]models.UnitMove, error) {
	moves := make([]models.UnitMove, 0)
	err := db.NewSelect().Model(&moves).Where("unit_id = ?", unitID).Order("id").Scan(ctx)
	return moves, err
}
