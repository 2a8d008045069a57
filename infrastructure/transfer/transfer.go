// Package transfer moves unit ownership between warehouses through a hub.
package transfer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/placement"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const (
	StatusInTransit = "in_transit"
	StatusReceived  = "received"

	DirectionIn  = "in"
	DirectionOut = "out"
)

type Service struct {
	db        *sqlite.DB
	placement *placement.Service
	audit     *audit.Service
}

func NewService(db *sqlite.DB, placementSvc *placement.Service, auditSvc *audit.Service) *Service {
	return &Service{db: db, placement: placementSvc, audit: auditSvc}
}

// Dispatch sends a unit staged in a transfer cell to another warehouse.
func (s *Service) Dispatch(ctx context.Context, actor models.Actor, unitID, toWarehouseID int64) (models.Transfer, error) {
	var tr models.Transfer
	var move placement.Result
	if toWarehouseID == actor.WarehouseID {
		return tr, apperr.InvalidInput("destination warehouse must differ from the source")
	}
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Warehouse)(nil)).Where("id = ?", toWarehouseID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("warehouse %d not found", toWarehouseID)
		}

		var unit models.Unit
		err = tx.NewSelect().Model(&unit).
			Where("id = ?", unitID).
			Where("warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "unit %d not found", unitID)
		}
		if unit.CellID == nil {
			return apperr.InvalidState("unit %s must be staged in a transfer cell", unit.Barcode)
		}
		var cell models.Cell
		if err := tx.NewSelect().Model(&cell).Where("id = ?", *unit.CellID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		if cell.CellType != celltype.Transfer {
			return apperr.InvalidState("unit %s must be staged in a transfer cell", unit.Barcode)
		}
		if err := pickingtask.EnsureUnreserved(ctx, tx, unit); err != nil {
			return err
		}

		move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID: actor.WarehouseID,
			UnitID:      unit.ID,
			ToStatus:    celltype.StatusInTransit,
			Actor:       actor,
			Note:        fmt.Sprintf("transfer to warehouse %d", toWarehouseID),
			Source:      placement.SourceTransferOut,
		})
		if err != nil {
			return err
		}

		tr = models.Transfer{
			UnitID:          unit.ID,
			FromWarehouseID: actor.WarehouseID,
			ToWarehouseID:   toWarehouseID,
			Status:          StatusInTransit,
			CreatedBy:       actor.UserID,
			CreatedAt:       time.Now().UTC(),
		}
		_, err = tx.NewInsert().Model(&tr).Exec(ctx)
		return err
	})
	if err != nil {
		return tr, err
	}
	s.placement.AuditMove(ctx, actor, actor.WarehouseID, move)
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "transfer.dispatch",
		EntityType:  "transfer",
		EntityID:    strconv.FormatInt(tr.ID, 10),
		Summary:     fmt.Sprintf("Unit %s dispatched to warehouse %d", move.Barcode, toWarehouseID),
		Meta:        map[string]any{"unit_id": unitID, "to_warehouse_id": toWarehouseID},
	})
	return tr, nil
}

// Receive takes an in-transit unit into the actor's warehouse and places it.
func (s *Service) Receive(ctx context.Context, actor models.Actor, transferID, cellID int64) (models.Transfer, error) {
	var tr models.Transfer
	var move placement.Result
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&tr).
			Where("id = ?", transferID).
			Where("to_warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "transfer %d not found", transferID)
		}
		if tr.Status != StatusInTransit {
			return apperr.InvalidState("transfer %d is already %s", tr.ID, tr.Status)
		}

		now := time.Now().UTC()
		res, err := tx.NewUpdate().Model((*models.Unit)(nil)).
			Set("warehouse_id = ?", tr.ToWarehouseID).
			Set("updated_at = ?", now).
			Where("id = ?", tr.UnitID).
			Where("warehouse_id = ?", tr.FromWarehouseID).
			Where("cell_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.Conflict("unit %d is no longer in transit", tr.UnitID)
		}

		move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID:    tr.ToWarehouseID,
			UnitID:         tr.UnitID,
			ToCellID:       &cellID,
			FallbackStatus: celltype.StatusReceiving,
			Actor:          actor,
			Note:           fmt.Sprintf("transfer %d from warehouse %d", tr.ID, tr.FromWarehouseID),
			Source:         placement.SourceTransferIn,
		})
		if err != nil {
			return err
		}

		tr.Status = StatusReceived
		tr.ReceivedBy = &actor.UserID
		tr.ReceivedAt = &now
		tr.ReceivedCellID = &cellID
		_, err = tx.NewUpdate().Model(&tr).
			Column("status", "received_by", "received_at", "received_cell_id").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return tr, err
	}
	s.placement.AuditMove(ctx, actor, actor.WarehouseID, move)
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "transfer.receive",
		EntityType:  "transfer",
		EntityID:    strconv.FormatInt(tr.ID, 10),
		Summary:     fmt.Sprintf("Unit %s received from warehouse %d into %s", move.Barcode, tr.FromWarehouseID, move.ToCellCode),
	})
	return tr, nil
}

// List returns transfers touching the warehouse. direction narrows to
// incoming or outgoing.
func (s *Service) List(ctx context.Context, warehouseID int64, direction string) ([]models.Transfer, error) {
	rows := make([]models.Transfer, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&rows).OrderExpr("t.id DESC")
		switch strings.ToLower(strings.TrimSpace(direction)) {
		case DirectionIn:
			q = q.Where("t.to_warehouse_id = ?", warehouseID)
		case DirectionOut:
			q = q.Where("t.from_warehouse_id = ?", warehouseID)
		default:
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("t.to_warehouse_id = ?", warehouseID).WhereOr("t.from_warehouse_id = ?", warehouseID)
			})
		}
		return q.Scan(ctx)
	})
	return rows, err
}
