// Package shipment dispatches units with couriers and takes returns back in.
package shipment

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
	StatusOut      = "out"
	StatusReturned = "returned"
)

type Service struct {
	db        *sqlite.DB
	placement *placement.Service
	audit     *audit.Service
}

func NewService(db *sqlite.DB, placementSvc *placement.Service, auditSvc *audit.Service) *Service {
	return &Service{db: db, placement: placementSvc, audit: auditSvc}
}

// ShipOut hands a unit sitting in a shipping cell to a courier. The unit is
// unplaced with status out.
func (s *Service) ShipOut(ctx context.Context, actor models.Actor, unitID int64, courierName string) (models.OutboundShipment, error) {
	var shipment models.OutboundShipment
	var move placement.Result
	courierName = strings.TrimSpace(courierName)
	if courierName == "" {
		return shipment, apperr.InvalidInput("courierName is required")
	}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var unit models.Unit
		err := tx.NewSelect().Model(&unit).
			Where("id = ?", unitID).
			Where("warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "unit %d not found", unitID)
		}
		if unit.CellID == nil {
			return apperr.InvalidState("unit %s is not in a shipping cell", unit.Barcode)
		}
		var cell models.Cell
		if err := tx.NewSelect().Model(&cell).Where("id = ?", *unit.CellID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		if cell.CellType != celltype.Shipping {
			return apperr.InvalidState("unit %s is not in a shipping cell", unit.Barcode)
		}
		if err := pickingtask.EnsureUnreserved(ctx, tx, unit); err != nil {
			return err
		}

		move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID: actor.WarehouseID,
			UnitID:      unit.ID,
			ToStatus:    celltype.StatusOut,
			Actor:       actor,
			Note:        "courier " + courierName,
			Source:      placement.SourceShipOut,
		})
		if err != nil {
			return err
		}

		shipment = models.OutboundShipment{
			WarehouseID: actor.WarehouseID,
			UnitID:      unit.ID,
			CourierName: courierName,
			Status:      StatusOut,
			OutAt:       time.Now().UTC(),
			OutBy:       actor.UserID,
		}
		_, err = tx.NewInsert().Model(&shipment).Exec(ctx)
		return err
	})
	if err != nil {
		return shipment, err
	}
	s.placement.AuditMove(ctx, actor, actor.WarehouseID, move)
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "shipment.out",
		EntityType:  "outbound_shipment",
		EntityID:    strconv.FormatInt(shipment.ID, 10),
		Summary:     fmt.Sprintf("Unit %s shipped out with %s", move.Barcode, courierName),
		Meta:        map[string]any{"unit_id": unitID, "courier_name": courierName},
	})
	return shipment, nil
}

type ReturnInput struct {
	CellID int64
	Reason string
}

// Return closes an out shipment and places the unit into a cell.
func (s *Service) Return(ctx context.Context, actor models.Actor, shipmentID int64, in ReturnInput) (models.OutboundShipment, error) {
	var shipment models.OutboundShipment
	var move placement.Result
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&shipment).
			Where("id = ?", shipmentID).
			Where("warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "shipment %d not found", shipmentID)
		}
		if shipment.Status != StatusOut {
			return apperr.InvalidState("shipment %d is already %s", shipment.ID, shipment.Status)
		}

		move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID:    actor.WarehouseID,
			UnitID:         shipment.UnitID,
			ToCellID:       &in.CellID,
			FallbackStatus: celltype.StatusStored,
			Actor:          actor,
			Note:           strings.TrimSpace(in.Reason),
			Source:         placement.SourceReturn,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		shipment.Status = StatusReturned
		shipment.ReturnedAt = &now
		shipment.ReturnedBy = &actor.UserID
		shipment.ReturnReason = strings.TrimSpace(in.Reason)
		shipment.ReturnCellID = &in.CellID
		_, err = tx.NewUpdate().Model(&shipment).
			Column("status", "returned_at", "returned_by", "return_reason", "return_cell_id").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return shipment, err
	}
	s.placement.AuditMove(ctx, actor, actor.WarehouseID, move)
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "shipment.return",
		EntityType:  "outbound_shipment",
		EntityID:    strconv.FormatInt(shipment.ID, 10),
		Summary:     fmt.Sprintf("Unit %s returned from %s into %s", move.Barcode, shipment.CourierName, move.ToCellCode),
		Meta:        map[string]any{"reason": shipment.ReturnReason},
	})
	return shipment, nil
}

type Row struct {
	models.OutboundShipment
	Barcode string `bun:"barcode" json:"barcode"`
}

// List returns shipments of a warehouse, newest first.
func (s *Service) List(ctx context.Context, warehouseID int64, status string) ([]Row, error) {
	rows := make([]Row, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			TableExpr("outbound_shipments AS os").
			ColumnExpr("os.*").
			ColumnExpr("u.barcode").
			Join("JOIN units AS u ON u.id = os.unit_id").
			Where("os.warehouse_id = ?", warehouseID).
			OrderExpr("os.out_at DESC, os.id DESC")
		if status = strings.TrimSpace(status); status != "" {
			q = q.Where("os.status = ?", status)
		}
		return q.Scan(ctx, &rows)
	})
	return rows, err
}
