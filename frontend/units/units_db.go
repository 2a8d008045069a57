package units

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
	"wms/infrastructure/outbox"
	"wms/infrastructure/placement"
	"wms/infrastructure/postponed"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

// CreateUnit registers a new unplaced unit in receiving status.
func CreateUnit(ctx context.Context, db *sqlite.DB, actor models.Actor, in CreateUnitRequest) (models.Unit, error) {
	var unit models.Unit
	barcode := scancode.Barcode(in.Barcode)
	if barcode == "" {
		return unit, apperr.InvalidInput("barcode is required")
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Unit)(nil)).
			Where("warehouse_id = ?", actor.WarehouseID).
			Where("barcode = ?", barcode).
			Where("status <> ?", celltype.StatusOut).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("unit %s already exists", barcode)
		}
		now := time.Now().UTC()
		unit = models.Unit{
			WarehouseID: actor.WarehouseID,
			Barcode:     barcode,
			Status:      celltype.StatusReceiving,
			Meta:        in.Meta,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if unit.Meta == nil {
			unit.Meta = map[string]any{}
		}
		_, err = tx.NewInsert().Model(&unit).Exec(ctx)
		return err
	})
	return unit, err
}

func ListUnits(ctx context.Context, db *sqlite.DB, f ListFilter) ([]UnitRow, error) {
	rows := make([]UnitRow, 0)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&rows).
			ColumnExpr("un.*").
			ColumnExpr("c.code AS cell_code, c.cell_type AS cell_type").
			Join("LEFT JOIN cells AS c ON c.id = un.cell_id").
			Where("un.warehouse_id = ?", f.WarehouseID).
			OrderExpr("un.updated_at DESC, un.id DESC").
			Limit(limit)
		if barcode := scancode.Barcode(f.Barcode); barcode != "" {
			q = q.Where("un.barcode LIKE ?", "%"+barcode+"%")
		}
		if f.CellID > 0 {
			q = q.Where("un.cell_id = ?", f.CellID)
		}
		if status := strings.TrimSpace(f.Status); status != "" {
			q = q.Where("un.status = ?", status)
		}
		return q.Scan(ctx)
	})
	return rows, err
}

func LoadUnit(ctx context.Context, db *sqlite.DB, warehouseID, unitID int64) (UnitRow, error) {
	var row UnitRow
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&row).
			ColumnExpr("un.*").
			ColumnExpr("c.code AS cell_code, c.cell_type AS cell_type").
			Join("LEFT JOIN cells AS c ON c.id = un.cell_id").
			Where("un.id = ?", unitID).
			Where("un.warehouse_id = ?", warehouseID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return row, apperr.NotFoundIfNoRows(err, "unit %d not found", unitID)
	}
	return row, nil
}

// UnitMoves returns move history oldest first.
func UnitMoves(ctx context.Context, db *sqlite.DB, warehouseID, unitID int64) ([]MoveRow, error) {
	if _, err := LoadUnit(ctx, db, warehouseID, unitID); err != nil {
		return nil, err
	}
	rows := make([]MoveRow, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).
			ColumnExpr("um.*").
			ColumnExpr("fc.code AS from_cell_code, tc.code AS to_cell_code").
			Join("LEFT JOIN cells AS fc ON fc.id = um.from_cell_id").
			Join("LEFT JOIN cells AS tc ON tc.id = um.to_cell_id").
			Where("um.unit_id = ?", unitID).
			OrderExpr("um.id ASC").
			Scan(ctx)
	})
	return rows, err
}

// UpdateUnit merges a metadata patch. Setting opsStatus to a postponed
// disposition publishes outbox.EventUnitPostponed in the same transaction.
func UpdateUnit(ctx context.Context, db *sqlite.DB, actor models.Actor, unitID int64, in UpdateUnitRequest) (models.Unit, bool, error) {
	var unit models.Unit
	var published bool
	var before string
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&unit).
			Where("id = ?", unitID).
			Where("warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "unit %d not found", unitID)
		}
		before = unit.OpsStatus()
		unit.Meta = mergeMeta(unit.Meta, in.Meta)
		if in.OpsStatus != nil {
			ops := strings.TrimSpace(*in.OpsStatus)
			if ops == "" {
				delete(unit.Meta, "ops_status")
			} else {
				unit.Meta["ops_status"] = ops
			}
		}
		unit.UpdatedAt = time.Now().UTC()
		if _, err := tx.NewUpdate().Model(&unit).Column("meta", "updated_at").WherePK().Exec(ctx); err != nil {
			return err
		}

		after := unit.OpsStatus()
		if after == before || !postponed.IsPostponed(after) {
			return nil
		}
		_, err = outbox.Publish(ctx, tx, outbox.EventUnitPostponed, actor.WarehouseID, outbox.UnitPostponed{
			UnitID:      unit.ID,
			WarehouseID: actor.WarehouseID,
			OpsStatus:   after,
			ActorID:     actor.UserID,
			OccurredAt:  unit.UpdatedAt,
		})
		published = err == nil
		return err
	})
	return unit, published, err
}

func auditUnitUpdate(ctx context.Context, auditSvc *audit.Service, actor models.Actor, unit models.Unit, in UpdateUnitRequest) {
	meta := map[string]any{"patch": in.Meta}
	if in.OpsStatus != nil {
		meta["ops_status"] = *in.OpsStatus
	}
	auditSvc.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "unit.update",
		EntityType:  "unit",
		EntityID:    strconv.FormatInt(unit.ID, 10),
		Summary:     fmt.Sprintf("Unit %s metadata updated", unit.Barcode),
		Meta:        meta,
	})
}

func mergeMeta(current, patch map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// AssignUnit places a unit into a cell and publishes outbox.EventUnitAssigned,
// plus outbox.EventUnitPostponed when the unit already carries a postponed
// ops status.
func AssignUnit(ctx context.Context, db *sqlite.DB, placementSvc *placement.Service, actor models.Actor, in AssignUnitRequest) (placement.Result, error) {
	var res placement.Result
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		res, err = placementSvc.MoveInTx(ctx, tx, placement.Request{
			WarehouseID: actor.WarehouseID,
			UnitID:      in.UnitID,
			ToCellID:    &in.CellID,
			Actor:       actor,
			Note:        strings.TrimSpace(in.Note),
			Source:      placement.SourceAssign,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := outbox.Publish(ctx, tx, outbox.EventUnitAssigned, actor.WarehouseID, outbox.UnitAssigned{
			UnitID:      res.UnitID,
			WarehouseID: actor.WarehouseID,
			CellID:      in.CellID,
			Status:      res.ToStatus,
			ActorID:     actor.UserID,
			OccurredAt:  now,
		}); err != nil {
			return err
		}

		var unit models.Unit
		if err := tx.NewSelect().Model(&unit).Where("id = ?", res.UnitID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		if ops := unit.OpsStatus(); postponed.IsPostponed(ops) {
			_, err = outbox.Publish(ctx, tx, outbox.EventUnitPostponed, actor.WarehouseID, outbox.UnitPostponed{
				UnitID:      res.UnitID,
				WarehouseID: actor.WarehouseID,
				OpsStatus:   ops,
				ActorID:     actor.UserID,
				OccurredAt:  now,
			})
		}
		return err
	})
	return res, err
}

// PurgeUnit deletes a unit and every row that references it. Tasks left
// without units are removed too.
func PurgeUnit(ctx context.Context, db *sqlite.DB, warehouseID, unitID int64) (PurgeResult, error) {
	res := PurgeResult{UnitID: unitID}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var unit models.Unit
		err := tx.NewSelect().Model(&unit).
			Where("id = ?", unitID).
			Where("warehouse_id = ?", warehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "unit %d not found", unitID)
		}
		res.Barcode = unit.Barcode

		taskIDs := make([]int64, 0)
		if err := tx.NewRaw(`
SELECT task_id FROM picking_task_units WHERE unit_id = ?
UNION
SELECT id FROM picking_tasks WHERE unit_id = ?`, unitID, unitID).Scan(ctx, &taskIDs); err != nil {
			return err
		}

		stmts := []string{
			`DELETE FROM task_rollbacks WHERE unit_id = ?`,
			`DELETE FROM picking_task_units WHERE unit_id = ?`,
			`UPDATE picking_tasks SET unit_id = NULL, from_cell_id = NULL WHERE unit_id = ?`,
			`DELETE FROM unit_moves WHERE unit_id = ?`,
			`DELETE FROM outbound_shipments WHERE unit_id = ?`,
			`DELETE FROM transfers WHERE unit_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, unitID); err != nil {
				return err
			}
		}

		if len(taskIDs) > 0 {
			r, err := tx.ExecContext(ctx, `
DELETE FROM picking_tasks
WHERE id IN (?)
  AND unit_id IS NULL
  AND NOT EXISTS (SELECT 1 FROM picking_task_units ptu WHERE ptu.task_id = picking_tasks.id)`, bun.In(taskIDs))
			if err != nil {
				return err
			}
			n, err := r.RowsAffected()
			if err != nil {
				return err
			}
			res.TasksDeleted = int(n)
		}

		_, err = tx.NewDelete().Model((*models.Unit)(nil)).Where("id = ?", unitID).Exec(ctx)
		return err
	})
	if err != nil {
		return res, err
	}
	res.OK = true
	res.PurgedAt = time.Now().UTC()
	return res, nil
}
