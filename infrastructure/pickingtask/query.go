package pickingtask

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

type Summary struct {
	models.PickingTask
	TargetCellCode string `bun:"target_cell_code" json:"targetCellCode"`
	UnitCount      int    `bun:"unit_count" json:"unitCount"`
	MovedCount     int    `bun:"moved_count" json:"movedCount"`
}

type DetailUnit struct {
	UnitID          int64  `json:"unitId"`
	Barcode         string `json:"barcode"`
	Status          string `json:"status"`
	FromCellID      *int64 `json:"fromCellId"`
	FromCellCode    string `json:"fromCellCode"`
	CurrentCellID   *int64 `json:"currentCellId"`
	CurrentCellCode string `json:"currentCellCode"`
}

type Detail struct {
	Task       models.PickingTask    `json:"task"`
	TargetCell *models.Cell          `json:"targetCell"`
	Units      []DetailUnit          `json:"units"`
	Rollbacks  []models.TaskRollback `json:"rollbacks"`
}

// List returns tasks of a warehouse, newest first, with unit progress.
func (s *Service) List(ctx context.Context, warehouseID int64, status string) ([]Summary, error) {
	out := make([]Summary, 0)
	status = strings.TrimSpace(status)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		args := []any{warehouseID}
		filter := ""
		if status != "" {
			filter = " AND pt.status = ?"
			args = append(args, status)
		}
		return tx.NewRaw(`
SELECT
	pt.*,
	COALESCE(c.code, '') AS target_cell_code,
	CASE
		WHEN EXISTS (SELECT 1 FROM picking_task_units x WHERE x.task_id = pt.id)
			THEN (SELECT COUNT(*) FROM picking_task_units x WHERE x.task_id = pt.id)
		WHEN pt.unit_id IS NOT NULL THEN 1
		ELSE 0
	END AS unit_count,
	(
		SELECT COUNT(*) FROM units u
		WHERE u.cell_id = pt.target_picking_cell_id
		  AND (u.id IN (SELECT x.unit_id FROM picking_task_units x WHERE x.task_id = pt.id) OR u.id = pt.unit_id)
	) AS moved_count
FROM picking_tasks pt
LEFT JOIN cells c ON c.id = pt.target_picking_cell_id
WHERE pt.warehouse_id = ?`+filter+`
ORDER BY pt.id DESC`, args...).Scan(ctx, &out)
	})
	return out, err
}

// Get returns a task with its units, their origin and current cells.
func (s *Service) Get(ctx context.Context, warehouseID, taskID int64) (Detail, error) {
	detail := Detail{Units: make([]DetailUnit, 0)}
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		task, err := LoadTask(ctx, tx, warehouseID, taskID)
		if err != nil {
			return err
		}
		detail.Task = task
		taskUnits, err := TaskUnits(ctx, tx, task)
		if err != nil {
			return err
		}

		unitIDs := make([]int64, 0, len(taskUnits))
		cellIDs := make([]int64, 0, len(taskUnits)+1)
		for _, tu := range taskUnits {
			unitIDs = append(unitIDs, tu.UnitID)
			if tu.FromCellID != nil {
				cellIDs = append(cellIDs, *tu.FromCellID)
			}
		}
		if task.TargetPickingCellID != nil {
			cellIDs = append(cellIDs, *task.TargetPickingCellID)
		}

		units := make(map[int64]models.Unit, len(unitIDs))
		err = sqlite.InChunks(unitIDs, s.chunkSize, func(chunk []int64) error {
			rows := make([]models.Unit, 0, len(chunk))
			if err := tx.NewSelect().Model(&rows).Where("id IN (?)", bun.In(chunk)).Scan(ctx); err != nil {
				return err
			}
			for _, u := range rows {
				units[u.ID] = u
				if u.CellID != nil {
					cellIDs = append(cellIDs, *u.CellID)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		cells := make(map[int64]models.Cell, len(cellIDs))
		err = sqlite.InChunks(cellIDs, s.chunkSize, func(chunk []int64) error {
			rows := make([]models.Cell, 0, len(chunk))
			if err := tx.NewSelect().Model(&rows).Where("id IN (?)", bun.In(chunk)).Scan(ctx); err != nil {
				return err
			}
			for _, c := range rows {
				cells[c.ID] = c
			}
			return nil
		})
		if err != nil {
			return err
		}

		if task.TargetPickingCellID != nil {
			if c, ok := cells[*task.TargetPickingCellID]; ok {
				detail.TargetCell = &c
			}
		}
		for _, tu := range taskUnits {
			u := units[tu.UnitID]
			row := DetailUnit{
				UnitID:        tu.UnitID,
				Barcode:       u.Barcode,
				Status:        u.Status,
				FromCellID:    tu.FromCellID,
				CurrentCellID: u.CellID,
			}
			if tu.FromCellID != nil {
				row.FromCellCode = cells[*tu.FromCellID].Code
			}
			if u.CellID != nil {
				row.CurrentCellCode = cells[*u.CellID].Code
			}
			detail.Units = append(detail.Units, row)
		}

		detail.Rollbacks, err = Rollbacks(ctx, tx, task.ID)
		return err
	})
	return detail, err
}

type CheckResult struct {
	Found  bool                `json:"found"`
	Reason string              `json:"reason,omitempty"`
	Unit   *models.Unit        `json:"unit"`
	Task   *models.PickingTask `json:"task"`
	ToCell *models.Cell        `json:"toCell"`
}

// CheckUnit resolves the active task and expected destination for a unit
// scanned at a cell. Only an unknown barcode is an error; every other
// mismatch is reported with Found=false.
func (s *Service) CheckUnit(ctx context.Context, warehouseID int64, unitBarcode, fromCellCode string) (CheckResult, error) {
	var res CheckResult
	barcode := scancode.Barcode(unitBarcode)
	fromCode := scancode.Normalize(fromCellCode)
	if barcode == "" {
		return res, apperr.InvalidInput("unitBarcode is required")
	}

	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		// A returned unit may share its barcode with a newer one. Prefer
		// the unit an active task holds, then the most recently touched.
		candidates := make([]models.Unit, 0, 1)
		if err := tx.NewSelect().Model(&candidates).
			Where("warehouse_id = ?", warehouseID).
			Where("barcode = ?", barcode).
			OrderExpr("updated_at DESC, id DESC").
			Scan(ctx); err != nil {
			return err
		}
		if len(candidates) == 0 {
			return apperr.NotFound("unit %s not found", barcode)
		}
		ids := make([]int64, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		reserved, err := ReservedBy(ctx, tx, ids, s.chunkSize)
		if err != nil {
			return err
		}
		unit := candidates[0]
		for _, c := range candidates {
			if _, ok := reserved[c.ID]; ok {
				unit = c
				break
			}
		}
		res.Unit = &unit

		taskID, ok := reserved[unit.ID]
		if !ok {
			res.Reason = "unit has no active picking task"
			return nil
		}
		task, err := LoadTask(ctx, tx, warehouseID, taskID)
		if err != nil {
			return err
		}
		res.Task = &task

		if fromCode != "" {
			var from models.Cell
			err := tx.NewSelect().Model(&from).
				Where("warehouse_id = ?", warehouseID).
				Where("code = ?", fromCode).
				Limit(1).
				Scan(ctx)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					res.Reason = "cell " + fromCode + " not found"
					return nil
				}
				return err
			}
			if unit.CellID == nil || *unit.CellID != from.ID {
				res.Reason = "unit is not at cell " + fromCode
				return nil
			}
			taskUnits, err := TaskUnits(ctx, tx, task)
			if err != nil {
				return err
			}
			for _, tu := range taskUnits {
				if tu.UnitID == unit.ID && tu.FromCellID != nil && *tu.FromCellID != from.ID {
					res.Reason = "cell " + fromCode + " is not the reserved origin of the unit"
					return nil
				}
			}
		}

		if task.TargetPickingCellID == nil {
			res.Reason = "picking task has no target cell"
			return nil
		}
		var to models.Cell
		if err := tx.NewSelect().Model(&to).Where("id = ?", *task.TargetPickingCellID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		res.ToCell = &to
		res.Found = true
		return nil
	})
	return res, err
}
