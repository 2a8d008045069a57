package pickingtask

import (
	"context"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const defaultChunkSize = 100

// ActiveStatuses are the non-terminal task states.
var ActiveStatuses = []string{StatusOpen, StatusInProgress}

// LoadTask loads a task scoped to a warehouse.
func LoadTask(ctx context.Context, db bun.IDB, warehouseID, taskID int64) (models.PickingTask, error) {
	var task models.PickingTask
	err := db.NewSelect().Model(&task).
		Where("id = ?", taskID).
		Where("warehouse_id = ?", warehouseID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return task, apperr.NotFoundIfNoRows(err, "picking task %d not found", taskID)
	}
	return task, nil
}

// TaskUnits returns the reserved units of a task. Tasks written before the
// join table existed carry a single unit_id/from_cell_id on the task row and
// are read as a one element set.
func TaskUnits(ctx context.Context, db bun.IDB, task models.PickingTask) ([]models.PickingTaskUnit, error) {
	units := make([]models.PickingTaskUnit, 0)
	if err := db.NewSelect().Model(&units).Where("task_id = ?", task.ID).Order("id").Scan(ctx); err != nil {
		return nil, err
	}
	if len(units) == 0 && task.UnitID != nil {
		units = append(units, models.PickingTaskUnit{
			TaskID:     task.ID,
			UnitID:     *task.UnitID,
			FromCellID: task.FromCellID,
			CreatedAt:  task.CreatedAt,
		})
	}
	return units, nil
}

// ReservedBy maps each of unitIDs that is held by an open or in_progress
// task to that task id. The IN list is split into chunks of chunkSize.
func ReservedBy(ctx context.Context, db bun.IDB, unitIDs []int64, chunkSize int) (map[int64]int64, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	out := make(map[int64]int64)
	err := sqlite.InChunks(unitIDs, chunkSize, func(chunk []int64) error {
		type row struct {
			UnitID int64 `bun:"unit_id"`
			TaskID int64 `bun:"task_id"`
		}
		rows := make([]row, 0)
		if err := db.NewRaw(`
SELECT ptu.unit_id, ptu.task_id
FROM picking_task_units ptu
JOIN picking_tasks pt ON pt.id = ptu.task_id
WHERE pt.status IN (?) AND ptu.unit_id IN (?)
UNION
SELECT pt.unit_id, pt.id
FROM picking_tasks pt
WHERE pt.status IN (?) AND pt.unit_id IN (?)
  AND NOT EXISTS (SELECT 1 FROM picking_task_units x WHERE x.task_id = pt.id)`,
			bun.In(ActiveStatuses), bun.In(chunk), bun.In(ActiveStatuses), bun.In(chunk),
		).Scan(ctx, &rows); err != nil {
			return err
		}
		for _, r := range rows {
			out[r.UnitID] = r.TaskID
		}
		return nil
	})
	return out, err
}

// EnsureUnreserved fails with Conflict when an open or in_progress task
// holds unit. Units leaving the warehouse must not stay reserved, or a
// later cancel would move them back onto a shelf.
func EnsureUnreserved(ctx context.Context, db bun.IDB, unit models.Unit) error {
	reserved, err := ReservedBy(ctx, db, []int64{unit.ID}, 1)
	if err != nil {
		return err
	}
	if taskID, ok := reserved[unit.ID]; ok {
		return apperr.Conflict("unit %s reserved by task %d", unit.Barcode, taskID)
	}
	return nil
}

// MovedCount counts task units whose current cell is the task target.
func MovedCount(ctx context.Context, db bun.IDB, task models.PickingTask, units []models.PickingTaskUnit) (int, error) {
	if task.TargetPickingCellID == nil || len(units) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.UnitID)
	}
	moved := 0
	err := sqlite.InChunks(ids, defaultChunkSize, func(chunk []int64) error {
		n, err := db.NewSelect().Model((*models.Unit)(nil)).
			Where("id IN (?)", bun.In(chunk)).
			Where("cell_id = ?", *task.TargetPickingCellID).
			Count(ctx)
		moved += n
		return err
	})
	return moved, err
}
