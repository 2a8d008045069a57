// Package pickingtask implements the picking task lifecycle:
//
//	open -> in_progress -> done
//	open | in_progress -> canceled
//
// in_progress is a lock held by the picking actor. done and canceled are
// terminal and immutable.
package pickingtask

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/placement"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCanceled   = "canceled"

	ScenarioMaxLen = 500
)

// stamp matches the microsecond precision timestamps are stored with, so a
// returned task equals its reloaded row.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusCanceled
}

func terminalError(task models.PickingTask) error {
	return apperr.InvalidState("TASK_TERMINAL: picking task %d is already %s", task.ID, task.Status)
}

func lockedError(task models.PickingTask) error {
	return apperr.Conflict("TASK_LOCKED: picking task %d is in progress by another user", task.ID)
}

type Service struct {
	db        *sqlite.DB
	placement *placement.Service
	audit     *audit.Service
	chunkSize int
}

func NewService(db *sqlite.DB, placementSvc *placement.Service, auditSvc *audit.Service, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Service{db: db, placement: placementSvc, audit: auditSvc, chunkSize: chunkSize}
}

type CreateInput struct {
	TargetCellID int64
	UnitIDs      []int64
	Scenario     string
}

// Create reserves units for a new open task targeting a picking cell.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (models.PickingTask, error) {
	var task models.PickingTask
	scenario, err := normalizeScenario(in.Scenario)
	if err != nil {
		return task, err
	}
	unitIDs := dedupe(in.UnitIDs)
	if len(unitIDs) == 0 {
		return task, apperr.InvalidInput("unitIds is required")
	}

	err = s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var target models.Cell
		err := tx.NewSelect().Model(&target).
			Where("id = ?", in.TargetCellID).
			Where("warehouse_id = ?", actor.WarehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "cell %d not found", in.TargetCellID)
		}
		if target.CellType != celltype.Picking {
			return apperr.InvalidInput("target cell %s must be a picking cell", target.Code)
		}
		if !target.Active || target.Blocked() {
			return apperr.Conflict("target cell %s is not available", target.Code)
		}

		units := make(map[int64]models.Unit, len(unitIDs))
		err = sqlite.InChunks(unitIDs, s.chunkSize, func(chunk []int64) error {
			rows := make([]models.Unit, 0, len(chunk))
			if err := tx.NewSelect().Model(&rows).
				Where("warehouse_id = ?", actor.WarehouseID).
				Where("id IN (?)", bun.In(chunk)).
				Scan(ctx); err != nil {
				return err
			}
			for _, u := range rows {
				units[u.ID] = u
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range unitIDs {
			u, ok := units[id]
			if !ok {
				return apperr.NotFound("unit %d not found", id)
			}
			if u.CellID == nil {
				return apperr.InvalidInput("unit %s is not placed", u.Barcode)
			}
		}

		reserved, err := ReservedBy(ctx, tx, unitIDs, s.chunkSize)
		if err != nil {
			return err
		}
		for _, id := range unitIDs {
			if taskID, ok := reserved[id]; ok {
				return apperr.Conflict("unit %s already reserved by task %d", units[id].Barcode, taskID)
			}
		}

		now := stamp()
		task = models.PickingTask{
			WarehouseID:         actor.WarehouseID,
			Status:              StatusOpen,
			TargetPickingCellID: &target.ID,
			Scenario:            scenario,
			CreatedBy:           actor.UserID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err := tx.NewInsert().Model(&task).Exec(ctx); err != nil {
			return err
		}
		rows := make([]models.PickingTaskUnit, 0, len(unitIDs))
		for _, id := range unitIDs {
			rows = append(rows, models.PickingTaskUnit{TaskID: task.ID, UnitID: id, FromCellID: units[id].CellID, CreatedAt: now})
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return task, err
	}
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "picking_task.create",
		EntityType:  "picking_task",
		EntityID:    strconv.FormatInt(task.ID, 10),
		Summary:     fmt.Sprintf("%s created picking task %d with %d units", actor.Name(), task.ID, len(unitIDs)),
		Meta:        map[string]any{"unit_ids": unitIDs, "target_cell_id": in.TargetCellID, "scenario": scenario},
	})
	return task, nil
}

// Start locks the task to actor. Re-starting a task the actor already holds
// succeeds without changes.
func (s *Service) Start(ctx context.Context, actor models.Actor, taskID int64) (models.PickingTask, error) {
	var task models.PickingTask
	var changed bool
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		task, err = LoadTask(ctx, tx, actor.WarehouseID, taskID)
		if err != nil {
			return err
		}
		task, changed, err = startInTx(ctx, tx, actor, task)
		return err
	})
	if err != nil {
		return task, err
	}
	if changed {
		s.audit.Emit(ctx, actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "picking_task.start",
			EntityType:  "picking_task",
			EntityID:    strconv.FormatInt(task.ID, 10),
			Summary:     fmt.Sprintf("%s started picking task %d", actor.Name(), task.ID),
		})
	}
	return task, nil
}

// startInTx moves an open task to in_progress with a conditional update so
// concurrent starts cannot both win.
func startInTx(ctx context.Context, tx bun.Tx, actor models.Actor, task models.PickingTask) (models.PickingTask, bool, error) {
	switch task.Status {
	case StatusDone, StatusCanceled:
		return task, false, terminalError(task)
	case StatusInProgress:
		if task.PickedBy != nil && *task.PickedBy == actor.UserID {
			return task, false, nil
		}
		return task, false, lockedError(task)
	}

	now := stamp()
	res, err := tx.NewUpdate().Model((*models.PickingTask)(nil)).
		Set("status = ?", StatusInProgress).
		Set("picked_by = ?", actor.UserID).
		Set("picked_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", task.ID).
		Where("status = ?", StatusOpen).
		Exec(ctx)
	if err != nil {
		return task, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return task, false, err
	} else if n == 0 {
		current, err := LoadTask(ctx, tx, task.WarehouseID, task.ID)
		if err != nil {
			return task, false, err
		}
		if current.Status == StatusOpen {
			return current, false, apperr.Conflict("picking task %d changed concurrently; retry", task.ID)
		}
		return startInTx(ctx, tx, actor, current)
	}
	task.Status = StatusInProgress
	task.PickedBy = &actor.UserID
	task.PickedAt = &now
	task.UpdatedAt = now
	return task, true, nil
}

type ScanInput struct {
	TaskID       int64
	UnitBarcode  string
	FromCellCode string
}

type ScanResult struct {
	Task          models.PickingTask `json:"task"`
	Move          placement.Result   `json:"move"`
	Moved         int                `json:"moved"`
	Total         int                `json:"total"`
	TaskCompleted bool               `json:"taskCompleted"`
}

// Scan moves a reserved unit scanned at its origin cell into the task target,
// auto-starting an open task, then runs the completion check.
func (s *Service) Scan(ctx context.Context, actor models.Actor, in ScanInput) (ScanResult, error) {
	var res ScanResult
	var started bool
	barcode := scancode.Barcode(in.UnitBarcode)
	fromCode := scancode.Normalize(in.FromCellCode)
	if barcode == "" {
		return res, apperr.InvalidInput("unitBarcode is required")
	}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		task, err := LoadTask(ctx, tx, actor.WarehouseID, in.TaskID)
		if err != nil {
			return err
		}
		if IsTerminal(task.Status) {
			return terminalError(task)
		}
		if task.Status == StatusInProgress && (task.PickedBy == nil || *task.PickedBy != actor.UserID) {
			return lockedError(task)
		}
		if task.TargetPickingCellID == nil {
			return apperr.InvalidState("picking task %d has no target cell", task.ID)
		}

		taskUnits, err := TaskUnits(ctx, tx, task)
		if err != nil {
			return err
		}
		entry, unit, err := findTaskUnit(ctx, tx, task, taskUnits, barcode)
		if err != nil {
			return err
		}

		alreadyMoved := unit.CellID != nil && *unit.CellID == *task.TargetPickingCellID
		if !alreadyMoved && fromCode != "" {
			var from models.Cell
			err := tx.NewSelect().Model(&from).
				Where("warehouse_id = ?", actor.WarehouseID).
				Where("code = ?", fromCode).
				Limit(1).
				Scan(ctx)
			if err != nil {
				return apperr.NotFoundIfNoRows(err, "cell %s not found", fromCode)
			}
			if unit.CellID == nil || *unit.CellID != from.ID {
				return apperr.InvalidInput("unit %s is not at cell %s", barcode, fromCode)
			}
			if entry.FromCellID != nil && *entry.FromCellID != from.ID {
				return apperr.InvalidInput("cell %s is not the reserved origin of unit %s", fromCode, barcode)
			}
		}

		task, started, err = startInTx(ctx, tx, actor, task)
		if err != nil {
			return err
		}

		res.Move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID: actor.WarehouseID,
			UnitID:      unit.ID,
			ToCellID:    task.TargetPickingCellID,
			Actor:       actor,
			Note:        fmt.Sprintf("picking task %d", task.ID),
			Source:      placement.SourcePickingScan,
		})
		if err != nil {
			return err
		}

		res.Task, res.Moved, res.Total, res.TaskCompleted, err = completeIfDone(ctx, tx, actor, task, taskUnits)
		return err
	})
	if err != nil {
		return res, err
	}

	if started {
		s.audit.Emit(ctx, actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "picking_task.start",
			EntityType:  "picking_task",
			EntityID:    strconv.FormatInt(res.Task.ID, 10),
			Summary:     fmt.Sprintf("%s started picking task %d by scanning", actor.Name(), res.Task.ID),
		})
	}
	s.placement.AuditMove(ctx, actor, actor.WarehouseID, res.Move)
	if res.TaskCompleted {
		s.auditCompleted(ctx, actor, res.Task, res.Total)
	}
	return res, nil
}

func findTaskUnit(ctx context.Context, tx bun.Tx, task models.PickingTask, taskUnits []models.PickingTaskUnit, barcode string) (models.PickingTaskUnit, models.Unit, error) {
	ids := make([]int64, 0, len(taskUnits))
	byUnit := make(map[int64]models.PickingTaskUnit, len(taskUnits))
	for _, tu := range taskUnits {
		ids = append(ids, tu.UnitID)
		byUnit[tu.UnitID] = tu
	}
	var unit models.Unit
	if len(ids) > 0 {
		err := tx.NewSelect().Model(&unit).
			Where("warehouse_id = ?", task.WarehouseID).
			Where("barcode = ?", barcode).
			Where("id IN (?)", bun.In(ids)).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return byUnit[unit.ID], unit, nil
		}
		if apperr.KindOf(err) != apperr.KindNotFound {
			return models.PickingTaskUnit{}, unit, err
		}
	}
	return models.PickingTaskUnit{}, unit, apperr.NotFound("unit %s is not part of picking task %d", barcode, task.ID)
}

// completeIfDone compares moved units against the reserved total and closes
// the task when every unit sits in the target cell.
func completeIfDone(ctx context.Context, tx bun.Tx, actor models.Actor, task models.PickingTask, taskUnits []models.PickingTaskUnit) (models.PickingTask, int, int, bool, error) {
	total := len(taskUnits)
	moved, err := MovedCount(ctx, tx, task, taskUnits)
	if err != nil {
		return task, 0, total, false, err
	}
	if moved < total {
		return task, moved, total, false, nil
	}

	now := stamp()
	res, err := tx.NewUpdate().Model((*models.PickingTask)(nil)).
		Set("status = ?", StatusDone).
		Set("completed_by = ?", actor.UserID).
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", task.ID).
		Where("status IN (?)", bun.In(ActiveStatuses)).
		Exec(ctx)
	if err != nil {
		return task, moved, total, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return task, moved, total, false, err
	} else if n == 0 {
		return task, moved, total, false, apperr.InvalidState("TASK_TERMINAL: picking task %d changed concurrently", task.ID)
	}
	task.Status = StatusDone
	task.CompletedBy = &actor.UserID
	task.CompletedAt = &now
	task.UpdatedAt = now
	return task, moved, total, true, nil
}

func (s *Service) auditCompleted(ctx context.Context, actor models.Actor, task models.PickingTask, units int) {
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "picking_task.complete",
		EntityType:  "picking_task",
		EntityID:    strconv.FormatInt(task.ID, 10),
		Summary:     fmt.Sprintf("%s completed picking task %d (%d units)", actor.Name(), task.ID, units),
		Meta:        map[string]any{"unit_count": units},
	})
}

type BatchResult struct {
	Task          models.PickingTask `json:"task"`
	Moved         int                `json:"moved"`
	Total         int                `json:"total"`
	TaskCompleted bool               `json:"taskCompleted"`
	Message       string             `json:"message"`
}

// CompleteBatch re-counts moved units and closes the task when all are in
// the target cell. Partial progress leaves the task in_progress.
func (s *Service) CompleteBatch(ctx context.Context, actor models.Actor, taskID int64) (BatchResult, error) {
	var res BatchResult
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		task, err := LoadTask(ctx, tx, actor.WarehouseID, taskID)
		if err != nil {
			return err
		}
		if IsTerminal(task.Status) {
			return terminalError(task)
		}
		taskUnits, err := TaskUnits(ctx, tx, task)
		if err != nil {
			return err
		}
		res.Task, res.Moved, res.Total, res.TaskCompleted, err = completeIfDone(ctx, tx, actor, task, taskUnits)
		return err
	})
	if err != nil {
		return res, err
	}
	if res.TaskCompleted {
		res.Message = fmt.Sprintf("task completed: %d/%d units moved", res.Moved, res.Total)
		s.auditCompleted(ctx, actor, res.Task, res.Total)
	} else {
		res.Message = fmt.Sprintf("progress saved: %d/%d units moved", res.Moved, res.Total)
	}
	return res, nil
}

// EditScenario replaces the scenario label of a non-terminal task.
func (s *Service) EditScenario(ctx context.Context, actor models.Actor, taskID int64, scenario string) (models.PickingTask, error) {
	var task models.PickingTask
	var before string
	scenario, err := normalizeScenario(scenario)
	if err != nil {
		return task, err
	}
	err = s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		task, err = LoadTask(ctx, tx, actor.WarehouseID, taskID)
		if err != nil {
			return err
		}
		if IsTerminal(task.Status) {
			return terminalError(task)
		}
		before = task.Scenario
		task.Scenario = scenario
		task.UpdatedAt = stamp()
		_, err = tx.NewUpdate().Model(&task).Column("scenario", "updated_at").WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return task, err
	}
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "picking_task.scenario",
		EntityType:  "picking_task",
		EntityID:    strconv.FormatInt(task.ID, 10),
		Summary:     fmt.Sprintf("%s changed scenario of picking task %d", actor.Name(), task.ID),
		Meta:        map[string]any{"before": before, "after": scenario},
	})
	return task, nil
}

func normalizeScenario(v string) (string, error) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > ScenarioMaxLen {
		return "", apperr.InvalidInput("scenario must be at most %d characters", ScenarioMaxLen)
	}
	return v, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func logRollbackFailure(taskID, unitID int64, err error) {
	slog.Warn("picking task rollback step failed",
		slog.Int64("task_id", taskID),
		slog.Int64("unit_id", unitID),
		slog.Any("err", err),
	)
}
