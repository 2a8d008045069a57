package pickingtask

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/placement"
	"wms/models"
)

// Compensation record states.
const (
	RollbackPending = "pending"
	RollbackDone    = "done"
	RollbackFailed  = "failed"
)

type RollbackFailure struct {
	UnitID int64  `json:"unitId"`
	Error  string `json:"error"`
}

type CancelResult struct {
	Task          models.PickingTask `json:"task"`
	SagaID        string             `json:"sagaId"`
	UnitsReturned int                `json:"units_returned"`
	UnitsFailed   []RollbackFailure  `json:"units_failed"`
}

// Cancel closes a non-terminal task and returns every reserved unit to the
// cell it was reserved from.
//
// The task is marked canceled together with one pending compensation record
// per unit in a single transaction. Each unit is then moved back in its own
// transaction; a failed unit is recorded and the rest still proceed. Records
// left pending or failed can be replayed with ResumeRollback.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, taskID int64) (CancelResult, error) {
	res := CancelResult{SagaID: uuid.NewString(), UnitsFailed: make([]RollbackFailure, 0)}
	var records []models.TaskRollback

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

		now := stamp()
		upd, err := tx.NewUpdate().Model((*models.PickingTask)(nil)).
			Set("status = ?", StatusCanceled).
			Set("canceled_by = ?", actor.UserID).
			Set("canceled_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ?", task.ID).
			Where("status IN (?)", bun.In(ActiveStatuses)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := upd.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.InvalidState("TASK_TERMINAL: picking task %d changed concurrently", task.ID)
		}
		task.Status = StatusCanceled
		task.CanceledBy = &actor.UserID
		task.CanceledAt = &now
		task.UpdatedAt = now
		res.Task = task

		records = make([]models.TaskRollback, 0, len(taskUnits))
		for _, tu := range taskUnits {
			records = append(records, models.TaskRollback{
				SagaID:       res.SagaID,
				TaskID:       task.ID,
				UnitID:       tu.UnitID,
				OriginCellID: tu.FromCellID,
				Status:       RollbackPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if len(records) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
	if err != nil {
		return res, err
	}

	s.compensate(ctx, actor, records, &res)
	s.audit.Emit(ctx, actor, audit.Event{
		WarehouseID: actor.WarehouseID,
		Action:      "picking_task.cancel",
		EntityType:  "picking_task",
		EntityID:    strconv.FormatInt(res.Task.ID, 10),
		Summary:     fmt.Sprintf("%s canceled picking task %d; %d units returned, %d failed", actor.Name(), res.Task.ID, res.UnitsReturned, len(res.UnitsFailed)),
		Meta: map[string]any{
			"saga_id":        res.SagaID,
			"units_returned": res.UnitsReturned,
			"units_failed":   len(res.UnitsFailed),
		},
	})
	return res, nil
}

// ResumeRollback replays the pending and failed compensation records of a
// canceled task.
func (s *Service) ResumeRollback(ctx context.Context, actor models.Actor, taskID int64) (CancelResult, error) {
	res := CancelResult{UnitsFailed: make([]RollbackFailure, 0)}
	records := make([]models.TaskRollback, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		task, err := LoadTask(ctx, tx, actor.WarehouseID, taskID)
		if err != nil {
			return err
		}
		if task.Status != StatusCanceled {
			return apperr.InvalidState("picking task %d is %s, not canceled", task.ID, task.Status)
		}
		res.Task = task
		return tx.NewSelect().Model(&records).
			Where("task_id = ?", task.ID).
			Where("status IN (?)", bun.In([]string{RollbackPending, RollbackFailed})).
			Order("id").
			Scan(ctx)
	})
	if err != nil {
		return res, err
	}
	if len(records) > 0 {
		res.SagaID = records[0].SagaID
	}

	s.compensate(ctx, actor, records, &res)
	if len(records) > 0 {
		s.audit.Emit(ctx, actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "picking_task.rollback_resume",
			EntityType:  "picking_task",
			EntityID:    strconv.FormatInt(res.Task.ID, 10),
			Summary:     fmt.Sprintf("%s resumed rollback of picking task %d; %d units returned, %d failed", actor.Name(), res.Task.ID, res.UnitsReturned, len(res.UnitsFailed)),
		})
	}
	return res, nil
}

// Rollbacks lists the compensation records of a task.
func Rollbacks(ctx context.Context, db bun.IDB, taskID int64) ([]models.TaskRollback, error) {
	records := make([]models.TaskRollback, 0)
	err := db.NewSelect().Model(&records).Where("task_id = ?", taskID).Order("id").Scan(ctx)
	return records, err
}

func (s *Service) compensate(ctx context.Context, actor models.Actor, records []models.TaskRollback, res *CancelResult) {
	for _, rec := range records {
		move, err := s.compensateOne(ctx, actor, rec)
		if err != nil {
			logRollbackFailure(rec.TaskID, rec.UnitID, err)
			res.UnitsFailed = append(res.UnitsFailed, RollbackFailure{UnitID: rec.UnitID, Error: apperr.Message(err)})
			s.markFailed(ctx, rec, err)
			continue
		}
		res.UnitsReturned++
		s.placement.AuditMove(ctx, actor, actor.WarehouseID, move)
	}
}

func (s *Service) compensateOne(ctx context.Context, actor models.Actor, rec models.TaskRollback) (placement.Result, error) {
	var move placement.Result
	if rec.OriginCellID == nil {
		return move, apperr.InvalidState("no origin cell recorded for unit %d", rec.UnitID)
	}
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		move, err = s.placement.MoveInTx(ctx, tx, placement.Request{
			WarehouseID:    actor.WarehouseID,
			UnitID:         rec.UnitID,
			ToCellID:       rec.OriginCellID,
			FallbackStatus: celltype.StatusStored,
			Actor:          actor,
			Note:           fmt.Sprintf("rollback of picking task %d", rec.TaskID),
			Source:         placement.SourcePickingCancel,
		})
		if err != nil {
			return err
		}
		_, err = tx.NewUpdate().Model((*models.TaskRollback)(nil)).
			Set("status = ?", RollbackDone).
			Set("attempts = attempts + 1").
			Set("last_error = ''").
			Set("updated_at = ?", stamp()).
			Where("id = ?", rec.ID).
			Exec(ctx)
		return err
	})
	return move, err
}

func (s *Service) markFailed(ctx context.Context, rec models.TaskRollback, cause error) {
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*models.TaskRollback)(nil)).
			Set("status = ?", RollbackFailed).
			Set("attempts = attempts + 1").
			Set("last_error = ?", apperr.Message(cause)).
			Set("updated_at = ?", stamp()).
			Where("id = ?", rec.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		logRollbackFailure(rec.TaskID, rec.UnitID, err)
	}
}
