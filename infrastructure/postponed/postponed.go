// Package postponed recreates a picking task for a unit whose operations
// status was set to one of the postponed dispositions. Generation is best
// effort and never fails the triggering operation.
package postponed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/outbox"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const (
	OpsPostponed1 = "postponed_1"
	OpsPostponed2 = "postponed_2"
)

// IsPostponed reports whether opsStatus triggers task recreation.
func IsPostponed(opsStatus string) bool {
	return opsStatus == OpsPostponed1 || opsStatus == OpsPostponed2
}

type Trigger struct {
	UnitID      int64
	WarehouseID int64
	ActorID     int64
}

// Result reports what Generate did. Reason is set whenever Created is false.
type Result struct {
	Created bool   `json:"created"`
	TaskID  int64  `json:"taskId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type Generator struct {
	db        *sqlite.DB
	audit     *audit.Service
	chunkSize int
}

func NewGenerator(db *sqlite.DB, auditSvc *audit.Service, chunkSize int) *Generator {
	return &Generator{db: db, audit: auditSvc, chunkSize: chunkSize}
}

// errSkip carries a precondition miss out of the transaction.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

func skip(format string, args ...any) error {
	return errSkip{reason: fmt.Sprintf(format, args...)}
}

// Generate creates an open task reusing the target cell and scenario of the
// unit's most recent task, reserving the unit at its current cell.
func (g *Generator) Generate(ctx context.Context, t Trigger) Result {
	var res Result
	var task models.PickingTask
	err := g.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var unit models.Unit
		err := tx.NewSelect().Model(&unit).
			Where("id = ?", t.UnitID).
			Where("warehouse_id = ?", t.WarehouseID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return skip("unit %d not found", t.UnitID)
		}
		if err != nil {
			return err
		}
		if unit.CellID == nil {
			return skip("unit %s is not placed", unit.Barcode)
		}

		var current models.Cell
		if err := tx.NewSelect().Model(&current).Where("id = ?", *unit.CellID).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return skip("current cell %d not found", *unit.CellID)
			}
			return err
		}
		if current.CellType != celltype.Storage && current.CellType != celltype.Shipping {
			return skip("unit is in a %s cell", current.CellType)
		}

		var last models.PickingTask
		err = tx.NewSelect().Model(&last).
			Where("pt.warehouse_id = ?", t.WarehouseID).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("pt.id IN (SELECT task_id FROM picking_task_units WHERE unit_id = ?)", unit.ID).
					WhereOr("pt.unit_id = ?", unit.ID)
			}).
			OrderExpr("pt.id DESC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return skip("unit has no previous picking task")
		}
		if err != nil {
			return err
		}
		if last.TargetPickingCellID == nil {
			return skip("previous task %d has no target cell", last.ID)
		}

		var target models.Cell
		err = tx.NewSelect().Model(&target).
			Where("id = ?", *last.TargetPickingCellID).
			Where("warehouse_id = ?", t.WarehouseID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return skip("target cell %d no longer exists", *last.TargetPickingCellID)
		}
		if err != nil {
			return err
		}
		if target.CellType != celltype.Picking || !target.Active {
			return skip("target cell %s is not an active picking cell", target.Code)
		}

		reserved, err := pickingtask.ReservedBy(ctx, tx, []int64{unit.ID}, g.chunkSize)
		if err != nil {
			return err
		}
		if taskID, ok := reserved[unit.ID]; ok {
			return skip("unit already reserved by task %d", taskID)
		}

		now := time.Now().UTC()
		task = models.PickingTask{
			WarehouseID:         t.WarehouseID,
			Status:              pickingtask.StatusOpen,
			TargetPickingCellID: &target.ID,
			Scenario:            last.Scenario,
			CreatedBy:           t.ActorID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err := tx.NewInsert().Model(&task).Exec(ctx); err != nil {
			return err
		}
		link := &models.PickingTaskUnit{TaskID: task.ID, UnitID: unit.ID, FromCellID: unit.CellID, CreatedAt: now}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			// Returning the error rolls the task insert back with it.
			return fmt.Errorf("reserve unit for task %d: %w", task.ID, err)
		}
		return nil
	})

	var miss errSkip
	switch {
	case err == nil:
		res = Result{Created: true, TaskID: task.ID}
	case errors.As(err, &miss):
		res = Result{Reason: miss.reason}
	default:
		slog.Error("postponed task generation failed", slog.Int64("unit_id", t.UnitID), slog.Any("err", err))
		res = Result{Reason: "generation failed: " + err.Error()}
	}

	if res.Created {
		g.audit.Emit(ctx, models.Actor{UserID: t.ActorID, Username: "system", Role: "system"}, audit.Event{
			WarehouseID: t.WarehouseID,
			Action:      "picking_task.create",
			EntityType:  "picking_task",
			EntityID:    strconv.FormatInt(task.ID, 10),
			Summary:     fmt.Sprintf("Picking task %d recreated for postponed unit %d", task.ID, t.UnitID),
			Meta:        map[string]any{"unit_id": t.UnitID, "source": "postponed"},
		})
	}
	return res
}

// HandleEvent is the outbox handler for outbox.EventUnitPostponed. It only
// fails on an undecodable payload; generation misses are logged.
func (g *Generator) HandleEvent(ctx context.Context, ev models.OutboxEvent) error {
	var p outbox.UnitPostponed
	if err := outbox.Decode(ev, &p); err != nil {
		return err
	}
	if !IsPostponed(p.OpsStatus) {
		return nil
	}
	res := g.Generate(ctx, Trigger{UnitID: p.UnitID, WarehouseID: p.WarehouseID, ActorID: p.ActorID})
	if res.Created {
		slog.Info("postponed task created", slog.Int64("unit_id", p.UnitID), slog.Int64("task_id", res.TaskID))
	} else {
		slog.Info("postponed task skipped", slog.Int64("unit_id", p.UnitID), slog.String("reason", res.Reason))
	}
	return nil
}
