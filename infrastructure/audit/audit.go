// Package audit appends human readable action records. Emission is best
// effort: a failed write is logged and never reaches the caller.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/uptrace/bun"

	"wms/infrastructure/sqlite"
	"wms/models"
)

const defaultListLimit = 200

// Event is one audit record before actor stamping.
type Event struct {
	WarehouseID int64
	Action      string
	EntityType  string
	EntityID    string
	Summary     string
	Meta        map[string]any
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	WarehouseID int64
	Action      string
	EntityType  string
	EntityID    string
	Day         time.Time
	Limit       int
}

// Service writes audit records.
type Service struct {
	db *sqlite.DB
}

func NewService(db *sqlite.DB) *Service {
	return &Service{db: db}
}

// Write appends an event inside the caller transaction.
func (s *Service) Write(ctx context.Context, tx bun.Tx, actor models.Actor, ev Event) error {
	row := &models.AuditEvent{
		Action:     strings.TrimSpace(ev.Action),
		EntityType: strings.TrimSpace(ev.EntityType),
		EntityID:   strings.TrimSpace(ev.EntityID),
		Summary:    strings.TrimSpace(ev.Summary),
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		ActorName:  actor.Name(),
		Meta:       ev.Meta,
		CreatedAt:  time.Now().UTC(),
	}
	if ev.WarehouseID > 0 {
		whID := ev.WarehouseID
		row.WarehouseID = &whID
	}
	_, err := tx.NewInsert().Model(row).Exec(ctx)
	return err
}

// Emit writes ev in its own transaction and swallows failures.
// Must not be called while a write transaction is open on the same DB.
func (s *Service) Emit(ctx context.Context, actor models.Actor, ev Event) {
	if s == nil || s.db == nil {
		return
	}
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.Write(ctx, tx, actor, ev)
	})
	if err != nil {
		slog.Warn("audit emit failed",
			slog.String("action", ev.Action),
			slog.String("entity_type", ev.EntityType),
			slog.String("entity_id", ev.EntityID),
			slog.Any("err", err),
		)
	}
}

// List returns newest events first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	events := make([]models.AuditEvent, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&events).OrderExpr("ae.created_at DESC, ae.id DESC").Limit(limit)
		if f.WarehouseID > 0 {
			q = q.Where("ae.warehouse_id = ?", f.WarehouseID)
		}
		if v := strings.TrimSpace(f.Action); v != "" {
			q = q.Where("ae.action = ?", v)
		}
		if v := strings.TrimSpace(f.EntityType); v != "" {
			q = q.Where("ae.entity_type = ?", v)
		}
		if v := strings.TrimSpace(f.EntityID); v != "" {
			q = q.Where("ae.entity_id = ?", v)
		}
		if !f.Day.IsZero() {
			day := now.With(f.Day.UTC())
			q = q.Where("ae.created_at >= ?", day.BeginningOfDay()).
				Where("ae.created_at <= ?", day.EndOfDay())
		}
		return q.Scan(ctx)
	})
	return events, err
}
