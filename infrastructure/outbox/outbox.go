// Package outbox stores domain events in the same transaction as the write
// that produced them and delivers them to handlers from a background loop.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wms/infrastructure/sqlite"
	"wms/models"
)

// Event types.
const (
	EventUnitAssigned  = "unit.assigned"
	EventUnitPostponed = "unit.ops_status_postponed"
)

// Event states.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// UnitAssigned is the payload of EventUnitAssigned.
type UnitAssigned struct {
	UnitID      int64     `json:"unitId"`
	WarehouseID int64     `json:"warehouseId"`
	CellID      int64     `json:"cellId"`
	Status      string    `json:"status"`
	ActorID     int64     `json:"actorId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// UnitPostponed is the payload of EventUnitPostponed.
type UnitPostponed struct {
	UnitID      int64     `json:"unitId"`
	WarehouseID int64     `json:"warehouseId"`
	OpsStatus   string    `json:"opsStatus"`
	ActorID     int64     `json:"actorId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publish writes an event inside tx. It is delivered only if tx commits.
func Publish(ctx context.Context, tx bun.Tx, eventType string, warehouseID int64, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	ev := &models.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		WarehouseID: warehouseID,
		Payload:     string(b),
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := tx.NewInsert().Model(ev).Exec(ctx); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// Handler processes one event. A returned error schedules a retry.
type Handler func(ctx context.Context, ev models.OutboxEvent) error

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Dispatcher polls pending events and hands them to registered handlers.
type Dispatcher struct {
	db       *sqlite.DB
	opts     Options
	mu       sync.RWMutex
	handlers map[string]Handler
	wake     chan struct{}
	done     chan struct{}
}

func NewDispatcher(db *sqlite.DB, opts Options) *Dispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Dispatcher{
		db:       db,
		opts:     opts,
		handlers: make(map[string]Handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Handle registers h for eventType, replacing any earlier handler.
func (d *Dispatcher) Handle(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// Notify wakes the loop without waiting for the next tick.
func (d *Dispatcher) Notify() {
	if d == nil {
		return
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run processes events until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	slog.Info("outbox dispatcher started", slog.Duration("interval", d.opts.PollInterval))
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.wake:
		}
		for {
			n, err := d.RunOnce(ctx)
			if err != nil {
				slog.Error("outbox batch failed", slog.Any("err", err))
				break
			}
			if n < d.opts.BatchSize || ctx.Err() != nil {
				break
			}
		}
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// RunOnce delivers up to one batch of pending events and returns how many
// were picked up.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	events := make([]models.OutboxEvent, 0, d.opts.BatchSize)
	err := d.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&events).
			Where("status = ?", StatusPending).
			OrderExpr("created_at, id").
			Limit(d.opts.BatchSize).
			Scan(ctx)
	})
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		herr := d.dispatch(ctx, ev)
		if err := d.record(ctx, ev, herr); err != nil {
			slog.Error("outbox record result failed", slog.String("event_id", ev.ID), slog.Any("err", err))
		}
	}
	return len(events), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev models.OutboxEvent) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[ev.EventType]
	d.mu.RUnlock()
	if !ok {
		slog.Debug("outbox event has no handler", slog.String("event_type", ev.EventType), slog.String("event_id", ev.ID))
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

func (d *Dispatcher) record(ctx context.Context, ev models.OutboxEvent, herr error) error {
	return d.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		q := tx.NewUpdate().Model((*models.OutboxEvent)(nil)).Where("id = ?", ev.ID)
		if herr == nil {
			_, err := q.Set("status = ?", StatusDone).
				Set("attempts = attempts + 1").
				Set("processed_at = ?", now).
				Exec(ctx)
			return err
		}

		attempts := ev.Attempts + 1
		status := StatusPending
		if attempts >= d.opts.MaxAttempts {
			status = StatusFailed
		}
		slog.Warn("outbox handler failed",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.EventType),
			slog.Int("attempts", attempts),
			slog.String("status", status),
			slog.Any("err", herr),
		)
		q = q.Set("status = ?", status).
			Set("attempts = ?", attempts).
			Set("last_error = ?", herr.Error())
		if status == StatusFailed {
			q = q.Set("processed_at = ?", now)
		}
		_, err := q.Exec(ctx)
		return err
	})
}

// Decode unmarshals the payload of ev into v.
func Decode(ev models.OutboxEvent, v any) error {
	if err := json.Unmarshal([]byte(ev.Payload), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return nil
}
