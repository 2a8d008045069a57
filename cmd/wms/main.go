package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"wms/infrastructure/audit"
	"wms/infrastructure/config"
	httpserver "wms/infrastructure/http"
	"wms/infrastructure/logging"
	"wms/infrastructure/outbox"
	"wms/infrastructure/postponed"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/token"
	"wms/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, logCloser := logging.Setup(cfg)
	defer logCloser.Close()

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sqlite.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	auditSvc := audit.NewService(db)
	dispatcher := outbox.NewDispatcher(db, outbox.Options{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})
	dispatcher.Handle(outbox.EventUnitPostponed, postponed.NewGenerator(db, auditSvc, cfg.ReservationChunkSize).HandleEvent)
	dispatcher.Handle(outbox.EventUnitAssigned, logUnitAssigned)
	go dispatcher.Run(ctx)

	server := httpserver.NewServer(cfg.Addr, httpserver.Deps{
		DB:         db,
		Audit:      auditSvc,
		Tokens:     token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Outbox:     dispatcher,
		SessionTTL: cfg.SessionTTL,
		ChunkSize:  cfg.ReservationChunkSize,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	logger.Info("wms listening", slog.String("addr", cfg.Addr), slog.String("env", cfg.Env))

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		logger.Error("graceful shutdown error", slog.Any("err", err))
	}
	<-dispatcher.Done()
	logger.Info("wms stopped")
}

func logUnitAssigned(_ context.Context, ev models.OutboxEvent) error {
	var p outbox.UnitAssigned
	if err := outbox.Decode(ev, &p); err != nil {
		return err
	}
	slog.Info("unit assigned",
		slog.Int64("unit_id", p.UnitID),
		slog.Int64("warehouse_id", p.WarehouseID),
		slog.Int64("cell_id", p.CellID),
		slog.String("status", p.Status),
	)
	return nil
}
