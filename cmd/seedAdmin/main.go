package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"wms/frontend/login"
	"wms/infrastructure/apperr"
	"wms/infrastructure/config"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

// seedInput is what a fresh installation needs: one warehouse and an admin.
type seedInput struct {
	WarehouseCode string
	WarehouseName string
	AdminUsername string
	AdminPassword string
}

type seedResult struct {
	WarehouseCode    string
	WarehouseCreated bool
	AdminID          int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		log.Fatalf("resolve migrations dir: %v", err)
	}

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := sqlite.ApplyMigrations(ctx, db, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	res, err := seed(ctx, db, seedInput{
		WarehouseCode: getenv("SEED_WAREHOUSE_CODE", "MAIN"),
		WarehouseName: getenv("SEED_WAREHOUSE_NAME", "Main warehouse"),
		AdminUsername: getenv("ADMIN_USERNAME", "admin"),
		AdminPassword: getenv("ADMIN_PASSWORD", "Admin12345wms"),
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	if res.WarehouseCreated {
		fmt.Printf("seeded warehouse %s\n", res.WarehouseCode)
	} else {
		fmt.Printf("warehouse %s already exists\n", res.WarehouseCode)
	}
	fmt.Printf("seeded admin user (id=%d)\n", res.AdminID)
}

// seed is safe to rerun: an existing warehouse is kept and the admin
// password is reset to the given one.
func seed(ctx context.Context, db *sqlite.DB, in seedInput) (seedResult, error) {
	res := seedResult{WarehouseCode: warehouse.NormalizeCode(in.WarehouseCode)}
	if res.WarehouseCode == "" {
		return res, apperr.InvalidInput("warehouse code is required")
	}

	_, err := warehouse.Create(ctx, db, warehouse.CreateInput{Code: in.WarehouseCode, Name: in.WarehouseName})
	switch {
	case err == nil:
		res.WarehouseCreated = true
	case apperr.Is(err, apperr.KindConflict):
	default:
		return res, fmt.Errorf("seed warehouse: %w", err)
	}

	admin, err := login.UpsertUserPasswordHash(ctx, db, in.AdminUsername, "admin", in.AdminPassword, nil)
	if err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	res.AdminID = admin.ID
	return res, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		filepath.Join("infrastructure", "sqlite", "migrations"),
		filepath.Join("..", "..", "infrastructure", "sqlite", "migrations"),
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations"))
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		tried = append(tried, absPath)

		info, err := os.Stat(absPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("migrations dir not found; tried: %s", strings.Join(tried, ", "))
}
