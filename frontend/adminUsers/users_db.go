package adminusers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/frontend/login"
	"wms/infrastructure/argon"
	"wms/infrastructure/cache"
	"wms/infrastructure/rbac"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

var (
	ErrUsernameRequired  = errors.New("username is required")
	ErrPasswordRequired  = errors.New("password is required")
	ErrInvalidRole       = errors.New("invalid role")
	ErrWarehouseRequired = errors.New("a warehouse is required for this role")
	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrUsernameExists    = errors.New("username already exists")
)

func LoadUsersPageData(ctx context.Context, db *sqlite.DB) (PageData, error) {
	data := PageData{
		Users:      make([]UserView, 0),
		Warehouses: make([]WarehouseOption, 0),
		Roles:      rbac.Roles(),
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`
SELECT u.id, u.username, u.display_name, u.role, u.warehouse_id, COALESCE(w.code, '') AS warehouse_code
FROM users u
LEFT JOIN warehouses w ON w.id = u.warehouse_id
ORDER BY u.id ASC`).Scan(ctx, &data.Users); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT id, code || ' - ' || name AS label FROM warehouses ORDER BY code ASC`).Scan(ctx, &data.Warehouses)
	})
	return data, err
}

// CreateUser inserts a new account. Usernames are unique regardless of case.
func CreateUser(ctx context.Context, db *sqlite.DB, in CreateUserInput) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return ErrUsernameRequired
	}
	password := strings.TrimSpace(in.Password)
	if password == "" {
		return ErrPasswordRequired
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if !rbac.IsKnownRole(role) {
		return ErrInvalidRole
	}
	var warehouseID *int64
	if in.WarehouseID > 0 {
		id := in.WarehouseID
		warehouseID = &id
	}
	if role != rbac.RoleAdmin && warehouseID == nil {
		return ErrWarehouseRequired
	}
	if err := login.ValidatePasswordPolicy(password); err != nil {
		return err
	}
	hash, err := argon.CreateHash(password, argon.DefaultParams)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM users WHERE lower(username) = lower(?)`, username).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameExists
		}
		if warehouseID != nil {
			if err := tx.NewRaw(`SELECT COUNT(1) FROM warehouses WHERE id = ?`, *warehouseID).Scan(ctx, &count); err != nil {
				return err
			}
			if count == 0 {
				return ErrWarehouseNotFound
			}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO users (username, display_name, password_hash, role, warehouse_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, username, strings.TrimSpace(in.DisplayName), hash, role, warehouseID, now, now)
		return err
	})
}

// AssignWarehouse moves a user to another warehouse and drops their cached
// user and sessions so the next request resolves the new actor.
func AssignWarehouse(ctx context.Context, db *sqlite.DB, sessions *cache.UserSessionCache, users *cache.UserCache, userID, warehouseID int64) error {
	if err := warehouse.AssignUser(ctx, db, userID, warehouseID); err != nil {
		return err
	}
	if users != nil {
		users.Delete(userID)
	}
	if sessions != nil {
		sessions.DeleteSessionsByUserID(userID)
	}
	return nil
}
