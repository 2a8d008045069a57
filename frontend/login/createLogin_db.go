package login

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/argon"
	"wms/infrastructure/rbac"
	"wms/infrastructure/sqlite"
	"wms/models"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

func findUserByUsername(ctx context.Context, tx bun.Tx, username string) (models.User, error) {
	var user models.User
	err := tx.NewSelect().
		Model(&user).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// LoadUserByID backs bearer authentication; a deleted user yields NotFound.
func LoadUserByID(ctx context.Context, db *sqlite.DB, id int64) (models.User, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&user).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	if err != nil {
		return models.User{}, apperr.NotFoundIfNoRows(err, "user %d not found", id)
	}
	return user, nil
}

// authenticateUser returns ErrInvalidCredentials for an unknown user or a
// wrong password. Hashes made with weaker parameters are upgraded in place.
func authenticateUser(ctx context.Context, db *sqlite.DB, username, password string) (models.User, error) {
	var user models.User
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = findUserByUsername(ctx, tx, username)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if !argon.Verify(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}

	if argon.NeedsRehash(user.PasswordHash, argon.DefaultParams) {
		if err := rehash(ctx, db, user.ID, password); err != nil {
			slog.Warn("password rehash failed", slog.Int64("user_id", user.ID), slog.Any("err", err))
		}
	}
	return user, nil
}

func rehash(ctx context.Context, db *sqlite.DB, userID int64, password string) error {
	hash, err := argon.CreateHash(password, argon.DefaultParams)
	if err != nil {
		return err
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*models.User)(nil)).
			Set("password_hash = ?", hash).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", userID).
			Exec(ctx)
		return err
	})
}

func persistSession(ctx context.Context, db *sqlite.DB, session models.Session) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&models.Session{
			ID:        session.ID,
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
		}).Exec(ctx)
		return err
	})
}

func DeleteSessionByToken(ctx context.Context, db *sqlite.DB, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.Session)(nil)).Where("id = ?", token).Exec(ctx)
		return err
	})
}

// DeleteSessionsByUserID logs a user out everywhere.
func DeleteSessionsByUserID(ctx context.Context, db *sqlite.DB, userID int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.Session)(nil)).Where("user_id = ?", userID).Exec(ctx)
		return err
	})
}

func LoadSessionByToken(ctx context.Context, db *sqlite.DB, token string) (models.Session, error) {
	var session models.Session
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(&session).
			Relation("User").
			Where("s.id = ?", token).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		session.UserRoles = []string{session.User.Role}
		if session.ScreenPermissions == nil {
			session.ScreenPermissions = make(map[string]int)
		}
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}
	if session.Expired() {
		_ = DeleteSessionByToken(ctx, db, token)
		return models.Session{}, sql.ErrNoRows
	}
	return session, nil
}

// UpsertUserPasswordHash creates or updates a user with a fresh password.
// Every role except admin must be bound to a warehouse.
func UpsertUserPasswordHash(ctx context.Context, db *sqlite.DB, username, role, rawPassword string, warehouseID *int64) (models.User, error) {
	var user models.User
	username = strings.TrimSpace(username)
	if username == "" {
		return user, apperr.InvalidInput("username is required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !rbac.IsKnownRole(role) {
		return user, apperr.InvalidInput("unknown role %q", role)
	}
	if role != rbac.RoleAdmin && (warehouseID == nil || *warehouseID <= 0) {
		return user, apperr.InvalidInput("role %s requires a warehouse", role)
	}
	rawPassword = strings.TrimSpace(rawPassword)
	if rawPassword == "" {
		return user, apperr.InvalidInput("password is required")
	}
	if err := ValidatePasswordPolicy(rawPassword); err != nil {
		return user, apperr.InvalidInput("%s", err.Error())
	}
	hash, err := argon.CreateHash(rawPassword, argon.DefaultParams)
	if err != nil {
		return user, err
	}

	now := time.Now().UTC()
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if warehouseID != nil {
			exists, err := tx.NewSelect().Model((*models.Warehouse)(nil)).Where("id = ?", *warehouseID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.NotFound("warehouse %d not found", *warehouseID)
			}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users (username, password_hash, role, warehouse_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(username) DO UPDATE SET
  password_hash = excluded.password_hash,
  role = excluded.role,
  warehouse_id = excluded.warehouse_id,
  updated_at = excluded.updated_at`, username, hash, role, warehouseID, now, now); err != nil {
			return err
		}
		user, err = findUserByUsername(ctx, tx, username)
		return err
	})
	return user, err
}
