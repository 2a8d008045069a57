// Package warehouse manages tenants and resolves which warehouse a request acts on.
package warehouse

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

// HeaderName lets admins pick the warehouse a request acts on.
const HeaderName = "X-Warehouse-ID"

const RoleAdmin = "admin"

type CreateInput struct {
	Code string
	Name string
}

func List(ctx context.Context, db *sqlite.DB) ([]models.Warehouse, error) {
	rows := make([]models.Warehouse, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("code ASC").Scan(ctx)
	})
	return rows, err
}

func LoadByID(ctx context.Context, db *sqlite.DB, id int64) (models.Warehouse, error) {
	var wh models.Warehouse
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&wh).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	if err != nil {
		return wh, apperr.NotFoundIfNoRows(err, "warehouse %d not found", id)
	}
	return wh, nil
}

func Create(ctx context.Context, db *sqlite.DB, in CreateInput) (models.Warehouse, error) {
	var wh models.Warehouse
	code := NormalizeCode(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" {
		return wh, apperr.InvalidInput("warehouse code is required")
	}
	if name == "" {
		name = code
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Warehouse)(nil)).Where("code = ?", code).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("warehouse %s already exists", code)
		}
		wh = models.Warehouse{Code: code, Name: name, CreatedAt: time.Now().UTC()}
		_, err = tx.NewInsert().Model(&wh).Exec(ctx)
		return err
	})
	return wh, err
}

// AssignUser moves a user to a warehouse. Admins may be unassigned with
// warehouseID 0.
func AssignUser(ctx context.Context, db *sqlite.DB, userID, warehouseID int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var role string
		if err := tx.NewRaw(`SELECT role FROM users WHERE id = ?`, userID).Scan(ctx, &role); err != nil {
			return apperr.NotFoundIfNoRows(err, "user %d not found", userID)
		}
		if warehouseID <= 0 {
			if role != RoleAdmin {
				return apperr.InvalidInput("only admins may be left without a warehouse")
			}
			_, err := tx.ExecContext(ctx, `UPDATE users SET warehouse_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, userID)
			return err
		}
		var count int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM warehouses WHERE id = ?`, warehouseID).Scan(ctx, &count); err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("warehouse %d not found", warehouseID)
		}
		_, err := tx.ExecContext(ctx, `UPDATE users SET warehouse_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, warehouseID, userID)
		return err
	})
}

// ResolveActor builds the request actor for user. requested is the raw
// X-Warehouse-ID header value; only admins may point it at another
// warehouse. An admin without an assignment and without the header acts
// on the first warehouse.
func ResolveActor(ctx context.Context, db *sqlite.DB, user models.User, requested string) (models.Actor, error) {
	actor := models.Actor{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	if user.WarehouseID != nil {
		actor.WarehouseID = *user.WarehouseID
	}

	requested = strings.TrimSpace(requested)
	if requested != "" {
		id, err := strconv.ParseInt(requested, 10, 64)
		if err != nil || id <= 0 {
			return actor, apperr.InvalidInput("invalid %s header", HeaderName)
		}
		if id != actor.WarehouseID && user.Role != RoleAdmin {
			return actor, apperr.Forbidden("cross-warehouse access is not allowed")
		}
		if _, err := LoadByID(ctx, db, id); err != nil {
			return actor, err
		}
		actor.WarehouseID = id
	}

	if actor.WarehouseID > 0 {
		return actor, nil
	}
	if user.Role != RoleAdmin {
		return actor, apperr.Forbidden("user %s has no warehouse assignment", user.Username)
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT id FROM warehouses ORDER BY id ASC LIMIT 1`).Scan(ctx, &actor.WarehouseID)
	})
	if err != nil {
		return actor, apperr.NotFoundIfNoRows(err, "no warehouses exist yet")
	}
	return actor, nil
}

var codeRegex = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeCode upper-cases a code and collapses separators to single dashes.
func NormalizeCode(raw string) string {
	v := scancode.Normalize(raw)
	v = codeRegex.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	if len(v) > 32 {
		v = v[:32]
	}
	return v
}
