package cells

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/celltype"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

func ListCells(ctx context.Context, db *sqlite.DB, f ListFilter) ([]CellRow, error) {
	rows := make([]CellRow, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&rows).
			ColumnExpr("c.*").
			ColumnExpr("(SELECT COUNT(1) FROM units un WHERE un.cell_id = c.id) AS unit_count").
			Where("c.warehouse_id = ?", f.WarehouseID).
			OrderExpr("c.code ASC")
		if t := strings.TrimSpace(f.CellType); t != "" {
			q = q.Where("c.cell_type = ?", t)
		}
		if f.Active != nil {
			q = q.Where("c.active = ?", *f.Active)
		}
		return q.Scan(ctx)
	})
	return rows, err
}

func LoadCell(ctx context.Context, db *sqlite.DB, warehouseID, cellID int64) (models.Cell, error) {
	var cell models.Cell
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&cell).
			Where("id = ?", cellID).
			Where("warehouse_id = ?", warehouseID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return cell, apperr.NotFoundIfNoRows(err, "cell %d not found", cellID)
	}
	return cell, nil
}

func CreateCell(ctx context.Context, db *sqlite.DB, warehouseID int64, in CreateCellRequest) (models.Cell, error) {
	var cell models.Cell
	code := scancode.Normalize(in.Code)
	cellType := strings.ToLower(strings.TrimSpace(in.CellType))
	if code == "" {
		return cell, apperr.InvalidInput("code is required")
	}
	if !celltype.IsKnownType(cellType) {
		return cell, apperr.InvalidInput("invalid cell type %q", in.CellType)
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Cell)(nil)).
			Where("warehouse_id = ?", warehouseID).
			Where("code = ?", code).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("cell %s already exists", code)
		}
		now := time.Now().UTC()
		cell = models.Cell{
			WarehouseID: warehouseID,
			Code:        code,
			CellType:    cellType,
			Active:      true,
			X:           in.X,
			Y:           in.Y,
			W:           atLeastOne(in.W),
			H:           atLeastOne(in.H),
			Meta:        in.Meta,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if cell.Meta == nil {
			cell.Meta = map[string]any{}
		}
		_, err = tx.NewInsert().Model(&cell).Exec(ctx)
		return err
	})
	return cell, err
}

func UpdateCell(ctx context.Context, db *sqlite.DB, warehouseID, cellID int64, in UpdateCellRequest) (models.Cell, error) {
	var cell models.Cell
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&cell).
			Where("id = ?", cellID).
			Where("warehouse_id = ?", warehouseID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.NotFoundIfNoRows(err, "cell %d not found", cellID)
		}
		if in.CellType != nil {
			t := strings.ToLower(strings.TrimSpace(*in.CellType))
			if !celltype.IsKnownType(t) {
				return apperr.InvalidInput("invalid cell type %q", *in.CellType)
			}
			cell.CellType = t
		}
		if in.X != nil {
			cell.X = *in.X
		}
		if in.Y != nil {
			cell.Y = *in.Y
		}
		if in.W != nil {
			cell.W = *in.W
		}
		if in.H != nil {
			cell.H = *in.H
		}
		if in.Active != nil {
			if !*in.Active {
				if err := ensureEmpty(ctx, tx, cell); err != nil {
					return err
				}
			}
			cell.Active = *in.Active
		}
		if in.Meta != nil {
			merged := make(map[string]any, len(cell.Meta)+len(in.Meta))
			for k, v := range cell.Meta {
				merged[k] = v
			}
			for k, v := range in.Meta {
				if v == nil {
					delete(merged, k)
					continue
				}
				merged[k] = v
			}
			cell.Meta = merged
		}
		cell.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().Model(&cell).
			Column("cell_type", "x", "y", "w", "h", "active", "meta", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	return cell, err
}

// DeactivateCell soft-deletes an empty cell.
func DeactivateCell(ctx context.Context, db *sqlite.DB, warehouseID, cellID int64) (models.Cell, error) {
	inactive := false
	return UpdateCell(ctx, db, warehouseID, cellID, UpdateCellRequest{Active: &inactive})
}

func ensureEmpty(ctx context.Context, tx bun.Tx, cell models.Cell) error {
	n, err := tx.NewSelect().Model((*models.Unit)(nil)).Where("cell_id = ?", cell.ID).Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("cell %s still holds %d units", cell.Code, n)
	}
	return nil
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
