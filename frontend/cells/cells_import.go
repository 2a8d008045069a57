package cells

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/scancode"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const maxImportMessages = 50

// ImportCSV upserts cells from "code,cell_type[,x,y,w,h]" rows. Bad rows are
// counted and skipped; the rest commit together.
func ImportCSV(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor models.Actor, reader io.Reader) (ImportSummary, error) {
	summary := ImportSummary{}
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return summary, apperr.InvalidInput("read header: %v", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), "code") || !strings.EqualFold(strings.TrimSpace(header[1]), "cell_type") {
		return summary, apperr.InvalidInput("invalid CSV header; expected code,cell_type[,x,y,w,h]")
	}

	fail := func(line int, format string, args ...any) {
		summary.Errors++
		if len(summary.Messages) < maxImportMessages {
			summary.Messages = append(summary.Messages, fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)))
		}
	}

	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		line := 1
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			line++
			if err != nil {
				fail(line, "%v", err)
				continue
			}
			row, err := parseImportRow(record)
			if err != nil {
				fail(line, "%v", err)
				continue
			}

			var existing models.Cell
			err = tx.NewSelect().Model(&existing).
				Where("warehouse_id = ?", actor.WarehouseID).
				Where("code = ?", row.code).
				Limit(1).
				Scan(ctx)
			switch {
			case err == nil:
				existing.CellType = row.cellType
				if row.hasPosition {
					existing.X, existing.Y, existing.W, existing.H = row.x, row.y, row.w, row.h
				}
				existing.UpdatedAt = time.Now().UTC()
				if _, err := tx.NewUpdate().Model(&existing).Column("cell_type", "x", "y", "w", "h", "updated_at").WherePK().Exec(ctx); err != nil {
					return err
				}
				summary.Updated++
			case errors.Is(err, sql.ErrNoRows):
				now := time.Now().UTC()
				cell := models.Cell{
					WarehouseID: actor.WarehouseID,
					Code:        row.code,
					CellType:    row.cellType,
					Active:      true,
					X:           row.x,
					Y:           row.y,
					W:           atLeastOne(row.w),
					H:           atLeastOne(row.h),
					Meta:        map[string]any{},
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if _, err := tx.NewInsert().Model(&cell).Exec(ctx); err != nil {
					return err
				}
				summary.Inserted++
			default:
				return err
			}
		}

		if auditSvc == nil {
			return nil
		}
		return auditSvc.Write(ctx, tx, actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "cells.import",
			EntityType:  "cell",
			EntityID:    "import",
			Summary:     fmt.Sprintf("Cells imported: %d new, %d updated, %d errors", summary.Inserted, summary.Updated, summary.Errors),
			Meta:        map[string]any{"inserted": summary.Inserted, "updated": summary.Updated, "errors": summary.Errors},
		})
	})
	return summary, err
}

type importRow struct {
	code        string
	cellType    string
	hasPosition bool
	x, y, w, h  int
}

func parseImportRow(record []string) (importRow, error) {
	var row importRow
	if len(record) < 2 {
		return row, errors.New("expected at least code and cell_type")
	}
	row.code = scancode.Normalize(record[0])
	row.cellType = strings.ToLower(strings.TrimSpace(record[1]))
	if row.code == "" {
		return row, errors.New("code is required")
	}
	if !celltype.IsKnownType(row.cellType) {
		return row, fmt.Errorf("invalid cell type %q", record[1])
	}
	if len(record) == 2 {
		return row, nil
	}
	if len(record) != 6 {
		return row, errors.New("position needs x,y,w,h")
	}
	dims := make([]int, 4)
	for i, raw := range record[2:6] {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || v < 0 {
			return row, fmt.Errorf("invalid position value %q", raw)
		}
		dims[i] = v
	}
	row.hasPosition = true
	row.x, row.y, row.w, row.h = dims[0], dims[1], atLeastOne(dims[2]), atLeastOne(dims[3])
	return row, nil
}
