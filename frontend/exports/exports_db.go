package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/uptrace/bun"

	"wms/infrastructure/sqlite"
)

func writeUnitsCSV(ctx context.Context, db *sqlite.DB, w io.Writer, warehouseID int64) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"barcode", "status", "cell_code", "cell_type", "ops_status", "updated_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	type row struct {
		Barcode   string `bun:"barcode"`
		Status    string `bun:"status"`
		CellCode  string `bun:"cell_code"`
		CellType  string `bun:"cell_type"`
		OpsStatus string `bun:"ops_status"`
		UpdatedAt string `bun:"updated_at"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT u.barcode, u.status,
       COALESCE(c.code, '') AS cell_code,
       COALESCE(c.cell_type, '') AS cell_type,
       COALESCE(CASE WHEN json_valid(u.meta) = 1 THEN json_extract(u.meta, '$.ops_status') END, '') AS ops_status,
       strftime('%d/%m/%Y %H:%M', u.updated_at) AS updated_at
FROM units u
LEFT JOIN cells c ON c.id = u.cell_id
WHERE u.warehouse_id = ?
ORDER BY u.barcode ASC, u.id ASC`, warehouseID).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := writer.Write([]string{r.Barcode, r.Status, r.CellCode, r.CellType, r.OpsStatus, r.UpdatedAt}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeMovesCSV(ctx context.Context, db *sqlite.DB, w io.Writer, f MovesFilter) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"move_id", "barcode", "from_cell", "to_cell", "from_status", "to_status", "source", "actor", "note", "created_at"}); err != nil {
		return err
	}

	type row struct {
		ID         int64  `bun:"id"`
		Barcode    string `bun:"barcode"`
		FromCell   string `bun:"from_cell"`
		ToCell     string `bun:"to_cell"`
		FromStatus string `bun:"from_status"`
		ToStatus   string `bun:"to_status"`
		Source     string `bun:"source"`
		Actor      string `bun:"actor"`
		Note       string `bun:"note"`
		CreatedAt  string `bun:"created_at"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := `
SELECT um.id, u.barcode,
       COALESCE(fc.code, '') AS from_cell,
       COALESCE(tc.code, '') AS to_cell,
       um.from_status, um.to_status, um.source,
       COALESCE(us.username, '-') AS actor,
       um.note,
       strftime('%d/%m/%Y %H:%M', um.created_at) AS created_at
FROM unit_moves um
JOIN units u ON u.id = um.unit_id
LEFT JOIN cells fc ON fc.id = um.from_cell_id
LEFT JOIN cells tc ON tc.id = um.to_cell_id
LEFT JOIN users us ON us.id = um.actor_id
WHERE u.warehouse_id = ?`
		args := []any{f.WarehouseID}
		if !f.From.IsZero() {
			q += " AND um.created_at >= ?"
			args = append(args, f.From)
		}
		if !f.To.IsZero() {
			q += " AND um.created_at <= ?"
			args = append(args, f.To)
		}
		q += " ORDER BY um.id ASC"
		return tx.NewRaw(q, args...).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Barcode,
			r.FromCell,
			r.ToCell,
			r.FromStatus,
			r.ToStatus,
			r.Source,
			r.Actor,
			r.Note,
			r.CreatedAt,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}
