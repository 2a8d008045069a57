package exports

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/sqlite"
)

func UnitsExportCSVHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=units.csv")
		if err := writeUnitsCSV(r.Context(), db, w, actor.WarehouseID); err != nil {
			slog.Error("units export failed", slog.Int64("warehouse_id", actor.WarehouseID), slog.Any("err", err))
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		recordExport(r, auditSvc, actor.WarehouseID, "units_csv")
	}
}

// MovesExportCSVHandler exports move history; from/to take YYYY-MM-DD and
// cover whole days.
func MovesExportCSVHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		f := MovesFilter{WarehouseID: actor.WarehouseID}
		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			day, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				jsonio.WriteError(w, r, apperr.InvalidInput("from must be YYYY-MM-DD"))
				return
			}
			f.From = now.With(day).BeginningOfDay()
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
			day, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				jsonio.WriteError(w, r, apperr.InvalidInput("to must be YYYY-MM-DD"))
				return
			}
			f.To = now.With(day).EndOfDay()
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=unit-moves.csv")
		if err := writeMovesCSV(r.Context(), db, w, f); err != nil {
			slog.Error("moves export failed", slog.Int64("warehouse_id", actor.WarehouseID), slog.Any("err", err))
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		recordExport(r, auditSvc, actor.WarehouseID, "unit_moves_csv")
	}
}

func recordExport(r *http.Request, auditSvc *audit.Service, warehouseID int64, exportType string) {
	actor, _ := context.GetActorFromContext(r.Context())
	auditSvc.Emit(r.Context(), actor, audit.Event{
		WarehouseID: warehouseID,
		Action:      "export.run",
		EntityType:  "export",
		EntityID:    exportType,
		Summary:     actor.Name() + " exported " + exportType,
	})
}
