package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wms/frontend/shared/context"
	"wms/frontend/shared/html"
	"wms/frontend/shared/jsonio"
	"wms/frontend/shared/nav"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

// filterFromQuery reads action, entityType, entityId, date (YYYY-MM-DD) and limit.
func filterFromQuery(r *http.Request, warehouseID int64) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		WarehouseID: warehouseID,
		Action:      q.Get("action"),
		EntityType:  q.Get("entityType"),
		EntityID:    q.Get("entityId"),
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, apperr.InvalidInput("date must be YYYY-MM-DD")
		}
		f.Day = day
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return f, apperr.InvalidInput("invalid limit")
		}
		f.Limit = limit
	}
	return f, nil
}

func AuditQueryHandler(auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		f, err := filterFromQuery(r, actor.WarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		events, err := auditSvc.List(r.Context(), f)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"events": events})
	}
}

func AuditPageQueryHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := context.GetSessionFromContext(r.Context())
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		wh, err := warehouse.LoadByID(r.Context(), db, actor.WarehouseID)
		if err != nil {
			http.Error(w, "warehouse not found", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		data := PageData{
			WarehouseCode: wh.Code,
			Action:        q.Get("action"),
			EntityType:    q.Get("entityType"),
			EntityID:      q.Get("entityId"),
			Date:          q.Get("date"),
		}
		f, err := filterFromQuery(r, actor.WarehouseID)
		if err != nil {
			data.ErrorMessage = apperr.Message(err)
		} else {
			data.Rows, err = auditSvc.List(r.Context(), f)
			if err != nil {
				http.Error(w, "failed to load audit log", http.StatusInternalServerError)
				return
			}
		}

		top := nav.BuildTopNavData(session, wh.Code, r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Page("Audit log", top, AuditPage(data)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render audit log", http.StatusInternalServerError)
			return
		}
	}
}
