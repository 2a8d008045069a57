package pickingtasks

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wms/frontend/shared/context"
	"wms/frontend/shared/html"
	"wms/frontend/shared/jsonio"
	"wms/frontend/shared/nav"
	"wms/infrastructure/apperr"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/rbac"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

func CreatePickingTaskCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req CreateTaskRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		task, err := svc.Create(r.Context(), actor, pickingtask.CreateInput{
			TargetCellID: req.TargetCellID,
			UnitIDs:      req.UnitIDs,
			Scenario:     req.Scenario,
		})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "task": task})
	}
}

func ListPickingTasksQueryHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		tasks, err := svc.List(r.Context(), actor.WarehouseID, r.URL.Query().Get("status"))
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"tasks": tasks})
	}
}

func GetPickingTaskQueryHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		id, err := jsonio.PathID(r, "id")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		detail, err := svc.Get(r.Context(), actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, detail)
	}
}

// CancelPickingTaskCommandHandler rolls every reserved unit back to its
// origin. Per-unit failures do not fail the request; they are listed in
// units_failed and can be replayed with the resume endpoint.
func CancelPickingTaskCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		id, err := jsonio.PathID(r, "id")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, cancelResponse(res))
	}
}

func ResumeRollbackCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		id, err := jsonio.PathID(r, "id")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := svc.ResumeRollback(r.Context(), actor, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, cancelResponse(res))
	}
}

func EditScenarioCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		id, err := jsonio.PathID(r, "id")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		var req ScenarioRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		if req.Scenario == nil {
			jsonio.WriteError(w, r, apperr.InvalidInput("scenario is required"))
			return
		}
		task, err := svc.EditScenario(r.Context(), actor, id, *req.Scenario)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "task": task})
	}
}

func cancelResponse(res pickingtask.CancelResult) map[string]any {
	failed := res.UnitsFailed
	if failed == nil {
		failed = []pickingtask.RollbackFailure{}
	}
	return map[string]any{
		"ok":             true,
		"task":           res.Task,
		"sagaId":         res.SagaID,
		"units_returned": res.UnitsReturned,
		"units_failed":   failed,
	}
}

func BoardPageQueryHandler(db *sqlite.DB, svc *pickingtask.Service) http.HandlerFunc {
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
		filter := r.URL.Query().Get("filter")
		tasks, err := svc.List(r.Context(), actor.WarehouseID, filter)
		if err != nil {
			http.Error(w, "failed to load picking tasks", http.StatusInternalServerError)
			return
		}
		data := BoardPageData{
			WarehouseCode: wh.Code,
			StatusFilter:  filter,
			Tasks:         tasks,
			CanCancel:     session.ScreenPermissions[rbac.OpPickingCancel] == 1,
			Status:        r.URL.Query().Get("status"),
			ErrorMessage:  r.URL.Query().Get("error"),
		}
		top := nav.BuildTopNavData(session, wh.Code, r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Page("Picking tasks", top, BoardPage(data)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render picking tasks", http.StatusInternalServerError)
			return
		}
	}
}

// BoardCancelCommandHandler is the form variant of cancel used by the board.
func BoardCancelCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			http.Redirect(w, r, "/tasker/picking-tasks?error="+url.QueryEscape("Invalid task id"), http.StatusSeeOther)
			return
		}
		res, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			http.Redirect(w, r, "/tasker/picking-tasks?error="+url.QueryEscape(apperr.Message(err)), http.StatusSeeOther)
			return
		}
		status := "Task " + strconv.FormatInt(id, 10) + " canceled, " + strconv.Itoa(res.UnitsReturned) + " units returned"
		if n := len(res.UnitsFailed); n > 0 {
			status += ", " + strconv.Itoa(n) + " failed"
		}
		http.Redirect(w, r, "/tasker/picking-tasks?status="+url.QueryEscape(status), http.StatusSeeOther)
	}
}
