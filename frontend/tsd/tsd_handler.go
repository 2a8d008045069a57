// Package tsd serves the handheld scanner terminals that run picking tasks.
package tsd

import (
	"net/http"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/pickingtask"
)

// ActiveTasksQueryHandler lists the open and in-progress tasks a terminal can pick.
func ActiveTasksQueryHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		tasks := make([]pickingtask.Summary, 0)
		for _, status := range []string{pickingtask.StatusInProgress, pickingtask.StatusOpen} {
			rows, err := svc.List(r.Context(), actor.WarehouseID, status)
			if err != nil {
				jsonio.WriteError(w, r, err)
				return
			}
			tasks = append(tasks, rows...)
		}
		jsonio.OK(w, map[string]any{"tasks": tasks})
	}
}

func StartTaskCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req TaskRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		task, err := svc.Start(r.Context(), actor, req.TaskID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "task": task})
	}
}

func ScanUnitCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req ScanRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := svc.Scan(r.Context(), actor, pickingtask.ScanInput{
			TaskID:       req.TaskID,
			UnitBarcode:  req.UnitBarcode,
			FromCellCode: req.FromCellCode,
		})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{
			"ok":            true,
			"task":          res.Task,
			"move":          res.Move,
			"moved":         res.Moved,
			"total":         res.Total,
			"taskCompleted": res.TaskCompleted,
		})
	}
}

func CompleteBatchCommandHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req TaskRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := svc.CompleteBatch(r.Context(), actor, req.TaskID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{
			"ok":            true,
			"taskCompleted": res.TaskCompleted,
			"message":       res.Message,
			"moved":         res.Moved,
			"total":         res.Total,
		})
	}
}

// CheckUnitQueryHandler answers 404 only for an unknown barcode; any other
// mismatch is a 200 with found=false and a reason.
func CheckUnitQueryHandler(svc *pickingtask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		q := r.URL.Query()
		res, err := svc.CheckUnit(r.Context(), actor.WarehouseID, q.Get("unitBarcode"), q.Get("fromCellCode"))
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, res)
	}
}
