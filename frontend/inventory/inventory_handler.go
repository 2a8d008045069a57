package inventory

import (
	"net/http"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	inventoryinfra "wms/infrastructure/inventory"
)

func StatusQueryHandler(svc *inventoryinfra.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		session, err := svc.Status(r.Context(), actor.WarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"active": session != nil, "session": session})
	}
}

func StartCommandHandler(svc *inventoryinfra.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		session, err := svc.Start(r.Context(), actor)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "session": session})
	}
}

func StopCommandHandler(svc *inventoryinfra.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		session, err := svc.Stop(r.Context(), actor)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "session": session})
	}
}

func CountCommandHandler(svc *inventoryinfra.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req CountRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		count, err := svc.RecordCount(r.Context(), actor, inventoryinfra.CountInput{CellCode: req.CellCode, Barcodes: req.Barcodes})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "count": count})
	}
}

func ReportQueryHandler(svc *inventoryinfra.Service) http.HandlerFunc {
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
		report, err := svc.Report(r.Context(), actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, report)
	}
}
