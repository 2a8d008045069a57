package transfers

import (
	"net/http"
	"strings"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/transfer"
)

func DispatchCommandHandler(svc *transfer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req DispatchRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		tr, err := svc.Dispatch(r.Context(), actor, req.UnitID, req.ToWarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "transfer": tr})
	}
}

func ReceiveCommandHandler(svc *transfer.Service) http.HandlerFunc {
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
		var req ReceiveRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		tr, err := svc.Receive(r.Context(), actor, id, req.CellID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "transfer": tr})
	}
}

func ListTransfersQueryHandler(svc *transfer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		direction := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("direction")))
		if direction != "" && direction != transfer.DirectionIn && direction != transfer.DirectionOut {
			jsonio.WriteError(w, r, apperr.InvalidInput("direction must be in or out"))
			return
		}
		rows, err := svc.List(r.Context(), actor.WarehouseID, direction)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"transfers": rows})
	}
}
