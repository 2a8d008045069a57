package shipments

import (
	"net/http"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/shipment"
)

func ShipOutCommandHandler(svc *shipment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		unitID, err := jsonio.PathID(r, "id")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		var req ShipOutRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		sh, err := svc.ShipOut(r.Context(), actor, unitID, req.CourierName)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "shipment": sh})
	}
}

func ListShipmentsQueryHandler(svc *shipment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		rows, err := svc.List(r.Context(), actor.WarehouseID, r.URL.Query().Get("status"))
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"shipments": rows})
	}
}

func ReturnShipmentCommandHandler(svc *shipment.Service) http.HandlerFunc {
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
		var req ReturnRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		sh, err := svc.Return(r.Context(), actor, id, shipment.ReturnInput{CellID: req.CellID, Reason: req.Reason})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "shipment": sh})
	}
}
