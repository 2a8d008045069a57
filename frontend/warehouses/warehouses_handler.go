package warehouses

import (
	"net/http"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

type CreateWarehouseRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"max=128"`
}

func ListWarehousesQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := warehouse.List(r.Context(), db)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"warehouses": rows})
	}
}

func CreateWarehouseCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req CreateWarehouseRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		wh, err := warehouse.Create(r.Context(), db, warehouse.CreateInput{Code: req.Code, Name: req.Name})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: wh.ID,
			Action:      "warehouse.create",
			EntityType:  "warehouse",
			EntityID:    wh.Code,
			Summary:     actor.Name() + " created warehouse " + wh.Code,
		})
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "warehouse": wh})
	}
}
