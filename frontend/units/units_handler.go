package units

import (
	"fmt"
	"net/http"
	"strconv"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/placement"
	"wms/infrastructure/sqlite"
)

// Notifier wakes the outbox dispatcher after a commit that published events.
type Notifier interface {
	Notify()
}

func CreateUnitCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req CreateUnitRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		unit, err := CreateUnit(r.Context(), db, actor, req)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "unit.create",
			EntityType:  "unit",
			EntityID:    strconv.FormatInt(unit.ID, 10),
			Summary:     fmt.Sprintf("Unit %s received", unit.Barcode),
		})
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "unit": unit})
	}
}

func ListUnitsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		cellID, err := jsonio.QueryInt64(r, "cellId")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		limit, err := jsonio.QueryInt64(r, "limit")
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		q := r.URL.Query()
		rows, err := ListUnits(r.Context(), db, ListFilter{
			WarehouseID: actor.WarehouseID,
			Barcode:     q.Get("barcode"),
			CellID:      cellID,
			Status:      q.Get("status"),
			Limit:       int(limit),
		})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"units": rows})
	}
}

func GetUnitQueryHandler(db *sqlite.DB) http.HandlerFunc {
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
		row, err := LoadUnit(r.Context(), db, actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"unit": row})
	}
}

func UnitMovesQueryHandler(db *sqlite.DB) http.HandlerFunc {
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
		rows, err := UnitMoves(r.Context(), db, actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"moves": rows})
	}
}

func UpdateUnitCommandHandler(db *sqlite.DB, auditSvc *audit.Service, notifier Notifier) http.HandlerFunc {
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
		var req UpdateUnitRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		unit, published, err := UpdateUnit(r.Context(), db, actor, id, req)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditUnitUpdate(r.Context(), auditSvc, actor, unit, req)
		if published && notifier != nil {
			notifier.Notify()
		}
		jsonio.OK(w, map[string]any{"ok": true, "unit": unit})
	}
}

func MoveUnitCommandHandler(placementSvc *placement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req MoveUnitRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := placementSvc.Move(r.Context(), placement.Request{
			WarehouseID: actor.WarehouseID,
			UnitID:      req.UnitID,
			ToCellID:    req.ToCellID,
			ToStatus:    req.ToStatus,
			Actor:       actor,
			Note:        req.Note,
			Source:      placement.SourceManual,
		})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, moveResponse(res))
	}
}

func AssignUnitCommandHandler(db *sqlite.DB, placementSvc *placement.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req AssignUnitRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		res, err := AssignUnit(r.Context(), db, placementSvc, actor, req)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		placementSvc.AuditMove(r.Context(), actor, actor.WarehouseID, res)
		if notifier != nil {
			notifier.Notify()
		}
		jsonio.OK(w, moveResponse(res))
	}
}

func PurgeUnitCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
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
		res, err := PurgeUnit(r.Context(), db, actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "unit.purge",
			EntityType:  "unit",
			EntityID:    strconv.FormatInt(id, 10),
			Summary:     fmt.Sprintf("Unit %s purged", res.Barcode),
			Meta:        map[string]any{"tasks_deleted": res.TasksDeleted},
		})
		jsonio.OK(w, res)
	}
}

func moveResponse(res placement.Result) MoveResponse {
	return MoveResponse{
		OK:         true,
		UnitID:     res.UnitID,
		FromCellID: res.FromCellID,
		ToCellID:   res.ToCellID,
		ToStatus:   res.ToStatus,
		Noop:       res.Noop,
	}
}
