package cells

import (
	"fmt"
	"io"
	"mime"
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
	"wms/infrastructure/celltype"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

func ListCellsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		f := ListFilter{WarehouseID: actor.WarehouseID, CellType: r.URL.Query().Get("type")}
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				jsonio.WriteError(w, r, apperr.InvalidInput("invalid active"))
				return
			}
			f.Active = &active
		}
		rows, err := ListCells(r.Context(), db, f)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"cells": rows})
	}
}

func CreateCellCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var req CreateCellRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		cell, err := CreateCell(r.Context(), db, actor.WarehouseID, req)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "cell.create",
			EntityType:  "cell",
			EntityID:    strconv.FormatInt(cell.ID, 10),
			Summary:     fmt.Sprintf("Cell %s created (%s)", cell.Code, cell.CellType),
		})
		jsonio.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "cell": cell})
	}
}

func UpdateCellCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
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
		var req UpdateCellRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		cell, err := UpdateCell(r.Context(), db, actor.WarehouseID, id, req)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "cell.update",
			EntityType:  "cell",
			EntityID:    strconv.FormatInt(cell.ID, 10),
			Summary:     fmt.Sprintf("Cell %s updated", cell.Code),
			Meta:        map[string]any{"cellType": cell.CellType, "active": cell.Active, "blocked": cell.Blocked()},
		})
		jsonio.OK(w, map[string]any{"ok": true, "cell": cell})
	}
}

func DeleteCellCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
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
		cell, err := DeactivateCell(r.Context(), db, actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		auditSvc.Emit(r.Context(), actor, audit.Event{
			WarehouseID: actor.WarehouseID,
			Action:      "cell.deactivate",
			EntityType:  "cell",
			EntityID:    strconv.FormatInt(cell.ID, 10),
			Summary:     fmt.Sprintf("Cell %s deactivated", cell.Code),
		})
		jsonio.OK(w, map[string]any{"ok": true})
	}
}

// ImportCellsCommandHandler accepts a multipart "file" field or a raw text/csv body.
func ImportCellsCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		var body io.Reader = http.MaxBytesReader(w, r.Body, 10<<20)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				jsonio.WriteError(w, r, apperr.InvalidInput("invalid upload"))
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				jsonio.WriteError(w, r, apperr.InvalidInput("file is required"))
				return
			}
			defer file.Close()
			body = file
		}
		summary, err := ImportCSV(r.Context(), db, auditSvc, actor, body)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{"ok": true, "summary": summary})
	}
}

// CellLabelQueryHandler streams a printable Code128 label for one cell.
func CellLabelQueryHandler(db *sqlite.DB) http.HandlerFunc {
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
		cell, err := LoadCell(r.Context(), db, actor.WarehouseID, id)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		wh, err := warehouse.LoadByID(r.Context(), db, actor.WarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		pdfBytes, err := renderCellLabelsPDF([]CellLabelData{{
			CellID:        cell.ID,
			Code:          cell.Code,
			CellType:      cell.CellType,
			WarehouseCode: wh.Code,
		}}, time.Now())
		if err != nil {
			http.Error(w, "failed to build label pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=cell-%s-label.pdf", cell.Code))
		_, _ = w.Write(pdfBytes)
	}
}

// CellLabelsQueryHandler prints labels for every active cell, optionally of one type.
func CellLabelsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		active := true
		rows, err := ListCells(r.Context(), db, ListFilter{WarehouseID: actor.WarehouseID, CellType: r.URL.Query().Get("type"), Active: &active})
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		if len(rows) == 0 {
			jsonio.WriteError(w, r, apperr.NotFound("no cells to print"))
			return
		}
		wh, err := warehouse.LoadByID(r.Context(), db, actor.WarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		labels := make([]CellLabelData, 0, len(rows))
		for _, c := range rows {
			labels = append(labels, CellLabelData{CellID: c.ID, Code: c.Code, CellType: c.CellType, WarehouseCode: wh.Code})
		}
		pdfBytes, err := renderCellLabelsPDF(labels, time.Now())
		if err != nil {
			http.Error(w, "failed to build label pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=cell-labels.pdf")
		_, _ = w.Write(pdfBytes)
	}
}

func CellMapPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
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
		rows, err := ListCells(r.Context(), db, ListFilter{WarehouseID: actor.WarehouseID})
		if err != nil {
			http.Error(w, "failed to load cells", http.StatusInternalServerError)
			return
		}
		data := MapPageData{
			WarehouseCode: wh.Code,
			Cells:         rows,
			CellTypes:     celltype.Types(),
			Status:        r.URL.Query().Get("status"),
			ErrorMessage:  r.URL.Query().Get("error"),
		}
		top := nav.BuildTopNavData(session, wh.Code, r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Page("Cell map", top, MapPage(data)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render cell map", http.StatusInternalServerError)
			return
		}
	}
}
