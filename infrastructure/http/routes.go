package http

import (
	"net/http"

	adminusers "wms/frontend/adminUsers"
	auditlog "wms/frontend/auditLog"
	"wms/frontend/cells"
	exportspage "wms/frontend/exports"
	inventorypage "wms/frontend/inventory"
	"wms/frontend/login"
	pickingtasks "wms/frontend/pickingTasks"
	"wms/frontend/shipments"
	"wms/frontend/transfers"
	"wms/frontend/tsd"
	"wms/frontend/units"
	"wms/frontend/warehouses"
	"wms/infrastructure/rbac"

	"github.com/go-chi/chi/v5"
)

// RegisterLoginRoutes registers login/logout routes.
func (s *Server) RegisterLoginRoutes() {
	s.router.Get("/login", login.GetLoginScreenHandler(s.DB, s.SessionCache))
	s.router.Post("/login", login.CreateLoginHandler(s.DB, s.SessionCache, s.UserCache, s.SessionTTL))
	s.router.Post("/logout", login.LogoutHandler(s.DB, s.SessionCache))
}

// RegisterPublicAPIRoutes registers the routes reachable without a token.
func (s *Server) RegisterPublicAPIRoutes(r chi.Router) {
	r.Post("/auth/token", login.IssueTokenHandler(s.DB, s.Tokens))
}

// RegisterAPIRoutes registers bearer-authenticated JSON routes.
func (s *Server) RegisterAPIRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpMe, http.MethodGet, "/api/me")
	r.Get("/me", login.MeQueryHandler(s.DB, s.Rbac))

	s.Rbac.Grant(rbac.OpWarehousesList, http.MethodGet, "/api/warehouses")
	r.Get("/warehouses", warehouses.ListWarehousesQueryHandler(s.DB))
	s.Rbac.Grant(rbac.OpWarehousesEdit, http.MethodPost, "/api/warehouses")
	r.Post("/warehouses", warehouses.CreateWarehouseCommandHandler(s.DB, s.Audit))

	s.RegisterUnitRoutes(r)
	s.RegisterCellRoutes(r)
	s.RegisterPickingTaskRoutes(r)
	s.RegisterTSDRoutes(r)
	s.RegisterOutboundRoutes(r)
	s.RegisterInventoryRoutes(r)

	s.Rbac.Grant(rbac.OpAuditView, http.MethodGet, "/api/audit")
	r.Get("/audit", auditlog.AuditQueryHandler(s.Audit))

	s.Rbac.Grant(rbac.OpExports, http.MethodGet, "/api/exports/units.csv")
	r.Get("/exports/units.csv", exportspage.UnitsExportCSVHandler(s.DB, s.Audit))
	s.Rbac.Grant(rbac.OpExports, http.MethodGet, "/api/exports/moves.csv")
	r.Get("/exports/moves.csv", exportspage.MovesExportCSVHandler(s.DB, s.Audit))
}

func (s *Server) RegisterUnitRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpUnitsView, http.MethodGet, "/api/units")
	r.Get("/units", units.ListUnitsQueryHandler(s.DB))
	s.Rbac.Grant(rbac.OpUnitsView, http.MethodGet, "/api/units/*")
	r.Get("/units/{id}", units.GetUnitQueryHandler(s.DB))
	r.Get("/units/{id}/moves", units.UnitMovesQueryHandler(s.DB))

	s.Rbac.Grant(rbac.OpUnitsCreate, http.MethodPost, "/api/units")
	r.Post("/units", units.CreateUnitCommandHandler(s.DB, s.Audit))

	s.Rbac.Grant(rbac.OpUnitsMove, http.MethodPost, "/api/units/move")
	r.Post("/units/move", units.MoveUnitCommandHandler(s.Placement))
	s.Rbac.Grant(rbac.OpUnitsMove, http.MethodPost, "/api/units/assign")
	r.Post("/units/assign", units.AssignUnitCommandHandler(s.DB, s.Placement, s.Outbox))

	s.Rbac.Grant(rbac.OpUnitsEditMeta, http.MethodPatch, "/api/units/*")
	r.Patch("/units/{id}", units.UpdateUnitCommandHandler(s.DB, s.Audit, s.Outbox))

	s.Rbac.Grant(rbac.OpUnitsPurge, http.MethodDelete, "/api/units/*")
	r.Delete("/units/{id}", units.PurgeUnitCommandHandler(s.DB, s.Audit))
}

func (s *Server) RegisterCellRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpCellsView, http.MethodGet, "/api/cells")
	r.Get("/cells", cells.ListCellsQueryHandler(s.DB))
	s.Rbac.Grant(rbac.OpCellsView, http.MethodGet, "/api/cells/labels.pdf")
	r.Get("/cells/labels.pdf", cells.CellLabelsQueryHandler(s.DB))
	s.Rbac.Grant(rbac.OpCellsView, http.MethodGet, "/api/cells/*/label.pdf")
	r.Get("/cells/{id}/label.pdf", cells.CellLabelQueryHandler(s.DB))

	s.Rbac.Grant(rbac.OpCellsEdit, http.MethodPost, "/api/cells")
	r.Post("/cells", cells.CreateCellCommandHandler(s.DB, s.Audit))
	s.Rbac.Grant(rbac.OpCellsEdit, http.MethodPost, "/api/cells/import")
	r.Post("/cells/import", cells.ImportCellsCommandHandler(s.DB, s.Audit))
	s.Rbac.Grant(rbac.OpCellsEdit, http.MethodPatch, "/api/cells/*")
	r.Patch("/cells/{id}", cells.UpdateCellCommandHandler(s.DB, s.Audit))
	s.Rbac.Grant(rbac.OpCellsEdit, http.MethodDelete, "/api/cells/*")
	r.Delete("/cells/{id}", cells.DeleteCellCommandHandler(s.DB, s.Audit))
}

func (s *Server) RegisterPickingTaskRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpPickingView, http.MethodGet, "/api/picking-tasks")
	r.Get("/picking-tasks", pickingtasks.ListPickingTasksQueryHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpPickingView, http.MethodGet, "/api/picking-tasks/*")
	r.Get("/picking-tasks/{id}", pickingtasks.GetPickingTaskQueryHandler(s.PickingTasks))

	s.Rbac.Grant(rbac.OpPickingEdit, http.MethodPost, "/api/picking-tasks")
	r.Post("/picking-tasks", pickingtasks.CreatePickingTaskCommandHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpPickingEdit, http.MethodPatch, "/api/ops/picking-tasks/*/scenario")
	r.Patch("/ops/picking-tasks/{id}/scenario", pickingtasks.EditScenarioCommandHandler(s.PickingTasks))

	s.Rbac.Grant(rbac.OpPickingCancel, http.MethodPost, "/api/picking-tasks/*/cancel")
	r.Post("/picking-tasks/{id}/cancel", pickingtasks.CancelPickingTaskCommandHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpPickingCancel, http.MethodPost, "/api/picking-tasks/*/rollback/resume")
	r.Post("/picking-tasks/{id}/rollback/resume", pickingtasks.ResumeRollbackCommandHandler(s.PickingTasks))
}

func (s *Server) RegisterTSDRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpTSD, http.MethodGet, "/api/tsd/shipping-tasks")
	r.Get("/tsd/shipping-tasks", tsd.ActiveTasksQueryHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpTSD, http.MethodGet, "/api/tsd/shipping-tasks/check-unit")
	r.Get("/tsd/shipping-tasks/check-unit", tsd.CheckUnitQueryHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpTSD, http.MethodPost, "/api/tsd/shipping-tasks/start")
	r.Post("/tsd/shipping-tasks/start", tsd.StartTaskCommandHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpTSD, http.MethodPost, "/api/tsd/shipping-tasks/scan")
	r.Post("/tsd/shipping-tasks/scan", tsd.ScanUnitCommandHandler(s.PickingTasks))
	s.Rbac.Grant(rbac.OpTSD, http.MethodPost, "/api/tsd/shipping-tasks/complete-batch")
	r.Post("/tsd/shipping-tasks/complete-batch", tsd.CompleteBatchCommandHandler(s.PickingTasks))
}

func (s *Server) RegisterOutboundRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpShipmentsEdit, http.MethodPost, "/api/units/*/ship-out")
	r.Post("/units/{id}/ship-out", shipments.ShipOutCommandHandler(s.Shipments))
	s.Rbac.Grant(rbac.OpShipmentsView, http.MethodGet, "/api/shipments")
	r.Get("/shipments", shipments.ListShipmentsQueryHandler(s.Shipments))
	s.Rbac.Grant(rbac.OpShipmentsEdit, http.MethodPost, "/api/shipments/*/return")
	r.Post("/shipments/{id}/return", shipments.ReturnShipmentCommandHandler(s.Shipments))

	s.Rbac.Grant(rbac.OpTransfersView, http.MethodGet, "/api/transfers")
	r.Get("/transfers", transfers.ListTransfersQueryHandler(s.Transfers))
	s.Rbac.Grant(rbac.OpTransfersEdit, http.MethodPost, "/api/transfers")
	r.Post("/transfers", transfers.DispatchCommandHandler(s.Transfers))
	s.Rbac.Grant(rbac.OpTransfersEdit, http.MethodPost, "/api/transfers/*/receive")
	r.Post("/transfers/{id}/receive", transfers.ReceiveCommandHandler(s.Transfers))
}

func (s *Server) RegisterInventoryRoutes(r chi.Router) {
	s.Rbac.Grant(rbac.OpInventoryView, http.MethodGet, "/api/inventory/status")
	r.Get("/inventory/status", inventorypage.StatusQueryHandler(s.Inventory))
	s.Rbac.Grant(rbac.OpInventoryView, http.MethodGet, "/api/inventory/*/report")
	r.Get("/inventory/{id}/report", inventorypage.ReportQueryHandler(s.Inventory))
	s.Rbac.Grant(rbac.OpInventoryToggle, http.MethodPost, "/api/inventory/start")
	r.Post("/inventory/start", inventorypage.StartCommandHandler(s.Inventory))
	s.Rbac.Grant(rbac.OpInventoryToggle, http.MethodPost, "/api/inventory/stop")
	r.Post("/inventory/stop", inventorypage.StopCommandHandler(s.Inventory))
	s.Rbac.Grant(rbac.OpInventoryCount, http.MethodPost, "/api/inventory/count")
	r.Post("/inventory/count", inventorypage.CountCommandHandler(s.Inventory))
}

// RegisterFrontendRoutes registers the cookie-authenticated admin pages.
func (s *Server) RegisterFrontendRoutes(r chi.Router) chi.Router {
	s.Rbac.Grant(rbac.OpCellsView, http.MethodGet, "/tasker/cells/map")
	r.Get("/cells/map", cells.CellMapPageQueryHandler(s.DB))

	s.Rbac.Grant(rbac.OpPickingView, http.MethodGet, "/tasker/picking-tasks")
	r.Get("/picking-tasks", pickingtasks.BoardPageQueryHandler(s.DB, s.PickingTasks))
	s.Rbac.Grant(rbac.OpPickingCancel, http.MethodPost, "/tasker/picking-tasks/*/cancel")
	r.Post("/picking-tasks/{id}/cancel", pickingtasks.BoardCancelCommandHandler(s.PickingTasks))

	s.Rbac.Grant(rbac.OpAuditView, http.MethodGet, "/tasker/audit")
	r.Get("/audit", auditlog.AuditPageQueryHandler(s.DB, s.Audit))
	return r
}

// RegisterAdminRoutes registers admin-only routes.
func (s *Server) RegisterAdminRoutes(r chi.Router) chi.Router {
	s.Rbac.Grant(rbac.OpAdminUsers, http.MethodGet, "/tasker/admin/users")
	r.Get("/admin/users", adminusers.UsersPageQueryHandler(s.DB))
	s.Rbac.Grant(rbac.OpAdminUsers, http.MethodPost, "/tasker/admin/users")
	r.Post("/admin/users", adminusers.CreateUserCommandHandler(s.DB))
	s.Rbac.Grant(rbac.OpAdminUsers, http.MethodPost, "/tasker/admin/users/warehouse")
	r.Post("/admin/users/warehouse", adminusers.AssignWarehouseCommandHandler(s.DB, s.SessionCache, s.UserCache))
	return r
}
