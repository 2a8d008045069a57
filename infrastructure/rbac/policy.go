package rbac

// Operation codes. Each route is granted under exactly one code.
const (
	OpMe              = "ME"
	OpWarehousesList  = "WAREHOUSES_LIST"
	OpWarehousesEdit  = "WAREHOUSES_EDIT"
	OpUnitsView       = "UNITS_VIEW"
	OpUnitsCreate     = "UNITS_CREATE"
	OpUnitsEditMeta   = "UNITS_EDIT_META"
	OpUnitsMove       = "UNITS_MOVE"
	OpUnitsPurge      = "UNITS_PURGE"
	OpCellsView       = "CELLS_VIEW"
	OpCellsEdit       = "CELLS_EDIT"
	OpPickingView     = "PICKING_TASKS_VIEW"
	OpPickingEdit     = "PICKING_TASKS_EDIT"
	OpPickingCancel   = "PICKING_TASKS_CANCEL"
	OpTSD             = "TSD_SHIPPING_TASKS"
	OpShipmentsView   = "SHIPMENTS_VIEW"
	OpShipmentsEdit   = "SHIPMENTS_EDIT"
	OpTransfersView   = "TRANSFERS_VIEW"
	OpTransfersEdit   = "TRANSFERS_EDIT"
	OpInventoryView   = "INVENTORY_VIEW"
	OpInventoryToggle = "INVENTORY_TOGGLE"
	OpInventoryCount  = "INVENTORY_COUNT"
	OpAuditView       = "AUDIT_VIEW"
	OpExports         = "EXPORTS"
	OpAdminUsers      = "ADMIN_USERS"
)

// Policy maps an operation code to the non-admin roles allowed to call it.
type Policy map[string][]string

var (
	everyone   = []string{RoleSupervisor, RoleOps, RoleWorker}
	office     = []string{RoleSupervisor, RoleOps}
	supervisor = []string{RoleSupervisor}
)

var DefaultPolicy = Policy{
	OpMe:              everyone,
	OpWarehousesList:  everyone,
	OpWarehousesEdit:  nil,
	OpUnitsView:       everyone,
	OpUnitsCreate:     everyone,
	OpUnitsEditMeta:   office,
	OpUnitsMove:       everyone,
	OpUnitsPurge:      nil,
	OpCellsView:       everyone,
	OpCellsEdit:       supervisor,
	OpPickingView:     everyone,
	OpPickingEdit:     office,
	OpPickingCancel:   office,
	OpTSD:             everyone,
	OpShipmentsView:   everyone,
	OpShipmentsEdit:   everyone,
	OpTransfersView:   everyone,
	OpTransfersEdit:   office,
	OpInventoryView:   everyone,
	OpInventoryToggle: supervisor,
	OpInventoryCount:  everyone,
	OpAuditView:       office,
	OpExports:         office,
	OpAdminUsers:      nil,
}
