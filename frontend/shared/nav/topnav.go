package nav

import (
	"strings"

	"wms/models"
)

// TopNavData is shared with page renderers.
type TopNavData struct {
	Username      string
	Role          string
	WarehouseCode string
	Links         []Link
}

type Link struct {
	Label  string
	Href   string
	Active bool
}

type entry struct {
	label string
	href  string
	code  string
}

var entries = []entry{
	{label: "Cell map", href: "/tasker/cells/map", code: "CELLS_VIEW"},
	{label: "Picking tasks", href: "/tasker/picking-tasks", code: "PICKING_TASKS_VIEW"},
	{label: "Audit log", href: "/tasker/audit", code: "AUDIT_VIEW"},
	{label: "Users", href: "/tasker/admin/users", code: "ADMIN_USERS"},
}

// BuildTopNavData keeps the links the session may open; currentPath marks
// the active one.
func BuildTopNavData(session models.Session, warehouseCode, currentPath string) TopNavData {
	data := TopNavData{Username: session.User.Username, Role: session.User.Role, WarehouseCode: warehouseCode}
	for _, e := range entries {
		if session.ScreenPermissions[e.code] != 1 {
			continue
		}
		data.Links = append(data.Links, Link{
			Label:  e.label,
			Href:   e.href,
			Active: strings.HasPrefix(currentPath, e.href),
		})
	}
	return data
}
