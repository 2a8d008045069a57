package auditlog

import "wms/models"

type PageData struct {
	WarehouseCode string
	Action        string
	EntityType    string
	EntityID      string
	Date          string
	Rows          []models.AuditEvent
	ErrorMessage  string
}
