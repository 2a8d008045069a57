package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Warehouse is a tenant boundary; every operational row is scoped to one.
type Warehouse struct {
	bun.BaseModel `bun:"table:warehouses,alias:w"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Code      string    `bun:"code,unique,notnull" json:"code"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// User represents an authenticated app user.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	DisplayName  string    `bun:"display_name,notnull,default:''" json:"displayName"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         string    `bun:"role,notnull" json:"role"`
	WarehouseID  *int64    `bun:"warehouse_id" json:"warehouseId"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Session is used by middleware and auth handlers.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string         `bun:"id,pk"`
	UserID            int64          `bun:"user_id,notnull"`
	User              User           `bun:"rel:belongs-to,join:user_id=id"`
	UserRoles         []string       `bun:"-"`
	ScreenPermissions map[string]int `bun:"-"`
	ExpiresAt         time.Time      `bun:"expires_at,notnull"`
	CreatedAt         time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// Expired returns true when the session expiry time has passed.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Actor is the authenticated caller of a request, whichever way it authenticated.
type Actor struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        string
	WarehouseID int64
}

// Name returns the human readable name used in audit summaries.
func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Cell is an addressable storage location within a warehouse.
type Cell struct {
	bun.BaseModel `bun:"table:cells,alias:c"`

	ID          int64          `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID int64          `bun:"warehouse_id,notnull" json:"warehouseId"`
	Code        string         `bun:"code,notnull" json:"code"`
	CellType    string         `bun:"cell_type,notnull" json:"cellType"`
	Active      bool           `bun:"active,notnull,default:true" json:"active"`
	X           int            `bun:"x,notnull,default:0" json:"x"`
	Y           int            `bun:"y,notnull,default:0" json:"y"`
	W           int            `bun:"w,notnull,default:1" json:"w"`
	H           int            `bun:"h,notnull,default:1" json:"h"`
	Meta        map[string]any `bun:"meta,type:json" json:"meta"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Blocked reports the meta.blocked flag.
func (c Cell) Blocked() bool {
	if c.Meta == nil {
		return false
	}
	b, _ := c.Meta["blocked"].(bool)
	return b
}

// Unit is a physical parcel tracked by barcode.
type Unit struct {
	bun.BaseModel `bun:"table:units,alias:un"`

	ID          int64          `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID int64          `bun:"warehouse_id,notnull" json:"warehouseId"`
	Barcode     string         `bun:"barcode,notnull" json:"barcode"`
	CellID      *int64         `bun:"cell_id" json:"cellId"`
	Status      string         `bun:"status,notnull" json:"status"`
	Meta        map[string]any `bun:"meta,type:json" json:"meta"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// OpsStatus returns the external operations status kept in metadata.
func (u Unit) OpsStatus() string {
	if u.Meta == nil {
		return ""
	}
	s, _ := u.Meta["ops_status"].(string)
	return s
}

// UnitMove is an immutable move-history row.
type UnitMove struct {
	bun.BaseModel `bun:"table:unit_moves,alias:um"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UnitID     int64     `bun:"unit_id,notnull" json:"unitId"`
	FromCellID *int64    `bun:"from_cell_id" json:"fromCellId"`
	ToCellID   *int64    `bun:"to_cell_id" json:"toCellId"`
	FromStatus string    `bun:"from_status,notnull" json:"fromStatus"`
	ToStatus   string    `bun:"to_status,notnull" json:"toStatus"`
	ActorID    int64     `bun:"actor_id,notnull" json:"actorId"`
	Note       string    `bun:"note,notnull,default:''" json:"note"`
	Source     string    `bun:"source,notnull" json:"source"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// PickingTask consolidates units into one target picking cell.
type PickingTask struct {
	bun.BaseModel `bun:"table:picking_tasks,alias:pt"`

	ID                  int64      `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID         int64      `bun:"warehouse_id,notnull" json:"warehouseId"`
	Status              string     `bun:"status,notnull" json:"status"`
	TargetPickingCellID *int64     `bun:"target_picking_cell_id" json:"targetPickingCellId"`
	Scenario            string     `bun:"scenario,notnull,default:''" json:"scenario"`
	UnitID              *int64     `bun:"unit_id" json:"unitId,omitempty"`
	FromCellID          *int64     `bun:"from_cell_id" json:"fromCellId,omitempty"`
	CreatedBy           int64      `bun:"created_by,notnull" json:"createdBy"`
	PickedBy            *int64     `bun:"picked_by" json:"pickedBy"`
	PickedAt            *time.Time `bun:"picked_at" json:"pickedAt"`
	CompletedBy         *int64     `bun:"completed_by" json:"completedBy"`
	CompletedAt         *time.Time `bun:"completed_at" json:"completedAt"`
	CanceledBy          *int64     `bun:"canceled_by" json:"canceledBy"`
	CanceledAt          *time.Time `bun:"canceled_at" json:"canceledAt"`
	CreatedAt           time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt           time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// PickingTaskUnit records a reserved unit and the cell it was reserved from.
type PickingTaskUnit struct {
	bun.BaseModel `bun:"table:picking_task_units,alias:ptu"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	TaskID     int64     `bun:"task_id,notnull" json:"taskId"`
	UnitID     int64     `bun:"unit_id,notnull" json:"unitId"`
	FromCellID *int64    `bun:"from_cell_id" json:"fromCellId"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// TaskRollback is one compensation step of a cancel saga.
type TaskRollback struct {
	bun.BaseModel `bun:"table:task_rollbacks,alias:tr"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	SagaID       string    `bun:"saga_id,notnull" json:"sagaId"`
	TaskID       int64     `bun:"task_id,notnull" json:"taskId"`
	UnitID       int64     `bun:"unit_id,notnull" json:"unitId"`
	OriginCellID *int64    `bun:"origin_cell_id" json:"originCellId"`
	Status       string    `bun:"status,notnull" json:"status"`
	Attempts     int       `bun:"attempts,notnull,default:0" json:"attempts"`
	LastError    string    `bun:"last_error,notnull,default:''" json:"lastError"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// OutboundShipment is a unit dispatched with a courier.
type OutboundShipment struct {
	bun.BaseModel `bun:"table:outbound_shipments,alias:os"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID  int64      `bun:"warehouse_id,notnull" json:"warehouseId"`
	UnitID       int64      `bun:"unit_id,notnull" json:"unitId"`
	CourierName  string     `bun:"courier_name,notnull" json:"courierName"`
	Status       string     `bun:"status,notnull" json:"status"`
	OutAt        time.Time  `bun:"out_at,notnull" json:"outAt"`
	OutBy        int64      `bun:"out_by,notnull" json:"outBy"`
	ReturnedAt   *time.Time `bun:"returned_at" json:"returnedAt"`
	ReturnedBy   *int64     `bun:"returned_by" json:"returnedBy"`
	ReturnReason string     `bun:"return_reason,notnull,default:''" json:"returnReason"`
	ReturnCellID *int64     `bun:"return_cell_id" json:"returnCellId"`
}

// Transfer is a unit in transit between two warehouses.
type Transfer struct {
	bun.BaseModel `bun:"table:transfers,alias:t"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	UnitID          int64      `bun:"unit_id,notnull" json:"unitId"`
	FromWarehouseID int64      `bun:"from_warehouse_id,notnull" json:"fromWarehouseId"`
	ToWarehouseID   int64      `bun:"to_warehouse_id,notnull" json:"toWarehouseId"`
	Status          string     `bun:"status,notnull" json:"status"`
	CreatedBy       int64      `bun:"created_by,notnull" json:"createdBy"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	ReceivedBy      *int64     `bun:"received_by" json:"receivedBy"`
	ReceivedAt      *time.Time `bun:"received_at" json:"receivedAt"`
	ReceivedCellID  *int64     `bun:"received_cell_id" json:"receivedCellId"`
}

// InventorySession suspends placements in a warehouse while stock is counted.
type InventorySession struct {
	bun.BaseModel `bun:"table:inventory_sessions,alias:inv"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID int64      `bun:"warehouse_id,notnull" json:"warehouseId"`
	Status      string     `bun:"status,notnull" json:"status"`
	StartedBy   int64      `bun:"started_by,notnull" json:"startedBy"`
	StartedAt   time.Time  `bun:"started_at,notnull" json:"startedAt"`
	StoppedBy   *int64     `bun:"stopped_by" json:"stoppedBy"`
	StoppedAt   *time.Time `bun:"stopped_at" json:"stoppedAt"`
}

// InventoryCellCount is the latest count of one cell in a session.
type InventoryCellCount struct {
	bun.BaseModel `bun:"table:inventory_cell_counts,alias:icc"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	SessionID     int64     `bun:"session_id,notnull" json:"sessionId"`
	CellID        int64     `bun:"cell_id,notnull" json:"cellId"`
	ExpectedCount int       `bun:"expected_count,notnull" json:"expectedCount"`
	ScannedCount  int       `bun:"scanned_count,notnull" json:"scannedCount"`
	Missing       []string  `bun:"missing,type:json" json:"missing"`
	Extra         []string  `bun:"extra,type:json" json:"extra"`
	CountedBy     int64     `bun:"counted_by,notnull" json:"countedBy"`
	CountedAt     time.Time `bun:"counted_at,notnull" json:"countedAt"`
}

// AuditEvent captures an append-only, human readable action record.
type AuditEvent struct {
	bun.BaseModel `bun:"table:audit_events,alias:ae"`

	ID          int64          `bun:"id,pk,autoincrement" json:"id"`
	WarehouseID *int64         `bun:"warehouse_id" json:"warehouseId"`
	Action      string         `bun:"action,notnull" json:"action"`
	EntityType  string         `bun:"entity_type,notnull" json:"entityType"`
	EntityID    string         `bun:"entity_id,notnull" json:"entityId"`
	Summary     string         `bun:"summary,notnull" json:"summary"`
	ActorID     int64          `bun:"actor_id,notnull" json:"actorId"`
	ActorRole   string         `bun:"actor_role,notnull" json:"actorRole"`
	ActorName   string         `bun:"actor_name,notnull" json:"actorName"`
	Meta        map[string]any `bun:"meta,type:json" json:"meta"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// OutboxEvent is a domain event persisted with the write that produced it.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events,alias:ob"`

	ID          string     `bun:"id,pk" json:"id"`
	EventType   string     `bun:"event_type,notnull" json:"eventType"`
	WarehouseID int64      `bun:"warehouse_id,notnull" json:"warehouseId"`
	Payload     string     `bun:"payload,notnull" json:"payload"`
	Status      string     `bun:"status,notnull" json:"status"`
	Attempts    int        `bun:"attempts,notnull,default:0" json:"attempts"`
	LastError   string     `bun:"last_error,notnull,default:''" json:"lastError"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	ProcessedAt *time.Time `bun:"processed_at" json:"processedAt"`
}
