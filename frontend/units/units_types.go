package units

import (
	"time"

	"wms/models"
)

type CreateUnitRequest struct {
	Barcode string         `json:"barcode" validate:"required,max=128"`
	Meta    map[string]any `json:"meta"`
}

// UpdateUnitRequest patches metadata. A null value in Meta removes the key.
type UpdateUnitRequest struct {
	Meta      map[string]any `json:"meta"`
	OpsStatus *string        `json:"opsStatus" validate:"omitempty,max=64"`
}

type MoveUnitRequest struct {
	UnitID   int64  `json:"unitId" validate:"required,gt=0"`
	ToCellID *int64 `json:"toCellId" validate:"omitempty,gt=0"`
	ToStatus string `json:"toStatus" validate:"max=32"`
	Note     string `json:"note" validate:"max=500"`
}

type AssignUnitRequest struct {
	UnitID int64  `json:"unitId" validate:"required,gt=0"`
	CellID int64  `json:"cellId" validate:"required,gt=0"`
	Note   string `json:"note" validate:"max=500"`
}

type MoveResponse struct {
	OK         bool   `json:"ok"`
	UnitID     int64  `json:"unitId"`
	FromCellID *int64 `json:"fromCellId"`
	ToCellID   *int64 `json:"toCellId"`
	ToStatus   string `json:"toStatus"`
	Noop       bool   `json:"noop,omitempty"`
}

type ListFilter struct {
	WarehouseID int64
	Barcode     string
	CellID      int64
	Status      string
	Limit       int
}

// UnitRow is a unit joined with its current cell.
type UnitRow struct {
	models.Unit `bun:",extend"`
	CellCode    *string `bun:"cell_code" json:"cellCode"`
	CellType    *string `bun:"cell_type" json:"cellType"`
}

type MoveRow struct {
	models.UnitMove `bun:",extend"`
	FromCellCode    *string `bun:"from_cell_code" json:"fromCellCode"`
	ToCellCode      *string `bun:"to_cell_code" json:"toCellCode"`
}

type PurgeResult struct {
	OK           bool      `json:"ok"`
	UnitID       int64     `json:"unitId"`
	Barcode      string    `json:"barcode"`
	TasksDeleted int       `json:"tasksDeleted"`
	PurgedAt     time.Time `json:"purgedAt"`
}
