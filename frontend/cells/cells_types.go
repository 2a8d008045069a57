package cells

import "wms/models"

type CreateCellRequest struct {
	Code     string         `json:"code" validate:"required,max=64"`
	CellType string         `json:"cellType" validate:"required"`
	X        int            `json:"x" validate:"min=0"`
	Y        int            `json:"y" validate:"min=0"`
	W        int            `json:"w" validate:"min=0"`
	H        int            `json:"h" validate:"min=0"`
	Meta     map[string]any `json:"meta"`
}

// UpdateCellRequest changes only the fields that are set. Meta is merged;
// a null value removes the key.
type UpdateCellRequest struct {
	CellType *string        `json:"cellType"`
	X        *int           `json:"x" validate:"omitempty,min=0"`
	Y        *int           `json:"y" validate:"omitempty,min=0"`
	W        *int           `json:"w" validate:"omitempty,min=1"`
	H        *int           `json:"h" validate:"omitempty,min=1"`
	Active   *bool          `json:"active"`
	Meta     map[string]any `json:"meta"`
}

type ListFilter struct {
	WarehouseID int64
	CellType    string
	Active      *bool
}

// CellRow is a cell with its current unit count.
type CellRow struct {
	models.Cell `bun:",extend"`
	UnitCount   int `bun:"unit_count" json:"unitCount"`
}

type ImportSummary struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Errors   int      `json:"errors"`
	Messages []string `json:"messages,omitempty"`
}

type MapPageData struct {
	WarehouseCode string
	Cells         []CellRow
	CellTypes     []string
	Status        string
	ErrorMessage  string
}
