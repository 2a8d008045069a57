package pickingtasks

import "wms/infrastructure/pickingtask"

type CreateTaskRequest struct {
	TargetCellID int64   `json:"targetCellId" validate:"required,gt=0"`
	UnitIDs      []int64 `json:"unitIds" validate:"required,min=1,dive,gt=0"`
	Scenario     string  `json:"scenario" validate:"max=500"`
}

// ScenarioRequest keeps Scenario as a pointer so a missing field is told
// apart from an explicit empty string, which clears the label.
type ScenarioRequest struct {
	Scenario *string `json:"scenario"`
}

type BoardPageData struct {
	WarehouseCode string
	StatusFilter  string
	Tasks         []pickingtask.Summary
	CanCancel     bool
	Status        string
	ErrorMessage  string
}
