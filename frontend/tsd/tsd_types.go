package tsd

type TaskRequest struct {
	TaskID int64 `json:"taskId" validate:"required,gt=0"`
}

type ScanRequest struct {
	TaskID       int64  `json:"taskId" validate:"required,gt=0"`
	UnitBarcode  string `json:"unitBarcode" validate:"required,max=128"`
	FromCellCode string `json:"fromCellCode" validate:"required,max=64"`
}
