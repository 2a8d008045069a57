package transfers

type DispatchRequest struct {
	UnitID        int64 `json:"unitId" validate:"required,gt=0"`
	ToWarehouseID int64 `json:"toWarehouseId" validate:"required,gt=0"`
}

type ReceiveRequest struct {
	CellID int64 `json:"cellId" validate:"required,gt=0"`
}
