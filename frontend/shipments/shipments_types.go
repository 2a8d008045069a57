package shipments

type ShipOutRequest struct {
	CourierName string `json:"courierName" validate:"required,max=128"`
}

type ReturnRequest struct {
	CellID int64  `json:"cellId" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}
