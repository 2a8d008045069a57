package inventory

type CountRequest struct {
	CellCode string   `json:"cellCode" validate:"required,max=64"`
	Barcodes []string `json:"barcodes" validate:"dive,max=128"`
}
