package exports

import "time"

// MovesFilter bounds the move history export. A zero From or To is open.
type MovesFilter struct {
	WarehouseID int64
	From        time.Time
	To          time.Time
}
