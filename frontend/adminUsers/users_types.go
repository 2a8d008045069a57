package adminusers

type UserView struct {
	ID            int64  `bun:"id"`
	Username      string `bun:"username"`
	DisplayName   string `bun:"display_name"`
	Role          string `bun:"role"`
	WarehouseID   *int64 `bun:"warehouse_id"`
	WarehouseCode string `bun:"warehouse_code"`
}

type WarehouseOption struct {
	ID    int64  `bun:"id"`
	Label string `bun:"label"`
}

type CreateUserInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
	WarehouseID int64
}

type PageData struct {
	Users        []UserView
	Warehouses   []WarehouseOption
	Roles        []string
	Status       string
	ErrorMessage string
}
