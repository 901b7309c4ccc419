package domain

import (
	"time"

	"github.com/oapi-codegen/nullable"
	"github.com/shopspring/decimal"
)

// Data sources reported on a CustomerProfile
const (
	ProfileSourceProfileStore = "profile"
	ProfileSourceTableStore   = "table"
	ProfileSourceLoginHook    = "post_login_hook"
)

// CustomerProfile is a view derived from a customer's orders. It is recomputed on
// every read and never stored.
type CustomerProfile struct {
	TotalOrders       int                          `json:"total_orders"`
	TotalSpent        decimal.Decimal              `json:"total_spent"`
	AverageOrderValue decimal.Decimal              `json:"average_order_value"`
	FavoritePizza     nullable.Nullable[string]    `json:"favorite_pizza"`
	FavoriteSize      nullable.Nullable[Size]      `json:"favorite_size"`
	FirstOrderDate    nullable.Nullable[time.Time] `json:"first_order_date"`
	LastOrderDate     nullable.Nullable[time.Time] `json:"last_order_date"`
	OrderFrequency    float64                      `json:"order_frequency"`
	IsNewCustomer     bool                         `json:"is_new_customer"`
	GeneratedAt       time.Time                    `json:"generated_at"`
	DataSource        string                       `json:"data_source"`
}
