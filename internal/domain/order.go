package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Totals go over the wire as JSON numbers, matching what browser clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// Size is the pizza size of an order
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Valid reports whether s is one of the known sizes
func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// OrderStatusConfirmed is the status of every newly placed order
const OrderStatusConfirmed = "confirmed"

// Menu lists the pizzas that can be ordered
var Menu = []string{
	"Margherita",
	"Pepperoni",
	"Hawaiian",
	"Veggie Supreme",
	"Meat Lovers",
	"BBQ Chicken",
	"Four Cheese",
}

// CanonicalPizza matches name against the menu ignoring case and surrounding space
func CanonicalPizza(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, p := range Menu {
		if strings.EqualFold(p, name) {
			return p, true
		}
	}
	return "", false
}

// Order represents a placed pizza order. Orders are never modified after creation.
type Order struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Pizza  string          `json:"pizza"`
	Size   Size            `json:"size"`
	Total  decimal.Decimal `json:"total"`
	Date   time.Time       `json:"date"`
	Status string          `json:"status"`
}

// OrderInput is the body of an order placement request
type OrderInput struct {
	Pizza string           `json:"pizza"`
	Size  Size             `json:"size"`
	Total *decimal.Decimal `json:"total"`
	Date  *time.Time       `json:"date,omitempty"`
}

// FieldErrors maps a request field to what is wrong with it
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

// Details converts the field errors into a JSON friendly map
func (fe FieldErrors) Details() map[string]interface{} {
	out := make(map[string]interface{}, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// Validate checks required fields, the menu, the size and that total is positive.
// It returns FieldErrors or nil.
func (in OrderInput) Validate() error {
	errs := FieldErrors{}

	if strings.TrimSpace(in.Pizza) == "" {
		errs["pizza"] = "is required"
	} else if _, ok := CanonicalPizza(in.Pizza); !ok {
		errs["pizza"] = "is not on the menu"
	}

	if in.Size == "" {
		errs["size"] = "is required"
	} else if !in.Size.Valid() {
		errs["size"] = "must be one of small, medium, large"
	}

	if in.Total == nil {
		errs["total"] = "is required"
	} else if !in.Total.IsPositive() {
		errs["total"] = "must be greater than 0"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// NewOrder builds a confirmed order from a validated input
func NewOrder(id, userID string, in OrderInput, now time.Time) Order {
	pizza, ok := CanonicalPizza(in.Pizza)
	if !ok {
		pizza = strings.TrimSpace(in.Pizza)
	}

	date := now.UTC()
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}

	var total decimal.Decimal
	if in.Total != nil {
		total = in.Total.Round(2)
	}

	return Order{
		ID:     id,
		UserID: userID,
		Pizza:  pizza,
		Size:   in.Size,
		Total:  total,
		Date:   date,
		Status: OrderStatusConfirmed,
	}
}

// SortNewestFirst orders by date descending, breaking ties by id descending
func SortNewestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].Date.Equal(orders[j].Date) {
			return orders[i].Date.After(orders[j].Date)
		}
		return orders[i].ID > orders[j].ID
	})
}
