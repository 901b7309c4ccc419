// Package profile derives customer statistics from order history. The same
// functions back the request path and the claims minted for the post-login hook.
package profile

import (
	"math"
	"sort"
	"time"

	"github.com/oapi-codegen/nullable"
	"github.com/shopspring/decimal"

	"pizza42-api/internal/domain"
)

// MostFrequent returns the value with the highest count. On a tie the value that
// reached the winning count first is kept. ok is false for an empty input.
func MostFrequent[T comparable](values []T) (best T, ok bool) {
	counts := make(map[T]int, len(values))
	top := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > top {
			top = counts[v]
			best = v
		}
	}
	return best, top > 0
}

// Build folds orders into a CustomerProfile. The result does not depend on the
// order of the input slice: first/last dates are a min/max and favorites are
// counted in chronological order.
func Build(orders []domain.Order, source string, now time.Time) domain.CustomerProfile {
	p := domain.CustomerProfile{
		TotalSpent:        decimal.Zero,
		AverageOrderValue: decimal.Zero,
		FavoritePizza:     nullable.NewNullNullable[string](),
		FavoriteSize:      nullable.NewNullNullable[domain.Size](),
		FirstOrderDate:    nullable.NewNullNullable[time.Time](),
		LastOrderDate:     nullable.NewNullNullable[time.Time](),
		GeneratedAt:       now.UTC(),
		DataSource:        source,
	}
	if len(orders) == 0 {
		p.IsNewCustomer = true
		return p
	}

	chrono := make([]domain.Order, len(orders))
	copy(chrono, orders)
	sort.SliceStable(chrono, func(i, j int) bool {
		if !chrono[i].Date.Equal(chrono[j].Date) {
			return chrono[i].Date.Before(chrono[j].Date)
		}
		return chrono[i].ID < chrono[j].ID
	})

	sum := decimal.Zero
	pizzas := make([]string, 0, len(chrono))
	sizes := make([]domain.Size, 0, len(chrono))
	first, last := chrono[0].Date, chrono[0].Date
	for _, o := range chrono {
		sum = sum.Add(o.Total)
		pizzas = append(pizzas, o.Pizza)
		sizes = append(sizes, o.Size)
		if o.Date.Before(first) {
			first = o.Date
		}
		if o.Date.After(last) {
			last = o.Date
		}
	}

	n := len(chrono)
	p.TotalOrders = n
	p.TotalSpent = sum.Round(2)
	p.AverageOrderValue = sum.Div(decimal.NewFromInt(int64(n))).Round(2)
	if fav, ok := MostFrequent(pizzas); ok {
		p.FavoritePizza = nullable.NewNullableWithValue(fav)
	}
	if fav, ok := MostFrequent(sizes); ok {
		p.FavoriteSize = nullable.NewNullableWithValue(fav)
	}
	p.FirstOrderDate = nullable.NewNullableWithValue(first.UTC())
	p.LastOrderDate = nullable.NewNullableWithValue(last.UTC())
	p.OrderFrequency = orderFrequency(n, first, last)

	return p
}

// orderFrequency is orders per day over the span between first and last order,
// with a span shorter than a day counted as one day.
func orderFrequency(n int, first, last time.Time) float64 {
	days := last.Sub(first).Hours() / 24
	if days < 1 {
		days = 1
	}
	return math.Round(float64(n)/days*100) / 100
}
