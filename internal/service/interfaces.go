package service

import (
	"context"

	"pizza42-api/internal/domain"
)

// OrderHistory is a user's orders, newest first, with the profile derived from them
type OrderHistory struct {
	Orders  []domain.Order         `json:"orders"`
	Profile domain.CustomerProfile `json:"profile"`
}

// Orders defines the order operations exposed over HTTP
type Orders interface {
	// PlaceOrder validates and stores a new order for the user
	PlaceOrder(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error)

	// ListOrders returns the user's orders and their profile
	ListOrders(ctx context.Context, userID string) (*OrderHistory, error)

	// StoreName identifies the configured order store
	StoreName() string
}
