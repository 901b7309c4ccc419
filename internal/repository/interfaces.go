package repository

import (
	"context"
	"errors"
	"time"

	"pizza42-api/internal/domain"
)

var (
	// ErrStorage wraps every failure of the underlying store
	ErrStorage = errors.New("order storage failed")
	// ErrInvalidOrder is returned when the input does not describe a valid order
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDuplicateOrder is returned when an order id already exists for the user
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// OrderStore persists and lists a user's orders. Implementations are chosen
// once at startup.
type OrderStore interface {
	// Place stores a new confirmed order built from in and returns it
	Place(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error)

	// List returns every order of the user. Order is implementation defined.
	List(ctx context.Context, userID string) ([]domain.Order, error)

	// Name identifies the store in profiles and health output
	Name() string
}

// Locker serializes work on a key across callers
type Locker interface {
	// Lock blocks until the key is held or ctx ends
	Lock(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock. A lease with a deadline can lapse while its holder
// is still working, so writes that depend on it must Confirm first.
type Lease interface {
	// Deadline is when the lease lapses unless confirmed. Zero means never.
	Deadline() time.Time
	// Confirm returns ErrLockLost unless the lease is still held, and pushes
	// the deadline out when it is.
	Confirm(ctx context.Context) error
	// Release gives the lock up. Calling it again is a no-op.
	Release()
}

// IDSource hands out order ids
type IDSource interface {
	Next() string
}

// ManagementAPI reads and writes the order list kept in a user's app metadata
type ManagementAPI interface {
	GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	SetUserOrders(ctx context.Context, userID string, orders []domain.Order) error
}

// Clock returns the current time. Stores take one so tests can pin it.
type Clock func() time.Time
