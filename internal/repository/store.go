package repository

import (
	"fmt"
	"time"

	"pizza42-api/internal/domain"
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// newOrder validates in and builds the order every store persists,
// stamped with now
func newOrder(ids IDSource, now time.Time, userID string, in domain.OrderInput) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: missing user id", ErrInvalidOrder)
	}
	if err := in.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return domain.NewOrder(ids.Next(), userID, in, now), nil
}

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
