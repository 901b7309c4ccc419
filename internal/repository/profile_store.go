package repository

import (
	"context"
	"fmt"
	"time"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
)

// ProfileStore keeps a user's orders in their identity platform app metadata.
// Every write is a read-modify-write of the whole list, serialized per user.
// Ids are checked against the stored list since replicas sharing a node id
// can mint the same one.
type ProfileStore struct {
	api    ManagementAPI
	locker Locker
	ids    IDSource
	now    Clock
	logger *logger.Logger
}

// NewProfileStore creates a profile store. now may be nil.
func NewProfileStore(api ManagementAPI, locker Locker, ids IDSource, now Clock, log *logger.Logger) *ProfileStore {
	return &ProfileStore{
		api:    api,
		locker: locker,
		ids:    ids,
		now:    clockOrNow(now),
		logger: log,
	}
}

func (s *ProfileStore) Name() string {
	return domain.ProfileSourceProfileStore
}

// leaseMargin is the slack kept between a management API deadline and the
// lock lease it runs under
const leaseMargin = time.Second

// Place appends a new order to the user's metadata. The read and the write
// both have to finish while the per-user lease is held, and the lease is
// confirmed right before the write.
func (s *ProfileStore) Place(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error) {
	order, err := newOrder(s.ids, s.now(), userID, in)
	if err != nil {
		return nil, err
	}

	lease, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, storageErr("lock profile", err)
	}
	defer lease.Release()

	readCtx, cancelRead := withinLease(ctx, lease)
	defer cancelRead()

	existing, err := s.api.GetUserOrders(readCtx, userID)
	if err != nil {
		return nil, storageErr("read profile orders", err)
	}
	for _, o := range existing {
		if o.ID == order.ID {
			return nil, storageErr("write profile orders", fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID))
		}
	}

	updated := make([]domain.Order, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, order)

	if err := lease.Confirm(readCtx); err != nil {
		return nil, storageErr("confirm profile lock", err)
	}

	writeCtx, cancelWrite := withinLease(ctx, lease)
	defer cancelWrite()

	if err := s.api.SetUserOrders(writeCtx, userID, updated); err != nil {
		return nil, storageErr("write profile orders", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"orders":   len(updated),
	}).Debug("Order appended to profile")

	return &order, nil
}

// withinLease bounds ctx so a call gives up before the lease can lapse
func withinLease(ctx context.Context, lease Lease) (context.Context, context.CancelFunc) {
	deadline := lease.Deadline()
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-leaseMargin))
}

// List returns the orders in stored order, oldest first
func (s *ProfileStore) List(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.api.GetUserOrders(ctx, userID)
	if err != nil {
		return nil, storageErr("read profile orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
