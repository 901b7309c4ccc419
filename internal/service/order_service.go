package service

import (
	"context"
	"errors"
	"time"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/profile"
	"pizza42-api/internal/repository"
	apperrors "pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

// OrderService places and lists orders on whichever store was configured
type OrderService struct {
	store  repository.OrderStore
	now    func() time.Time
	logger *logger.Logger
}

func NewOrderService(store repository.OrderStore, log *logger.Logger) *OrderService {
	return &OrderService{store: store, now: time.Now, logger: log}
}

// WithClock pins the time used for generated profiles
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

func (s *OrderService) StoreName() string {
	return s.store.Name()
}

// PlaceOrder validates the input before it reaches the store. Store failures are
// logged with their cause and returned as a generic storage error.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	order, err := s.store.Place(ctx, userID, in)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidOrder) {
			return nil, validationError(err)
		}
		s.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"store":   s.store.Name(),
		}).WithError(err).Error("Failed to place order")
		return nil, apperrors.NewStorageError("Failed to store order", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"pizza":    order.Pizza,
		"size":     order.Size,
		"total":    order.Total.String(),
		"store":    s.store.Name(),
	}).Info("Order placed")

	return order, nil
}

// ListOrders returns the user's orders newest first regardless of how the
// store returns them
func (s *OrderService) ListOrders(ctx context.Context, userID string) (*OrderHistory, error) {
	orders, err := s.store.List(ctx, userID)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"store":   s.store.Name(),
		}).WithError(err).Error("Failed to list orders")
		return nil, apperrors.NewStorageError("Failed to load orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	domain.SortNewestFirst(orders)

	return &OrderHistory{
		Orders:  orders,
		Profile: profile.Build(orders, s.store.Name(), s.now()),
	}, nil
}

func validationError(err error) *apperrors.AppError {
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		return apperrors.NewValidationError("Invalid order", fe.Details())
	}
	return apperrors.NewValidationError("Invalid order", nil)
}
