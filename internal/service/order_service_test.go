package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/repository"
	apperrors "pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

type fakeStore struct {
	name     string
	orders   []domain.Order
	placeErr error
	listErr  error
	placed   int
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Place(_ context.Context, userID string, in domain.OrderInput) (*domain.Order, error) {
	f.placed++
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	o := domain.NewOrder(fmt.Sprintf("ord_%019d", f.placed), userID, in, time.Now())
	f.orders = append(f.orders, o)
	return &o, nil
}

func (f *fakeStore) List(context.Context, string) ([]domain.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Order(nil), f.orders...), nil
}

func orderInput(pizza string, size domain.Size, total string) domain.OrderInput {
	in := domain.OrderInput{Pizza: pizza, Size: size}
	if total != "" {
		d := decimal.RequireFromString(total)
		in.Total = &d
	}
	return in
}

func TestOrderService_PlaceOrder(t *testing.T) {
	store := &fakeStore{name: "table"}
	svc := NewOrderService(store, logger.NewNop())

	order, err := svc.PlaceOrder(context.Background(), "auth0|u1", orderInput("margherita", domain.SizeMedium, "16.99"))
	require.NoError(t, err)
	assert.Equal(t, "Margherita", order.Pizza)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "auth0|u1", order.UserID)
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		in     domain.OrderInput
		fields []string
	}{
		{"everything missing", domain.OrderInput{}, []string{"pizza", "size", "total"}},
		{"off menu", orderInput("Sushi", domain.SizeSmall, "10"), []string{"pizza"}},
		{"bad size", orderInput("Margherita", "huge", "10"), []string{"size"}},
		{"zero total", orderInput("Margherita", domain.SizeSmall, "0"), []string{"total"}},
		{"negative total", orderInput("Margherita", domain.SizeSmall, "-4.5"), []string{"total"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{name: "table"}
			svc := NewOrderService(store, logger.NewNop())

			_, err := svc.PlaceOrder(context.Background(), "auth0|u1", tt.in)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
			assert.Equal(t, apperrors.CodeInvalidOrder, appErr.Code)
			for _, f := range tt.fields {
				assert.Contains(t, appErr.Details, f)
			}
			assert.Len(t, appErr.Details, len(tt.fields))
			assert.Zero(t, store.placed, "invalid input never reaches the store")
		})
	}
}

func TestOrderService_PlaceOrder_StorageFailureIsGeneric(t *testing.T) {
	cause := fmt.Errorf("%w: insert order: %w", repository.ErrStorage, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	svc := NewOrderService(&fakeStore{name: "table", placeErr: cause}, logger.NewNop())

	_, err := svc.PlaceOrder(context.Background(), "auth0|u1", orderInput("Margherita", domain.SizeSmall, "10"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, apperrors.CodeStorageFailed, appErr.Code)
	assert.NotContains(t, appErr.Message, "10.0.0.5")
	assert.ErrorIs(t, err, repository.ErrStorage)
}

func TestOrderService_PlaceOrder_StoreRejectsInput(t *testing.T) {
	svc := NewOrderService(&fakeStore{name: "table", placeErr: fmt.Errorf("%w: missing user id", repository.ErrInvalidOrder)}, logger.NewNop())

	_, err := svc.PlaceOrder(context.Background(), "", orderInput("Margherita", domain.SizeSmall, "10"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestOrderService_ListOrders(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base.Add(48 * time.Hour)
	store := &fakeStore{name: "profile", orders: []domain.Order{
		{ID: "ord_1", Pizza: "Hawaiian", Size: domain.SizeSmall, Total: decimal.RequireFromString("10"), Date: base},
		{ID: "ord_2", Pizza: "Pepperoni", Size: domain.SizeLarge, Total: decimal.RequireFromString("20"), Date: base.Add(24 * time.Hour)},
		{ID: "ord_3", Pizza: "Pepperoni", Size: domain.SizeLarge, Total: decimal.RequireFromString("30"), Date: base.Add(24 * time.Hour)},
	}}
	svc := NewOrderService(store, logger.NewNop()).WithClock(func() time.Time { return now })

	history, err := svc.ListOrders(context.Background(), "auth0|u1")
	require.NoError(t, err)

	ids := make([]string, 0, len(history.Orders))
	for _, o := range history.Orders {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"ord_3", "ord_2", "ord_1"}, ids)

	p := history.Profile
	assert.Equal(t, 3, p.TotalOrders)
	assert.Equal(t, "60", p.TotalSpent.String())
	assert.Equal(t, "profile", p.DataSource)
	assert.Equal(t, now, p.GeneratedAt)
	assert.False(t, p.IsNewCustomer)
	fav, err := p.FavoritePizza.Get()
	require.NoError(t, err)
	assert.Equal(t, "Pepperoni", fav)
	first, err := p.FirstOrderDate.Get()
	require.NoError(t, err)
	assert.True(t, base.Equal(first))
}

func TestOrderService_ListOrders_Empty(t *testing.T) {
	svc := NewOrderService(&fakeStore{name: "table"}, logger.NewNop())

	history, err := svc.ListOrders(context.Background(), "auth0|new")
	require.NoError(t, err)
	assert.NotNil(t, history.Orders)
	assert.Empty(t, history.Orders)
	assert.True(t, history.Profile.IsNewCustomer)
	assert.Equal(t, "table", history.Profile.DataSource)
}

func TestOrderService_ListOrders_StorageFailure(t *testing.T) {
	svc := NewOrderService(&fakeStore{name: "table", listErr: repository.ErrStorage}, logger.NewNop())

	_, err := svc.ListOrders(context.Background(), "auth0|u1")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeStorage, appErr.Type)
}
