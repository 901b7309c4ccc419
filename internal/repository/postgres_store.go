package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/database"
	"pizza42-api/pkg/logger"
)

// PostgresTableStore keeps one row per order, keyed by (user_id, order_id)
type PostgresTableStore struct {
	db     *database.PostgresDB
	ids    IDSource
	now    Clock
	logger *logger.Logger
}

func NewPostgresTableStore(db *database.PostgresDB, ids IDSource, now Clock, log *logger.Logger) *PostgresTableStore {
	return &PostgresTableStore{db: db, ids: ids, now: clockOrNow(now), logger: log}
}

func (s *PostgresTableStore) Name() string {
	return domain.ProfileSourceTableStore
}

// Place inserts the order. A conflicting primary key is reported as a duplicate.
func (s *PostgresTableStore) Place(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error) {
	order, err := newOrder(s.ids, s.now(), userID, in)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO orders (user_id, order_id, pizza, size, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		ON CONFLICT (user_id, order_id) DO NOTHING
	`

	tag, err := s.db.Pool.Exec(ctx, query,
		order.UserID,
		order.ID,
		order.Pizza,
		string(order.Size),
		order.Total.StringFixed(2),
		order.Status,
		order.Date,
	)
	if err != nil {
		return nil, storageErr("insert order", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storageErr("insert order", fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID))
	}

	return &order, nil
}

// List returns the user's orders newest id first
func (s *PostgresTableStore) List(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `
		SELECT user_id, order_id, pizza, size, total::text, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY order_id DESC
	`

	rows, err := s.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storageErr("query orders", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, storageErr("scan orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var (
		o     domain.Order
		size  string
		total string
	)
	if err := row.Scan(&o.UserID, &o.ID, &o.Pizza, &size, &total, &o.Status, &o.Date); err != nil {
		return domain.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("bad total %q for %s: %w", total, o.ID, err)
	}
	o.Size = domain.Size(size)
	o.Total = d
	o.Date = o.Date.UTC()
	return o, nil
}
