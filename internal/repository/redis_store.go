package repository

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
	"pizza42-api/pkg/redis"
)

// RedisTableStore partitions orders by user. The partition is a sorted set of
// order ids scored by creation time plus a hash of the order documents.
type RedisTableStore struct {
	client *redis.Client
	ids    IDSource
	now    Clock
	logger *logger.Logger
}

func NewRedisTableStore(client *redis.Client, ids IDSource, now Clock, log *logger.Logger) *RedisTableStore {
	return &RedisTableStore{client: client, ids: ids, now: clockOrNow(now), logger: log}
}

func (s *RedisTableStore) Name() string {
	return domain.ProfileSourceTableStore
}

// Place writes the index entry and the document in one MULTI/EXEC
func (s *RedisTableStore) Place(ctx context.Context, userID string, in domain.OrderInput) (*domain.Order, error) {
	now := s.now()
	order, err := newOrder(s.ids, now, userID, in)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(order)
	if err != nil {
		return nil, storageErr("encode order", err)
	}

	indexKey := s.client.KeyBuilder.KeyUserOrders(userID)
	dataKey := s.client.KeyBuilder.KeyUserOrderData(userID)

	pipe := s.client.TxPipeline()
	added := pipe.ZAddNX(ctx, indexKey, goredis.Z{
		Score:  float64(now.UnixMilli()),
		Member: order.ID,
	})
	pipe.HSetNX(ctx, dataKey, order.ID, doc)

	if err := s.client.ExecPipeline(ctx, "redis_place_order", indexKey, pipe); err != nil {
		return nil, storageErr("write order", err)
	}
	if added.Val() == 0 {
		return nil, storageErr("write order", fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID))
	}

	return &order, nil
}

// List returns the user's orders, most recently created first
func (s *RedisTableStore) List(ctx context.Context, userID string) ([]domain.Order, error) {
	indexKey := s.client.KeyBuilder.KeyUserOrders(userID)
	dataKey := s.client.KeyBuilder.KeyUserOrderData(userID)

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1)
	if err != nil {
		return nil, storageErr("read order index", err)
	}
	if len(ids) == 0 {
		return []domain.Order{}, nil
	}

	docs, err := s.client.HMGet(ctx, dataKey, ids...)
	if err != nil {
		return nil, storageErr("read orders", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for i, raw := range docs {
		str, ok := raw.(string)
		if !ok {
			s.logger.WithFields(map[string]interface{}{
				"user_id":  userID,
				"order_id": ids[i],
			}).Warn("Order indexed without a document, skipping")
			continue
		}
		var o domain.Order
		if err := json.Unmarshal([]byte(str), &o); err != nil {
			return nil, storageErr("decode order", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}
