package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
	"pizza42-api/pkg/redis"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestIDs(t *testing.T) *IDGenerator {
	t.Helper()
	ids, err := NewIDGenerator(1)
	require.NoError(t, err)
	return ids
}

// steppingClock advances by one second on every call
func steppingClock(start time.Time) Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func input(pizza string, size domain.Size, total string) domain.OrderInput {
	d := decimal.RequireFromString(total)
	return domain.OrderInput{Pizza: pizza, Size: size, Total: &d}
}

var testLogger = logger.NewNop()
