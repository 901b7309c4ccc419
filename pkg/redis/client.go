package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// Key patterns
const (
	KeyUserOrders     = "orders:user:%s"      // sorted set of order ids, scored by creation millis
	KeyUserOrderData  = "orders:user:%s:data" // hash of order id -> order JSON
	KeyUserProfileRMW = "lock:profile:%s"     // guards the profile store read-modify-write
)

// NewClient creates a new Redis client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// observe logs one command: failures at info, successes at debug
func (c *Client) observe(op, key string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", time.Since(start)))
	if err != nil && err != redis.Nil {
		c.log.Info(op, append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug(op, fields...)
}

// SetNX sets a value only if it doesn't exist. Used for lock acquisition.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	c.observe("redis_setnx", key, start, err, zap.Bool("result", ok))
	return ok, err
}

// Eval runs a Lua script atomically
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	res, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	first := ""
	if len(keys) > 0 {
		first = keys[0]
	}
	c.observe("redis_eval", first, start, err)
	return res, err
}

// ZRevRange returns sorted set members from the highest score down
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	begin := time.Now()
	members, err := c.rdb.ZRevRange(ctx, key, start, stop).Result()
	c.observe("redis_zrevrange", key, begin, err, zap.Int("members", len(members)))
	return members, err
}

// HMGet reads several hash fields. Missing fields come back as nil.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) ([]interface{}, error) {
	start := time.Now()
	vals, err := c.rdb.HMGet(ctx, key, fields...).Result()
	c.observe("redis_hmget", key, start, err, zap.Int("fields", len(fields)))
	return vals, err
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	c.observe("redis_ping", "", start, err)
	return err
}

// TxPipeline creates a MULTI/EXEC pipeline for batch operations
func (c *Client) TxPipeline() redis.Pipeliner {
	return c.rdb.TxPipeline()
}

// ExecPipeline runs a pipeline and logs it as one operation
func (c *Client) ExecPipeline(ctx context.Context, op, key string, pipe redis.Pipeliner) error {
	n := pipe.Len()
	start := time.Now()
	_, err := pipe.Exec(ctx)
	c.observe(op, key, start, err, zap.Int("commands", n))
	return err
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
