package container

import (
	"context"
	"fmt"
	"time"

	"pizza42-api/internal/config"
	"pizza42-api/internal/repository"
	"pizza42-api/internal/service"
	"pizza42-api/internal/service/auth"
	"pizza42-api/pkg/database"
	"pizza42-api/pkg/logger"
	"pizza42-api/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	DB          *database.PostgresDB
	KeySet      *auth.KeySet
	Verifier    *auth.Verifier
	Store       repository.OrderStore
	Orders      *service.OrderService
}

// New creates a new dependency injection container. The order store is picked
// once here from ORDER_STORE and TABLE_DRIVER.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	c.KeySet = auth.NewKeySet(auth.KeySetConfig{
		URL:                cfg.JWKSURL,
		RefreshInterval:    cfg.JWKSRefreshInterval,
		MinRefreshInterval: cfg.JWKSMinRefreshInterval,
		HTTPTimeout:        5 * time.Second,
	}, nil, nil, log)

	c.Verifier = auth.NewVerifier(auth.VerifierConfig{
		Issuer:          cfg.IssuerURL,
		APIAudience:     cfg.APIAudience,
		ClientID:        cfg.ClientID,
		ClaimsNamespace: cfg.ClaimsNamespace,
		Leeway:          cfg.JWTLeeway,
	}, c.KeySet, nil, log)

	ids, err := repository.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return nil, err
	}

	if err := c.initStore(ctx, ids); err != nil {
		c.Close()
		return nil, err
	}

	c.Orders = service.NewOrderService(c.Store, log)

	log.WithFields(map[string]interface{}{
		"store":   cfg.StoreName(),
		"redis":   c.HasRedis(),
		"node_id": cfg.NodeID,
	}).Info("Container initialized")

	return c, nil
}

func (c *Container) initStore(ctx context.Context, ids *repository.IDGenerator) error {
	cfg, log := c.Config, c.Logger

	switch cfg.OrderStore {
	case config.StoreProfile:
		// Redis only backs the per-user lock here, so the store still works
		// on a single instance without it.
		var locker repository.Locker = repository.NewLocalLocker()
		if cfg.RedisURL != "" {
			client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
			if err != nil {
				log.WithError(err).Warn("Failed to initialize Redis client, profile writes are locked in-process only")
			} else {
				c.RedisClient = client
				locker = repository.NewRedisLocker(client, log)
				log.Info("Redis client initialized successfully")
			}
		} else {
			log.Info("Redis URL not configured, profile writes are locked in-process only")
		}

		api := service.NewManagementClient(service.ManagementConfig{
			BaseURL:      cfg.IssuerURL,
			ClientID:     cfg.MgmtClientID,
			ClientSecret: cfg.MgmtClientSecret,
			Audience:     cfg.MgmtAudience,
			Timeout:      10 * time.Second,
		}, log)
		c.Store = repository.NewProfileStore(api, locker, ids, nil, log)

	case config.StoreTable:
		switch cfg.TableDriver {
		case config.DriverPostgres:
			db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			c.DB = db
			c.Store = repository.NewPostgresTableStore(db, ids, nil, log)

		case config.DriverRedis:
			client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
			if err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			c.RedisClient = client
			c.Store = repository.NewRedisTableStore(client, ids, nil, log)

		default:
			return fmt.Errorf("unknown TABLE_DRIVER %q", cfg.TableDriver)
		}

	default:
		return fmt.Errorf("unknown ORDER_STORE %q", cfg.OrderStore)
	}
	return nil
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Health pings whichever backends were opened
func (c *Container) Health(ctx context.Context) map[string]string {
	checks := map[string]string{}
	if c.DB != nil {
		checks["postgres"] = status(c.DB.Health(ctx))
	}
	if c.RedisClient != nil {
		checks["redis"] = status(c.RedisClient.Health(ctx))
	}
	return checks
}

func status(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}

// Close releases backend connections. It is safe to call more than once.
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis connection")
		}
		c.RedisClient = nil
	}
	if c.DB != nil {
		c.DB.Close()
		c.DB = nil
	}
}
