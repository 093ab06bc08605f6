package cache

import (
	"context"
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coordination bundles the cross-replica primitives: the entity locker and
// the handler idempotency store. Client is nil when running in memory.
type Coordination struct {
	Client      *redis.Client
	Locker      shared.EntityLocker
	Idempotency shared.IdempotencyStore
}

// Close releases the stores and the Redis connection
func (c *Coordination) Close() error {
	if err := c.Idempotency.Close(); err != nil {
		return err
	}
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// CoordinationOption is a functional option for NewCoordination
type CoordinationOption func(*coordinationOptions)

type coordinationOptions struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CoordinationOption {
	return func(o *coordinationOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-process primitives instead of failing startup. Default is false.
func WithInMemoryFallback(allow bool) CoordinationOption {
	return func(o *coordinationOptions) {
		o.allowInMemoryFallback = allow
	}
}

// NewCoordination builds Redis-backed primitives when redis is enabled and
// in-memory ones otherwise.
func NewCoordination(ctx context.Context, cfg *config.Config, opts ...CoordinationOption) (*Coordination, error) {
	o := coordinationOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Redis.Enabled {
		o.logger.Info("redis disabled, using in-memory lock and idempotency store")
		return inMemoryCoordination(cfg), nil
	}

	client, err := NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if !o.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for coordination but unavailable: %w", err)
		}
		o.logger.Warn("Redis unavailable, falling back to in-memory lock and idempotency store. "+
			"Concurrent replicas will not be serialized.",
			zap.Error(err),
		)
		return inMemoryCoordination(cfg), nil
	}

	o.logger.Info("using Redis lock and idempotency store", zap.String("addr", cfg.Redis.Addr()))
	return &Coordination{
		Client:      client,
		Locker:      NewRedisEntityLocker(client, cfg.Lock, o.logger),
		Idempotency: NewRedisIdempotencyStore(client, ""),
	}, nil
}

func inMemoryCoordination(cfg *config.Config) *Coordination {
	return &Coordination{
		Locker:      NewInMemoryEntityLocker(cfg.Lock.RetryTimeout),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}
