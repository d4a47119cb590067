package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
)

const keyPrefix = "service:"

// ServiceCache is a read-through cache for service listings. Lookups that
// miss fall back to the store; writes invalidate.
type ServiceCache interface {
	// Get retrieves a cached service by ID. Returns ErrNotFound on a miss.
	Get(ctx context.Context, id string) (*domain.Service, error)

	// Set stores a service with the configured TTL.
	Set(ctx context.Context, svc *domain.Service) error

	// Invalidate removes a service from the cache.
	Invalidate(ctx context.Context, id string) error
}

// RedisServiceCache implements ServiceCache using Redis.
type RedisServiceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewServiceCache creates a new Redis-backed service cache.
func NewServiceCache(client *redis.Client, ttl time.Duration) *RedisServiceCache {
	return &RedisServiceCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a service by ID from Redis.
func (c *RedisServiceCache) Get(ctx context.Context, id string) (*domain.Service, error) {
	key := keyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get service: %w", err)
	}

	var svc domain.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return nil, fmt.Errorf("unmarshal cached service: %w", err)
	}

	return &svc, nil
}

// Set persists a service to Redis with the configured TTL.
func (c *RedisServiceCache) Set(ctx context.Context, svc *domain.Service) error {
	key := keyPrefix + svc.ID

	data, err := json.Marshal(svc)
	if err != nil {
		return fmt.Errorf("marshal service: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set service: %w", err)
	}

	return nil
}

// Invalidate removes a service from Redis by ID.
func (c *RedisServiceCache) Invalidate(ctx context.Context, id string) error {
	key := keyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del service: %w", err)
	}

	return nil
}

// NoopServiceCache disables caching; every lookup is a miss.
type NoopServiceCache struct{}

// Get always reports a miss.
func (NoopServiceCache) Get(context.Context, string) (*domain.Service, error) {
	return nil, apperrors.ErrNotFound
}

// Set does nothing.
func (NoopServiceCache) Set(context.Context, *domain.Service) error { return nil }

// Invalidate does nothing.
func (NoopServiceCache) Invalidate(context.Context, string) error { return nil }
