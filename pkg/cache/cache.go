// Package cache provides short-lived exclusive claims on keys, backed by Redis
// when enabled and by an in-process store otherwise.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/practicanteticPX/docuprex/pkg/lifecycle"
)

// System hands out time-boxed claims. A claim on a key succeeds for exactly
// one caller until its TTL lapses or it is released.
type System interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	// Client returns the Redis client, or nil when Redis is disabled.
	Client() *redis.Client
	// Prefix namespaces every key this system writes.
	Prefix() string
	Ping(ctx context.Context) error
	Start(lc *lifecycle.Coordinator) error
}

// New returns a Redis-backed System when cfg.Enabled, otherwise an in-process one.
func New(cfg *Config, logger *slog.Logger) System {
	logger = logger.With("system", "cache")
	if !cfg.Enabled {
		return NewMemory(cfg.KeyPrefix)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeoutDuration(),
	})

	return &redisCache{
		client:   client,
		prefix:   cfg.KeyPrefix,
		timeout:  cfg.DialTimeoutDuration(),
		fallback: NewMemory(cfg.KeyPrefix).(*memoryCache),
		logger:   logger,
	}
}

type redisCache struct {
	client   *redis.Client
	prefix   string
	timeout  time.Duration
	fallback *memoryCache
	logger   *slog.Logger
}

// Claim issues SET NX EX. When Redis is unreachable the claim degrades to the
// in-process store so a single instance still suppresses duplicates.
func (c *redisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), 1, ttl).Result()
	if err != nil {
		c.logger.Warn("redis claim failed, using local store", "key", key, "error", err)
		return c.fallback.Claim(ctx, key, ttl)
	}
	return ok, nil
}

func (c *redisCache) Release(ctx context.Context, key string) error {
	c.fallback.Release(ctx, key)
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Client() *redis.Client {
	return c.client
}

func (c *redisCache) Prefix() string {
	return c.prefix
}

func (c *redisCache) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Ping(pingCtx).Err()
}

func (c *redisCache) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting redis cache")

	lc.OnStartup(func() {
		if err := c.Ping(lc.Context()); err != nil {
			c.logger.Warn("redis unreachable, claims fall back to local store", "error", err)
			return
		}
		c.logger.Info("redis connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := c.client.Close(); err != nil {
			c.logger.Error("redis close failed", "error", err)
			return
		}
		c.logger.Info("redis connection closed")
	})

	return nil
}

func (c *redisCache) key(k string) string {
	return c.prefix + ":" + k
}

type memoryCache struct {
	mu      sync.Mutex
	prefix  string
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemory returns an in-process System.
func NewMemory(prefix string) System {
	return &memoryCache{
		prefix:  prefix,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (c *memoryCache) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, k)
		}
	}

	if _, held := c.entries[key]; held {
		return false, nil
	}
	c.entries[key] = now.Add(ttl)
	return true, nil
}

func (c *memoryCache) Release(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Client() *redis.Client { return nil }

func (c *memoryCache) Prefix() string { return c.prefix }

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Start(*lifecycle.Coordinator) error { return nil }
