// Package catalog caches the service catalog in redis, falling back to an
// in-process copy when redis is not configured or unreachable.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/salon/booking"
)

const component = "catalog"

const (
	DefaultKey = "salonbot:catalog"
	DefaultTTL = 5 * time.Minute
)

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" envconfig:"REDIS_DB"`
	Key      string        `yaml:"key" envconfig:"REDIS_CATALOG_KEY"`
	TTL      time.Duration `yaml:"ttl" envconfig:"REDIS_CATALOG_TTL"`
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error(ctx, component, "redis.connect",
			slog.String("status", "fail"),
			slog.String("addr", cfg.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, component, "redis.connect",
		slog.String("status", "ok"),
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
	)
	return client, nil
}

// Options configure a Cache.
type Options struct {
	// Redis is optional; without it only the in-process copy is used.
	Redis *redis.Client
	Key   string
	TTL   time.Duration
	Now   func() time.Time
}

// Cache wraps a catalog source.
type Cache struct {
	src   booking.Catalog
	redis *redis.Client
	key   string
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	local   map[string][]string
	expires time.Time
}

// New wraps src.
func New(src booking.Catalog, opts Options) *Cache {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{src: src, redis: opts.Redis, key: opts.Key, ttl: opts.TTL, now: opts.Now}
}

// ListServices returns the cached catalog, loading it from the source on a miss.
func (c *Cache) ListServices(ctx context.Context) (map[string][]string, error) {
	if c.redis != nil {
		if cached, ok := c.fromRedis(ctx); ok {
			return cached, nil
		}
	} else if cached, ok := c.fromLocal(); ok {
		logger.Debug(ctx, component, "catalog.get", slog.String("cache", "hit"))
		return cached, nil
	}

	start := time.Now()
	fresh, err := c.src.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, fresh)
	logger.Debug(ctx, component, "catalog.get",
		slog.String("cache", "miss"),
		slog.Int("count", len(fresh)),
		slog.Duration("duration", logger.Took(start)),
	)
	return cloneCatalog(fresh), nil
}

func (c *Cache) fromRedis(ctx context.Context) (map[string][]string, bool) {
	raw, err := c.redis.Get(ctx, c.key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false
	case err != nil:
		logger.Warn(ctx, component, "catalog.get",
			slog.String("status", "fail"),
			slog.String("cache", "miss"),
			slog.String("err", err.Error()),
		)
		return c.fromLocal()
	}
	var out map[string][]string
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn(ctx, component, "catalog.decode",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return nil, false
	}
	logger.Debug(ctx, component, "catalog.get", slog.String("cache", "hit"))
	return out, true
}

// cloneCatalog copies the map and every master list.
func cloneCatalog(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for service, masters := range in {
		out[service] = slices.Clone(masters)
	}
	return out
}

func (c *Cache) fromLocal() (map[string][]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil || !c.now().Before(c.expires) {
		return nil, false
	}
	return cloneCatalog(c.local), true
}

func (c *Cache) store(ctx context.Context, data map[string][]string) {
	c.mu.Lock()
	c.local = cloneCatalog(data)
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err == nil {
		err = c.redis.Set(ctx, c.key, raw, c.ttl).Err()
	}
	if err != nil {
		logger.Warn(ctx, component, "catalog.store",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// Invalidate drops every cached copy.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.local = nil
	c.mu.Unlock()
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate catalog: %w", err)
	}
	logger.Info(ctx, component, "catalog.invalidate", slog.String("cache", "refresh"))
	return nil
}
