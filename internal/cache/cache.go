package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jordanhubbard/cogload/internal/metrics"
)

// ErrMiss is returned by GetJSON when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Config defines cache configuration
type Config struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Backend       string        `yaml:"backend" json:"backend"` // memory or redis
	RedisURL      string        `yaml:"redis_url" json:"redis_url"`
	KeyPrefix     string        `yaml:"key_prefix" json:"key_prefix"`
	DefaultTTL    time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxSize       int           `yaml:"max_size" json:"max_size"`
	CleanupPeriod time.Duration `yaml:"cleanup_period" json:"cleanup_period"`
}

// DefaultConfig returns sensible defaults for caching
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		Backend:       "memory",
		KeyPrefix:     "cos:",
		DefaultTTL:    60 * time.Second,
		MaxSize:       10000,
		CleanupPeriod: 5 * time.Minute,
	}
}

// Backend is the interface for cache storage backends. Values are opaque bytes.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Stats tracks cache performance
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Fallbacks     int64   `json:"fallbacks"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
	Backend       string  `json:"backend"`
}

// Cache is a JSON value cache over a primary backend. When the primary fails
// (e.g. Redis is down) operations fall through to an in-memory backend so
// the read path keeps working.
type Cache struct {
	config   *Config
	primary  Backend
	fallback Backend
	metrics  *metrics.Metrics

	mu    sync.Mutex
	stats Stats
}

// New creates a cache from config. A redis backend that cannot be reached at
// startup is logged and replaced by the memory backend.
func New(config *Config, m *metrics.Metrics) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	mem := NewMemoryBackend(config.MaxSize, config.CleanupPeriod)
	c := &Cache{config: config, primary: mem, metrics: m}

	if config.Backend == "redis" {
		rb, err := NewRedisBackend(config.RedisURL, config.KeyPrefix)
		if err != nil {
			log.Printf("[Cache] Redis unavailable, using memory backend: %v", err)
		} else {
			c.primary = rb
			c.fallback = mem
		}
	}
	c.stats.Backend = c.primary.Name()
	return c
}

// NewWithBackends builds a cache over explicit backends; fallback may be nil
func NewWithBackends(config *Config, primary, fallback Backend, m *metrics.Metrics) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{config: config, primary: primary, fallback: fallback, metrics: m, stats: Stats{Backend: primary.Name()}}
}

// Enabled reports whether caching is on
func (c *Cache) Enabled() bool {
	return c != nil && c.config.Enabled
}

// GetJSON decodes the cached value for key into dst. It returns ErrMiss when
// nothing usable is cached.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) error {
	if !c.Enabled() {
		return ErrMiss
	}

	data, ok, backend := c.get(ctx, key)
	c.record(backend, ok)
	if !ok {
		return ErrMiss
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("[Cache] Dropping undecodable entry %s: %v", key, err)
		_ = c.Delete(ctx, key)
		return ErrMiss
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool, string) {
	data, ok, err := c.primary.Get(ctx, key)
	if err == nil {
		return data, ok, c.primary.Name()
	}
	if c.fallback == nil {
		log.Printf("[Cache] Get %s failed: %v", key, err)
		return nil, false, c.primary.Name()
	}
	c.noteFallback(err)
	data, ok, _ = c.fallback.Get(ctx, key)
	return data, ok, c.fallback.Name()
}

// SetJSON stores value under key; ttl <= 0 uses the default TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.primary.Set(ctx, key, data, ttl); err != nil {
		if c.fallback == nil {
			return fmt.Errorf("failed to set cache key %s: %w", key, err)
		}
		c.noteFallback(err)
		return c.fallback.Set(ctx, key, data, ttl)
	}
	return nil
}

// Delete removes one key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	err := c.primary.Delete(ctx, key)
	if c.fallback != nil {
		_ = c.fallback.Delete(ctx, key)
	}
	return err
}

// InvalidatePrefix removes every key starting with prefix from both tiers
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) int {
	if !c.Enabled() {
		return 0
	}

	removed, err := c.primary.InvalidatePrefix(ctx, prefix)
	if err != nil {
		log.Printf("[Cache] Invalidate %s* failed: %v", prefix, err)
	}
	if c.fallback != nil {
		n, _ := c.fallback.InvalidatePrefix(ctx, prefix)
		removed += n
	}

	c.mu.Lock()
	c.stats.Invalidations += int64(removed)
	c.mu.Unlock()
	return removed
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close releases backend resources
func (c *Cache) Close() error {
	var errs []error
	if err := c.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.fallback != nil {
		if err := c.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) record(backend string, hit bool) {
	c.mu.Lock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()
	c.metrics.RecordCacheLookup(backend, hit)
}

func (c *Cache) noteFallback(err error) {
	c.mu.Lock()
	c.stats.Fallbacks++
	n := c.stats.Fallbacks
	c.mu.Unlock()
	// Avoid flooding the log while the primary is down
	if n == 1 || n%100 == 0 {
		log.Printf("[Cache] Primary backend failed, using %s: %v", c.fallback.Name(), err)
	}
}

// ScoreKey is the cache key for a user's score response over a history window
func ScoreKey(userID string, days int) string {
	return fmt.Sprintf("%s%d", UserPrefix(userID), days)
}

// UserPrefix matches every cognitive cache key of one user
func UserPrefix(userID string) string {
	return "cognitive:" + userID + ":"
}
