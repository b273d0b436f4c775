package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

func newMemCache(t *testing.T) *Cache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CleanupPeriod = 0
	c := New(cfg, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGetJSON(t *testing.T) {
	c := newMemCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, ScoreKey("u1", 7), payload{Score: 42, Level: "moderate"}, time.Minute))

	var got payload
	require.NoError(t, c.GetJSON(ctx, ScoreKey("u1", 7), &got))
	assert.Equal(t, payload{Score: 42, Level: "moderate"}, got)

	err := c.GetJSON(ctx, ScoreKey("u1", 30), &got)
	assert.ErrorIs(t, err, ErrMiss)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.Equal(t, "memory", stats.Backend)
}

func TestCache_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.CleanupPeriod = 0
	c := New(cfg, nil)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", payload{Score: 1}, 0))
	var got payload
	assert.ErrorIs(t, c.GetJSON(ctx, "k", &got), ErrMiss)
	assert.Equal(t, 0, c.InvalidatePrefix(ctx, ""))
}

func TestMemoryBackend_Expiration(t *testing.T) {
	b := NewMemoryBackend(10, 0)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackend_EvictsOldest(t *testing.T) {
	b := NewMemoryBackend(2, 0)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { now = now.Add(time.Second); return now }
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, b.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, b.Len())
	_, ok, _ := b.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCache_InvalidatePrefixIsPerUser(t *testing.T) {
	c := newMemCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, ScoreKey("u1", 7), payload{Score: 1}, 0))
	require.NoError(t, c.SetJSON(ctx, ScoreKey("u1", 30), payload{Score: 2}, 0))
	require.NoError(t, c.SetJSON(ctx, ScoreKey("u10", 7), payload{Score: 3}, 0))

	assert.Equal(t, 2, c.InvalidatePrefix(ctx, UserPrefix("u1")))

	var got payload
	assert.ErrorIs(t, c.GetJSON(ctx, ScoreKey("u1", 7), &got), ErrMiss)
	require.NoError(t, c.GetJSON(ctx, ScoreKey("u10", 7), &got))
	assert.Equal(t, 3, got.Score)
}

type brokenBackend struct{}

var errDown = errors.New("connection refused")

func (brokenBackend) Name() string { return "redis" }
func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errDown
}
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (brokenBackend) Delete(context.Context, string) error                     { return errDown }
func (brokenBackend) InvalidatePrefix(context.Context, string) (int, error)    { return 0, errDown }
func (brokenBackend) Close() error                                             { return nil }

func TestCache_FallsBackWhenPrimaryFails(t *testing.T) {
	mem := NewMemoryBackend(10, 0)
	c := NewWithBackends(DefaultConfig(), brokenBackend{}, mem, nil)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "cognitive:u1:7", payload{Score: 9}, 0))
	assert.Equal(t, 1, mem.Len())

	var got payload
	require.NoError(t, c.GetJSON(ctx, "cognitive:u1:7", &got))
	assert.Equal(t, 9, got.Score)
	assert.GreaterOrEqual(t, c.GetStats().Fallbacks, int64(2))

	assert.Equal(t, 1, c.InvalidatePrefix(ctx, "cognitive:u1:"))
	assert.Equal(t, 0, mem.Len())
}

func TestCache_NoFallbackSurfacesSetError(t *testing.T) {
	c := NewWithBackends(DefaultConfig(), brokenBackend{}, nil, nil)
	err := c.SetJSON(context.Background(), "k", payload{}, 0)
	assert.ErrorIs(t, err, errDown)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "cognitive:plain:", escapeGlob("cognitive:plain:"))
	assert.Equal(t, `cognitive:a\*b:`, escapeGlob("cognitive:a*b:"))
	assert.Equal(t, `cognitive:\[x\]\?:`, escapeGlob("cognitive:[x]?:"))
	assert.Equal(t, `cognitive:back\\slash:`, escapeGlob(`cognitive:back\slash:`))
}

func TestRedisBackend_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	b, err := NewRedisBackend(url, "cos-test:")
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "cognitive:u1:7", []byte(`{"score":1}`), time.Minute))
	data, ok, err := b.Get(ctx, "cognitive:u1:7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"score":1}`, string(data))

	n, err := b.InvalidatePrefix(ctx, "cognitive:u1:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Wildcards in a user id only match that user's keys
	require.NoError(t, b.Set(ctx, "cognitive:bob:7", []byte(`1`), time.Minute))
	require.NoError(t, b.Set(ctx, "cognitive:b[o]b:7", []byte(`1`), time.Minute))
	n, err = b.InvalidatePrefix(ctx, "cognitive:b*")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = b.InvalidatePrefix(ctx, "cognitive:b[o]b:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, err = b.Get(ctx, "cognitive:bob:7")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Delete(ctx, "cognitive:bob:7"))
}
