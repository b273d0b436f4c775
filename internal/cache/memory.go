package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	cachedAt  time.Time
	expiresAt time.Time
}

// MemoryBackend is a process-local TTL map with oldest-first eviction
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryBackend creates a memory backend. cleanupPeriod <= 0 disables the
// background sweeper; expired entries are still dropped on read.
func NewMemoryBackend(maxSize int, cleanupPeriod time.Duration) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 10000
	}
	b := &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cleanupPeriod > 0 {
		go b.cleanupLoop(cleanupPeriod)
	}
	return b
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	entry, exists := b.entries[key]
	b.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if b.now().After(entry.expiresAt) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[key]; !exists && len(b.entries) >= b.maxSize {
		b.evictOldest()
	}
	b.entries[key] = &memoryEntry{value: value, cachedAt: now, expiresAt: now.Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *MemoryBackend) Close() error {
	b.once.Do(func() { close(b.stop) })
	return nil
}

func (b *MemoryBackend) cleanupLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.cleanup()
		}
	}
}

func (b *MemoryBackend) cleanup() {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, entry := range b.entries {
		if now.After(entry.expiresAt) {
			delete(b.entries, key)
		}
	}
}

// evictOldest removes the entry cached first. Caller holds the lock.
func (b *MemoryBackend) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range b.entries {
		if first || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(b.entries, oldestKey)
	}
}
