// Package events fans out cognitive-state changes to interested consumers:
// the websocket stream and any remote subscriber listening on NATS.
package events

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanhubbard/cogload/internal/metrics"
)

const (
	TypeSnapshotCreated       = "snapshot.created"
	TypeRecommendationCreated = "recommendation.created"
	TypeBriefingCreated       = "briefing.created"
	TypeSyncCompleted         = "sync.completed"
)

// Event is one published change scoped to a user
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent stamps an event with an id and the current time
func NewEvent(eventType, userID string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher abstracts event publishing for testability.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus publishes events and delivers them to per-user subscribers.
// Subscribe returns a cancel func that removes the subscription.
type Bus interface {
	Publisher
	Subscribe(userID string, handler func(Event)) (func(), error)
	Close() error
}

var subjectUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// subjectToken makes a user id safe to embed in a NATS subject
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return subjectUnsafe.ReplaceAllString(s, "_")
}

// MemoryBus delivers events in-process. It backs single-instance
// deployments and tests.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[string]map[int]func(Event)
	next    int
	metrics *metrics.Metrics
}

// NewMemoryBus creates an in-process bus
func NewMemoryBus(m *metrics.Metrics) *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]func(Event)), metrics: m}
}

// Publish delivers synchronously to the user's subscribers
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs[event.UserID]))
	for _, h := range b.subs[event.UserID] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	b.metrics.RecordEvent(event.Type)
	return nil
}

func (b *MemoryBus) Subscribe(userID string, handler func(Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[userID][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[userID], id)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
	}, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[string]map[int]func(Event))
	b.mu.Unlock()
	return nil
}
