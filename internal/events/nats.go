package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jordanhubbard/cogload/internal/metrics"
)

// Config holds NATS configuration
type Config struct {
	URL           string        `yaml:"nats_url"` // e.g. "nats://nats:4222"; empty selects the memory bus
	StreamName    string        `yaml:"stream"`   // JetStream stream name (default: "COGLOAD")
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// NatsBus publishes events to a JetStream stream for durability and
// delivers them to local subscribers over core NATS subscriptions.
// Subjects look like {prefix}.events.{user}.{type}.
type NatsBus struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	prefix     string
	url        string
	metrics    *metrics.Metrics

	mu   sync.Mutex
	subs map[*nats.Subscription]struct{}
}

// NewNatsBus connects and ensures the event stream exists
func NewNatsBus(cfg Config, m *metrics.Metrics) (*NatsBus, error) {
	if cfg.URL == "" {
		cfg.URL = "nats://localhost:4222"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "COGLOAD"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "cogload"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("cogload"),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[Events] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Events] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	b := &NatsBus{
		conn:       nc,
		js:         js,
		streamName: cfg.StreamName,
		prefix:     cfg.SubjectPrefix,
		url:        cfg.URL,
		metrics:    m,
		subs:       make(map[*nats.Subscription]struct{}),
	}

	if err := b.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	log.Printf("[Events] Connected to NATS at %s with JetStream stream %s", cfg.URL, cfg.StreamName)
	return b, nil
}

// ensureStream creates or updates the stream. Limits retention keeps events
// replayable for a day without consuming them.
func (b *NatsBus) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      b.streamName,
		Subjects:  []string{b.prefix + ".events.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := b.js.StreamInfo(b.streamName); err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Printf("[Events] Created JetStream stream: %s", b.streamName)
		return nil
	}
	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

func (b *NatsBus) subject(eventType, userID string) string {
	return fmt.Sprintf("%s.events.%s.%s", b.prefix, subjectToken(userID), eventType)
}

// Publish writes the event to JetStream
func (b *NatsBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := b.subject(event.Type, event.UserID)
	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}
	b.metrics.RecordEvent(event.Type)
	return nil
}

// Subscribe delivers every event type for one user. Uses core NATS so each
// websocket connection gets its own copy.
func (b *NatsBus) Subscribe(userID string, handler func(Event)) (func(), error) {
	subject := fmt.Sprintf("%s.events.%s.>", b.prefix, subjectToken(userID))
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("[Events] Failed to unmarshal event: %v", err)
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		_ = sub.Unsubscribe()
	}, nil
}

// Health returns the health status of the NATS connection
func (b *NatsBus) Health() error {
	if b.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := b.js.StreamInfo(b.streamName); err != nil {
		return fmt.Errorf("JetStream stream %s is unhealthy: %w", b.streamName, err)
	}
	return nil
}

// Close drains subscriptions and closes the connection
func (b *NatsBus) Close() error {
	b.mu.Lock()
	for sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = make(map[*nats.Subscription]struct{})
	b.mu.Unlock()

	b.conn.Close()
	log.Printf("[Events] Closed NATS connection")
	return nil
}

// New picks the NATS bus when a URL is configured, otherwise the memory bus.
// A NATS connection failure is returned so the caller can decide to degrade.
func New(cfg Config, m *metrics.Metrics) (Bus, error) {
	if cfg.URL == "" {
		return NewMemoryBus(m), nil
	}
	return NewNatsBus(cfg, m)
}

var (
	_ Bus = (*NatsBus)(nil)
	_ Bus = (*MemoryBus)(nil)
)
