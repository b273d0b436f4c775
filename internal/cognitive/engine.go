package cognitive

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/telemetry"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// Store is the subset of the store adapter the engine reads and appends to
type Store interface {
	ListOpenIssues(ctx context.Context, userID string, limit int) ([]*models.Issue, error)
	ListOpenPullRequests(ctx context.Context, userID string, limit int) ([]*models.PullRequest, error)
	CountContextSwitchesSince(ctx context.Context, userID string, since time.Time) (int, error)
	LatestFocusSession(ctx context.Context, userID string) (*models.FocusSession, error)
	InsertSnapshot(ctx context.Context, s *models.CognitiveSnapshot) error
	LatestSnapshot(ctx context.Context, userID string) (*models.CognitiveSnapshot, error)
	ListSnapshotsSince(ctx context.Context, userID string, since time.Time) ([]*models.CognitiveSnapshot, error)
}

// Engine computes cognitive load scores and appends them as snapshots
type Engine struct {
	store     Store
	weights   WeightsSource
	location  *time.Location
	now       func() time.Time
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the engine's time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone whose midnight starts "today"
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithPublisher announces each appended snapshot as a snapshot.created event
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine. A nil weights source uses DefaultWeights.
func NewEngine(store Store, weights WeightsSource, opts ...Option) *Engine {
	if weights == nil {
		weights = StaticWeights(DefaultWeights())
	}
	e := &Engine{
		store:    store,
		weights:  weights,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate computes the user's current load and appends one snapshot.
// Each call is a fresh observation; nothing is written if any read fails.
func (e *Engine) Calculate(ctx context.Context, userID string) (*models.CognitiveScore, error) {
	ctx, span := telemetry.StartSpan(ctx, "cognitive.Calculate", attribute.String("user_id", userID))
	defer span.End()

	start := time.Now()
	now := e.now()

	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issues, err := e.store.ListOpenIssues(gctx, userID, 0)
		in.OpenIssues = issues
		return err
	})
	g.Go(func() error {
		prs, err := e.store.ListOpenPullRequests(gctx, userID, 0)
		in.OpenPRs = prs
		return err
	})
	g.Go(func() error {
		n, err := e.store.CountContextSwitchesSince(gctx, userID, StartOfDay(now, e.location))
		in.TodaySwitches = n
		return err
	})
	g.Go(func() error {
		s, err := e.store.LatestFocusSession(gctx, userID)
		in.LastSession = s
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read aggregates")
		return nil, fmt.Errorf("failed to read load aggregates: %w", err)
	}

	w := e.weights.WeightsFor(userID)
	res := Compute(in, w, now)

	snapshot := &models.CognitiveSnapshot{
		UserID:         userID,
		Score:          res.Score,
		Level:          res.Level,
		Breakdown:      res.Breakdown,
		Factors:        res.Factors,
		WeightsVersion: w.Version,
		Timestamp:      now,
	}
	if err := e.store.InsertSnapshot(ctx, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert snapshot")
		return nil, fmt.Errorf("failed to append snapshot: %w", err)
	}

	span.SetAttributes(
		attribute.Int("score", res.Score),
		attribute.String("level", string(res.Level)),
		attribute.String("weights_version", w.Version),
	)
	telemetry.AddInt(ctx, telemetry.SnapshotsWritten, 1, attribute.String("level", string(res.Level)))
	e.metrics.RecordScore(string(res.Level), res.Score, time.Since(start).Seconds())
	log.Printf("[Engine] user=%s score=%d level=%s raw=%.1f", userID, res.Score, res.Level, res.Raw)

	if e.publisher != nil {
		// The snapshot is already durable; a lost notification is only logged.
		if err := e.publisher.Publish(ctx, events.NewEvent(events.TypeSnapshotCreated, userID, snapshot)); err != nil {
			log.Printf("[Engine] Failed to publish snapshot event for %s: %v", userID, err)
		}
	}

	return snapshot.ToScore(), nil
}

// History returns the user's scores over the last days, oldest first
func (e *Engine) History(ctx context.Context, userID string, days int) ([]models.ScorePoint, error) {
	if days <= 0 {
		days = 7
	}
	since := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	snapshots, err := e.store.ListSnapshotsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}
	points := make([]models.ScorePoint, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, models.ScorePoint{Score: s.Score, Timestamp: s.Timestamp})
	}
	return points, nil
}

// Latest returns the user's most recent snapshot, or nil if none exists
func (e *Engine) Latest(ctx context.Context, userID string) (*models.CognitiveSnapshot, error) {
	s, err := e.store.LatestSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return s, nil
}

// Location returns the timezone used for day boundaries
func (e *Engine) Location() *time.Location {
	return e.location
}

// Now returns the engine's clock reading
func (e *Engine) Now() time.Time {
	return e.now()
}
