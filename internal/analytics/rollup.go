// Package analytics rolls raw activity up into per-day summaries.
package analytics

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/cogload/internal/cognitive"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// DeepWorkMinutes is the shortest uninterrupted session that counts as a deep work streak
const DeepWorkMinutes = 25

// Store is the subset of the store adapter the rollup reads and writes
type Store interface {
	ListFocusSessions(ctx context.Context, userID string, from, to time.Time) ([]*models.FocusSession, error)
	ListContextSwitches(ctx context.Context, userID string, from, to time.Time) ([]*models.ContextSwitch, error)
	ListSnapshotsBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.CognitiveSnapshot, error)
	CountIssuesClosedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	CountPullRequestsClosedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	UpsertDailyAnalytics(ctx context.Context, a *models.DailyAnalytics) error
	ListDailyAnalytics(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyAnalytics, error)
}

// Roller computes and stores daily rollups
type Roller struct {
	store    Store
	location *time.Location
	now      func() time.Time
}

// NewRoller creates a roller whose days start at midnight in loc
func NewRoller(store Store, loc *time.Location) *Roller {
	if loc == nil {
		loc = time.Local
	}
	return &Roller{store: store, location: loc, now: time.Now}
}

// Rollup computes the summary for the day containing day and upserts it
func (r *Roller) Rollup(ctx context.Context, userID string, day time.Time) (*models.DailyAnalytics, error) {
	from := cognitive.StartOfDay(day, r.location)
	to := from.AddDate(0, 0, 1)

	var (
		sessions    []*models.FocusSession
		switches    []*models.ContextSwitch
		snapshots   []*models.CognitiveSnapshot
		closedIssue int
		closedPR    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = r.store.ListFocusSessions(gctx, userID, from, to)
		return err
	})
	g.Go(func() (err error) {
		switches, err = r.store.ListContextSwitches(gctx, userID, from, to)
		return err
	})
	g.Go(func() (err error) {
		snapshots, err = r.store.ListSnapshotsBetween(gctx, userID, from, to)
		return err
	})
	g.Go(func() (err error) {
		closedIssue, err = r.store.CountIssuesClosedBetween(gctx, userID, from, to)
		return err
	})
	g.Go(func() (err error) {
		closedPR, err = r.store.CountPullRequestsClosedBetween(gctx, userID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read activity for rollup: %w", err)
	}

	a := Summarize(sessions, snapshots, r.location)
	a.UserID = userID
	a.Date = from
	a.ContextSwitches = len(switches)
	a.TasksCompleted = closedIssue + closedPR

	if err := r.store.UpsertDailyAnalytics(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store rollup: %w", err)
	}
	log.Printf("[Analytics] user=%s day=%s focus=%dm switches=%d streaks=%d",
		userID, from.Format("2006-01-02"), a.TotalFocusMinutes, a.ContextSwitches, a.DeepWorkStreaks)
	return a, nil
}

// RollupToday refreshes today's summary
func (r *Roller) RollupToday(ctx context.Context, userID string) (*models.DailyAnalytics, error) {
	return r.Rollup(ctx, userID, r.now())
}

// Daily returns stored rollups for the last days, today included
func (r *Roller) Daily(ctx context.Context, userID string, days int) ([]*models.DailyAnalytics, error) {
	if days <= 0 {
		days = 30
	}
	to := cognitive.StartOfDay(r.now(), r.location)
	from := to.AddDate(0, 0, -(days - 1))
	out, err := r.store.ListDailyAnalytics(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily analytics: %w", err)
	}
	return out, nil
}

// Summarize derives the session and snapshot parts of a rollup.
// The peak focus hour is the local hour whose sessions contributed the most
// focus minutes, earliest hour on ties, and 0 when nothing was recorded.
func Summarize(sessions []*models.FocusSession, snapshots []*models.CognitiveSnapshot, loc *time.Location) *models.DailyAnalytics {
	a := &models.DailyAnalytics{}

	var perHour [24]int
	for _, s := range sessions {
		minutes := s.Duration / 60
		a.TotalFocusMinutes += minutes
		perHour[s.StartedAt.In(loc).Hour()] += minutes
		if s.EndedAt != nil && !s.Interrupted && minutes >= DeepWorkMinutes {
			a.DeepWorkStreaks++
		}
	}
	for h := 1; h < 24; h++ {
		if perHour[h] > perHour[a.PeakFocusHour] {
			a.PeakFocusHour = h
		}
	}

	if len(snapshots) > 0 {
		total := 0
		for _, s := range snapshots {
			total += s.Score
		}
		a.AvgCognitiveLoad = math.Round(float64(total)/float64(len(snapshots))*10) / 10
	}
	return a
}
