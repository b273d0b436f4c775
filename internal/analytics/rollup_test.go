package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/pkg/models"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func closed(start time.Time, minutes int, interrupted bool) *models.FocusSession {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return &models.FocusSession{StartedAt: start, EndedAt: &end, Duration: minutes * 60, Interrupted: interrupted}
}

func TestSummarize(t *testing.T) {
	sessions := []*models.FocusSession{
		closed(at(9, 0), 30, false),
		closed(at(9, 40), 20, false),
		closed(at(14, 0), 60, true),
		{StartedAt: at(16, 0), Duration: 0},
	}
	snapshots := []*models.CognitiveSnapshot{{Score: 20}, {Score: 41}, {Score: 50}}

	a := Summarize(sessions, snapshots, time.UTC)
	assert.Equal(t, 110, a.TotalFocusMinutes)
	assert.Equal(t, 1, a.DeepWorkStreaks)
	assert.Equal(t, 14, a.PeakFocusHour)
	assert.Equal(t, 37.0, a.AvgCognitiveLoad)
}

func TestSummarize_Empty(t *testing.T) {
	a := Summarize(nil, nil, time.UTC)
	assert.Equal(t, 0, a.TotalFocusMinutes)
	assert.Equal(t, 0, a.PeakFocusHour)
	assert.Equal(t, 0.0, a.AvgCognitiveLoad)
}

func TestSummarize_PeakTieKeepsEarliestHour(t *testing.T) {
	a := Summarize([]*models.FocusSession{closed(at(15, 0), 30, false), closed(at(10, 0), 30, false)}, nil, time.UTC)
	assert.Equal(t, 10, a.PeakFocusHour)
}

func TestRoller_RollupAgainstSQLite(t *testing.T) {
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.InsertFocusSession(ctx, &models.FocusSession{UserID: "u1", TaskType: "coding", StartedAt: at(9, 0)}))
	sessions, err := db.ListFocusSessions(ctx, "u1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	_, err = db.CloseFocusSession(ctx, "u1", sessions[0].ID, at(9, 45), false)
	require.NoError(t, err)

	require.NoError(t, db.InsertContextSwitch(ctx, &models.ContextSwitch{UserID: "u1", FromTaskType: "coding", ToTaskType: "review", SwitchedAt: at(10, 0), EstimatedCost: 23}))
	require.NoError(t, db.InsertContextSwitch(ctx, &models.ContextSwitch{UserID: "u1", FromTaskType: "review", ToTaskType: "coding", SwitchedAt: day.Add(-time.Hour), EstimatedCost: 23}))
	require.NoError(t, db.InsertSnapshot(ctx, &models.CognitiveSnapshot{UserID: "u1", Score: 40, Level: models.LevelModerate, Timestamp: at(11, 0)}))

	r := NewRoller(db, time.UTC)
	r.now = func() time.Time { return at(18, 0) }

	a, err := r.RollupToday(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 45, a.TotalFocusMinutes)
	assert.Equal(t, 1, a.ContextSwitches)
	assert.Equal(t, 1, a.DeepWorkStreaks)
	assert.Equal(t, 9, a.PeakFocusHour)
	assert.Equal(t, 40.0, a.AvgCognitiveLoad)

	// A second rollup replaces rather than duplicates
	_, err = r.RollupToday(ctx, "u1")
	require.NoError(t, err)
	daily, err := r.Daily(ctx, "u1", 7)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.True(t, daily[0].Date.Equal(day))
}
