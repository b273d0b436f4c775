package database

import (
	"context"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

const dayLayout = "2006-01-02"

// UpsertDailyAnalytics writes the rollup for (user, day), replacing any previous value
func (d *Database) UpsertDailyAnalytics(ctx context.Context, a *models.DailyAnalytics) error {
	if a.ID == "" {
		a.ID = newID()
	}
	query := `
		INSERT INTO daily_analytics (
			id, user_id, day, total_focus_minutes, context_switches, avg_cognitive_load,
			deep_work_streaks, peak_focus_hour, tasks_completed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET
			total_focus_minutes = excluded.total_focus_minutes,
			context_switches = excluded.context_switches,
			avg_cognitive_load = excluded.avg_cognitive_load,
			deep_work_streaks = excluded.deep_work_streaks,
			peak_focus_hour = excluded.peak_focus_hour,
			tasks_completed = excluded.tasks_completed
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, d.q(query),
		a.ID,
		a.UserID,
		a.Date.Format(dayLayout),
		a.TotalFocusMinutes,
		a.ContextSwitches,
		a.AvgCognitiveLoad,
		a.DeepWorkStreaks,
		a.PeakFocusHour,
		a.TasksCompleted,
	).Scan(&a.ID)
	if err != nil {
		return unavailable("upsert daily analytics", err)
	}
	return nil
}

// ListDailyAnalytics returns rollups for days in [from, to], oldest first
func (d *Database) ListDailyAnalytics(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyAnalytics, error) {
	query := `
		SELECT id, user_id, day, total_focus_minutes, context_switches, avg_cognitive_load,
			   deep_work_streaks, peak_focus_hour, tasks_completed
		FROM daily_analytics
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`
	rows, err := d.db.QueryContext(ctx, d.q(query), userID, from.Format(dayLayout), to.Format(dayLayout))
	if err != nil {
		return nil, unavailable("list daily analytics", err)
	}
	defer rows.Close()

	var out []*models.DailyAnalytics
	for rows.Next() {
		a := &models.DailyAnalytics{}
		var day string
		if err := rows.Scan(
			&a.ID, &a.UserID, &day, &a.TotalFocusMinutes, &a.ContextSwitches, &a.AvgCognitiveLoad,
			&a.DeepWorkStreaks, &a.PeakFocusHour, &a.TasksCompleted,
		); err != nil {
			return nil, unavailable("scan daily analytics", err)
		}
		parsed, err := time.Parse(dayLayout, day)
		if err != nil {
			return nil, unavailable("parse analytics day", err)
		}
		a.Date = parsed
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list daily analytics", err)
	}
	return out, nil
}
