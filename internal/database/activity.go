package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// InsertContextSwitch appends a context switch record
func (d *Database) InsertContextSwitch(ctx context.Context, sw *models.ContextSwitch) error {
	if sw.ID == "" {
		sw.ID = newID()
	}
	if sw.SwitchedAt.IsZero() {
		sw.SwitchedAt = time.Now()
	}
	sw.SwitchedAt = utc(sw.SwitchedAt)

	query := `
		INSERT INTO context_switches (id, user_id, from_task_type, to_task_type, switched_at, estimated_cost)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, d.q(query),
		sw.ID, sw.UserID, sw.FromTaskType, sw.ToTaskType, sw.SwitchedAt, sw.EstimatedCost,
	)
	if err != nil {
		return unavailable("insert context switch", err)
	}
	return nil
}

// CountContextSwitchesSince counts a user's switches at or after since
func (d *Database) CountContextSwitchesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM context_switches WHERE user_id = ? AND switched_at >= ?`
	if err := d.db.QueryRowContext(ctx, d.q(query), userID, utc(since)).Scan(&n); err != nil {
		return 0, unavailable("count context switches", err)
	}
	return n, nil
}

// ListContextSwitches returns a user's switches in [from, to), oldest first
func (d *Database) ListContextSwitches(ctx context.Context, userID string, from, to time.Time) ([]*models.ContextSwitch, error) {
	query := `
		SELECT id, user_id, from_task_type, to_task_type, switched_at, estimated_cost
		FROM context_switches
		WHERE user_id = ? AND switched_at >= ? AND switched_at < ?
		ORDER BY switched_at ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, d.q(query), userID, utc(from), utc(to))
	if err != nil {
		return nil, unavailable("list context switches", err)
	}
	defer rows.Close()

	var switches []*models.ContextSwitch
	for rows.Next() {
		sw := &models.ContextSwitch{}
		if err := rows.Scan(&sw.ID, &sw.UserID, &sw.FromTaskType, &sw.ToTaskType, &sw.SwitchedAt, &sw.EstimatedCost); err != nil {
			return nil, unavailable("scan context switch", err)
		}
		switches = append(switches, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list context switches", err)
	}
	return switches, nil
}

// InsertFocusSession starts a focus session
func (d *Database) InsertFocusSession(ctx context.Context, s *models.FocusSession) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	s.StartedAt = utc(s.StartedAt)

	query := `
		INSERT INTO focus_sessions (
			id, user_id, task_type, task_id, started_at, ended_at, duration, interrupted, interruption_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, d.q(query),
		s.ID,
		s.UserID,
		s.TaskType,
		sqlNullString(s.TaskID),
		s.StartedAt,
		sqlNullTime(s.EndedAt),
		s.Duration,
		s.Interrupted,
		s.InterruptionCount,
	)
	if err != nil {
		return unavailable("insert focus session", err)
	}
	return nil
}

// CloseFocusSession ends an open session owned by userID and records its duration.
// Returns ErrNotFound if no open session with that id belongs to the user.
func (d *Database) CloseFocusSession(ctx context.Context, userID, sessionID string, endedAt time.Time, interrupted bool) (*models.FocusSession, error) {
	s, err := d.getFocusSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsOpen() {
		return nil, ErrNotFound
	}

	end := utc(endedAt)
	duration := int(end.Sub(s.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	interruptions := s.InterruptionCount
	if interrupted {
		interruptions++
	}

	query := `
		UPDATE focus_sessions
		SET ended_at = ?, duration = ?, interrupted = ?, interruption_count = ?
		WHERE id = ? AND user_id = ? AND ended_at IS NULL
	`
	res, err := d.db.ExecContext(ctx, d.q(query), end, duration, interrupted || s.Interrupted, interruptions, sessionID, userID)
	if err != nil {
		return nil, unavailable("close focus session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("close focus session", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	s.EndedAt = &end
	s.Duration = duration
	s.Interrupted = interrupted || s.Interrupted
	s.InterruptionCount = interruptions
	return s, nil
}

const focusSessionColumns = `id, user_id, task_type, task_id, started_at, ended_at, duration, interrupted, interruption_count`

func scanFocusSession(row interface{ Scan(...interface{}) error }) (*models.FocusSession, error) {
	s := &models.FocusSession{}
	var taskID sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(
		&s.ID, &s.UserID, &s.TaskType, &taskID, &s.StartedAt, &endedAt,
		&s.Duration, &s.Interrupted, &s.InterruptionCount,
	); err != nil {
		return nil, err
	}
	s.TaskID = taskID.String
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = timePtr(endedAt)
	return s, nil
}

func (d *Database) getFocusSession(ctx context.Context, userID, sessionID string) (*models.FocusSession, error) {
	query := `SELECT ` + focusSessionColumns + ` FROM focus_sessions WHERE id = ? AND user_id = ?`
	s, err := scanFocusSession(d.db.QueryRowContext(ctx, d.q(query), sessionID, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get focus session", err)
	}
	return s, nil
}

// LatestFocusSession returns the user's most recently started session, or nil if none exists
func (d *Database) LatestFocusSession(ctx context.Context, userID string) (*models.FocusSession, error) {
	query := `SELECT ` + focusSessionColumns + `
		FROM focus_sessions WHERE user_id = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`
	s, err := scanFocusSession(d.db.QueryRowContext(ctx, d.q(query), userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get latest focus session", err)
	}
	return s, nil
}

// CurrentFocusSession returns the user's most recent open session, or nil if none is open
func (d *Database) CurrentFocusSession(ctx context.Context, userID string) (*models.FocusSession, error) {
	query := `SELECT ` + focusSessionColumns + `
		FROM focus_sessions WHERE user_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC, id DESC LIMIT 1`
	s, err := scanFocusSession(d.db.QueryRowContext(ctx, d.q(query), userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get current focus session", err)
	}
	return s, nil
}

// ListFocusSessions returns sessions started in [from, to), oldest first
func (d *Database) ListFocusSessions(ctx context.Context, userID string, from, to time.Time) ([]*models.FocusSession, error) {
	query := `SELECT ` + focusSessionColumns + `
		FROM focus_sessions
		WHERE user_id = ? AND started_at >= ? AND started_at < ?
		ORDER BY started_at ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, d.q(query), userID, utc(from), utc(to))
	if err != nil {
		return nil, unavailable("list focus sessions", err)
	}
	defer rows.Close()

	var sessions []*models.FocusSession
	for rows.Next() {
		s, err := scanFocusSession(rows)
		if err != nil {
			return nil, unavailable("scan focus session", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list focus sessions", err)
	}
	return sessions, nil
}
