package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// InsertSnapshot appends a cognitive snapshot. Snapshots are never updated.
func (d *Database) InsertSnapshot(ctx context.Context, s *models.CognitiveSnapshot) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	s.Timestamp = utc(s.Timestamp)

	breakdown, err := marshalJSON(s.Breakdown)
	if err != nil {
		return err
	}
	factors, err := marshalJSON(s.Factors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cognitive_snapshots (id, user_id, score, level, breakdown_json, factors_json, weights_version, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.ExecContext(ctx, d.q(query),
		s.ID,
		s.UserID,
		s.Score,
		string(s.Level),
		breakdown,
		factors,
		sqlNullString(s.WeightsVersion),
		s.Timestamp,
	)
	if err != nil {
		return unavailable("insert snapshot", err)
	}
	return nil
}

const snapshotColumns = `id, user_id, score, level, breakdown_json, factors_json, weights_version, taken_at`

func scanSnapshot(row interface{ Scan(...interface{}) error }) (*models.CognitiveSnapshot, error) {
	s := &models.CognitiveSnapshot{}
	var level string
	var breakdown, factors, version sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.Score, &level, &breakdown, &factors, &version, &s.Timestamp); err != nil {
		return nil, err
	}
	s.Level = models.Level(level)
	s.WeightsVersion = version.String
	s.Timestamp = s.Timestamp.UTC()
	if err := unmarshalJSON(breakdown, &s.Breakdown); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(factors, &s.Factors); err != nil {
		return nil, err
	}
	return s, nil
}

// LatestSnapshot returns the user's newest snapshot, or nil if none exists
func (d *Database) LatestSnapshot(ctx context.Context, userID string) (*models.CognitiveSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM cognitive_snapshots WHERE user_id = ?
		ORDER BY taken_at DESC, id DESC LIMIT 1`
	s, err := scanSnapshot(d.db.QueryRowContext(ctx, d.q(query), userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get latest snapshot", err)
	}
	return s, nil
}

// ListSnapshotsSince returns a user's snapshots at or after since, oldest first
func (d *Database) ListSnapshotsSince(ctx context.Context, userID string, since time.Time) ([]*models.CognitiveSnapshot, error) {
	return d.listSnapshots(ctx, userID, since, time.Time{})
}

// ListSnapshotsBetween returns a user's snapshots in [from, to), oldest first
func (d *Database) ListSnapshotsBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.CognitiveSnapshot, error) {
	return d.listSnapshots(ctx, userID, from, to)
}

func (d *Database) listSnapshots(ctx context.Context, userID string, from, to time.Time) ([]*models.CognitiveSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM cognitive_snapshots WHERE user_id = ? AND taken_at >= ?`
	args := []interface{}{userID, utc(from)}
	if !to.IsZero() {
		query += ` AND taken_at < ?`
		args = append(args, utc(to))
	}
	query += ` ORDER BY taken_at ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, unavailable("list snapshots", err)
	}
	defer rows.Close()

	var snapshots []*models.CognitiveSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, unavailable("scan snapshot", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list snapshots", err)
	}
	return snapshots, nil
}
