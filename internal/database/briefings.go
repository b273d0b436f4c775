package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// InsertBriefing stores a generated briefing
func (d *Database) InsertBriefing(ctx context.Context, b *models.AIBriefing) error {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now()
	}
	b.GeneratedAt = utc(b.GeneratedAt)

	sections, err := marshalJSON(b.Sections)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ai_briefings (id, user_id, task_id, task_type, title, content, sections_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.ExecContext(ctx, d.q(query),
		b.ID, b.UserID, b.TaskID, string(b.TaskType), b.Title, b.Content, sections, b.GeneratedAt,
	)
	if err != nil {
		return unavailable("insert briefing", err)
	}
	return nil
}

// ListBriefings returns a user's briefings, newest first
func (d *Database) ListBriefings(ctx context.Context, userID string, limit int) ([]*models.AIBriefing, error) {
	query := `
		SELECT id, user_id, task_id, task_type, title, content, sections_json, generated_at
		FROM ai_briefings WHERE user_id = ?
		ORDER BY generated_at DESC, id ASC` + limitClause(limit)

	rows, err := d.db.QueryContext(ctx, d.q(query), userID)
	if err != nil {
		return nil, unavailable("list briefings", err)
	}
	defer rows.Close()

	var briefings []*models.AIBriefing
	for rows.Next() {
		b := &models.AIBriefing{}
		var taskType string
		var sections sql.NullString
		if err := rows.Scan(&b.ID, &b.UserID, &b.TaskID, &taskType, &b.Title, &b.Content, &sections, &b.GeneratedAt); err != nil {
			return nil, unavailable("scan briefing", err)
		}
		b.TaskType = models.TaskType(taskType)
		b.GeneratedAt = b.GeneratedAt.UTC()
		if err := unmarshalJSON(sections, &b.Sections); err != nil {
			return nil, err
		}
		briefings = append(briefings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list briefings", err)
	}
	return briefings, nil
}
