package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// InsertRecommendations persists a batch atomically: either every
// recommendation is stored or none is.
func (d *Database) InsertRecommendations(ctx context.Context, recs []*models.AgentRecommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := d.q(`
		INSERT INTO agent_recommendations (
			id, user_id, agent, type, message, priority, estimated_cost_minutes,
			suggested_actions_json, dismissed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	now := time.Now().UTC()
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = newID()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.CreatedAt = utc(rec.CreatedAt)

		actions, err := marshalJSON(nonNilStrings(rec.SuggestedActions))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.UserID,
			string(rec.Agent),
			rec.Type,
			rec.Message,
			string(rec.Priority),
			sqlNullInt(rec.EstimatedCostMinutes),
			actions,
			rec.Dismissed,
			rec.CreatedAt,
		); err != nil {
			return unavailable("insert recommendation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit recommendations", err)
	}
	return nil
}

// ListRecommendations returns a user's recommendations, newest first.
// Dismissed entries are omitted unless includeDismissed is set.
func (d *Database) ListRecommendations(ctx context.Context, userID string, includeDismissed bool, limit int) ([]*models.AgentRecommendation, error) {
	query := `
		SELECT id, user_id, agent, type, message, priority, estimated_cost_minutes,
			   suggested_actions_json, dismissed, created_at
		FROM agent_recommendations WHERE user_id = ?`
	if !includeDismissed {
		query += ` AND dismissed = ?`
	}
	query += ` ORDER BY created_at DESC, id ASC` + limitClause(limit)

	args := []interface{}{userID}
	if !includeDismissed {
		args = append(args, false)
	}

	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, unavailable("list recommendations", err)
	}
	defer rows.Close()

	var recs []*models.AgentRecommendation
	for rows.Next() {
		rec := &models.AgentRecommendation{}
		var agent, priority string
		var cost sql.NullInt64
		var actions sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &agent, &rec.Type, &rec.Message, &priority,
			&cost, &actions, &rec.Dismissed, &rec.CreatedAt,
		); err != nil {
			return nil, unavailable("scan recommendation", err)
		}
		rec.Agent = models.AgentName(agent)
		rec.Priority = models.Priority(priority)
		rec.EstimatedCostMinutes = intPtr(cost)
		rec.CreatedAt = rec.CreatedAt.UTC()
		if err := unmarshalJSON(actions, &rec.SuggestedActions); err != nil {
			return nil, err
		}
		if rec.SuggestedActions == nil {
			rec.SuggestedActions = []string{}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list recommendations", err)
	}
	return recs, nil
}

// SetRecommendationDismissed flips the dismissed flag on a recommendation the user owns.
// Returns ErrNotFound if the id does not belong to the user.
func (d *Database) SetRecommendationDismissed(ctx context.Context, userID, recID string, dismissed bool) error {
	query := `UPDATE agent_recommendations SET dismissed = ? WHERE id = ? AND user_id = ?`
	res, err := d.db.ExecContext(ctx, d.q(query), dismissed, recID, userID)
	if err != nil {
		return unavailable("dismiss recommendation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("dismiss recommendation", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
