package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// UpsertUser inserts or refreshes a user row keyed by id
func (d *Database) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, login, name, email, github_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			login = excluded.login,
			name = excluded.name,
			email = excluded.email,
			github_id = excluded.github_id,
			updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, d.q(query),
		user.ID,
		user.Login,
		sqlNullString(user.Name),
		sqlNullString(user.Email),
		user.GitHubID,
		utc(user.CreatedAt),
		utc(user.UpdatedAt),
	)
	if err != nil {
		return unavailable("upsert user", err)
	}
	return nil
}

// GetUser returns a user by id
func (d *Database) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT id, login, name, email, github_id, created_at, updated_at FROM users WHERE id = ?`

	user := &models.User{}
	var name, email sql.NullString
	var githubID sql.NullInt64
	err := d.db.QueryRowContext(ctx, d.q(query), userID).Scan(
		&user.ID, &user.Login, &name, &email, &githubID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	user.Name = name.String
	user.Email = email.String
	user.GitHubID = githubID.Int64
	return user, nil
}

// ListActiveUserIDs returns users with open work or recent activity since the given time
func (d *Database) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT user_id FROM issues WHERE state = 'open'
		UNION
		SELECT user_id FROM pull_requests WHERE state = 'open'
		UNION
		SELECT user_id FROM focus_sessions WHERE started_at >= ?
		UNION
		SELECT user_id FROM context_switches WHERE switched_at >= ?
	`
	rows, err := d.db.QueryContext(ctx, d.q(query), utc(since), utc(since))
	if err != nil {
		return nil, unavailable("list active users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan active user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list active users", err)
	}
	return ids, nil
}
