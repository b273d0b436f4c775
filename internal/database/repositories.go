package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// UpsertRepository inserts or refreshes a repository keyed by its provider id.
// On return repo.ID holds the stored id.
func (d *Database) UpsertRepository(ctx context.Context, repo *models.Repository) error {
	now := time.Now().UTC()
	if repo.ID == "" {
		repo.ID = newID()
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.LastSyncedAt = now

	query := `
		INSERT INTO repositories (
			id, user_id, provider_id, name, full_name, url, description, language,
			is_private, star_count, last_synced_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_id) DO UPDATE SET
			name = excluded.name,
			full_name = excluded.full_name,
			url = excluded.url,
			description = excluded.description,
			language = excluded.language,
			is_private = excluded.is_private,
			star_count = excluded.star_count,
			last_synced_at = excluded.last_synced_at
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, d.q(query),
		repo.ID,
		repo.UserID,
		repo.ProviderID,
		repo.Name,
		repo.FullName,
		repo.URL,
		sqlNullString(repo.Description),
		sqlNullString(repo.Language),
		repo.IsPrivate,
		repo.StarCount,
		utc(repo.LastSyncedAt),
		utc(repo.CreatedAt),
	).Scan(&repo.ID)
	if err != nil {
		return unavailable("upsert repository", err)
	}
	return nil
}

// GetRepository returns a repository by id
func (d *Database) GetRepository(ctx context.Context, repoID string) (*models.Repository, error) {
	query := `
		SELECT id, user_id, provider_id, name, full_name, url, description, language,
			   is_private, star_count, last_synced_at, created_at
		FROM repositories WHERE id = ?
	`
	repo := &models.Repository{}
	var description, language sql.NullString
	err := d.db.QueryRowContext(ctx, d.q(query), repoID).Scan(
		&repo.ID,
		&repo.UserID,
		&repo.ProviderID,
		&repo.Name,
		&repo.FullName,
		&repo.URL,
		&description,
		&language,
		&repo.IsPrivate,
		&repo.StarCount,
		&repo.LastSyncedAt,
		&repo.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get repository", err)
	}
	repo.Description = description.String
	repo.Language = language.String
	return repo, nil
}
