package database

import (
	"context"
	"database/sql"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// InsertCommitIfAbsent stores a commit unless (repo_id, sha) already exists.
// Returns true when a row was written.
func (d *Database) InsertCommitIfAbsent(ctx context.Context, c *models.Commit) (bool, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	query := `
		INSERT INTO commits (id, user_id, repo_id, sha, message, additions, deletions, files_changed, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, sha) DO NOTHING
	`
	res, err := d.db.ExecContext(ctx, d.q(query),
		c.ID,
		c.UserID,
		c.RepoID,
		c.SHA,
		c.Message,
		c.Additions,
		c.Deletions,
		c.FilesChanged,
		utc(c.CommittedAt),
	)
	if err != nil {
		return false, unavailable("insert commit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("insert commit", err)
	}
	return n > 0, nil
}

// ListRecentCommits returns the newest commits in a repository
func (d *Database) ListRecentCommits(ctx context.Context, repoID string, limit int) ([]*models.Commit, error) {
	query := `
		SELECT id, user_id, repo_id, sha, message, additions, deletions, files_changed, committed_at
		FROM commits WHERE repo_id = ?
		ORDER BY committed_at DESC, sha ASC` + limitClause(limit)

	rows, err := d.db.QueryContext(ctx, d.q(query), repoID)
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	defer rows.Close()

	var commits []*models.Commit
	for rows.Next() {
		c := &models.Commit{}
		var message sql.NullString
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.RepoID, &c.SHA, &message,
			&c.Additions, &c.Deletions, &c.FilesChanged, &c.CommittedAt,
		); err != nil {
			return nil, unavailable("scan commit", err)
		}
		c.Message = message.String
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list commits", err)
	}
	return commits, nil
}
