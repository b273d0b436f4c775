package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// UpsertIssue inserts or refreshes an issue keyed by (repo_id, provider_id).
// On return issue.ID holds the stored id.
func (d *Database) UpsertIssue(ctx context.Context, issue *models.Issue) error {
	now := time.Now().UTC()
	if issue.ID == "" {
		issue.ID = newID()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	labels, err := marshalJSON(nonNilStrings(issue.Labels))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO issues (
			id, user_id, repo_id, provider_id, number, title, body, state, complexity,
			priority, labels_json, comment_count, assigned_at, closed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, provider_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			complexity = excluded.complexity,
			priority = excluded.priority,
			labels_json = excluded.labels_json,
			comment_count = excluded.comment_count,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, d.q(query),
		issue.ID,
		issue.UserID,
		issue.RepoID,
		issue.ProviderID,
		issue.Number,
		issue.Title,
		sqlNullString(issue.Body),
		string(issue.State),
		issue.Complexity,
		issue.Priority,
		labels,
		issue.CommentCount,
		sqlNullTime(issue.AssignedAt),
		sqlNullTime(issue.ClosedAt),
		utc(issue.CreatedAt),
		utc(issue.UpdatedAt),
	).Scan(&issue.ID)
	if err != nil {
		return unavailable("upsert issue", err)
	}
	return nil
}

const issueColumns = `
	i.id, i.user_id, i.repo_id, COALESCE(r.name, ''), i.provider_id, i.number, i.title, i.body,
	i.state, i.complexity, i.priority, i.labels_json, i.comment_count, i.assigned_at,
	i.closed_at, i.created_at, i.updated_at
`

func scanIssue(row interface{ Scan(...interface{}) error }) (*models.Issue, error) {
	issue := &models.Issue{}
	var body, labels sql.NullString
	var state string
	var assignedAt, closedAt sql.NullTime
	err := row.Scan(
		&issue.ID,
		&issue.UserID,
		&issue.RepoID,
		&issue.RepoName,
		&issue.ProviderID,
		&issue.Number,
		&issue.Title,
		&body,
		&state,
		&issue.Complexity,
		&issue.Priority,
		&labels,
		&issue.CommentCount,
		&assignedAt,
		&closedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	issue.Body = body.String
	issue.State = models.TaskState(state)
	issue.AssignedAt = timePtr(assignedAt)
	issue.ClosedAt = timePtr(closedAt)
	if err := unmarshalJSON(labels, &issue.Labels); err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue returns an issue by id
func (d *Database) GetIssue(ctx context.Context, issueID string) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + `
		FROM issues i LEFT JOIN repositories r ON r.id = i.repo_id
		WHERE i.id = ?`

	issue, err := scanIssue(d.db.QueryRowContext(ctx, d.q(query), issueID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get issue", err)
	}
	return issue, nil
}

// ListOpenIssues returns a user's open issues, oldest first. limit <= 0 means no limit.
func (d *Database) ListOpenIssues(ctx context.Context, userID string, limit int) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + `
		FROM issues i LEFT JOIN repositories r ON r.id = i.repo_id
		WHERE i.user_id = ? AND i.state = 'open'
		ORDER BY i.created_at ASC, i.id ASC` + limitClause(limit)

	rows, err := d.db.QueryContext(ctx, d.q(query), userID)
	if err != nil {
		return nil, unavailable("list open issues", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, unavailable("scan issue", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list open issues", err)
	}
	return issues, nil
}

// CountOpenIssues counts a user's open issues
func (d *Database) CountOpenIssues(ctx context.Context, userID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM issues WHERE user_id = ? AND state = 'open'`
	if err := d.db.QueryRowContext(ctx, d.q(query), userID).Scan(&n); err != nil {
		return 0, unavailable("count open issues", err)
	}
	return n, nil
}

// CountIssuesClosedBetween counts issues a user closed in [from, to)
func (d *Database) CountIssuesClosedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM issues WHERE user_id = ? AND closed_at >= ? AND closed_at < ?`
	if err := d.db.QueryRowContext(ctx, d.q(query), userID, utc(from), utc(to)).Scan(&n); err != nil {
		return 0, unavailable("count closed issues", err)
	}
	return n, nil
}

// UpsertPullRequest inserts or refreshes a pull request keyed by (repo_id, provider_id).
// On return pr.ID holds the stored id.
func (d *Database) UpsertPullRequest(ctx context.Context, pr *models.PullRequest) error {
	now := time.Now().UTC()
	if pr.ID == "" {
		pr.ID = newID()
	}
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now

	labels, err := marshalJSON(nonNilStrings(pr.Labels))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pull_requests (
			id, user_id, repo_id, provider_id, number, title, body, state, complexity,
			labels_json, additions, deletions, changed_files, review_comments, merged_at,
			closed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, provider_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			complexity = excluded.complexity,
			labels_json = excluded.labels_json,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files,
			review_comments = excluded.review_comments,
			merged_at = excluded.merged_at,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, d.q(query),
		pr.ID,
		pr.UserID,
		pr.RepoID,
		pr.ProviderID,
		pr.Number,
		pr.Title,
		sqlNullString(pr.Body),
		string(pr.State),
		pr.Complexity,
		labels,
		pr.Additions,
		pr.Deletions,
		pr.ChangedFiles,
		pr.ReviewComments,
		sqlNullTime(pr.MergedAt),
		sqlNullTime(pr.ClosedAt),
		utc(pr.CreatedAt),
		utc(pr.UpdatedAt),
	).Scan(&pr.ID)
	if err != nil {
		return unavailable("upsert pull request", err)
	}
	return nil
}

const pullRequestColumns = `
	p.id, p.user_id, p.repo_id, COALESCE(r.name, ''), p.provider_id, p.number, p.title, p.body,
	p.state, p.complexity, p.labels_json, p.additions, p.deletions, p.changed_files,
	p.review_comments, p.merged_at, p.closed_at, p.created_at, p.updated_at
`

func scanPullRequest(row interface{ Scan(...interface{}) error }) (*models.PullRequest, error) {
	pr := &models.PullRequest{}
	var body, labels sql.NullString
	var state string
	var mergedAt, closedAt sql.NullTime
	err := row.Scan(
		&pr.ID,
		&pr.UserID,
		&pr.RepoID,
		&pr.RepoName,
		&pr.ProviderID,
		&pr.Number,
		&pr.Title,
		&body,
		&state,
		&pr.Complexity,
		&labels,
		&pr.Additions,
		&pr.Deletions,
		&pr.ChangedFiles,
		&pr.ReviewComments,
		&mergedAt,
		&closedAt,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pr.Body = body.String
	pr.State = models.TaskState(state)
	pr.MergedAt = timePtr(mergedAt)
	pr.ClosedAt = timePtr(closedAt)
	if err := unmarshalJSON(labels, &pr.Labels); err != nil {
		return nil, err
	}
	return pr, nil
}

// GetPullRequest returns a pull request by id
func (d *Database) GetPullRequest(ctx context.Context, prID string) (*models.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + `
		FROM pull_requests p LEFT JOIN repositories r ON r.id = p.repo_id
		WHERE p.id = ?`

	pr, err := scanPullRequest(d.db.QueryRowContext(ctx, d.q(query), prID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get pull request", err)
	}
	return pr, nil
}

// ListOpenPullRequests returns a user's open pull requests, oldest first. limit <= 0 means no limit.
func (d *Database) ListOpenPullRequests(ctx context.Context, userID string, limit int) ([]*models.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + `
		FROM pull_requests p LEFT JOIN repositories r ON r.id = p.repo_id
		WHERE p.user_id = ? AND p.state = 'open'
		ORDER BY p.created_at ASC, p.id ASC` + limitClause(limit)

	return d.queryPullRequests(ctx, "list open pull requests", query, userID)
}

// ListOpenPullRequestsByRepo returns open pull requests in one repository
func (d *Database) ListOpenPullRequestsByRepo(ctx context.Context, repoID string, limit int) ([]*models.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + `
		FROM pull_requests p LEFT JOIN repositories r ON r.id = p.repo_id
		WHERE p.repo_id = ? AND p.state = 'open'
		ORDER BY p.created_at DESC, p.id ASC` + limitClause(limit)

	return d.queryPullRequests(ctx, "list repository pull requests", query, repoID)
}

func (d *Database) queryPullRequests(ctx context.Context, op, query string, args ...interface{}) ([]*models.PullRequest, error) {
	rows, err := d.db.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var prs []*models.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, unavailable("scan pull request", err)
		}
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return prs, nil
}

// CountOpenPullRequests counts a user's open pull requests
func (d *Database) CountOpenPullRequests(ctx context.Context, userID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM pull_requests WHERE user_id = ? AND state = 'open'`
	if err := d.db.QueryRowContext(ctx, d.q(query), userID).Scan(&n); err != nil {
		return 0, unavailable("count open pull requests", err)
	}
	return n, nil
}

// CountPullRequestsClosedBetween counts pull requests merged or closed in [from, to)
func (d *Database) CountPullRequestsClosedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	query := `
		SELECT COUNT(*) FROM pull_requests
		WHERE user_id = ? AND COALESCE(merged_at, closed_at) >= ? AND COALESCE(merged_at, closed_at) < ?
	`
	if err := d.db.QueryRowContext(ctx, d.q(query), userID, utc(from), utc(to)).Scan(&n); err != nil {
		return 0, unavailable("count closed pull requests", err)
	}
	return n, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
