package github

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/telemetry"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// Store is the subset of the store adapter sync writes to
type Store interface {
	UpsertRepository(ctx context.Context, repo *models.Repository) error
	UpsertIssue(ctx context.Context, issue *models.Issue) error
	UpsertPullRequest(ctx context.Context, pr *models.PullRequest) error
	InsertCommitIfAbsent(ctx context.Context, c *models.Commit) (bool, error)
}

// Source is the read side of GitHub
type Source interface {
	ListRepositories(ctx context.Context, limit int) ([]Repository, error)
	ListIssues(ctx context.Context, fullName string, limit int) ([]Issue, error)
	ListPullRequests(ctx context.Context, fullName string, limit int) ([]PullRequest, error)
	ListCommits(ctx context.Context, fullName string, limit int) ([]Commit, error)
}

// Scorer recomputes the cognitive score once sync has landed new data
type Scorer interface {
	Calculate(ctx context.Context, userID string) (*models.CognitiveScore, error)
}

// Invalidator drops cached reads for a user
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) int
}

// Result summarizes one sync
type Result struct {
	SyncedRepos    int       `json:"syncedRepos"`
	Issues         int       `json:"issues"`
	PullRequests   int       `json:"pullRequests"`
	NewCommits     int       `json:"newCommits"`
	FailedRepos    int       `json:"failedRepos"`
	CognitiveScore int       `json:"cognitiveScore"`
	SyncedAt       time.Time `json:"syncedAt"`
}

// Syncer pulls GitHub activity into the store
type Syncer struct {
	source      Source
	store       Store
	scorer      Scorer
	invalidator Invalidator
	publisher   events.Publisher
	metrics     *metrics.Metrics
	repoLimit   int
	now         func() time.Time
}

// NewSyncer creates a syncer. Only the repoLimit most recently updated
// repositories (default 10) get their issues, PRs and commits pulled.
func NewSyncer(source Source, store Store, scorer Scorer, repoLimit int) *Syncer {
	if repoLimit <= 0 {
		repoLimit = 10
	}
	return &Syncer{
		source:    source,
		store:     store,
		scorer:    scorer,
		repoLimit: repoLimit,
		now:       time.Now,
	}
}

// SetInvalidator wires the score cache
func (s *Syncer) SetInvalidator(inv Invalidator) { s.invalidator = inv }

// SetPublisher wires sync.completed events
func (s *Syncer) SetPublisher(p events.Publisher) { s.publisher = p }

// SetMetrics wires sync counters
func (s *Syncer) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Sync refreshes the user's repositories then each repo's issues, pull
// requests and commits. A failure inside one repository is logged and the
// repo skipped; failing to list repositories or to store a repository aborts.
func (s *Syncer) Sync(ctx context.Context, userID string) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.Sync", attribute.String("user.id", userID))
	defer span.End()

	start := s.now()
	log.Printf("[Sync] Starting GitHub sync for %s", userID)

	repos, err := s.source.ListRepositories(ctx, 30)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	res := &Result{}
	stored := make([]*models.Repository, 0, len(repos))
	for _, r := range repos {
		repo := &models.Repository{
			UserID:      userID,
			ProviderID:  r.ID,
			Name:        r.Name,
			FullName:    r.FullName,
			URL:         r.HTMLURL,
			Description: r.Description,
			Language:    r.Language,
			IsPrivate:   r.Private,
			StarCount:   r.Stars,
		}
		if err := s.store.UpsertRepository(ctx, repo); err != nil {
			return nil, fmt.Errorf("failed to store repository %s: %w", r.FullName, err)
		}
		stored = append(stored, repo)
	}
	res.SyncedRepos = len(stored)
	s.metrics.RecordSynced("repository", len(stored))

	if len(stored) > s.repoLimit {
		stored = stored[:s.repoLimit]
	}
	for _, repo := range stored {
		if err := s.syncRepo(ctx, userID, repo, res); err != nil {
			res.FailedRepos++
			log.Printf("[Sync] Skipping %s: %v", repo.FullName, err)
		}
	}

	score, err := s.scorer.Calculate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute score after sync: %w", err)
	}
	res.CognitiveScore = score.Score
	res.SyncedAt = s.now()

	if s.invalidator != nil {
		s.invalidator.InvalidatePrefix(ctx, cache.UserPrefix(userID))
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewEvent(events.TypeSyncCompleted, userID, res)); err != nil {
			log.Printf("[Sync] Failed to publish sync event for %s: %v", userID, err)
		}
	}

	log.Printf("[Sync] Completed for %s: repos=%d issues=%d prs=%d commits=%d score=%d in %s",
		userID, res.SyncedRepos, res.Issues, res.PullRequests, res.NewCommits, res.CognitiveScore,
		s.now().Sub(start))
	return res, nil
}

func (s *Syncer) syncRepo(ctx context.Context, userID string, repo *models.Repository, res *Result) error {
	issues, err := s.source.ListIssues(ctx, repo.FullName, 50)
	if err != nil {
		return fmt.Errorf("failed to list issues: %w", err)
	}
	for _, gi := range issues {
		if err := s.store.UpsertIssue(ctx, s.issueModel(userID, repo.ID, gi)); err != nil {
			return fmt.Errorf("failed to store issue #%d: %w", gi.Number, err)
		}
	}
	res.Issues += len(issues)
	s.metrics.RecordSynced("issue", len(issues))

	prs, err := s.source.ListPullRequests(ctx, repo.FullName, 30)
	if err != nil {
		return fmt.Errorf("failed to list pull requests: %w", err)
	}
	for _, gp := range prs {
		if err := s.store.UpsertPullRequest(ctx, pullRequestModel(userID, repo.ID, gp)); err != nil {
			return fmt.Errorf("failed to store pull request #%d: %w", gp.Number, err)
		}
	}
	res.PullRequests += len(prs)
	s.metrics.RecordSynced("pull_request", len(prs))

	commits, err := s.source.ListCommits(ctx, repo.FullName, 30)
	if err != nil {
		return fmt.Errorf("failed to list commits: %w", err)
	}
	added := 0
	for _, gc := range commits {
		c := &models.Commit{
			UserID:       userID,
			RepoID:       repo.ID,
			SHA:          gc.SHA,
			Message:      gc.Commit.Message,
			FilesChanged: len(gc.Files),
			CommittedAt:  gc.Commit.Committer.Date,
		}
		if gc.Stats != nil {
			c.Additions = gc.Stats.Additions
			c.Deletions = gc.Stats.Deletions
		}
		if c.CommittedAt.IsZero() {
			c.CommittedAt = s.now()
		}
		ok, err := s.store.InsertCommitIfAbsent(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to store commit %s: %w", gc.SHA, err)
		}
		if ok {
			added++
		}
	}
	res.NewCommits += added
	s.metrics.RecordSynced("commit", added)
	return nil
}

func (s *Syncer) issueModel(userID, repoID string, gi Issue) *models.Issue {
	labels := labelNames(gi.Labels)
	state := models.TaskState(gi.State)
	issue := &models.Issue{
		UserID:       userID,
		RepoID:       repoID,
		ProviderID:   gi.ID,
		Number:       gi.Number,
		Title:        gi.Title,
		Body:         gi.Body,
		State:        state,
		Complexity:   IssueComplexity(gi.Body, labels, gi.Comments),
		Priority:     Priority(labels, state == models.TaskStateOpen),
		Labels:       labels,
		CommentCount: gi.Comments,
		ClosedAt:     gi.ClosedAt,
		CreatedAt:    gi.CreatedAt,
	}
	if gi.Assignee != nil {
		now := s.now()
		issue.AssignedAt = &now
	}
	return issue
}

func pullRequestModel(userID, repoID string, gp PullRequest) *models.PullRequest {
	state := models.TaskState(gp.State)
	if gp.MergedAt != nil {
		state = models.TaskStateMerged
	}
	return &models.PullRequest{
		UserID:         userID,
		RepoID:         repoID,
		ProviderID:     gp.ID,
		Number:         gp.Number,
		Title:          gp.Title,
		Body:           gp.Body,
		State:          state,
		Complexity:     PullRequestComplexity(gp.Additions, gp.Deletions, gp.ChangedFiles),
		Labels:         labelNames(gp.Labels),
		Additions:      gp.Additions,
		Deletions:      gp.Deletions,
		ChangedFiles:   gp.ChangedFiles,
		ReviewComments: gp.ReviewComments,
		MergedAt:       gp.MergedAt,
		ClosedAt:       gp.ClosedAt,
		CreatedAt:      gp.CreatedAt,
	}
}
