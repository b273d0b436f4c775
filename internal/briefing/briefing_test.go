package briefing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/pkg/models"
)

const sampleReply = `## What Changed
Two commits landed touching cache.go.

## Key Decisions
Redis stays optional.

## Current Status
PR #4 is waiting for review.

## Needs Attention
Flaky test in cache_test.go.`

type scriptedCompleter struct {
	reply  string
	err    error
	system string
	prompt string
	opts   provider.Options
}

func (c *scriptedCompleter) Complete(ctx context.Context, system, prompt string, opts provider.Options) (string, error) {
	c.system, c.prompt, c.opts = system, prompt, opts
	return c.reply, c.err
}

func seed(t *testing.T) (*database.Database, *models.Issue, *models.PullRequest) {
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "briefing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	repo := &models.Repository{UserID: "u1", ProviderID: 1, Name: "api", FullName: "octo/api"}
	require.NoError(t, db.UpsertRepository(ctx, repo))

	issue := &models.Issue{UserID: "u1", RepoID: repo.ID, ProviderID: 11, Number: 7, Title: "Cache misses",
		State: models.TaskStateOpen, Complexity: 4, Labels: []string{"bug"}, CommentCount: 3}
	require.NoError(t, db.UpsertIssue(ctx, issue))

	pr := &models.PullRequest{UserID: "u1", RepoID: repo.ID, ProviderID: 21, Number: 4, Title: "Add redis",
		State: models.TaskStateOpen, Additions: 120, Deletions: 10, ChangedFiles: 6}
	require.NoError(t, db.UpsertPullRequest(ctx, pr))

	_, err = db.InsertCommitIfAbsent(ctx, &models.Commit{UserID: "u1", RepoID: repo.ID, SHA: "abc",
		Message: "wire redis backend", Additions: 50, Deletions: 2, CommittedAt: time.Now()})
	require.NoError(t, err)
	return db, issue, pr
}

func TestParseSections(t *testing.T) {
	s := ParseSections(sampleReply)
	assert.Equal(t, "Two commits landed touching cache.go.", s.WhatChanged)
	assert.Equal(t, "Redis stays optional.", s.KeyDecisions)
	assert.Equal(t, "PR #4 is waiting for review.", s.CurrentStatus)
	assert.Equal(t, "Flaky test in cache_test.go.", s.NeedsAttention)
}

func TestParseSections_MissingAndCase(t *testing.T) {
	s := ParseSections("## what changed\nsomething\n\nno other headers")
	assert.Equal(t, "something\n\nno other headers", s.WhatChanged)
	assert.Empty(t, s.KeyDecisions)
	assert.Empty(t, s.NeedsAttention)
}

func TestParseTaskType(t *testing.T) {
	for in, want := range map[string]models.TaskType{"issue": models.TaskTypeIssue, "pr": models.TaskTypePullRequest, "pull_request": models.TaskTypePullRequest} {
		got, err := ParseTaskType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTaskType("epic")
	assert.ErrorIs(t, err, ErrInvalidTaskType)
}

func TestGenerate_Issue(t *testing.T) {
	db, issue, _ := seed(t)
	c := &scriptedCompleter{reply: sampleReply}
	bus := events.NewMemoryBus(nil)
	var got []events.Event
	unsubscribe, err := bus.Subscribe("u1", func(e events.Event) { got = append(got, e) })
	require.NoError(t, err)
	defer unsubscribe()

	g := NewGenerator(db, c, provider.Options{}, 0)
	g.SetPublisher(bus)

	b, err := g.Generate(context.Background(), "u1", issue.ID, models.TaskTypeIssue)
	require.NoError(t, err)
	assert.Equal(t, "Briefing: Cache misses (#7)", b.Title)
	assert.Equal(t, "Redis stays optional.", b.Sections.KeyDecisions)
	assert.Equal(t, DefaultOptions(), c.opts)
	assert.True(t, strings.Contains(c.system, "## Needs Attention"))
	assert.Contains(t, c.prompt, "Task: Issue #7 - Cache misses")
	assert.Contains(t, c.prompt, `Labels: ["bug"]`)
	assert.Contains(t, c.prompt, "Body: No description")
	assert.Contains(t, c.prompt, "- wire redis backend (+50/-2)")
	assert.Contains(t, c.prompt, "- #4: Add redis (+120/-10)")
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeBriefingCreated, got[0].Type)

	stored, err := db.ListBriefings(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, b.ID, stored[0].ID)
}

func TestGenerate_PullRequest(t *testing.T) {
	db, _, pr := seed(t)
	c := &scriptedCompleter{reply: sampleReply}
	g := NewGenerator(db, c, provider.Options{}, time.Second)

	b, err := g.Generate(context.Background(), "u1", pr.ID, models.TaskTypePullRequest)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypePullRequest, b.TaskType)
	assert.Contains(t, c.prompt, "Changes: +120/-10 across 6 files")
	assert.NotContains(t, c.prompt, "Open PRs in repo")
}

func TestGenerate_AdvisoryFailureIsReturned(t *testing.T) {
	db, issue, _ := seed(t)
	g := NewGenerator(db, &scriptedCompleter{err: errors.New("503")}, provider.Options{}, 0)

	_, err := g.Generate(context.Background(), "u1", issue.ID, models.TaskTypeIssue)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvisory)

	stored, err := db.ListBriefings(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGenerate_OtherUsersTaskIsNotFound(t *testing.T) {
	db, issue, _ := seed(t)
	c := &scriptedCompleter{reply: sampleReply}
	g := NewGenerator(db, c, provider.Options{}, 0)

	_, err := g.Generate(context.Background(), "u2", issue.ID, models.TaskTypeIssue)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Empty(t, c.prompt)

	_, err = g.Generate(context.Background(), "u1", "missing", models.TaskTypeIssue)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
