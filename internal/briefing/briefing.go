// Package briefing generates context-reload briefings for a task the user is
// returning to. Unlike the agents there is no fallback: an advisory failure
// goes back to the caller.
package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/internal/telemetry"
	"github.com/jordanhubbard/cogload/pkg/models"
)

var (
	// ErrInvalidTaskType is returned for task types other than issue and pr
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrAdvisory wraps a failed briefing completion
	ErrAdvisory = errors.New("briefing generation failed")
)

const (
	bodyLimit     = 2000
	commitLimit   = 10
	openPRLimit   = 5
	defaultTimeout = 60 * time.Second
)

const systemPrompt = `You are a cognitive assistant for software developers. Your job is to generate concise, structured context-reload briefings that help developers quickly regain mental context for a task they haven't worked on recently.

Output format (use these exact section headers):
## What Changed
[Summarize all recent changes, commits, and updates]

## Key Decisions
[Highlight architectural decisions, design choices, or team agreements]

## Current Status
[What state is this task/PR in right now?]

## Needs Attention
[What requires immediate focus or action?]

Keep each section to 2-4 sentences. Be specific, not generic. Reference actual file names, function names, and PR numbers when available.`

// Store is what the generator reads and writes
type Store interface {
	GetIssue(ctx context.Context, issueID string) (*models.Issue, error)
	GetPullRequest(ctx context.Context, prID string) (*models.PullRequest, error)
	ListRecentCommits(ctx context.Context, repoID string, limit int) ([]*models.Commit, error)
	ListOpenPullRequestsByRepo(ctx context.Context, repoID string, limit int) ([]*models.PullRequest, error)
	InsertBriefing(ctx context.Context, b *models.AIBriefing) error
}

// Generator produces and stores briefings
type Generator struct {
	store     Store
	completer provider.Completer
	opts      provider.Options
	timeout   time.Duration
	publisher events.Publisher
}

// DefaultOptions are the completion settings for briefings
func DefaultOptions() provider.Options {
	return provider.Options{Temperature: 0.3, MaxTokens: 1500}
}

// NewGenerator creates a generator. Zero options fall back to DefaultOptions.
func NewGenerator(store Store, completer provider.Completer, opts provider.Options, timeout time.Duration) *Generator {
	if opts.MaxTokens == 0 {
		opts = DefaultOptions()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{store: store, completer: completer, opts: opts, timeout: timeout}
}

// SetPublisher wires briefing.created events
func (g *Generator) SetPublisher(p events.Publisher) { g.publisher = p }

// ParseTaskType accepts "issue", "pr" and "pull_request"
func ParseTaskType(s string) (models.TaskType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "issue":
		return models.TaskTypeIssue, nil
	case "pr", "pull_request":
		return models.TaskTypePullRequest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTaskType, s)
}

// Generate builds a digest for the task, asks the advisory backend for a
// briefing and stores it. Tasks owned by another user are reported as not found.
func (g *Generator) Generate(ctx context.Context, userID, taskID string, taskType models.TaskType) (*models.AIBriefing, error) {
	ctx, span := telemetry.StartSpan(ctx, "briefing.Generate",
		attribute.String("user.id", userID),
		attribute.String("task.type", string(taskType)))
	defer span.End()

	var (
		title  string
		digest string
		err    error
	)
	switch taskType {
	case models.TaskTypeIssue:
		title, digest, err = g.issueDigest(ctx, userID, taskID)
	case models.TaskTypePullRequest:
		title, digest, err = g.pullRequestDigest(ctx, userID, taskID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, taskType)
	}
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	content, err := g.completer.Complete(callCtx, systemPrompt,
		"Generate a context-reload briefing for the following task:\n\n"+digest, g.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdvisory, err)
	}

	b := &models.AIBriefing{
		UserID:   userID,
		TaskID:   taskID,
		TaskType: taskType,
		Title:    title,
		Content:  content,
		Sections: ParseSections(content),
	}
	if err := g.store.InsertBriefing(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to store briefing: %w", err)
	}
	log.Printf("[Briefing] Generated %q for %s", title, userID)

	if g.publisher != nil {
		if err := g.publisher.Publish(ctx, events.NewEvent(events.TypeBriefingCreated, userID, b)); err != nil {
			log.Printf("[Briefing] Failed to publish briefing event: %v", err)
		}
	}
	return b, nil
}

func (g *Generator) issueDigest(ctx context.Context, userID, id string) (string, string, error) {
	issue, err := g.store.GetIssue(ctx, id)
	if err != nil {
		return "", "", err
	}
	if issue.UserID != userID {
		return "", "", database.ErrNotFound
	}
	commits, err := g.store.ListRecentCommits(ctx, issue.RepoID, commitLimit)
	if err != nil {
		return "", "", err
	}
	prs, err := g.store.ListOpenPullRequestsByRepo(ctx, issue.RepoID, openPRLimit)
	if err != nil {
		return "", "", err
	}

	labels, _ := json.Marshal(issue.Labels)
	var b strings.Builder
	fmt.Fprintf(&b, "Task: Issue #%d - %s\n", issue.Number, issue.Title)
	fmt.Fprintf(&b, "Repository: %s\n", issue.RepoName)
	fmt.Fprintf(&b, "State: %s\n", issue.State)
	fmt.Fprintf(&b, "Labels: %s\n", labels)
	fmt.Fprintf(&b, "Complexity: %g/10\n", issue.Complexity)
	fmt.Fprintf(&b, "Body: %s\n", truncateBody(issue.Body))
	fmt.Fprintf(&b, "Comments: %d\n", issue.CommentCount)
	writeCommits(&b, commits)
	b.WriteString("\nOpen PRs in repo:\n")
	for _, pr := range prs {
		fmt.Fprintf(&b, "- #%d: %s (+%d/-%d)\n", pr.Number, pr.Title, pr.Additions, pr.Deletions)
	}

	return fmt.Sprintf("Briefing: %s (#%d)", issue.Title, issue.Number), b.String(), nil
}

func (g *Generator) pullRequestDigest(ctx context.Context, userID, id string) (string, string, error) {
	pr, err := g.store.GetPullRequest(ctx, id)
	if err != nil {
		return "", "", err
	}
	if pr.UserID != userID {
		return "", "", database.ErrNotFound
	}
	commits, err := g.store.ListRecentCommits(ctx, pr.RepoID, commitLimit)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: PR #%d - %s\n", pr.Number, pr.Title)
	fmt.Fprintf(&b, "Repository: %s\n", pr.RepoName)
	fmt.Fprintf(&b, "State: %s\n", pr.State)
	fmt.Fprintf(&b, "Changes: +%d/-%d across %d files\n", pr.Additions, pr.Deletions, pr.ChangedFiles)
	fmt.Fprintf(&b, "Review comments: %d\n", pr.ReviewComments)
	fmt.Fprintf(&b, "Complexity: %g/10\n", pr.Complexity)
	fmt.Fprintf(&b, "Body: %s\n", truncateBody(pr.Body))
	writeCommits(&b, commits)

	return fmt.Sprintf("Briefing: %s (#%d)", pr.Title, pr.Number), b.String(), nil
}

func writeCommits(b *strings.Builder, commits []*models.Commit) {
	b.WriteString("\nRecent commits in repo:\n")
	for _, c := range commits {
		fmt.Fprintf(b, "- %s (+%d/-%d)\n", c.Message, c.Additions, c.Deletions)
	}
}

func truncateBody(body string) string {
	if body == "" {
		return "No description"
	}
	if r := []rune(body); len(r) > bodyLimit {
		return string(r[:bodyLimit])
	}
	return body
}

func sectionPattern(heading string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)##\s*` + regexp.QuoteMeta(heading) + `\s*\n([\s\S]*?)(?:\n##|$)`)
}

var (
	whatChangedRe    = sectionPattern("What Changed")
	keyDecisionsRe   = sectionPattern("Key Decisions")
	currentStatusRe  = sectionPattern("Current Status")
	needsAttentionRe = sectionPattern("Needs Attention")
)

// ParseSections extracts the four headed sections. Missing sections are empty.
func ParseSections(markdown string) models.BriefingSections {
	extract := func(re *regexp.Regexp) string {
		m := re.FindStringSubmatch(markdown)
		if m == nil {
			return ""
		}
		return strings.TrimSpace(m[1])
	}
	return models.BriefingSections{
		WhatChanged:    extract(whatChangedRe),
		KeyDecisions:   extract(keyDecisionsRe),
		CurrentStatus:  extract(currentStatusRe),
		NeedsAttention: extract(needsAttentionRe),
	}
}
