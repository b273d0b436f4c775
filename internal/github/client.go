// Package github wraps the gh CLI to read a user's repositories, issues,
// pull requests and commits. The gh binary handles OAuth token refresh,
// rate limiting and pagination; `gh api` returns the REST payloads as JSON.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// Runner executes gh with the given arguments and returns its stdout
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// Client wraps gh CLI commands for GitHub reads.
type Client struct {
	ghPath string
	token  string // optional; if empty, gh uses its stored credentials
	run    Runner
}

// NewClient creates a GitHub client. ghPath defaults to "gh" on PATH.
func NewClient(ghPath, token string) *Client {
	if ghPath == "" {
		ghPath = "gh"
	}
	c := &Client{ghPath: ghPath, token: token}
	c.run = c.gh
	return c
}

// NewClientWithRunner creates a client that shells out through run instead of gh
func NewClientWithRunner(run Runner) *Client {
	return &Client{ghPath: "gh", run: run}
}

// gh runs a gh CLI command and returns raw JSON output.
func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.ghPath, args...)
	if c.token != "" {
		cmd.Env = append(cmd.Environ(), "GH_TOKEN="+c.token)
	}
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gh %s: %w\n%s", strings.Join(args, " "), err, string(ee.Stderr))
		}
		return nil, fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func (c *Client) api(ctx context.Context, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	raw, err := c.run(ctx, "api", "-H", "Accept: application/vnd.github+json", path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ListRepositories returns the authenticated user's most recently updated repositories.
func (c *Client) ListRepositories(ctx context.Context, limit int) ([]Repository, error) {
	var repos []Repository
	err := c.api(ctx, "user/repos", url.Values{
		"sort":     {"updated"},
		"per_page": {fmt.Sprint(perPage(limit, 30))},
	}, &repos)
	return repos, err
}

// ListIssues returns issues in every state, newest update first. GitHub's
// issues endpoint also returns pull requests; those are dropped.
func (c *Client) ListIssues(ctx context.Context, fullName string, limit int) ([]Issue, error) {
	var raw []Issue
	err := c.api(ctx, "repos/"+fullName+"/issues", url.Values{
		"state":    {"all"},
		"sort":     {"updated"},
		"per_page": {fmt.Sprint(perPage(limit, 50))},
	}, &raw)
	if err != nil {
		return nil, err
	}
	issues := raw[:0]
	for _, i := range raw {
		if i.PullRequest != nil {
			continue
		}
		issues = append(issues, i)
	}
	return issues, nil
}

// ListPullRequests returns pull requests in every state. The list endpoint
// omits change sizes; those stay zero unless the payload carries them.
func (c *Client) ListPullRequests(ctx context.Context, fullName string, limit int) ([]PullRequest, error) {
	var prs []PullRequest
	err := c.api(ctx, "repos/"+fullName+"/pulls", url.Values{
		"state":    {"all"},
		"sort":     {"updated"},
		"per_page": {fmt.Sprint(perPage(limit, 30))},
	}, &prs)
	return prs, err
}

// ListCommits returns the latest commits on the default branch.
func (c *Client) ListCommits(ctx context.Context, fullName string, limit int) ([]Commit, error) {
	var commits []Commit
	err := c.api(ctx, "repos/"+fullName+"/commits", url.Values{
		"per_page": {fmt.Sprint(perPage(limit, 30))},
	}, &commits)
	return commits, err
}

func perPage(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}
