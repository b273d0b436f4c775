package github

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueComplexity(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		labels   []string
		comments int
		want     float64
	}{
		{"empty", "", nil, 0, 1},
		{"short body", strings.Repeat("x", 101), nil, 0, 2},
		{"medium body", strings.Repeat("x", 501), nil, 0, 3},
		{"long body", strings.Repeat("x", 2001), nil, 0, 4},
		{"bug label", "", []string{"Bug"}, 0, 3},
		{"urgent feature", "", []string{"urgent", "feature-request"}, 0, 5},
		{"comments capped", "", nil, 20, 4},
		{"capped at ten", strings.Repeat("x", 2001), []string{"bug", "critical", "enhancement"}, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IssueComplexity(tt.body, tt.labels, tt.comments))
		})
	}
}

func TestPullRequestComplexity(t *testing.T) {
	tests := []struct {
		name     string
		add, del int
		files    int
		want     float64
	}{
		{"tiny", 5, 5, 1, 1},
		{"small", 15, 10, 2, 2},
		{"medium", 80, 30, 6, 4},
		{"large", 400, 200, 11, 6},
		{"huge", 900, 200, 30, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PullRequestComplexity(tt.add, tt.del, tt.files))
		})
	}
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 1.0, Priority(nil, false))
	assert.Equal(t, 1.5, Priority(nil, true))
	assert.Equal(t, 5.0, Priority([]string{"P0"}, true))
	assert.Equal(t, 4.5, Priority([]string{"priority: high"}, true))
	assert.Equal(t, 3.0, Priority([]string{"p2"}, false))
	assert.Equal(t, 2.5, Priority([]string{"low"}, true))
}
