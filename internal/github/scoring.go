package github

import "math"

// IssueComplexity estimates effort on a 1-10 scale from the description
// length, labels and discussion volume.
func IssueComplexity(body string, labels []string, comments int) float64 {
	score := 1.0

	switch n := len(body); {
	case n > 2000:
		score += 3
	case n > 500:
		score += 2
	case n > 100:
		score += 1
	}

	if anyLabel(labels, "bug") {
		score += 2
	}
	if anyLabel(labels, "critical", "urgent") {
		score += 3
	}
	if anyLabel(labels, "enhancement", "feature") {
		score += 1
	}

	score += math.Min(float64(comments)*0.5, 3)
	return math.Min(score, 10)
}

// PullRequestComplexity estimates review effort on a 1-10 scale from change size
func PullRequestComplexity(additions, deletions, changedFiles int) float64 {
	score := 1.0

	switch total := additions + deletions; {
	case total > 1000:
		score += 4
	case total > 500:
		score += 3
	case total > 100:
		score += 2
	case total > 20:
		score += 1
	}

	switch {
	case changedFiles > 20:
		score += 3
	case changedFiles > 10:
		score += 2
	case changedFiles > 5:
		score += 1
	}
	return math.Min(score, 10)
}

// Priority maps priority labels onto 1-5. Open work gets an extra half point.
func Priority(labels []string, open bool) float64 {
	p := 1.0
	switch {
	case anyLabel(labels, "critical", "p0"):
		p = 5
	case anyLabel(labels, "high", "p1"):
		p = 4
	case anyLabel(labels, "medium", "p2"):
		p = 3
	case anyLabel(labels, "low", "p3"):
		p = 2
	}
	if open {
		p += 0.5
	}
	return math.Min(p, 5)
}
