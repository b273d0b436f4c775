package cognitive

import (
	"math"
	"time"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// Inputs are the live aggregates a calculation reads
type Inputs struct {
	OpenIssues    []*models.Issue
	OpenPRs       []*models.PullRequest
	TodaySwitches int
	LastSession   *models.FocusSession
}

// Result is one evaluation of the load model
type Result struct {
	Score     int
	Level     models.Level
	Breakdown models.Breakdown // rounded to one decimal
	Raw       float64          // unrounded sum that drives Score
	Factors   models.Factors
}

// Compute evaluates the load model. It is pure: the same inputs, weights and
// clock always give the same result.
func Compute(in Inputs, w Weights, now time.Time) Result {
	var b models.Breakdown

	var ageSum float64
	overdue := 0
	for _, issue := range in.OpenIssues {
		b.TaskLoad += nonNeg(issue.Complexity) * nonNeg(issue.Priority) * w.TaskComplexityBase
		age := ageDays(issue.CreatedAt, now)
		ageSum += age
		if age > w.OverdueAfterDays {
			overdue++
		}
	}

	b.SwitchPenalty = float64(in.TodaySwitches) * w.SwitchCostFactor

	for _, pr := range in.OpenPRs {
		b.ReviewLoad += nonNeg(pr.Complexity) * w.ReviewWeight
	}

	b.UrgencyStress = float64(overdue) * w.UrgencyMultiplier

	hours := HoursSinceBreak(in.LastSession, now)
	b.FatigueIndex = math.Min(hours, w.FatigueCapHours) * w.FatigueRate

	var meanAge float64
	if len(in.OpenIssues) > 0 {
		meanAge = ageSum / float64(len(in.OpenIssues))
		b.Staleness = math.Min(meanAge, w.StalenessCapDays) * w.StalenessFactor
	}

	raw := b.Sum()
	score := Normalize(raw, w.MaxLoad)

	return Result{
		Score: score,
		Level: models.LevelForScore(score),
		Breakdown: models.Breakdown{
			TaskLoad:      round1(b.TaskLoad),
			SwitchPenalty: round1(b.SwitchPenalty),
			ReviewLoad:    round1(b.ReviewLoad),
			UrgencyStress: round1(b.UrgencyStress),
			FatigueIndex:  round1(b.FatigueIndex),
			Staleness:     round1(b.Staleness),
		},
		Raw: raw,
		Factors: models.Factors{
			OpenIssues:      len(in.OpenIssues),
			OpenPRs:         len(in.OpenPRs),
			TodaySwitches:   in.TodaySwitches,
			OverdueCount:    overdue,
			HoursSinceBreak: round1(hours),
			AvgTaskAgeDays:  round1(meanAge),
		},
	}
}

// Normalize maps a raw load onto 0-100
func Normalize(raw, maxLoad float64) int {
	if maxLoad <= 0 {
		return 0
	}
	ratio := math.Max(0, math.Min(raw/maxLoad, 1))
	return int(math.Round(ratio * 100))
}

// HoursSinceBreak measures from the session's end, or its start while it is
// still open. No session means no accumulated fatigue.
func HoursSinceBreak(s *models.FocusSession, now time.Time) float64 {
	if s == nil {
		return 0
	}
	ref := s.StartedAt
	if s.EndedAt != nil {
		ref = *s.EndedAt
	}
	h := now.Sub(ref).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// StartOfDay returns local midnight for t in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func ageDays(created, now time.Time) float64 {
	d := now.Sub(created).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

func nonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
