package models

import "time"

// Level classifies a cognitive load score
type Level string

const (
	LevelFlow       Level = "flow"
	LevelModerate   Level = "moderate"
	LevelOverloaded Level = "overloaded"
)

// Level boundaries. Both are inclusive on the lower branch.
const (
	FlowMaxScore     = 30
	ModerateMaxScore = 60
)

// LevelForScore maps a normalized score to its level
func LevelForScore(score int) Level {
	switch {
	case score <= FlowMaxScore:
		return LevelFlow
	case score <= ModerateMaxScore:
		return LevelModerate
	default:
		return LevelOverloaded
	}
}

// Breakdown holds the six non-negative contributions to the raw score
type Breakdown struct {
	TaskLoad      float64 `json:"task_load"`
	SwitchPenalty float64 `json:"switch_penalty"`
	ReviewLoad    float64 `json:"review_load"`
	UrgencyStress float64 `json:"urgency_stress"`
	FatigueIndex  float64 `json:"fatigue_index"`
	Staleness     float64 `json:"staleness"`
}

// Sum returns the total of all six contributions
func (b Breakdown) Sum() float64 {
	return b.TaskLoad + b.SwitchPenalty + b.ReviewLoad + b.UrgencyStress + b.FatigueIndex + b.Staleness
}

// Factors are the raw aggregates the engine observed when scoring
type Factors struct {
	OpenIssues      int     `json:"open_issues"`
	OpenPRs         int     `json:"open_prs"`
	TodaySwitches   int     `json:"today_switches"`
	OverdueCount    int     `json:"overdue_count"`
	HoursSinceBreak float64 `json:"hours_since_break"`
	AvgTaskAgeDays  float64 `json:"avg_task_age_days"`
}

// CognitiveScore is the result of a single load calculation
type CognitiveScore struct {
	Score     int       `json:"score"`
	Level     Level     `json:"level"`
	Breakdown Breakdown `json:"breakdown"`
	Timestamp time.Time `json:"timestamp"`
}

// CognitiveSnapshot is an immutable, append-only observation of a user's score
type CognitiveSnapshot struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Score          int       `json:"score"`
	Level          Level     `json:"level"`
	Breakdown      Breakdown `json:"breakdown"`
	Factors        Factors   `json:"factors"`
	WeightsVersion string    `json:"weights_version,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ToScore projects a snapshot onto the score shape returned to callers
func (s *CognitiveSnapshot) ToScore() *CognitiveScore {
	return &CognitiveScore{
		Score:     s.Score,
		Level:     s.Level,
		Breakdown: s.Breakdown,
		Timestamp: s.Timestamp,
	}
}

// ScorePoint is one entry of a score history series
type ScorePoint struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}
