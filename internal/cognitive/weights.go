package cognitive

import (
	"fmt"
)

// DefaultWeightsVersion identifies the built-in calibration
const DefaultWeightsVersion = "v1"

// Weights is the versioned calibration of the load model. Every snapshot
// records the Version it was computed with.
type Weights struct {
	Version string `toml:"version" yaml:"version" json:"version"`

	TaskComplexityBase float64 `toml:"task_complexity_base" yaml:"task_complexity_base" json:"task_complexity_base"`
	SwitchCostFactor   float64 `toml:"switch_cost_factor" yaml:"switch_cost_factor" json:"switch_cost_factor"`
	ReviewWeight       float64 `toml:"review_weight" yaml:"review_weight" json:"review_weight"`
	UrgencyMultiplier  float64 `toml:"urgency_multiplier" yaml:"urgency_multiplier" json:"urgency_multiplier"`
	FatigueRate        float64 `toml:"fatigue_rate" yaml:"fatigue_rate" json:"fatigue_rate"`
	StalenessFactor    float64 `toml:"staleness_factor" yaml:"staleness_factor" json:"staleness_factor"`

	// MaxLoad is the raw score treated as 100. It is a calibration guess for
	// the heaviest plausible load, not a measured bound.
	MaxLoad float64 `toml:"max_load" yaml:"max_load" json:"max_load"`

	FatigueCapHours  float64 `toml:"fatigue_cap_hours" yaml:"fatigue_cap_hours" json:"fatigue_cap_hours"`
	StalenessCapDays float64 `toml:"staleness_cap_days" yaml:"staleness_cap_days" json:"staleness_cap_days"`
	OverdueAfterDays float64 `toml:"overdue_after_days" yaml:"overdue_after_days" json:"overdue_after_days"`
}

// DefaultWeights returns the built-in calibration
func DefaultWeights() Weights {
	return Weights{
		Version:            DefaultWeightsVersion,
		TaskComplexityBase: 2,
		SwitchCostFactor:   5,
		ReviewWeight:       3,
		UrgencyMultiplier:  8,
		FatigueRate:        2,
		StalenessFactor:    1,
		MaxLoad:            200,
		FatigueCapHours:    8,
		StalenessCapDays:   30,
		OverdueAfterDays:   7,
	}
}

// Validate rejects calibrations that would break the score's invariants
func (w Weights) Validate() error {
	if w.Version == "" {
		return fmt.Errorf("weights version is required")
	}
	for name, v := range map[string]float64{
		"task_complexity_base": w.TaskComplexityBase,
		"switch_cost_factor":   w.SwitchCostFactor,
		"review_weight":        w.ReviewWeight,
		"urgency_multiplier":   w.UrgencyMultiplier,
		"fatigue_rate":         w.FatigueRate,
		"staleness_factor":     w.StalenessFactor,
		"fatigue_cap_hours":    w.FatigueCapHours,
		"staleness_cap_days":   w.StalenessCapDays,
		"overdue_after_days":   w.OverdueAfterDays,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	if w.MaxLoad <= 0 {
		return fmt.Errorf("weight max_load must be positive, got %v", w.MaxLoad)
	}
	return nil
}
