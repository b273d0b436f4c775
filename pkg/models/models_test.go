package models

import (
	"testing"
	"time"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelFlow},
		{30, LevelFlow},
		{31, LevelModerate},
		{60, LevelModerate},
		{61, LevelOverloaded},
		{100, LevelOverloaded},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestBreakdownSum(t *testing.T) {
	b := Breakdown{
		TaskLoad:      12,
		SwitchPenalty: 10,
		ReviewLoad:    9,
		UrgencyStress: 8,
		FatigueIndex:  3.5,
		Staleness:     2.5,
	}
	if got := b.Sum(); got != 45 {
		t.Errorf("Sum() = %v, want 45", got)
	}
}

func TestPriorityValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		if !p.Valid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if Priority("urgent").Valid() {
		t.Error("expected unknown priority to be invalid")
	}
}

func TestFocusSessionIsOpen(t *testing.T) {
	s := &FocusSession{StartedAt: time.Now()}
	if !s.IsOpen() {
		t.Error("expected session without EndedAt to be open")
	}
	ended := time.Now()
	s.EndedAt = &ended
	if s.IsOpen() {
		t.Error("expected session with EndedAt to be closed")
	}
}

func TestSnapshotToScore(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := &CognitiveSnapshot{
		Score:     42,
		Level:     LevelModerate,
		Breakdown: Breakdown{TaskLoad: 84},
		Timestamp: ts,
	}
	got := snap.ToScore()
	if got.Score != 42 || got.Level != LevelModerate || !got.Timestamp.Equal(ts) {
		t.Errorf("unexpected score projection: %+v", got)
	}
	if got.Breakdown.TaskLoad != 84 {
		t.Errorf("breakdown not carried over: %+v", got.Breakdown)
	}
}
