package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/pkg/models"
)

const focusSystemPrompt = `You are a Focus Agent, a specialized AI that monitors a developer's cognitive load and recommends actions to protect deep work.

You receive the developer's current cognitive load score (0-100), breakdown of contributing factors, and recent history.

Your job:
1. Assess whether the developer is at risk of overload
2. Provide actionable, specific recommendations
3. Be direct and practical, no fluff

Output a JSON object:
{
  "shouldIntervene": boolean,
  "priority": "low" | "medium" | "high" | "critical",
  "message": "concise recommendation (1-2 sentences)",
  "suggestedActions": ["action1", "action2"]
}`

// elevatedScore is the score above which the fallback intervenes
const elevatedScore = 60

// FocusContext is the activity context passed alongside the score
type FocusContext struct {
	OpenTaskCount     int
	TodaySwitches     int
	HoursSinceBreak   float64
	FocusMinutesToday int
}

// FocusResult is the focus agent's judgement
type FocusResult struct {
	ShouldIntervene  bool            `json:"shouldIntervene"`
	Priority         models.Priority `json:"priority"`
	Message          string          `json:"message"`
	SuggestedActions []string        `json:"suggestedActions"`
}

type focusResponse struct {
	ShouldIntervene  *bool           `json:"shouldIntervene"`
	Priority         models.Priority `json:"priority"`
	Message          string          `json:"message"`
	SuggestedActions []string        `json:"suggestedActions"`
}

func (r *focusResponse) validate() error {
	if r.ShouldIntervene == nil {
		return errors.New("shouldIntervene is required")
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	return requireActions(r.SuggestedActions)
}

// FocusAgent judges overload risk from the current score
type FocusAgent struct {
	advisor
}

// NewFocusAgent creates a focus agent bound to an advisory backend
func NewFocusAgent(c provider.Completer, cfg Config, m *metrics.Metrics) *FocusAgent {
	return &FocusAgent{advisor: newAdvisor(string(models.AgentFocus), c, cfg.Timeout, cfg.Focus, m)}
}

// Evaluate never fails: advisory problems produce the fallback result
func (a *FocusAgent) Evaluate(ctx context.Context, score *models.CognitiveScore, fc FocusContext) (FocusResult, Meta) {
	start := time.Now()

	var resp focusResponse
	err := a.ask(ctx, focusSystemPrompt, focusPrompt(score, fc), &resp)
	if err != nil {
		return FocusFallback(score.Score), a.finish(start, err)
	}
	return FocusResult{
		ShouldIntervene:  *resp.ShouldIntervene,
		Priority:         resp.Priority,
		Message:          resp.Message,
		SuggestedActions: resp.SuggestedActions,
	}, a.finish(start, nil)
}

// FocusFallback is the deterministic judgement used without the advisory backend
func FocusFallback(score int) FocusResult {
	if score > elevatedScore {
		priority := models.PriorityMedium
		if score > 80 {
			priority = models.PriorityHigh
		}
		return FocusResult{
			ShouldIntervene:  true,
			Priority:         priority,
			Message:          "Your cognitive load is elevated. Consider taking a short break or deferring low-priority tasks.",
			SuggestedActions: []string{"Take a 10-minute break", "Defer non-urgent reviews"},
		}
	}
	return FocusResult{
		ShouldIntervene:  false,
		Priority:         models.PriorityMedium,
		Message:          "Your cognitive load is manageable. Continue your current work pattern.",
		SuggestedActions: []string{"Maintain current focus pattern"},
	}
}

func focusPrompt(score *models.CognitiveScore, fc FocusContext) string {
	b := score.Breakdown
	return fmt.Sprintf(`Current cognitive state:
- Score: %d/100 (%s)
- Task Load: %g
- Switch Penalty: %g
- Review Load: %g
- Urgency Stress: %g
- Fatigue Index: %g
- Staleness: %g

Context:
- Open tasks: %d
- Context switches today: %d
- Hours since last break: %.1f
- Focus minutes today: %d

Analyze and recommend.`,
		score.Score, score.Level,
		b.TaskLoad, b.SwitchPenalty, b.ReviewLoad, b.UrgencyStress, b.FatigueIndex, b.Staleness,
		fc.OpenTaskCount, fc.TodaySwitches, fc.HoursSinceBreak, fc.FocusMinutesToday,
	)
}
