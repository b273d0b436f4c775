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

const guardSystemPrompt = `You are an Interrupt Guard Agent, a specialized AI that evaluates the cost of context switches and interruptions for developers.

When a new task or notification arrives while a developer is in a focus state, you calculate the interruption cost and recommend the best course of action.

Output a JSON object:
{
  "estimatedCostMinutes": number,
  "recommendation": "accept" | "defer" | "delegate",
  "priority": "low" | "medium" | "high" | "critical",
  "message": "1-2 sentence explanation",
  "suggestedActions": ["action1", "action2"]
}`

// GuardContext describes the current work and the incoming interruption
type GuardContext struct {
	CurrentTaskTitle      string
	CurrentTaskComplexity float64
	FocusDepthMinutes     int
	CognitiveScore        int
	NewTaskTitle          string
	NewTaskComplexity     float64
	NewTaskPriority       float64
}

// GuardResult is the interrupt guard's decision
type GuardResult struct {
	EstimatedCostMinutes int             `json:"estimatedCostMinutes"`
	Recommendation       string          `json:"recommendation"`
	Priority             models.Priority `json:"priority"`
	Message              string          `json:"message"`
	SuggestedActions     []string        `json:"suggestedActions"`
}

type guardResponse struct {
	EstimatedCostMinutes *float64        `json:"estimatedCostMinutes"`
	Recommendation       string          `json:"recommendation"`
	Priority             models.Priority `json:"priority"`
	Message              string          `json:"message"`
	SuggestedActions     []string        `json:"suggestedActions"`
}

// maxSwitchCostMinutes bounds an advisory cost estimate to one day
const maxSwitchCostMinutes = 24 * 60

func (r *guardResponse) validate() error {
	if r.EstimatedCostMinutes == nil || *r.EstimatedCostMinutes < 0 {
		return errors.New("estimatedCostMinutes must be a non-negative number")
	}
	if *r.EstimatedCostMinutes > maxSwitchCostMinutes {
		return fmt.Errorf("estimatedCostMinutes %v exceeds %d", *r.EstimatedCostMinutes, maxSwitchCostMinutes)
	}
	switch r.Recommendation {
	case models.RecommendationAccept, models.RecommendationDefer, models.RecommendationDelegate:
	default:
		return fmt.Errorf("invalid recommendation %q", r.Recommendation)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	return requireActions(r.SuggestedActions)
}

// InterruptGuard weighs an incoming task against the current focus state
type InterruptGuard struct {
	advisor
}

// NewInterruptGuard creates an interrupt guard bound to an advisory backend
func NewInterruptGuard(c provider.Completer, cfg Config, m *metrics.Metrics) *InterruptGuard {
	return &InterruptGuard{advisor: newAdvisor(string(models.AgentInterruptGuard), c, cfg.Timeout, cfg.Guard, m)}
}

// Evaluate never fails: advisory problems produce the fallback decision
func (g *InterruptGuard) Evaluate(ctx context.Context, gc GuardContext) (GuardResult, Meta) {
	start := time.Now()

	var resp guardResponse
	if err := g.ask(ctx, guardSystemPrompt, guardPrompt(gc), &resp); err != nil {
		return GuardFallback(gc), g.finish(start, err)
	}
	return GuardResult{
		EstimatedCostMinutes: roundHalfUp(*resp.EstimatedCostMinutes),
		Recommendation:       resp.Recommendation,
		Priority:             resp.Priority,
		Message:              resp.Message,
		SuggestedActions:     resp.SuggestedActions,
	}, g.finish(start, nil)
}

// GuardFallback estimates the switch cost from focus depth and current complexity.
// It only ever answers accept or defer.
func GuardFallback(gc GuardContext) GuardResult {
	cost := roundHalfUp(float64(gc.FocusDepthMinutes)*0.5 + gc.CurrentTaskComplexity*2)
	shouldDefer := gc.FocusDepthMinutes > 20 && gc.NewTaskPriority < 4

	priority := models.PriorityMedium
	if gc.NewTaskPriority >= 4 {
		priority = models.PriorityHigh
	}

	if shouldDefer {
		return GuardResult{
			EstimatedCostMinutes: cost,
			Recommendation:       models.RecommendationDefer,
			Priority:             priority,
			Message:              fmt.Sprintf("Switching now would cost ~%d minutes of recovery. Defer to your next natural break.", cost),
			SuggestedActions:     []string{"Continue current task", "Queue new task for next break"},
		}
	}
	return GuardResult{
		EstimatedCostMinutes: cost,
		Recommendation:       models.RecommendationAccept,
		Priority:             priority,
		Message:              fmt.Sprintf("Priority warrants immediate attention. Estimated switch cost: ~%d minutes.", cost),
		SuggestedActions:     []string{"Save current context", "Switch to new task"},
	}
}

func guardPrompt(gc GuardContext) string {
	return fmt.Sprintf(`Current state:
- Working on: "%s" (complexity: %g/10)
- Focus depth: %d minutes in current session
- Cognitive load: %d/100

Incoming interruption:
- New task: "%s" (complexity: %g/10, priority: %g/5)

Calculate the interruption cost and recommend action.`,
		gc.CurrentTaskTitle, gc.CurrentTaskComplexity, gc.FocusDepthMinutes, gc.CognitiveScore,
		gc.NewTaskTitle, gc.NewTaskComplexity, gc.NewTaskPriority)
}
