package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/pkg/models"
)

const planningSystemPrompt = `You are a Planning Agent, a specialized AI that optimizes task sequencing for developers to minimize cognitive load and maximize productive output.

You receive a list of active tasks with complexity scores, priorities, and ages. You also receive the current time of day and cognitive state.

Your job:
1. Reorder tasks in the optimal sequence for the developer
2. Consider: start with moderate tasks to warm up, tackle complex tasks during peak energy, end with low-complexity items
3. Group related repository work together to minimize context switching

Output a JSON object:
{
  "orderedTaskIds": ["id1", "id2", ...],
  "reasoning": "brief explanation of ordering strategy",
  "message": "1-2 sentence recommendation for the developer",
  "suggestedActions": ["action1", "action2"]
}`

// PlanningTask is one open task offered for sequencing
type PlanningTask struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Type       models.TaskType `json:"type"`
	Complexity float64         `json:"complexity"`
	Priority   float64         `json:"priority"`
	Repo       string          `json:"repo"`
	State      string          `json:"state"`
	AgeDays    int             `json:"ageDays"`
}

// PlanningContext is the time and load context for sequencing
type PlanningContext struct {
	CurrentHour       int
	CognitiveScore    int
	FocusMinutesToday int
}

// PlanningResult is the proposed task order
type PlanningResult struct {
	OrderedTaskIDs   []string `json:"orderedTaskIds"`
	Reasoning        string   `json:"reasoning"`
	Message          string   `json:"message"`
	SuggestedActions []string `json:"suggestedActions"`
}

type planningResponse struct {
	PlanningResult
	known map[string]bool
}

func (r *planningResponse) validate() error {
	if r.OrderedTaskIDs == nil {
		return errors.New("orderedTaskIds is required")
	}
	seen := make(map[string]bool, len(r.OrderedTaskIDs))
	for _, id := range r.OrderedTaskIDs {
		if !r.known[id] {
			return fmt.Errorf("unknown task id %q", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate task id %q", id)
		}
		seen[id] = true
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	return requireActions(r.SuggestedActions)
}

// PlanningAgent proposes an order for the user's open tasks
type PlanningAgent struct {
	advisor
}

// NewPlanningAgent creates a planning agent bound to an advisory backend
func NewPlanningAgent(c provider.Completer, cfg Config, m *metrics.Metrics) *PlanningAgent {
	return &PlanningAgent{advisor: newAdvisor(string(models.AgentPlanning), c, cfg.Timeout, cfg.Planning, m)}
}

// Sequence never fails: advisory problems produce the fallback ordering.
// Tasks the advisory answer leaves out are appended in fallback order.
func (a *PlanningAgent) Sequence(ctx context.Context, tasks []PlanningTask, pc PlanningContext) (PlanningResult, Meta) {
	start := time.Now()

	resp := planningResponse{known: make(map[string]bool, len(tasks))}
	for _, t := range tasks {
		resp.known[t.ID] = true
	}

	if err := a.ask(ctx, planningSystemPrompt, planningPrompt(tasks, pc), &resp); err != nil {
		return PlanningFallback(tasks), a.finish(start, err)
	}

	result := resp.PlanningResult
	placed := make(map[string]bool, len(result.OrderedTaskIDs))
	for _, id := range result.OrderedTaskIDs {
		placed[id] = true
	}
	for _, id := range PlanningFallback(tasks).OrderedTaskIDs {
		if !placed[id] {
			result.OrderedTaskIDs = append(result.OrderedTaskIDs, id)
		}
	}
	return result, a.finish(start, nil)
}

// PlanningFallback orders tasks by priority x complexity, highest first.
// Ties keep their input order. The input slice is not modified.
func PlanningFallback(tasks []PlanningTask) PlanningResult {
	ordered := make([]PlanningTask, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority*ordered[i].Complexity > ordered[j].Priority*ordered[j].Complexity
	})

	ids := make([]string, 0, len(ordered))
	for _, t := range ordered {
		ids = append(ids, t.ID)
	}
	return PlanningResult{
		OrderedTaskIDs:   ids,
		Reasoning:        "Sorted by priority-complexity product (default fallback).",
		Message:          "Tasks have been ordered by a combination of priority and complexity.",
		SuggestedActions: []string{"Start with the highest priority task", "Take breaks between complex tasks"},
	}
}

func planningPrompt(tasks []PlanningTask, pc PlanningContext) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf(`- [%s] %s "%s" (repo: %s, complexity: %g/10, priority: %g/5, age: %dd)`,
			t.ID, strings.ToUpper(string(t.Type)), t.Title, t.Repo, t.Complexity, t.Priority, t.AgeDays))
	}
	return fmt.Sprintf(`Current context:
- Time: %d:00
- Cognitive Load: %d/100
- Focus minutes today: %d

Active tasks:
%s

Suggest the optimal task order for maximum cognitive efficiency.`,
		pc.CurrentHour, pc.CognitiveScore, pc.FocusMinutesToday, strings.Join(lines, "\n"))
}
