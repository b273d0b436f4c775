package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// stubCompleter returns a canned reply or error and records the last call
type stubCompleter struct {
	reply  string
	err    error
	delay  time.Duration
	system string
	prompt string
	opts   provider.Options
}

func (s *stubCompleter) Complete(ctx context.Context, system, prompt string, opts provider.Options) (string, error) {
	s.system, s.prompt, s.opts = system, prompt, opts
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.reply, s.err
}

func scoreOf(n int) *models.CognitiveScore {
	return &models.CognitiveScore{Score: n, Level: models.LevelForScore(n)}
}

func TestFocusFallback(t *testing.T) {
	high := FocusFallback(75)
	assert.True(t, high.ShouldIntervene)
	assert.Equal(t, models.PriorityMedium, high.Priority)
	assert.Equal(t, []string{"Take a 10-minute break", "Defer non-urgent reviews"}, high.SuggestedActions)

	veryHigh := FocusFallback(85)
	assert.True(t, veryHigh.ShouldIntervene)
	assert.Equal(t, models.PriorityHigh, veryHigh.Priority)

	calm := FocusFallback(45)
	assert.False(t, calm.ShouldIntervene)
	assert.Equal(t, []string{"Maintain current focus pattern"}, calm.SuggestedActions)

	boundary := FocusFallback(60)
	assert.False(t, boundary.ShouldIntervene)
}

func TestFocusAgent_Score75UsesFallbackOnGarbage(t *testing.T) {
	stub := &stubCompleter{reply: "I think you should rest."}
	agent := NewFocusAgent(stub, DefaultConfig(), nil)

	res, meta := agent.Evaluate(context.Background(), scoreOf(75), FocusContext{})
	assert.True(t, meta.UsedFallback)
	assert.ErrorIs(t, meta.Cause, ErrParse)
	assert.True(t, res.ShouldIntervene)
	assert.Equal(t, models.PriorityMedium, res.Priority)
}

func TestFocusAgent_Score45Fallback(t *testing.T) {
	stub := &stubCompleter{err: errors.New("quota exceeded")}
	res, meta := NewFocusAgent(stub, DefaultConfig(), nil).Evaluate(context.Background(), scoreOf(45), FocusContext{})
	assert.True(t, meta.UsedFallback)
	assert.ErrorIs(t, meta.Cause, ErrAdvisory)
	assert.False(t, res.ShouldIntervene)
}

func TestFocusAgent_AdvisoryPathWithFences(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"shouldIntervene\":true,\"priority\":\"critical\",\"message\":\"Stop now.\",\"suggestedActions\":[\"Walk\"]}\n```"}
	agent := NewFocusAgent(stub, DefaultConfig(), nil)

	res, meta := agent.Evaluate(context.Background(), &models.CognitiveScore{
		Score: 91, Level: models.LevelOverloaded,
		Breakdown: models.Breakdown{TaskLoad: 120, SwitchPenalty: 30, Staleness: 12.5},
	}, FocusContext{OpenTaskCount: 9, TodaySwitches: 6, HoursSinceBreak: 3.25, FocusMinutesToday: 140})

	assert.False(t, meta.UsedFallback)
	assert.True(t, res.ShouldIntervene)
	assert.Equal(t, models.PriorityCritical, res.Priority)
	assert.Equal(t, []string{"Walk"}, res.SuggestedActions)

	assert.Equal(t, focusSystemPrompt, stub.system)
	assert.Contains(t, stub.prompt, "- Score: 91/100 (overloaded)")
	assert.Contains(t, stub.prompt, "- Task Load: 120")
	assert.Contains(t, stub.prompt, "- Staleness: 12.5")
	assert.Contains(t, stub.prompt, "- Hours since last break: 3.2")
	assert.Contains(t, stub.prompt, "- Focus minutes today: 140")
	assert.Equal(t, 0.2, stub.opts.Temperature)
	assert.Equal(t, 500, stub.opts.MaxTokens)
}

func TestFocusAgent_SchemaViolationsFallBack(t *testing.T) {
	replies := map[string]string{
		"missing flag":      `{"priority":"high","message":"m","suggestedActions":[]}`,
		"bad priority":      `{"shouldIntervene":true,"priority":"urgent","message":"m","suggestedActions":[]}`,
		"empty message":     `{"shouldIntervene":true,"priority":"low","message":" ","suggestedActions":[]}`,
		"missing actions":   `{"shouldIntervene":true,"priority":"low","message":"m"}`,
		"wrong action type": `{"shouldIntervene":true,"priority":"low","message":"m","suggestedActions":[1,2]}`,
		"flag as string":    `{"shouldIntervene":"yes","priority":"low","message":"m","suggestedActions":[]}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			stub := &stubCompleter{reply: reply}
			res, meta := NewFocusAgent(stub, DefaultConfig(), nil).Evaluate(context.Background(), scoreOf(70), FocusContext{})
			assert.True(t, meta.UsedFallback)
			assert.ErrorIs(t, meta.Cause, ErrParse)
			assert.Equal(t, FocusFallback(70), res)
		})
	}
}

func TestAgent_TimeoutFallsBack(t *testing.T) {
	stub := &stubCompleter{reply: `{}`, delay: time.Second}
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond

	res, meta := NewFocusAgent(stub, cfg, nil).Evaluate(context.Background(), scoreOf(90), FocusContext{})
	assert.True(t, meta.UsedFallback)
	assert.ErrorIs(t, meta.Cause, ErrAdvisory)
	assert.ErrorIs(t, meta.Cause, context.DeadlineExceeded)
	assert.Equal(t, models.PriorityHigh, res.Priority)
}

func TestAgent_NilCompleterFallsBack(t *testing.T) {
	res, meta := NewInterruptGuard(nil, DefaultConfig(), nil).Evaluate(context.Background(), GuardContext{FocusDepthMinutes: 5})
	assert.True(t, meta.UsedFallback)
	assert.Equal(t, models.RecommendationAccept, res.Recommendation)
}

func TestPlanningFallback(t *testing.T) {
	tasks := []PlanningTask{
		{ID: "a", Priority: 5, Complexity: 2},
		{ID: "b", Priority: 1, Complexity: 9},
	}
	res := PlanningFallback(tasks)
	assert.Equal(t, []string{"a", "b"}, res.OrderedTaskIDs)
	assert.Equal(t, "Sorted by priority-complexity product (default fallback).", res.Reasoning)
	assert.Equal(t, "a", tasks[0].ID)
}

func TestPlanningFallback_StableTiesAndEmpty(t *testing.T) {
	tasks := []PlanningTask{
		{ID: "x", Priority: 2, Complexity: 3},
		{ID: "y", Priority: 3, Complexity: 2},
		{ID: "z", Priority: 1, Complexity: 10},
		{ID: "w", Priority: 6, Complexity: 1},
	}
	assert.Equal(t, []string{"z", "x", "y", "w"}, PlanningFallback(tasks).OrderedTaskIDs)

	empty := PlanningFallback(nil)
	assert.NotNil(t, empty.OrderedTaskIDs)
	assert.Empty(t, empty.OrderedTaskIDs)
}

func TestPlanningAgent_AdvisoryOrderIsCompleted(t *testing.T) {
	tasks := []PlanningTask{
		{ID: "a", Title: "Fix login", Type: models.TaskTypeIssue, Priority: 5, Complexity: 2, Repo: "web", AgeDays: 3},
		{ID: "b", Title: "Refactor", Type: models.TaskTypePullRequest, Priority: 3, Complexity: 9, Repo: "api", AgeDays: 0},
		{ID: "c", Title: "Docs", Type: models.TaskTypeIssue, Priority: 1, Complexity: 1, Repo: "web", AgeDays: 12},
	}
	stub := &stubCompleter{reply: `{"orderedTaskIds":["c","a"],"reasoning":"warm up","message":"Start small.","suggestedActions":["Begin with docs"]}`}

	res, meta := NewPlanningAgent(stub, DefaultConfig(), nil).Sequence(context.Background(), tasks, PlanningContext{CurrentHour: 9, CognitiveScore: 40})
	assert.False(t, meta.UsedFallback)
	assert.Equal(t, []string{"c", "a", "b"}, res.OrderedTaskIDs)
	assert.Equal(t, "warm up", res.Reasoning)

	assert.Contains(t, stub.prompt, "- Time: 9:00")
	assert.Contains(t, stub.prompt, `- [b] PR "Refactor" (repo: api, complexity: 9/10, priority: 3/5, age: 0d)`)
	assert.Contains(t, stub.prompt, `- [a] ISSUE "Fix login" (repo: web, complexity: 2/10, priority: 5/5, age: 3d)`)
	assert.Equal(t, 800, stub.opts.MaxTokens)
}

func TestPlanningAgent_UnknownOrDuplicateIDsFallBack(t *testing.T) {
	tasks := []PlanningTask{{ID: "a", Priority: 1, Complexity: 1}, {ID: "b", Priority: 5, Complexity: 5}}
	for _, reply := range []string{
		`{"orderedTaskIds":["a","zzz"],"reasoning":"","message":"m","suggestedActions":[]}`,
		`{"orderedTaskIds":["a","a"],"reasoning":"","message":"m","suggestedActions":[]}`,
		`{"reasoning":"","message":"m","suggestedActions":[]}`,
	} {
		stub := &stubCompleter{reply: reply}
		res, meta := NewPlanningAgent(stub, DefaultConfig(), nil).Sequence(context.Background(), tasks, PlanningContext{})
		assert.True(t, meta.UsedFallback, reply)
		assert.Equal(t, []string{"b", "a"}, res.OrderedTaskIDs)
	}
}

func TestGuardFallback(t *testing.T) {
	res := GuardFallback(GuardContext{FocusDepthMinutes: 30, CurrentTaskComplexity: 4, NewTaskPriority: 2})
	assert.Equal(t, 23, res.EstimatedCostMinutes)
	assert.Equal(t, models.RecommendationDefer, res.Recommendation)
	assert.Equal(t, models.PriorityMedium, res.Priority)
	assert.Equal(t, "Switching now would cost ~23 minutes of recovery. Defer to your next natural break.", res.Message)
	assert.Equal(t, []string{"Continue current task", "Queue new task for next break"}, res.SuggestedActions)
}

func TestGuardFallback_Table(t *testing.T) {
	tests := []struct {
		name     string
		gc       GuardContext
		cost     int
		rec      string
		priority models.Priority
	}{
		{"shallow focus accepts", GuardContext{FocusDepthMinutes: 20, CurrentTaskComplexity: 5, NewTaskPriority: 1}, 20, "accept", models.PriorityMedium},
		{"urgent accepts", GuardContext{FocusDepthMinutes: 90, CurrentTaskComplexity: 5, NewTaskPriority: 4}, 55, "accept", models.PriorityHigh},
		{"half rounds up", GuardContext{FocusDepthMinutes: 1, CurrentTaskComplexity: 0, NewTaskPriority: 3}, 1, "accept", models.PriorityMedium},
		{"deep defers", GuardContext{FocusDepthMinutes: 21, CurrentTaskComplexity: 5, NewTaskPriority: 3.5}, 21, "defer", models.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := GuardFallback(tt.gc)
			assert.Equal(t, tt.cost, res.EstimatedCostMinutes)
			assert.Equal(t, tt.rec, res.Recommendation)
			assert.Equal(t, tt.priority, res.Priority)
			assert.NotEqual(t, models.RecommendationDelegate, res.Recommendation)
		})
	}
	accept := GuardFallback(GuardContext{FocusDepthMinutes: 0, CurrentTaskComplexity: 5, NewTaskPriority: 5})
	assert.True(t, strings.HasPrefix(accept.Message, "Priority warrants immediate attention. Estimated switch cost: ~10 minutes."))
}

func TestInterruptGuard_AdvisoryDelegate(t *testing.T) {
	stub := &stubCompleter{reply: `{"estimatedCostMinutes":17.6,"recommendation":"delegate","priority":"low","message":"Hand it off.","suggestedActions":["Ask a teammate"]}`}
	res, meta := NewInterruptGuard(stub, DefaultConfig(), nil).Evaluate(context.Background(), GuardContext{
		CurrentTaskTitle: "review", CurrentTaskComplexity: 5, FocusDepthMinutes: 42, CognitiveScore: 55,
		NewTaskTitle: "Hotfix", NewTaskComplexity: 3, NewTaskPriority: 2,
	})
	require.False(t, meta.UsedFallback)
	assert.Equal(t, 18, res.EstimatedCostMinutes)
	assert.Equal(t, models.RecommendationDelegate, res.Recommendation)
	assert.Contains(t, stub.prompt, `- Working on: "review" (complexity: 5/10)`)
	assert.Contains(t, stub.prompt, `- New task: "Hotfix" (complexity: 3/10, priority: 2/5)`)
}

func TestInterruptGuard_InvalidRecommendationFallsBack(t *testing.T) {
	stub := &stubCompleter{reply: `{"estimatedCostMinutes":5,"recommendation":"ignore","priority":"low","message":"m","suggestedActions":[]}`}
	res, meta := NewInterruptGuard(stub, DefaultConfig(), nil).Evaluate(context.Background(),
		GuardContext{FocusDepthMinutes: 30, CurrentTaskComplexity: 4, NewTaskPriority: 2})
	assert.True(t, meta.UsedFallback)
	assert.Equal(t, 23, res.EstimatedCostMinutes)
}

func TestInterruptGuard_CostOutOfRangeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		cost string
	}{
		{"negative", "-5"},
		{"overflows int", "1e30"},
		{"over a day", "1441"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{reply: `{"estimatedCostMinutes":` + tt.cost + `,"recommendation":"accept","priority":"low","message":"Go ahead.","suggestedActions":["Switch now"]}`}
			res, meta := NewInterruptGuard(stub, DefaultConfig(), nil).Evaluate(context.Background(),
				GuardContext{FocusDepthMinutes: 30, CurrentTaskComplexity: 4, NewTaskPriority: 2})
			assert.True(t, meta.UsedFallback)
			assert.ErrorIs(t, meta.Cause, ErrParse)
			assert.Equal(t, 23, res.EstimatedCostMinutes)
		})
	}

	stub := &stubCompleter{reply: `{"estimatedCostMinutes":1440,"recommendation":"defer","priority":"low","message":"Wait.","suggestedActions":["Queue it"]}`}
	res, meta := NewInterruptGuard(stub, DefaultConfig(), nil).Evaluate(context.Background(), GuardContext{})
	assert.False(t, meta.UsedFallback)
	assert.Equal(t, 1440, res.EstimatedCostMinutes)
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanResponse("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, cleanResponse("  {\"a\":1}  "))
}
