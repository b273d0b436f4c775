package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/cogload/internal/agents"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/cognitive"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/telemetry"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// ErrInvalidTrigger rejects an orchestration request before any store access
var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger is the reason an orchestration run was invoked
type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
	TriggerNewTask  Trigger = "new_task"
)

// generalWork names the current task when no focus session is open
const generalWork = "general work"

// NewTaskContext describes the incoming task for a new_task run
type NewTaskContext struct {
	TaskTitle      string  `json:"taskTitle"`
	TaskComplexity float64 `json:"taskComplexity"`
	TaskPriority   float64 `json:"taskPriority"`
}

// Store is the subset of the store adapter the orchestrator reads and appends to
type Store interface {
	CountOpenIssues(ctx context.Context, userID string) (int, error)
	CountOpenPullRequests(ctx context.Context, userID string) (int, error)
	CountContextSwitchesSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListFocusSessions(ctx context.Context, userID string, from, to time.Time) ([]*models.FocusSession, error)
	LatestFocusSession(ctx context.Context, userID string) (*models.FocusSession, error)
	CurrentFocusSession(ctx context.Context, userID string) (*models.FocusSession, error)
	ListOpenIssues(ctx context.Context, userID string, limit int) ([]*models.Issue, error)
	ListOpenPullRequests(ctx context.Context, userID string, limit int) ([]*models.PullRequest, error)
	InsertRecommendations(ctx context.Context, recs []*models.AgentRecommendation) error
}

// Scorer computes a fresh score. *cognitive.Engine satisfies it.
type Scorer interface {
	Calculate(ctx context.Context, userID string) (*models.CognitiveScore, error)
	Location() *time.Location
	Now() time.Time
}

// Invalidator drops cached reads for a key prefix
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) int
}

// RunLogger records structured agent-run entries
type RunLogger interface {
	LogAgentRun(agent, userID string, duration time.Duration, metadata map[string]interface{})
}

// Limits bounds the planning input and fixes the defaults the agents need
type Limits struct {
	MaxPlanningIssues     int     `yaml:"max_planning_issues"`
	MaxPlanningPRs        int     `yaml:"max_planning_prs"`
	PullRequestPriority   float64 `yaml:"pull_request_priority"`
	CurrentTaskComplexity float64 `yaml:"current_task_complexity"`
}

// DefaultLimits returns the stock planning caps
func DefaultLimits() Limits {
	return Limits{
		MaxPlanningIssues:     15,
		MaxPlanningPRs:        10,
		PullRequestPriority:   3,
		CurrentTaskComplexity: 5,
	}
}

// Result is one orchestration run: the score it was grounded on and the
// recommendations it persisted.
type Result struct {
	Score           *models.CognitiveScore        `json:"score"`
	Recommendations []*models.AgentRecommendation `json:"recommendations"`
}

// Orchestrator runs the advisory agents against a freshly computed score
type Orchestrator struct {
	store    Store
	scorer   Scorer
	focus    *agents.FocusAgent
	planning *agents.PlanningAgent
	guard    *agents.InterruptGuard

	limits      Limits
	publisher   events.Publisher
	invalidator Invalidator
	logs        RunLogger
	metrics     *metrics.Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPublisher announces persisted recommendations
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithCache invalidates the user's cached score after each run
func WithCache(c Invalidator) Option {
	return func(o *Orchestrator) { o.invalidator = c }
}

// WithRunLogger records each run in the log manager
func WithRunLogger(l RunLogger) Option {
	return func(o *Orchestrator) { o.logs = l }
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLimits overrides the planning caps
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l }
}

// New wires an orchestrator. The agents carry their own advisory client.
func New(store Store, scorer Scorer, focus *agents.FocusAgent, planning *agents.PlanningAgent, guard *agents.InterruptGuard, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		scorer:   scorer,
		focus:    focus,
		planning: planning,
		guard:    guard,
		limits:   DefaultLimits(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateTrigger checks a trigger and its task context without side effects
func ValidateTrigger(trigger Trigger, task *NewTaskContext) error {
	switch trigger {
	case TriggerPeriodic, TriggerManual:
		return nil
	case TriggerNewTask:
		if task == nil {
			return fmt.Errorf("%w: new_task requires a task context", ErrInvalidTrigger)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTrigger, trigger)
	}
}

// activity is the supporting state gathered after scoring
type activity struct {
	openIssues        int
	openPRs           int
	todaySwitches     int
	focusMinutesToday int
	lastSession       *models.FocusSession
	currentSession    *models.FocusSession
	issues            []*models.Issue
	prs               []*models.PullRequest
}

// Run executes one orchestration for the user. Either every recommendation
// produced is persisted and returned, or an error is returned and nothing is.
func (o *Orchestrator) Run(ctx context.Context, userID string, trigger Trigger, task *NewTaskContext) (*Result, error) {
	if err := ValidateTrigger(trigger, task); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "orchestrator.Run",
		attribute.String("user_id", userID),
		attribute.String("trigger", string(trigger)))
	defer span.End()
	start := time.Now()

	result, err := o.run(ctx, userID, trigger, task)
	o.metrics.RecordOrchestration(string(trigger), err == nil)
	telemetry.RecordLatency(ctx, telemetry.OrchestrationLatency, time.Since(start),
		attribute.String("trigger", string(trigger)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "orchestration failed")
		log.Printf("[Orchestrator] user=%s trigger=%s failed: %v", userID, trigger, err)
		return nil, err
	}

	duration := time.Since(start)
	if o.logs != nil {
		o.logs.LogAgentRun("orchestrator", userID, duration, map[string]interface{}{
			"trigger":             string(trigger),
			"recommendationCount": len(result.Recommendations),
		})
	}
	span.SetAttributes(attribute.Int("recommendations", len(result.Recommendations)))
	log.Printf("[Orchestrator] user=%s trigger=%s score=%d recommendations=%d in %s",
		userID, trigger, result.Score.Score, len(result.Recommendations), duration.Round(time.Millisecond))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, userID string, trigger Trigger, task *NewTaskContext) (*Result, error) {
	score, err := o.scorer.Calculate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate load: %w", err)
	}

	act, err := o.gather(ctx, userID, trigger)
	if err != nil {
		return nil, err
	}

	now := o.scorer.Now()
	var (
		focusRec    *models.AgentRecommendation
		planningRec *models.AgentRecommendation
		guardRec    *models.AgentRecommendation
	)

	// Agents absorb their own advisory failures, so these goroutines never
	// fail; the group only bounds the fan-out.
	var g errgroup.Group
	switch trigger {
	case TriggerPeriodic, TriggerManual:
		g.Go(func() error {
			focusRec = o.runFocus(ctx, userID, score, act, now)
			return nil
		})
		g.Go(func() error {
			planningRec = o.runPlanning(ctx, userID, score, act, now)
			return nil
		})
	case TriggerNewTask:
		g.Go(func() error {
			guardRec = o.runGuard(ctx, userID, score, act, task, now)
			return nil
		})
	}
	_ = g.Wait()

	recs := make([]*models.AgentRecommendation, 0, 2)
	for _, rec := range []*models.AgentRecommendation{focusRec, planningRec, guardRec} {
		if rec != nil {
			recs = append(recs, rec)
		}
	}

	if err := o.store.InsertRecommendations(ctx, recs); err != nil {
		return nil, fmt.Errorf("failed to persist recommendations: %w", err)
	}

	o.afterCommit(ctx, userID, recs)
	return &Result{Score: score, Recommendations: recs}, nil
}

// gather reads the supporting aggregates concurrently
func (o *Orchestrator) gather(ctx context.Context, userID string, trigger Trigger) (*activity, error) {
	now := o.scorer.Now()
	today := cognitive.StartOfDay(now, o.scorer.Location())
	act := &activity{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := o.store.CountOpenIssues(gctx, userID)
		act.openIssues = n
		return err
	})
	g.Go(func() error {
		n, err := o.store.CountOpenPullRequests(gctx, userID)
		act.openPRs = n
		return err
	})
	g.Go(func() error {
		n, err := o.store.CountContextSwitchesSince(gctx, userID, today)
		act.todaySwitches = n
		return err
	})
	g.Go(func() error {
		sessions, err := o.store.ListFocusSessions(gctx, userID, today, now.Add(time.Second))
		for _, s := range sessions {
			act.focusMinutesToday += s.Duration / 60
		}
		return err
	})
	g.Go(func() error {
		s, err := o.store.LatestFocusSession(gctx, userID)
		act.lastSession = s
		return err
	})

	switch trigger {
	case TriggerNewTask:
		g.Go(func() error {
			s, err := o.store.CurrentFocusSession(gctx, userID)
			act.currentSession = s
			return err
		})
	default:
		g.Go(func() error {
			issues, err := o.store.ListOpenIssues(gctx, userID, o.limits.MaxPlanningIssues)
			act.issues = issues
			return err
		})
		g.Go(func() error {
			prs, err := o.store.ListOpenPullRequests(gctx, userID, o.limits.MaxPlanningPRs)
			act.prs = prs
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to gather activity: %w", err)
	}
	return act, nil
}

func (o *Orchestrator) runFocus(ctx context.Context, userID string, score *models.CognitiveScore, act *activity, now time.Time) *models.AgentRecommendation {
	res, meta := o.focus.Evaluate(ctx, score, agents.FocusContext{
		OpenTaskCount:     act.openIssues + act.openPRs,
		TodaySwitches:     act.todaySwitches,
		HoursSinceBreak:   hoursSinceEnded(act.lastSession, now),
		FocusMinutesToday: act.focusMinutesToday,
	})
	o.noteFallback(ctx, models.AgentFocus, meta)
	if !res.ShouldIntervene {
		return nil
	}

	recType := models.RecommendationDefer
	if res.Priority == models.PriorityCritical {
		recType = models.RecommendationBreak
	}
	return &models.AgentRecommendation{
		UserID:           userID,
		Agent:            models.AgentFocus,
		Type:             recType,
		Message:          res.Message,
		Priority:         res.Priority,
		SuggestedActions: res.SuggestedActions,
	}
}

func (o *Orchestrator) runPlanning(ctx context.Context, userID string, score *models.CognitiveScore, act *activity, now time.Time) *models.AgentRecommendation {
	tasks := planningTasks(act.issues, act.prs, o.limits.PullRequestPriority, now)
	if len(tasks) == 0 {
		return nil
	}

	res, meta := o.planning.Sequence(ctx, tasks, agents.PlanningContext{
		CurrentHour:       now.In(o.scorer.Location()).Hour(),
		CognitiveScore:    score.Score,
		FocusMinutesToday: act.focusMinutesToday,
	})
	o.noteFallback(ctx, models.AgentPlanning, meta)

	return &models.AgentRecommendation{
		UserID:           userID,
		Agent:            models.AgentPlanning,
		Type:             models.RecommendationReorder,
		Message:          res.Message,
		Priority:         models.PriorityLow,
		SuggestedActions: res.SuggestedActions,
	}
}

func (o *Orchestrator) runGuard(ctx context.Context, userID string, score *models.CognitiveScore, act *activity, task *NewTaskContext, now time.Time) *models.AgentRecommendation {
	title := generalWork
	depth := 0
	if s := act.currentSession; s != nil {
		if s.TaskType != "" {
			title = s.TaskType
		}
		depth = int(math.Floor(now.Sub(s.StartedAt).Minutes()))
		if depth < 0 {
			depth = 0
		}
	}

	res, meta := o.guard.Evaluate(ctx, agents.GuardContext{
		CurrentTaskTitle:      title,
		CurrentTaskComplexity: o.limits.CurrentTaskComplexity,
		FocusDepthMinutes:     depth,
		CognitiveScore:        score.Score,
		NewTaskTitle:          task.TaskTitle,
		NewTaskComplexity:     task.TaskComplexity,
		NewTaskPriority:       task.TaskPriority,
	})
	o.noteFallback(ctx, models.AgentInterruptGuard, meta)

	cost := res.EstimatedCostMinutes
	return &models.AgentRecommendation{
		UserID:               userID,
		Agent:                models.AgentInterruptGuard,
		Type:                 res.Recommendation,
		Message:              res.Message,
		Priority:             res.Priority,
		EstimatedCostMinutes: &cost,
		SuggestedActions:     res.SuggestedActions,
	}
}

func (o *Orchestrator) noteFallback(ctx context.Context, agent models.AgentName, meta agents.Meta) {
	if meta.UsedFallback {
		telemetry.AddInt(ctx, telemetry.AdvisoryFallbacks, 1, attribute.String("agent", string(agent)))
	}
}

// afterCommit runs the best-effort side effects of a persisted run
func (o *Orchestrator) afterCommit(ctx context.Context, userID string, recs []*models.AgentRecommendation) {
	for _, rec := range recs {
		o.metrics.RecordRecommendation(string(rec.Agent), string(rec.Priority))
		if o.publisher != nil {
			if err := o.publisher.Publish(ctx, events.NewEvent(events.TypeRecommendationCreated, userID, rec)); err != nil {
				log.Printf("[Orchestrator] Failed to publish recommendation %s: %v", rec.ID, err)
			}
		}
	}
	telemetry.AddInt(ctx, telemetry.RecommendationsWritten, int64(len(recs)))

	// The run appended a snapshot, so any cached score view is stale
	if o.invalidator != nil {
		o.invalidator.InvalidatePrefix(ctx, cache.UserPrefix(userID))
	}
}

// planningTasks converts open work into planning input. Issues come first,
// then pull requests, each in store order.
func planningTasks(issues []*models.Issue, prs []*models.PullRequest, prPriority float64, now time.Time) []agents.PlanningTask {
	tasks := make([]agents.PlanningTask, 0, len(issues)+len(prs))
	for _, i := range issues {
		tasks = append(tasks, agents.PlanningTask{
			ID:         i.ID,
			Title:      i.Title,
			Type:       models.TaskTypeIssue,
			Complexity: i.Complexity,
			Priority:   i.Priority,
			Repo:       i.RepoName,
			State:      string(i.State),
			AgeDays:    wholeDays(i.CreatedAt, now),
		})
	}
	for _, pr := range prs {
		tasks = append(tasks, agents.PlanningTask{
			ID:         pr.ID,
			Title:      pr.Title,
			Type:       models.TaskTypePullRequest,
			Complexity: pr.Complexity,
			Priority:   prPriority,
			Repo:       pr.RepoName,
			State:      string(pr.State),
			AgeDays:    wholeDays(pr.CreatedAt, now),
		})
	}
	return tasks
}

func wholeDays(created, now time.Time) int {
	d := int(math.Floor(now.Sub(created).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

// hoursSinceEnded measures from the last session's end only; an open or
// missing session counts as no break debt.
func hoursSinceEnded(s *models.FocusSession, now time.Time) float64 {
	if s == nil || s.EndedAt == nil {
		return 0
	}
	h := now.Sub(*s.EndedAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}
