package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/internal/agents"
	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/pkg/models"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	calls    int
	issues   []*models.Issue
	prs      []*models.PullRequest
	switches int
	sessions []*models.FocusSession
	current  *models.FocusSession
	latest   *models.FocusSession
	insertFn func([]*models.AgentRecommendation) error
	stored   []*models.AgentRecommendation
}

func (f *fakeStore) touch() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeStore) CountOpenIssues(ctx context.Context, userID string) (int, error) {
	f.touch()
	return len(f.issues), nil
}

func (f *fakeStore) CountOpenPullRequests(ctx context.Context, userID string) (int, error) {
	f.touch()
	return len(f.prs), nil
}

func (f *fakeStore) CountContextSwitchesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	f.touch()
	return f.switches, nil
}

func (f *fakeStore) ListFocusSessions(ctx context.Context, userID string, from, to time.Time) ([]*models.FocusSession, error) {
	f.touch()
	var out []*models.FocusSession
	for _, s := range f.sessions {
		if !s.StartedAt.Before(from) && s.StartedAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) LatestFocusSession(ctx context.Context, userID string) (*models.FocusSession, error) {
	f.touch()
	return f.latest, nil
}

func (f *fakeStore) CurrentFocusSession(ctx context.Context, userID string) (*models.FocusSession, error) {
	f.touch()
	return f.current, nil
}

func (f *fakeStore) ListOpenIssues(ctx context.Context, userID string, limit int) ([]*models.Issue, error) {
	f.touch()
	if limit > 0 && len(f.issues) > limit {
		return f.issues[:limit], nil
	}
	return f.issues, nil
}

func (f *fakeStore) ListOpenPullRequests(ctx context.Context, userID string, limit int) ([]*models.PullRequest, error) {
	f.touch()
	if limit > 0 && len(f.prs) > limit {
		return f.prs[:limit], nil
	}
	return f.prs, nil
}

func (f *fakeStore) InsertRecommendations(ctx context.Context, recs []*models.AgentRecommendation) error {
	f.touch()
	if f.insertFn != nil {
		if err := f.insertFn(recs); err != nil {
			return err
		}
	}
	for i, r := range recs {
		if r.ID == "" {
			r.ID = fmt.Sprintf("rec-%d", len(f.stored)+i)
		}
	}
	f.stored = append(f.stored, recs...)
	return nil
}

type fakeScorer struct {
	score int
	err   error
	calls int
}

func (s *fakeScorer) Calculate(ctx context.Context, userID string) (*models.CognitiveScore, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.CognitiveScore{Score: s.score, Level: models.LevelForScore(s.score), Timestamp: fixedNow}, nil
}

func (s *fakeScorer) Location() *time.Location { return time.UTC }
func (s *fakeScorer) Now() time.Time           { return fixedNow }

type recordingInvalidator struct{ prefixes []string }

func (r *recordingInvalidator) InvalidatePrefix(ctx context.Context, prefix string) int {
	r.prefixes = append(r.prefixes, prefix)
	return 1
}

type recordingLogger struct {
	agent string
	user  string
	meta  map[string]interface{}
}

func (r *recordingLogger) LogAgentRun(agent, userID string, d time.Duration, meta map[string]interface{}) {
	r.agent, r.user, r.meta = agent, userID, meta
}

// promptCompleter captures prompts and answers with garbage so agents fall back
type promptCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (p *promptCompleter) Complete(ctx context.Context, system, prompt string, opts provider.Options) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()
	return "not json", nil
}

func newOrchestrator(store *fakeStore, scorer *fakeScorer, c provider.Completer, opts ...Option) *Orchestrator {
	cfg := agents.DefaultConfig()
	return New(store, scorer,
		agents.NewFocusAgent(c, cfg, nil),
		agents.NewPlanningAgent(c, cfg, nil),
		agents.NewInterruptGuard(c, cfg, nil),
		opts...)
}

func TestRun_RejectsInvalidTriggerBeforeStoreAccess(t *testing.T) {
	store := &fakeStore{}
	scorer := &fakeScorer{score: 50}
	o := newOrchestrator(store, scorer, nil)

	for _, trig := range []Trigger{"hourly", "", "MANUAL"} {
		_, err := o.Run(context.Background(), "u1", trig, nil)
		assert.ErrorIs(t, err, ErrInvalidTrigger, string(trig))
	}

	_, err := o.Run(context.Background(), "u1", TriggerNewTask, nil)
	assert.ErrorIs(t, err, ErrInvalidTrigger)

	assert.Equal(t, 0, store.calls)
	assert.Equal(t, 0, scorer.calls)
}

func TestRun_PeriodicWithoutTasksSkipsPlanning(t *testing.T) {
	store := &fakeStore{}
	o := newOrchestrator(store, &fakeScorer{score: 75}, nil)

	res, err := o.Run(context.Background(), "u1", TriggerPeriodic, nil)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	rec := res.Recommendations[0]
	assert.Equal(t, models.AgentFocus, rec.Agent)
	assert.Equal(t, models.RecommendationDefer, rec.Type)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, 75, res.Score.Score)
	assert.Len(t, store.stored, 1)
}

func TestRun_ManualLowScoreOnlyPlans(t *testing.T) {
	store := &fakeStore{
		issues: []*models.Issue{
			{ID: "a", Title: "A", Priority: 5, Complexity: 2, State: models.TaskStateOpen, CreatedAt: fixedNow.Add(-50 * time.Hour)},
		},
		prs: []*models.PullRequest{
			{ID: "b", Title: "B", Complexity: 9, State: models.TaskStateOpen, CreatedAt: fixedNow},
		},
	}
	o := newOrchestrator(store, &fakeScorer{score: 45}, nil)

	res, err := o.Run(context.Background(), "u1", TriggerManual, nil)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	rec := res.Recommendations[0]
	assert.Equal(t, models.AgentPlanning, rec.Agent)
	assert.Equal(t, models.RecommendationReorder, rec.Type)
	assert.Equal(t, models.PriorityLow, rec.Priority)
	assert.NotEmpty(t, rec.Message)
	assert.Nil(t, rec.EstimatedCostMinutes)
}

func TestRun_OverloadedProducesFocusThenPlanning(t *testing.T) {
	store := &fakeStore{
		issues: []*models.Issue{{ID: "a", Priority: 3, Complexity: 3, CreatedAt: fixedNow}},
	}
	o := newOrchestrator(store, &fakeScorer{score: 90}, nil)

	res, err := o.Run(context.Background(), "u1", TriggerPeriodic, nil)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, models.AgentFocus, res.Recommendations[0].Agent)
	assert.Equal(t, models.PriorityHigh, res.Recommendations[0].Priority)
	assert.Equal(t, models.AgentPlanning, res.Recommendations[1].Agent)
}

func TestRun_NewTaskRunsGuardOnly(t *testing.T) {
	store := &fakeStore{
		issues:  []*models.Issue{{ID: "a", Priority: 3, Complexity: 3, CreatedAt: fixedNow}},
		current: &models.FocusSession{ID: "s1", TaskType: "code-review", StartedAt: fixedNow.Add(-30*time.Minute - 40*time.Second)},
	}
	o := newOrchestrator(store, &fakeScorer{score: 90}, nil)

	res, err := o.Run(context.Background(), "u1", TriggerNewTask, &NewTaskContext{
		TaskTitle: "Hotfix", TaskComplexity: 6, TaskPriority: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	rec := res.Recommendations[0]
	assert.Equal(t, models.AgentInterruptGuard, rec.Agent)
	assert.Equal(t, models.RecommendationDefer, rec.Type)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
	require.NotNil(t, rec.EstimatedCostMinutes)
	// round(30*0.5 + 5*2)
	assert.Equal(t, 25, *rec.EstimatedCostMinutes)
}

func TestRun_NewTaskWithoutSessionUsesGeneralWork(t *testing.T) {
	c := &promptCompleter{}
	o := newOrchestrator(&fakeStore{}, &fakeScorer{score: 20}, c)

	res, err := o.Run(context.Background(), "u1", TriggerNewTask, &NewTaskContext{
		TaskTitle: "Incident", TaskComplexity: 8, TaskPriority: 5,
	})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, models.RecommendationAccept, res.Recommendations[0].Type)
	assert.Equal(t, models.PriorityHigh, res.Recommendations[0].Priority)
	assert.Equal(t, 10, *res.Recommendations[0].EstimatedCostMinutes)

	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], `"general work"`)
	assert.Contains(t, c.prompts[0], "Focus depth: 0 minutes")
}

func TestRun_FocusContextFromActivity(t *testing.T) {
	ended := fixedNow.Add(-90 * time.Minute)
	store := &fakeStore{
		switches: 4,
		sessions: []*models.FocusSession{
			{ID: "s1", StartedAt: fixedNow.Add(-5 * time.Hour), EndedAt: &ended, Duration: 1519},
			{ID: "s2", StartedAt: fixedNow.Add(-60 * time.Minute), Duration: 119},
			{ID: "old", StartedAt: fixedNow.Add(-30 * time.Hour), Duration: 6000},
		},
		latest: &models.FocusSession{ID: "s1", EndedAt: &ended},
	}
	c := &promptCompleter{}
	o := newOrchestrator(store, &fakeScorer{score: 10}, c)

	_, err := o.Run(context.Background(), "u1", TriggerPeriodic, nil)
	require.NoError(t, err)

	require.Len(t, c.prompts, 1, "planning is skipped with no tasks")
	p := c.prompts[0]
	assert.Contains(t, p, "Context switches today: 4")
	assert.Contains(t, p, "Hours since last break: 1.5")
	// floor(1519/60) + floor(119/60)
	assert.Contains(t, p, "Focus minutes today: 26")
}

func TestRun_StoreFailureDiscardsEverything(t *testing.T) {
	boom := fmt.Errorf("failed to insert recommendation: %w", database.ErrStoreUnavailable)
	store := &fakeStore{insertFn: func([]*models.AgentRecommendation) error { return boom }}
	bus := events.NewMemoryBus(nil)
	var published []events.Event
	_, err := bus.Subscribe("u1", func(e events.Event) { published = append(published, e) })
	require.NoError(t, err)
	inv := &recordingInvalidator{}
	logger := &recordingLogger{}

	o := newOrchestrator(store, &fakeScorer{score: 80}, nil,
		WithPublisher(bus), WithCache(inv), WithRunLogger(logger))

	res, err := o.Run(context.Background(), "u1", TriggerManual, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, database.ErrStoreUnavailable)
	assert.Empty(t, published)
	assert.Empty(t, inv.prefixes)
	assert.Empty(t, logger.agent)
}

func TestRun_ScorerFailurePropagates(t *testing.T) {
	store := &fakeStore{}
	o := newOrchestrator(store, &fakeScorer{err: database.ErrStoreUnavailable}, nil)

	_, err := o.Run(context.Background(), "u1", TriggerPeriodic, nil)
	assert.ErrorIs(t, err, database.ErrStoreUnavailable)
	assert.Equal(t, 0, store.calls)
}

func TestRun_SideEffectsAfterCommit(t *testing.T) {
	bus := events.NewMemoryBus(nil)
	var published []events.Event
	_, err := bus.Subscribe("u1", func(e events.Event) { published = append(published, e) })
	require.NoError(t, err)
	inv := &recordingInvalidator{}
	logger := &recordingLogger{}

	o := newOrchestrator(&fakeStore{}, &fakeScorer{score: 70}, nil,
		WithPublisher(bus), WithCache(inv), WithRunLogger(logger))

	res, err := o.Run(context.Background(), "u1", TriggerPeriodic, nil)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	require.Len(t, published, 1)
	assert.Equal(t, events.TypeRecommendationCreated, published[0].Type)
	assert.Equal(t, []string{"cognitive:u1:"}, inv.prefixes)
	assert.Equal(t, "orchestrator", logger.agent)
	assert.Equal(t, "u1", logger.user)
	assert.Equal(t, "periodic", logger.meta["trigger"])
	assert.Equal(t, 1, logger.meta["recommendationCount"])
}

func TestRun_PlanningCapsInput(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 20; i++ {
		store.issues = append(store.issues, &models.Issue{ID: fmt.Sprintf("i%02d", i), Priority: 1, Complexity: 1, CreatedAt: fixedNow})
	}
	for i := 0; i < 12; i++ {
		store.prs = append(store.prs, &models.PullRequest{ID: fmt.Sprintf("p%02d", i), Complexity: 1, CreatedAt: fixedNow})
	}
	c := &promptCompleter{}
	o := newOrchestrator(store, &fakeScorer{score: 10}, c)

	_, err := o.Run(context.Background(), "u1", TriggerManual, nil)
	require.NoError(t, err)

	var planning string
	for _, p := range c.prompts {
		if strings.Contains(p, "Active tasks:") {
			planning = p
		}
	}
	require.NotEmpty(t, planning)
	assert.Equal(t, 25, strings.Count(planning, "\n- ["))
	assert.Contains(t, planning, "[i14]")
	assert.NotContains(t, planning, "[i15]")
	assert.Contains(t, planning, "[p09]")
	assert.NotContains(t, planning, "[p10]")
	assert.Contains(t, planning, "priority: 3/5")
}

func TestPlanningTasks(t *testing.T) {
	issues := []*models.Issue{{ID: "i1", Title: "Bug", RepoName: "api", Complexity: 4, Priority: 2,
		State: models.TaskStateOpen, CreatedAt: fixedNow.Add(-71 * time.Hour)}}
	prs := []*models.PullRequest{{ID: "p1", Title: "Feature", RepoName: "web", Complexity: 7,
		State: models.TaskStateOpen, CreatedAt: fixedNow.Add(time.Hour)}}

	tasks := planningTasks(issues, prs, 3, fixedNow)
	require.Len(t, tasks, 2)
	assert.Equal(t, agents.PlanningTask{ID: "i1", Title: "Bug", Type: models.TaskTypeIssue, Complexity: 4,
		Priority: 2, Repo: "api", State: "open", AgeDays: 2}, tasks[0])
	assert.Equal(t, models.TaskTypePullRequest, tasks[1].Type)
	assert.Equal(t, float64(3), tasks[1].Priority)
	assert.Equal(t, 0, tasks[1].AgeDays)
}

func TestHoursSinceEnded(t *testing.T) {
	ended := fixedNow.Add(-2 * time.Hour)
	assert.Equal(t, 0.0, hoursSinceEnded(nil, fixedNow))
	assert.Equal(t, 0.0, hoursSinceEnded(&models.FocusSession{StartedAt: fixedNow.Add(-5 * time.Hour)}, fixedNow))
	assert.InDelta(t, 2.0, hoursSinceEnded(&models.FocusSession{EndedAt: &ended}, fixedNow), 1e-9)
}

func TestValidateTrigger(t *testing.T) {
	assert.NoError(t, ValidateTrigger(TriggerPeriodic, nil))
	assert.NoError(t, ValidateTrigger(TriggerManual, nil))
	assert.NoError(t, ValidateTrigger(TriggerNewTask, &NewTaskContext{}))
	assert.True(t, errors.Is(ValidateTrigger("weekly", nil), ErrInvalidTrigger))
}
