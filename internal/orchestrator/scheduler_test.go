package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticUsers struct {
	ids []string
	err error
}

func (s staticUsers) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	return s.ids, s.err
}

type countingRunner struct {
	mu       sync.Mutex
	fail     map[string]bool
	ran      []string
	triggers []Trigger
}

func (r *countingRunner) Run(ctx context.Context, userID string, trigger Trigger, task *NewTaskContext) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, userID)
	r.triggers = append(r.triggers, trigger)
	if r.fail[userID] {
		return nil, errors.New("store down")
	}
	return &Result{}, nil
}

func TestScheduler_RunOnceContinuesPastFailures(t *testing.T) {
	runner := &countingRunner{fail: map[string]bool{"u2": true}}
	s := NewScheduler(staticUsers{ids: []string{"u1", "u2", "u3"}}, runner, time.Minute, 0)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"u1", "u2", "u3"}, runner.ran)
	for _, trig := range runner.triggers {
		assert.Equal(t, TriggerPeriodic, trig)
	}
}

func TestScheduler_ListFailure(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(staticUsers{err: errors.New("boom")}, runner, time.Minute, 0)
	assert.Equal(t, 0, s.RunOnce(context.Background()))
	assert.Empty(t, runner.ran)
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(staticUsers{ids: []string{"u1"}}, runner, 10*time.Millisecond, 0)

	s.Start(context.Background())
	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.ran) > 0
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
}
