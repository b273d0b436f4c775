package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"
)

// ActiveUsers lists users worth a periodic run
type ActiveUsers interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Runner is the orchestration entrypoint the scheduler drives
type Runner interface {
	Run(ctx context.Context, userID string, trigger Trigger, task *NewTaskContext) (*Result, error)
}

// Scheduler runs the periodic trigger for every active user on a fixed interval
type Scheduler struct {
	users    ActiveUsers
	runner   Runner
	interval time.Duration
	lookback time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler. Users with activity inside lookback
// (default 7 days) or any open work are visited.
func NewScheduler(users ActiveUsers, runner Runner, interval, lookback time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	return &Scheduler{users: users, runner: runner, interval: interval, lookback: lookback}
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Printf("[Scheduler] Started (interval %s)", s.interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[Scheduler] Stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// RunOnce performs one sweep and returns how many users ran successfully.
// A failure for one user is logged and does not stop the sweep.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ids, err := s.users.ListActiveUserIDs(ctx, time.Now().Add(-s.lookback))
	if err != nil {
		log.Printf("[Scheduler] Failed to list active users: %v", err)
		return 0
	}

	ok := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.runner.Run(ctx, id, TriggerPeriodic, nil); err != nil {
			log.Printf("[Scheduler] Periodic run for %s failed: %v", id, err)
			continue
		}
		ok++
	}
	return ok
}
