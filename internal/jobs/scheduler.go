package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
)

// ErrSchedulerStopped is returned when a job is submitted after Stop.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// ErrRunFailed is returned by RunNow when the run did not complete.
var ErrRunFailed = errors.New("job run failed")

// Scheduler fires jobs in-process, either once right away or on an interval.
// Every firing gets a fresh fire token, so run ids are never reused.
type Scheduler struct {
	runner *Runner
	store  status.Store
	clock  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithClock sets the clock driving interval triggers
func WithClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// NewScheduler creates a Scheduler that runs jobs through runner and writes
// Pending statuses to store.
func NewScheduler(runner *Runner, store status.Store, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner: runner,
		store:  store,
		clock:  clock.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue records a Pending status for a new firing of jobID and runs it
// asynchronously. It returns the run id.
func (s *Scheduler) Enqueue(ctx context.Context, jobID string, data map[string]string, h Handler) (string, error) {
	if s.isStopped() {
		return "", ErrSchedulerStopped
	}

	jc := newContext(jobID, data)
	if err := s.store.SetStatus(ctx, jc.RunID(), status.JobStatusPending, jc.Tenant(), ""); err != nil {
		return "", fmt.Errorf("failed to queue job %s: %w", jobID, err)
	}

	if err := s.spawn(func() { s.runner.Execute(s.ctx, jc, h) }); err != nil {
		// Stop won the race after the Pending write; close the run out.
		if werr := s.store.SetStatus(context.WithoutCancel(ctx), jc.RunID(), status.JobStatusError,
			jc.Tenant(), err.Error()); werr != nil {
			slog.Error("Failed to record status of unstarted job", "job_id", jobID, "run_id", jc.RunID(), "error", werr)
		}
		return "", err
	}
	slog.Debug("Job queued", "job_id", jobID, "run_id", jc.RunID())
	return jc.RunID(), nil
}

// RunNow fires jobID on the calling goroutine and returns once the run has
// ended. The error reflects the terminal status recorded for the run.
func (s *Scheduler) RunNow(ctx context.Context, jobID string, data map[string]string, h Handler) (string, error) {
	if s.isStopped() {
		return "", ErrSchedulerStopped
	}

	jc := newContext(jobID, data)
	runID := jc.RunID()
	if err := s.store.SetStatus(ctx, runID, status.JobStatusPending, jc.Tenant(), ""); err != nil {
		return "", fmt.Errorf("failed to queue job %s: %w", jobID, err)
	}

	s.runner.Execute(ctx, jc, h)

	rec, err := s.store.GetStatus(context.WithoutCancel(ctx), runID, jc.Tenant())
	if err != nil {
		return runID, fmt.Errorf("failed to read status of run %s: %w", runID, err)
	}
	if rec.Status != status.JobStatusCompleted {
		msg := string(rec.Status)
		if rec.ErrorMessage != nil {
			msg = *rec.ErrorMessage
		}
		return runID, fmt.Errorf("%w: %s", ErrRunFailed, msg)
	}
	return runID, nil
}

// Every fires jobID each interval until Stop. Firings of the same job never overlap.
func (s *Scheduler) Every(jobID string, data map[string]string, interval time.Duration, h Handler) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	ticker := s.clock.Ticker(interval)
	err := s.spawn(func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.fire(jobID, data, h)
			}
		}
	})
	if err != nil {
		ticker.Stop()
		return err
	}

	slog.Info("Scheduled periodic job", "job_id", jobID, "interval", interval)
	return nil
}

func (s *Scheduler) fire(jobID string, data map[string]string, h Handler) {
	jc := newContext(jobID, data)
	if err := s.store.SetStatus(s.ctx, jc.RunID(), status.JobStatusPending, jc.Tenant(), ""); err != nil {
		slog.Error("Failed to queue periodic job", "job_id", jobID, "run_id", jc.RunID(), "error", err)
		return
	}
	s.runner.Execute(s.ctx, jc, h)
}

func (s *Scheduler) spawn(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return nil
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop cancels outstanding runs and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func newContext(jobID string, data map[string]string) *Context {
	return &Context{
		JobID:     jobID,
		FireToken: uuid.NewString(),
		Data:      maps.Clone(data),
	}
}
