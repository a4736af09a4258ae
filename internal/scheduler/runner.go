package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

// Handler executes one task. Return Permanent to drop the task, Defer to
// postpone it, or any other error to retry with backoff.
type Handler func(ctx context.Context, task domain.ScheduledTask) error

// Runner polls for due tasks and dispatches them to registered handlers.
type Runner struct {
	tasks        repository.TaskRepository
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics
	retry        RetryPolicy
	pollInterval time.Duration
	lease        time.Duration
	batchSize    int

	mu       sync.RWMutex
	handlers map[domain.TaskRef]Handler
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithPollInterval sets how often the runner looks for due tasks.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithLease sets how long a claimed task stays invisible to other runners.
func WithLease(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.lease = d
		}
	}
}

// WithBatchSize caps the tasks claimed per poll.
func WithBatchSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRetryPolicy replaces the default backoff for failed tasks.
func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.retry = p
	}
}

// WithMetrics records task outcomes on m.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner builds a Runner with a one second poll, thirty second lease and batches of 50.
func NewRunner(tasks repository.TaskRepository, clk clock.Clock, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		tasks:        tasks,
		clock:        clk,
		logger:       logger,
		retry:        DefaultRetryPolicy(10, 2*time.Second),
		pollInterval: time.Second,
		lease:        30 * time.Second,
		batchSize:    50,
		handlers:     make(map[domain.TaskRef]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a task reference.
func (r *Runner) Register(ref domain.TaskRef, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ref] = handler
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.logger.Info("task runner started", zap.Duration("poll_interval", r.pollInterval))
	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Error("claim due tasks", zap.Error(err))
			}
			// Drain backlogs without waiting a full interval per batch.
			if err != nil || n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.logger.Info("task runner stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due tasks and processes it. It returns the number claimed.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	due, err := r.tasks.ClaimDue(ctx, r.clock.Now(), r.lease, r.batchSize)
	if err != nil {
		return 0, err
	}
	for _, task := range due {
		if ctx.Err() != nil {
			break
		}
		r.process(ctx, task)
	}
	return len(due), nil
}

func (r *Runner) process(ctx context.Context, task domain.ScheduledTask) {
	log := r.logger.With(
		zap.String("task_id", task.ID),
		zap.String("task_ref", string(task.Ref)),
		zap.Int("attempt", task.Attempts),
	)

	r.mu.RLock()
	handler, ok := r.handlers[task.Ref]
	r.mu.RUnlock()
	if !ok {
		log.Warn("no handler registered; dropping task")
		r.finish(ctx, log, task.ID)
		r.metrics.RecordTask(string(task.Ref), "unhandled")
		return
	}

	err := handler(ctx, task)
	if err == nil {
		r.finish(ctx, log, task.ID)
		r.metrics.RecordTask(string(task.Ref), "ok")
		return
	}

	var deferred *DeferError
	if errors.As(err, &deferred) {
		log.Debug("task deferred", zap.Time("until", deferred.Until))
		// A deferral is not a failed attempt.
		if rerr := r.tasks.Reschedule(ctx, task.ID, deferred.Until, task.Attempts-1, ""); rerr != nil {
			log.Error("reschedule deferred task", zap.Error(rerr))
		}
		r.metrics.RecordTask(string(task.Ref), "deferred")
		return
	}

	delay, retry := r.retry.Next(task.Attempts, err)
	if !retry {
		log.Warn("dropping task", zap.Error(err), zap.Bool("permanent", IsPermanent(err)))
		r.finish(ctx, log, task.ID)
		r.metrics.RecordTask(string(task.Ref), "dropped")
		return
	}

	log.Warn("task failed; retrying", zap.Error(err), zap.Duration("backoff", delay))
	if rerr := r.tasks.Reschedule(ctx, task.ID, r.clock.Now().Add(delay), task.Attempts, err.Error()); rerr != nil {
		log.Error("reschedule failed task", zap.Error(rerr))
	}
	r.metrics.RecordTask(string(task.Ref), "retry")
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, id string) {
	if err := r.tasks.Delete(ctx, id); err != nil {
		// The lease lapses and the task is redelivered; handlers are idempotent.
		log.Error("delete finished task", zap.Error(err))
	}
}
