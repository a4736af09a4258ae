// Package scheduler persists deferred work in Postgres and runs it with
// at-least-once delivery.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

// Scheduler records tasks. When ctx carries a transaction the task commits
// or rolls back together with it.
type Scheduler struct {
	tasks repository.TaskRepository
	clock clock.Clock
}

// New builds a Scheduler.
func New(tasks repository.TaskRepository, clk clock.Clock) *Scheduler {
	return &Scheduler{tasks: tasks, clock: clk}
}

// ScheduleAfter enqueues ref to run once delay has elapsed.
func (s *Scheduler) ScheduleAfter(ctx context.Context, delay time.Duration, ref domain.TaskRef, payload any) (string, error) {
	return s.ScheduleAt(ctx, s.clock.Now().Add(delay), ref, payload)
}

// ScheduleAt enqueues ref to run at or after runAt.
func (s *Scheduler) ScheduleAt(ctx context.Context, runAt time.Time, ref domain.TaskRef, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", ref, err)
	}
	task := &domain.ScheduledTask{
		ID:      uuid.NewString(),
		Ref:     ref,
		Payload: raw,
		RunAt:   runAt.UTC(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return "", fmt.Errorf("schedule %s: %w", ref, err)
	}
	return task.ID, nil
}
