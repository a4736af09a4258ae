package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// TaskRepository persists durable scheduled tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.ScheduledTask) error
	// ClaimDue leases up to limit due tasks until now+lease. Tasks leased by
	// another runner are skipped; an expired lease makes a task claimable again.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.ScheduledTask, error)
	Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastErr string) error
	Delete(ctx context.Context, id string) error
	CountPending(ctx context.Context) (int, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.ScheduledTask) error {
	const query = `
        INSERT INTO scheduled_tasks (id, task_ref, payload, run_at, attempts)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		task.ID,
		task.Ref,
		[]byte(task.Payload),
		task.RunAt,
		task.Attempts,
	).Scan(&task.CreatedAt)
}

func (r *taskRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.ScheduledTask, error) {
	const query = `
        UPDATE scheduled_tasks SET locked_until=$2, attempts=attempts+1
        WHERE id IN (
            SELECT id FROM scheduled_tasks
            WHERE run_at <= $1 AND (locked_until IS NULL OR locked_until < $1)
            ORDER BY run_at ASC
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, task_ref, payload, run_at, attempts, locked_until, last_error, created_at`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ScheduledTask
	for rows.Next() {
		var (
			task    domain.ScheduledTask
			payload []byte
		)
		if err := rows.Scan(
			&task.ID,
			&task.Ref,
			&payload,
			&task.RunAt,
			&task.Attempts,
			&task.LockedUntil,
			&task.LastError,
			&task.CreatedAt,
		); err != nil {
			return nil, err
		}
		task.Payload = payload
		result = append(result, task)
	}
	return result, rows.Err()
}

func (r *taskRepository) Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastErr string) error {
	const query = `
        UPDATE scheduled_tasks SET run_at=$2, attempts=$3, last_error=NULLIF($4, ''), locked_until=NULL
        WHERE id=$1`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, id, runAt, attempts, lastErr)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scheduled_tasks WHERE id=$1`
	_, err := conn(ctx, r.pool).Exec(ctx, query, id)
	return err
}

func (r *taskRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM scheduled_tasks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
