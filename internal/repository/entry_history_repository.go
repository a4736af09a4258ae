package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// EntryHistoryRepository stores waiting-list audit records.
type EntryHistoryRepository interface {
	Create(ctx context.Context, history *domain.EntryHistory) error
	ListByEntry(ctx context.Context, entryID string) ([]domain.EntryHistory, error)
}

type entryHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryHistoryRepository builds repository.
func NewEntryHistoryRepository(pool *pgxpool.Pool) EntryHistoryRepository {
	return &entryHistoryRepository{pool: pool}
}

func (r *entryHistoryRepository) Create(ctx context.Context, history *domain.EntryHistory) error {
	const query = `
        INSERT INTO waiting_list_history (entry_id, event_id, user_id, old_status, new_status, reason, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	details := history.Details
	if details == nil {
		details = map[string]any{}
	}
	return conn(ctx, r.pool).QueryRow(ctx, query,
		history.EntryID,
		history.EventID,
		history.UserID,
		history.OldStatus,
		history.NewStatus,
		history.Reason,
		details,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *entryHistoryRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.EntryHistory, error) {
	const query = `
        SELECT id, entry_id, event_id, user_id, old_status, new_status, reason, details, created_at
        FROM waiting_list_history WHERE entry_id=$1 ORDER BY created_at ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EntryHistory
	for rows.Next() {
		var history domain.EntryHistory
		if err := rows.Scan(
			&history.ID,
			&history.EntryID,
			&history.EventID,
			&history.UserID,
			&history.OldStatus,
			&history.NewStatus,
			&history.Reason,
			&history.Details,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
