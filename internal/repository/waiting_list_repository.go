package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// WaitingListRepository encapsulates waiting-list entry persistence.
// Status transitions are conditional on the current status and report
// whether the row changed, so concurrent writers cannot both win.
type WaitingListRepository interface {
	Create(ctx context.Context, entry *domain.WaitingListEntry) error
	GetByID(ctx context.Context, id string) (*domain.WaitingListEntry, error)
	FindActive(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error)
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)
	CountWaitingAhead(ctx context.Context, entry *domain.WaitingListEntry) (int, error)
	ListWaiting(ctx context.Context, eventID string, limit int) ([]domain.WaitingListEntry, error)
	ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]domain.WaitingListEntry, error)
	MarkOffered(ctx context.Context, id string, expiresAt, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)
	MarkPurchased(ctx context.Context, id string, now time.Time) (bool, error)
}

type waitingListRepository struct {
	pool *pgxpool.Pool
}

// NewWaitingListRepository instantiates repository.
func NewWaitingListRepository(pool *pgxpool.Pool) WaitingListRepository {
	return &waitingListRepository{pool: pool}
}

const entryColumns = `id, event_id, user_id, status, offer_expires_at, created_at, updated_at`

func (r *waitingListRepository) Create(ctx context.Context, entry *domain.WaitingListEntry) error {
	const query = `
        INSERT INTO waiting_list_entries (id, event_id, user_id, status, offer_expires_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		entry.ID,
		entry.EventID,
		entry.UserID,
		entry.Status,
		entry.OfferExpiresAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyQueued
	}
	return err
}

func (r *waitingListRepository) GetByID(ctx context.Context, id string) (*domain.WaitingListEntry, error) {
	if malformedID(id) {
		return nil, domain.ErrEntryNotFound
	}
	query := `SELECT ` + entryColumns + ` FROM waiting_list_entries WHERE id=$1`
	entry, err := scanEntry(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return nil, domain.ErrEntryNotFound
	}
	return entry, err
}

// FindActive returns the user's non-EXPIRED entry for the event, or nil.
func (r *waitingListRepository) FindActive(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error) {
	if malformedID(eventID) {
		return nil, nil
	}
	query := `SELECT ` + entryColumns + ` FROM waiting_list_entries
        WHERE event_id=$1 AND user_id=$2 AND status <> 'EXPIRED'
        ORDER BY created_at DESC LIMIT 1`
	entry, err := scanEntry(conn(ctx, r.pool).QueryRow(ctx, query, eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return nil, nil
	}
	return entry, err
}

func (r *waitingListRepository) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM waiting_list_entries
        WHERE event_id=$1 AND status='OFFERED' AND offer_expires_at > $2`
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, eventID, now).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountWaitingAhead counts WAITING entries of the same event ordered before entry.
func (r *waitingListRepository) CountWaitingAhead(ctx context.Context, entry *domain.WaitingListEntry) (int, error) {
	const query = `
        SELECT COUNT(*) FROM waiting_list_entries
        WHERE event_id=$1 AND status='WAITING'
          AND (created_at < $2 OR (created_at = $2 AND id < $3))`
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, entry.EventID, entry.CreatedAt, entry.ID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListWaiting returns up to limit WAITING entries in promotion order.
func (r *waitingListRepository) ListWaiting(ctx context.Context, eventID string, limit int) ([]domain.WaitingListEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM waiting_list_entries
        WHERE event_id=$1 AND status='WAITING'
        ORDER BY created_at ASC, id ASC
        LIMIT $2`
	return r.list(ctx, query, eventID, limit)
}

// ListLapsedOffers returns OFFERED entries whose expiry is at or before now.
func (r *waitingListRepository) ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]domain.WaitingListEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM waiting_list_entries
        WHERE status='OFFERED' AND offer_expires_at <= $1
        ORDER BY offer_expires_at ASC
        LIMIT $2`
	return r.list(ctx, query, now, limit)
}

func (r *waitingListRepository) MarkOffered(ctx context.Context, id string, expiresAt, now time.Time) (bool, error) {
	const query = `
        UPDATE waiting_list_entries SET status='OFFERED', offer_expires_at=$2, updated_at=$3
        WHERE id=$1 AND status='WAITING'`
	return r.transition(ctx, query, id, expiresAt, now)
}

func (r *waitingListRepository) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
        UPDATE waiting_list_entries SET status='EXPIRED', updated_at=$2
        WHERE id=$1 AND status='OFFERED'`
	return r.transition(ctx, query, id, now)
}

func (r *waitingListRepository) MarkPurchased(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
        UPDATE waiting_list_entries SET status='PURCHASED', updated_at=$2
        WHERE id=$1 AND status='OFFERED'`
	return r.transition(ctx, query, id, now)
}

func (r *waitingListRepository) transition(ctx context.Context, query string, args ...any) (bool, error) {
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *waitingListRepository) list(ctx context.Context, query string, args ...any) ([]domain.WaitingListEntry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WaitingListEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.WaitingListEntry, error) {
	var entry domain.WaitingListEntry
	if err := row.Scan(
		&entry.ID,
		&entry.EventID,
		&entry.UserID,
		&entry.Status,
		&entry.OfferExpiresAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
