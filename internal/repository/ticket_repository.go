package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// TicketRepository encapsulates issued ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByEntry(ctx context.Context, entryID string) (*domain.Ticket, error)
	CountByStatus(ctx context.Context, eventID string, statuses []domain.TicketStatus) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, event_id, user_id, waiting_list_entry_id, status, purchased_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.UserID,
		ticket.WaitingListEntryID,
		ticket.Status,
		ticket.PurchasedAt,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByEntry(ctx context.Context, entryID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, event_id, user_id, waiting_list_entry_id, status, purchased_at, created_at, updated_at
        FROM tickets WHERE waiting_list_entry_id=$1`
	var ticket domain.Ticket
	err := conn(ctx, r.pool).QueryRow(ctx, query, entryID).Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.UserID,
		&ticket.WaitingListEntryID,
		&ticket.Status,
		&ticket.PurchasedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context, eventID string, statuses []domain.TicketStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE event_id=$1 AND status = ANY($2)`
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, eventID, values).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
