package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// EventRepository encapsulates event persistence.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// GetForUpdate loads the event and row-locks it until the surrounding
	// transaction ends. Every capacity decision for the event starts here.
	GetForUpdate(ctx context.Context, id string) (*domain.Event, error)
	// GetForShare waits for in-flight writers of the event and blocks new ones
	// until the transaction ends, giving readers a stable view of its capacity.
	GetForShare(ctx context.Context, id string) (*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
}

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository instantiates repository.
func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

const eventColumns = `id, name, description, location, event_date, price::text, total_tickets, created_at, updated_at`

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	const query = `
        INSERT INTO events (name, description, location, event_date, price, total_tickets)
        VALUES ($1,$2,$3,$4,$5::numeric,$6)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		event.Name,
		event.Description,
		event.Location,
		event.EventDate,
		event.Price.String(),
		event.TotalTickets,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *eventRepository) GetForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *eventRepository) GetForShare(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id=$1 FOR SHARE`
	return r.fetchSingle(ctx, query, id)
}

func (r *eventRepository) Update(ctx context.Context, event *domain.Event) error {
	if malformedID(event.ID) {
		return domain.ErrEventNotFound
	}
	const query = `
        UPDATE events SET name=$1, description=$2, location=$3, event_date=$4,
            price=$5::numeric, total_tickets=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		event.Name,
		event.Description,
		event.Location,
		event.EventDate,
		event.Price.String(),
		event.TotalTickets,
		event.ID,
	).Scan(&event.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return domain.ErrEventNotFound
	}
	return err
}

func (r *eventRepository) fetchSingle(ctx context.Context, query string, id string) (*domain.Event, error) {
	if malformedID(id) {
		return nil, domain.ErrEventNotFound
	}
	var (
		event domain.Event
		price string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.Location,
		&event.EventDate,
		&price,
		&event.TotalTickets,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	event.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse event price %q: %w", price, err)
	}
	return &event, nil
}
