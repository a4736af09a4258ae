package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/ledger"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

// offerBook grants offers against the capacity ledger. Every method must be
// called inside a transaction that already holds the event row lock.
type offerBook struct {
	tickets   repository.TicketRepository
	entries   repository.WaitingListRepository
	scheduler TaskScheduler
	ttl       time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func newOfferBook(deps Dependencies) *offerBook {
	return &offerBook{
		tickets:   deps.TicketRepo,
		entries:   deps.EntryRepo,
		scheduler: deps.Scheduler,
		ttl:       deps.OfferTTL,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

func (o *offerBook) CountPurchased(ctx context.Context, eventID string) (int, error) {
	return o.tickets.CountByStatus(ctx, eventID, domain.ConsumingTicketStatuses)
}

func (o *offerBook) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	return o.entries.CountActiveOffers(ctx, eventID, now)
}

func (o *offerBook) snapshot(ctx context.Context, event *domain.Event, now time.Time) (ledger.Snapshot, error) {
	return ledger.Availability(ctx, o, event.ID, event.TotalTickets, now)
}

// reserve fails when granting n more offers would exceed the snapshot.
func (o *offerBook) reserve(event *domain.Event, snap ledger.Snapshot, n int) error {
	if n <= snap.Remaining {
		return nil
	}
	o.logger.Error("offer requested without remaining capacity",
		zap.String("event_id", event.ID),
		zap.Int("requested", n),
		zap.Int("remaining", snap.Remaining),
		zap.Int("total_tickets", snap.TotalTickets),
		zap.Int("purchased", snap.PurchasedCount),
		zap.Int("active_offers", snap.ActiveOfferCount))
	return domain.ErrCapacityInvariantViolation
}

// verify re-reads the ledger after offers were written and rejects an
// oversold state so the transaction rolls back.
func (o *offerBook) verify(ctx context.Context, event *domain.Event, now time.Time) error {
	snap, err := o.snapshot(ctx, event, now)
	if err != nil {
		return err
	}
	if snap.Overcommitted() {
		o.logger.Error("capacity invariant violated after granting offers",
			zap.String("event_id", event.ID),
			zap.Int("total_tickets", snap.TotalTickets),
			zap.Int("purchased", snap.PurchasedCount),
			zap.Int("active_offers", snap.ActiveOfferCount))
		return domain.ErrCapacityInvariantViolation
	}
	return nil
}

func (o *offerBook) expiresAt(now time.Time) time.Time {
	return now.Add(o.ttl)
}

func (o *offerBook) scheduleExpiry(ctx context.Context, entryID, eventID string, at time.Time) error {
	_, err := o.scheduler.ScheduleAt(ctx, at, domain.TaskExpireOffer, domain.ExpireOfferPayload{
		EntryID: entryID,
		EventID: eventID,
	})
	if err != nil {
		return fmt.Errorf("schedule offer expiry: %w", err)
	}
	return nil
}

// promote offers remaining capacity to WAITING entries in FIFO order and
// returns the events describing each promotion.
func (o *offerBook) promote(ctx context.Context, event *domain.Event, now time.Time) ([]events.Event, error) {
	snap, err := o.snapshot(ctx, event, now)
	if err != nil {
		return nil, err
	}
	if snap.Remaining == 0 {
		return nil, nil
	}

	waiting, err := o.entries.ListWaiting(ctx, event.ID, snap.Remaining)
	if err != nil {
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	if err := o.reserve(event, snap, len(waiting)); err != nil {
		return nil, err
	}

	expiresAt := o.expiresAt(now)
	promoted := make([]events.Event, 0, len(waiting))
	for _, entry := range waiting {
		ok, err := o.entries.MarkOffered(ctx, entry.ID, expiresAt, now)
		if err != nil {
			return nil, fmt.Errorf("promote entry %s: %w", entry.ID, err)
		}
		if !ok {
			continue
		}
		if err := o.scheduleExpiry(ctx, entry.ID, event.ID, expiresAt); err != nil {
			return nil, err
		}
		promoted = append(promoted, events.Event{
			Type:      events.EventEntryPromoted,
			EventID:   event.ID,
			EntryID:   entry.ID,
			UserID:    entry.UserID,
			Timestamp: now,
			Payload:   events.OfferPayload{OfferExpiresAt: expiresAt},
		})
	}

	if len(promoted) > 0 {
		if err := o.verify(ctx, event, now); err != nil {
			return nil, err
		}
	}
	return promoted, nil
}
