package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

// PurchaseService converts an outstanding offer into an issued ticket.
// It is the hook the checkout flow calls once payment has succeeded.
type PurchaseService struct {
	tx      repository.TxManager
	events  repository.EventRepository
	tickets repository.TicketRepository
	entries repository.WaitingListRepository
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	publisher
}

// NewPurchaseService constructs the service.
func NewPurchaseService(deps Dependencies) *PurchaseService {
	deps = deps.withDefaults()
	return &PurchaseService{
		tx:        deps.Tx,
		events:    deps.EventRepo,
		tickets:   deps.TicketRepo,
		entries:   deps.EntryRepo,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: deps.Logger},
	}
}

// CompletePurchase issues a VALID ticket for the user's unexpired offer and
// marks the entry PURCHASED in the same transaction. Calling it again for an
// already purchased entry returns the existing ticket.
func (s *PurchaseService) CompletePurchase(ctx context.Context, entryID, userID string) (*domain.Ticket, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, domain.ErrEntryOwnership
	}

	now := s.clock.Now()
	var (
		ticket  *domain.Ticket
		created bool
	)
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.events.GetForUpdate(txCtx, entry.EventID); err != nil {
			return err
		}
		current, err := s.entries.GetByID(txCtx, entryID)
		if err != nil {
			return err
		}

		switch {
		case current.Status == domain.EntryStatusPurchased:
			existing, err := s.tickets.GetByEntry(txCtx, entryID)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrOfferNotActive
			}
			ticket = existing
			return nil
		case current.Status != domain.EntryStatusOffered:
			return domain.ErrOfferNotActive
		case !current.OfferActive(now):
			return domain.ErrOfferExpired
		}

		changed, err := s.entries.MarkPurchased(txCtx, entryID, now)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrOfferNotActive
		}

		ticket = &domain.Ticket{
			ID:                 uuid.NewString(),
			EventID:            current.EventID,
			UserID:             userID,
			WaitingListEntryID: &entryID,
			Status:             domain.TicketStatusValid,
			PurchasedAt:        now,
		}
		if err := s.tickets.Create(txCtx, ticket); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.metrics.RecordPurchase()
		s.publish(ctx, []events.Event{{
			Type:      events.EventEntryPurchased,
			EventID:   ticket.EventID,
			EntryID:   entryID,
			UserID:    userID,
			Timestamp: now,
			Payload:   events.EntryPurchasedPayload{TicketID: ticket.ID},
		}})
		s.logger.Info("offer purchased",
			zap.String("entry_id", entryID),
			zap.String("event_id", ticket.EventID),
			zap.String("ticket_id", ticket.ID))
	}
	return ticket, nil
}
