package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
	"github.com/spec-kit/ticket-waitlist/internal/scheduler"
)

// ExpiryOutcome describes what an expiry trigger did.
type ExpiryOutcome string

const (
	// ExpiryExpired means the offer was reclaimed.
	ExpiryExpired ExpiryOutcome = "expired"
	// ExpiryStale means the entry had already left OFFERED.
	ExpiryStale ExpiryOutcome = "stale"
	// ExpiryNotDue means the offer is still inside its purchase window.
	ExpiryNotDue ExpiryOutcome = "not_due"
)

// ExpiryResult is returned by ExpireOffer.
type ExpiryResult struct {
	Outcome  ExpiryOutcome
	DueAt    *time.Time
	Promoted []string
}

// ExpiryService reclaims lapsed offers and hands the capacity to waiting users.
type ExpiryService struct {
	tx      repository.TxManager
	events  repository.EventRepository
	entries repository.WaitingListRepository
	offers  *offerBook
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	publisher
}

// NewExpiryService constructs the service.
func NewExpiryService(deps Dependencies) *ExpiryService {
	deps = deps.withDefaults()
	return &ExpiryService{
		tx:        deps.Tx,
		events:    deps.EventRepo,
		entries:   deps.EntryRepo,
		offers:    newOfferBook(deps),
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: deps.Logger},
	}
}

// ExpireOffer moves an unconsumed OFFERED entry to EXPIRED and promotes
// waiting entries into the freed capacity. Repeated calls are no-ops.
func (s *ExpiryService) ExpireOffer(ctx context.Context, entryID, eventID string) (*ExpiryResult, error) {
	now := s.clock.Now()
	log := s.logger.With(zap.String("entry_id", entryID), zap.String("event_id", eventID))
	result := &ExpiryResult{}
	var pending []events.Event

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		entry, err := s.entries.GetByID(txCtx, entryID)
		if err != nil {
			return err
		}
		if entry.EventID != eventID {
			return fmt.Errorf("entry %s belongs to event %s: %w", entryID, entry.EventID, domain.ErrEntryNotFound)
		}

		if entry.Status != domain.EntryStatusOffered {
			result.Outcome = ExpiryStale
			return nil
		}
		if entry.OfferExpiresAt != nil && entry.OfferExpiresAt.After(now) {
			result.Outcome = ExpiryNotDue
			due := *entry.OfferExpiresAt
			result.DueAt = &due
			return nil
		}

		changed, err := s.entries.MarkExpired(txCtx, entryID, now)
		if err != nil {
			return err
		}
		if !changed {
			result.Outcome = ExpiryStale
			return nil
		}
		result.Outcome = ExpiryExpired
		pending = append(pending, events.Event{
			Type:      events.EventOfferExpired,
			EventID:   eventID,
			EntryID:   entryID,
			UserID:    entry.UserID,
			Timestamp: now,
		})

		promoted, err := s.offers.promote(txCtx, event, now)
		if err != nil {
			return err
		}
		for _, p := range promoted {
			result.Promoted = append(result.Promoted, p.EntryID)
		}
		pending[0].Payload = events.OfferExpiredPayload{
			OfferExpiresAt: entry.OfferExpiresAt,
			Promoted:       len(promoted),
		}
		pending = append(pending, promoted...)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) || errors.Is(err, domain.ErrEntryNotFound) {
			s.metrics.RecordExpiry("missing")
		}
		return nil, err
	}

	s.metrics.RecordExpiry(string(result.Outcome))
	switch result.Outcome {
	case ExpiryExpired:
		s.metrics.RecordPromotions(len(result.Promoted))
		s.publish(ctx, pending)
		log.Info("offer expired", zap.Int("promoted", len(result.Promoted)))
	case ExpiryStale:
		log.Debug("offer no longer outstanding; nothing to expire")
	case ExpiryNotDue:
		log.Debug("offer not yet due", zap.Time("offer_expires_at", *result.DueAt))
	}
	return result, nil
}

// HandleExpireTask is the scheduler handler for domain.TaskExpireOffer.
func (s *ExpiryService) HandleExpireTask(ctx context.Context, task domain.ScheduledTask) error {
	var payload domain.ExpireOfferPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return scheduler.Permanent(fmt.Errorf("decode expire payload: %w", err))
	}
	if payload.EntryID == "" || payload.EventID == "" {
		return scheduler.Permanent(errors.New("expire payload missing entry or event id"))
	}

	result, err := s.ExpireOffer(ctx, payload.EntryID, payload.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) || errors.Is(err, domain.ErrEntryNotFound) {
			s.logger.Warn("dropping expiry for missing entry or event",
				zap.String("entry_id", payload.EntryID),
				zap.String("event_id", payload.EventID),
				zap.Error(err))
			return scheduler.Permanent(err)
		}
		return err
	}
	if result.Outcome == ExpiryNotDue {
		return scheduler.Defer(*result.DueAt)
	}
	return nil
}

// SweepLapsedOffers expires up to limit OFFERED entries whose window has
// closed. It recovers offers whose expiry task was lost.
func (s *ExpiryService) SweepLapsedOffers(ctx context.Context, limit int) (int, error) {
	lapsed, err := s.entries.ListLapsedOffers(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list lapsed offers: %w", err)
	}
	expired := 0
	for _, entry := range lapsed {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		result, err := s.ExpireOffer(ctx, entry.ID, entry.EventID)
		if err != nil {
			s.logger.Error("sweep expire offer", zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		if result.Outcome == ExpiryExpired {
			expired++
		}
	}
	return expired, nil
}
