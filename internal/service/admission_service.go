package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/ratelimit"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

const (
	offeredMessage = "Ticket offered - you have %d minutes to purchase"
	waitingMessage = "Added to waiting list - you'll be notified when a ticket becomes available"
)

// AdmissionService decides whether a joining user gets an offer or a place in line.
type AdmissionService struct {
	tx      repository.TxManager
	events  repository.EventRepository
	entries repository.WaitingListRepository
	offers  *offerBook
	filter  ratelimit.Filter
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	publisher
}

// NewAdmissionService constructs the service.
func NewAdmissionService(deps Dependencies) *AdmissionService {
	deps = deps.withDefaults()
	return &AdmissionService{
		tx:        deps.Tx,
		events:    deps.EventRepo,
		entries:   deps.EntryRepo,
		offers:    newOfferBook(deps),
		filter:    deps.Filter,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		ttl:       deps.OfferTTL,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: deps.Logger},
	}
}

// JoinWaitingList adds the user to the event's waiting list. When capacity
// remains the entry is created OFFERED with an expiry task; otherwise it waits.
func (s *AdmissionService) JoinWaitingList(ctx context.Context, eventID, userID string) (*domain.JoinResult, error) {
	if err := s.filter.Allow(ctx, eventID, userID); err != nil {
		s.metrics.RecordJoin("rate_limited")
		return nil, err
	}

	// Cheap rejections before taking the event lock.
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	if existing, err := s.entries.FindActive(ctx, eventID, userID); err != nil {
		return nil, err
	} else if existing != nil {
		s.metrics.RecordJoin("already_queued")
		return nil, domain.ErrAlreadyQueued
	}

	now := s.clock.Now()
	entry := &domain.WaitingListEntry{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var pending []events.Event

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if existing, err := s.entries.FindActive(txCtx, eventID, userID); err != nil {
			return err
		} else if existing != nil {
			return domain.ErrAlreadyQueued
		}

		snap, err := s.offers.snapshot(txCtx, event, now)
		if err != nil {
			return err
		}

		if snap.Remaining == 0 {
			entry.Status = domain.EntryStatusWaiting
			if err := s.entries.Create(txCtx, entry); err != nil {
				return err
			}
			pending = append(pending, events.Event{
				Type:    events.EventEntryQueued,
				EventID: eventID,
				EntryID: entry.ID,
				UserID:  userID,
			})
			return nil
		}

		if err := s.offers.reserve(event, snap, 1); err != nil {
			return err
		}
		expiresAt := s.offers.expiresAt(now)
		entry.Status = domain.EntryStatusOffered
		entry.OfferExpiresAt = &expiresAt
		if err := s.entries.Create(txCtx, entry); err != nil {
			return err
		}
		if err := s.offers.scheduleExpiry(txCtx, entry.ID, eventID, expiresAt); err != nil {
			return err
		}
		if err := s.offers.verify(txCtx, event, now); err != nil {
			return err
		}
		pending = append(pending, events.Event{
			Type:    events.EventOfferCreated,
			EventID: eventID,
			EntryID: entry.ID,
			UserID:  userID,
			Payload: events.OfferPayload{OfferExpiresAt: expiresAt},
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyQueued) {
			s.metrics.RecordJoin("already_queued")
		}
		return nil, err
	}

	s.publish(ctx, pending)

	result := &domain.JoinResult{EntryID: entry.ID, OfferExpiresAt: entry.OfferExpiresAt}
	if entry.Status == domain.EntryStatusOffered {
		result.Status = domain.JoinStatusOffered
		result.Message = fmt.Sprintf(offeredMessage, int(s.ttl/time.Minute))
	} else {
		result.Status = domain.JoinStatusWaiting
		result.Message = waitingMessage
	}
	s.metrics.RecordJoin(string(result.Status))
	s.logger.Info("joined waiting list",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("entry_id", entry.ID),
		zap.String("status", string(result.Status)))
	return result, nil
}

// CheckAvailability reports the event's capacity without changing it.
func (s *AdmissionService) CheckAvailability(ctx context.Context, eventID string) (*domain.Availability, error) {
	now := s.clock.Now()
	var result *domain.Availability

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetForShare(txCtx, eventID)
		if err != nil {
			return err
		}
		snap, err := s.offers.snapshot(txCtx, event, now)
		if err != nil {
			return err
		}
		result = &domain.Availability{
			EventID:        eventID,
			Available:      !snap.IsSoldOut,
			AvailableSpots: snap.Remaining,
			TotalTickets:   snap.TotalTickets,
			PurchasedCount: snap.PurchasedCount,
			ActiveOffers:   snap.ActiveOfferCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetQueuePosition returns the user's active entry. Position is the 1-based
// FIFO rank for WAITING entries and zero otherwise.
func (s *AdmissionService) GetQueuePosition(ctx context.Context, eventID, userID string) (*domain.QueuePosition, error) {
	entry, err := s.entries.FindActive(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrEntryNotFound
	}

	pos := &domain.QueuePosition{Entry: *entry}
	if entry.Status == domain.EntryStatusWaiting {
		ahead, err := s.entries.CountWaitingAhead(ctx, entry)
		if err != nil {
			return nil, err
		}
		pos.Position = ahead + 1
	}
	return pos, nil
}
