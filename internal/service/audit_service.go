package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

// AuditService records waiting-list transitions published by the other services.
type AuditService struct {
	dispatcher events.Dispatcher
	history    repository.EntryHistoryRepository
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, history repository.EntryHistoryRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		history:    history,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventOfferCreated,
		events.EventEntryQueued,
		events.EventEntryPromoted,
		events.EventOfferExpired,
		events.EventEntryPurchased,
	} {
		a.dispatcher.Subscribe(t, a.recordTransition)
	}
	a.dispatcher.Subscribe(events.EventCapacityChanged, a.handleCapacityChanged)
}

// History returns the recorded transitions of an entry, oldest first.
func (a *AuditService) History(ctx context.Context, entryID string) ([]domain.EntryHistory, error) {
	return a.history.ListByEntry(ctx, entryID)
}

func (a *AuditService) recordTransition(ctx context.Context, event events.Event) error {
	from, to, ok := event.Type.Transition()
	if !ok {
		return nil
	}
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.EventID),
		zap.String("entry_id", event.EntryID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))

	record := &domain.EntryHistory{
		EntryID:   event.EntryID,
		EventID:   event.EventID,
		UserID:    event.UserID,
		OldStatus: from,
		NewStatus: to,
		Reason:    string(event.Type),
		Details:   payloadDetails(event.Payload),
	}
	if err := a.history.Create(ctx, record); err != nil {
		return fmt.Errorf("record %s for entry %s: %w", event.Type, event.EntryID, err)
	}
	return nil
}

func (a *AuditService) handleCapacityChanged(ctx context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), zap.String("event_id", event.EventID), zap.Any("payload", event.Payload))
	return nil
}

func payloadDetails(payload any) map[string]any {
	switch p := payload.(type) {
	case events.OfferPayload:
		return map[string]any{"offer_expires_at": p.OfferExpiresAt}
	case events.OfferExpiredPayload:
		details := map[string]any{"promoted": p.Promoted}
		if p.OfferExpiresAt != nil {
			details["offer_expires_at"] = *p.OfferExpiresAt
		}
		return details
	case events.EntryPurchasedPayload:
		return map[string]any{"ticket_id": p.TicketID}
	}
	return nil
}
