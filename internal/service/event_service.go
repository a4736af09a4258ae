package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
	apperrors "github.com/spec-kit/ticket-waitlist/pkg/util/errorutil"
)

// EventService manages event records on behalf of the event catalogue.
type EventService struct {
	tx      repository.TxManager
	events  repository.EventRepository
	tickets repository.TicketRepository
	offers  *offerBook
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	publisher
}

// NewEventService constructs the service.
func NewEventService(deps Dependencies) *EventService {
	deps = deps.withDefaults()
	return &EventService{
		tx:        deps.Tx,
		events:    deps.EventRepo,
		tickets:   deps.TicketRepo,
		offers:    newOfferBook(deps),
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: deps.Logger},
	}
}

// CreateEvent stores a new event.
func (s *EventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	if strings.TrimSpace(event.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	if event.TotalTickets <= 0 {
		return domain.ErrInvalidTotalTickets
	}
	if event.EventDate.IsZero() {
		return apperrors.NewValidationError("event_date required", nil)
	}
	return s.events.Create(ctx, event)
}

// GetEvent loads an event.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	return s.events.GetByID(ctx, eventID)
}

// UpdateEvent applies the update. Total tickets may not drop below the number
// of VALID or USED tickets; when capacity grows waiting entries are promoted.
func (s *EventService) UpdateEvent(ctx context.Context, eventID string, update domain.EventUpdate) (*domain.Event, error) {
	if update.TotalTickets != nil && *update.TotalTickets <= 0 {
		return nil, domain.ErrInvalidTotalTickets
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, apperrors.NewValidationError("name cannot be empty", nil)
	}

	now := s.clock.Now()
	var (
		event    *domain.Event
		oldTotal int
		pending  []events.Event
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		event, err = s.events.GetForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		oldTotal = event.TotalTickets
		update.Apply(event)

		if event.TotalTickets < oldTotal {
			sold, err := s.tickets.CountByStatus(txCtx, eventID, domain.ConsumingTicketStatuses)
			if err != nil {
				return err
			}
			if event.TotalTickets < sold {
				s.logger.Info("capacity reduction rejected",
					zap.String("event_id", eventID),
					zap.Int("requested", event.TotalTickets),
					zap.Int("sold", sold))
				return domain.ErrCapacityReductionRejected
			}
		}

		if err := s.events.Update(txCtx, event); err != nil {
			return err
		}

		if event.TotalTickets > oldTotal {
			promoted, err := s.offers.promote(txCtx, event, now)
			if err != nil {
				return err
			}
			pending = promoted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event.TotalTickets != oldTotal {
		s.metrics.RecordPromotions(len(pending))
		pending = append([]events.Event{{
			Type:      events.EventCapacityChanged,
			EventID:   eventID,
			Timestamp: now,
			Payload: events.CapacityChangedPayload{
				OldTotal: oldTotal,
				NewTotal: event.TotalTickets,
				Promoted: len(pending),
			},
		}}, pending...)
		s.publish(ctx, pending)
	}
	return event, nil
}
