package service

import (
	"context"
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

const defaultOfferTTL = 30 * time.Minute

// TaskScheduler records durable tasks. Tasks scheduled with a transactional
// context commit together with that transaction.
type TaskScheduler interface {
	ScheduleAt(ctx context.Context, runAt time.Time, ref domain.TaskRef, payload any) (string, error)
}

// Dependencies bundles what the waiting-list services need.
type Dependencies struct {
	Tx         repository.TxManager
	EventRepo  repository.EventRepository
	TicketRepo repository.TicketRepository
	EntryRepo  repository.WaitingListRepository
	Scheduler  TaskScheduler
	Dispatcher events.Dispatcher
	Filter     ratelimit.Filter
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	OfferTTL   time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Filter == nil {
		d.Filter = ratelimit.Noop{}
	}
	if d.OfferTTL <= 0 {
		d.OfferTTL = defaultOfferTTL
	}
	return d
}

type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// publish delivers events collected during a committed transaction.
func (p publisher) publish(ctx context.Context, pending []events.Event) {
	if p.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("entry_id", event.EntryID),
				zap.Error(err))
		}
	}
}
