package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/ratelimit"
	"github.com/spec-kit/ticket-waitlist/internal/scheduler"
	"github.com/spec-kit/ticket-waitlist/internal/testutil/memstore"
)

var t0 = time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)

type harness struct {
	store     *memstore.Store
	clock     *clock.Manual
	admission *AdmissionService
	expiry    *ExpiryService
	purchase  *PurchaseService
	events    *EventService
	audit     *AuditService
	runner    *scheduler.Runner
}

func newHarness(t *testing.T, filter ratelimit.Filter) *harness {
	t.Helper()
	return newHarnessWith(t, filter, nil)
}

// newHarnessWith lets a test wrap the repositories before services are built.
func newHarnessWith(t *testing.T, filter ratelimit.Filter, customize func(*Dependencies)) *harness {
	t.Helper()
	store := memstore.New()
	clk := clock.NewManual(t0)
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()

	deps := Dependencies{
		Tx:         store,
		EventRepo:  store.Events(),
		TicketRepo: store.Tickets(),
		EntryRepo:  store.Entries(),
		Scheduler:  scheduler.New(store.Tasks(), clk),
		Dispatcher: dispatcher,
		Filter:     filter,
		Clock:      clk,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
	}
	if customize != nil {
		customize(&deps)
	}

	h := &harness{
		store:     store,
		clock:     clk,
		admission: NewAdmissionService(deps),
		expiry:    NewExpiryService(deps),
		purchase:  NewPurchaseService(deps),
		events:    NewEventService(deps),
		audit:     NewAuditService(dispatcher, store.History(), logger),
	}
	h.audit.RegisterHandlers()
	h.runner = scheduler.NewRunner(store.Tasks(), clk, logger)
	h.runner.Register(domain.TaskExpireOffer, h.expiry.HandleExpireTask)
	return h
}

// join joins and advances the clock a second so entries have distinct creation times.
func (h *harness) join(t *testing.T, eventID, userID string) *domain.JoinResult {
	t.Helper()
	res, err := h.admission.JoinWaitingList(context.Background(), eventID, userID)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	return res
}

func (h *harness) availability(t *testing.T, eventID string) *domain.Availability {
	t.Helper()
	a, err := h.admission.CheckAvailability(context.Background(), eventID)
	require.NoError(t, err)
	return a
}

func countStatus(entries []domain.WaitingListEntry, status domain.EntryStatus) int {
	n := 0
	for _, e := range entries {
		if e.Status == status {
			n++
		}
	}
	return n
}
