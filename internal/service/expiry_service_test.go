package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/scheduler"
)

func TestExpireOfferPromotesInFIFOOrder(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")
	a := h.join(t, eventID, "a")
	b := h.join(t, eventID, "b")
	c := h.join(t, eventID, "c")

	h.clock.Advance(30 * time.Minute)
	res, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryExpired, res.Outcome)
	assert.Equal(t, []string{a.EntryID}, res.Promoted)

	assert.Equal(t, domain.EntryStatusExpired, h.store.Entry(t, holder.EntryID).Status)
	promoted := h.store.Entry(t, a.EntryID)
	assert.Equal(t, domain.EntryStatusOffered, promoted.Status)
	require.NotNil(t, promoted.OfferExpiresAt)
	assert.Equal(t, h.clock.Now().Add(30*time.Minute), *promoted.OfferExpiresAt)
	assert.Equal(t, domain.EntryStatusWaiting, h.store.Entry(t, b.EntryID).Status)
	assert.Equal(t, domain.EntryStatusWaiting, h.store.Entry(t, c.EntryID).Status)

	_, ok := h.store.ExpireTaskFor(a.EntryID)
	assert.True(t, ok, "promoted offer gets its own expiry task")
}

func TestExpireOfferTieBreaksOnID(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")

	at := h.clock.Now()
	second := h.store.SeedEntry(t, domain.WaitingListEntry{
		ID: "00000000-0000-0000-0000-000000000002", EventID: eventID, UserID: "second",
		Status: domain.EntryStatusWaiting, CreatedAt: at,
	})
	first := h.store.SeedEntry(t, domain.WaitingListEntry{
		ID: "00000000-0000-0000-0000-000000000001", EventID: eventID, UserID: "first",
		Status: domain.EntryStatusWaiting, CreatedAt: at,
	})

	h.clock.Advance(31 * time.Minute)
	res, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, res.Promoted)
	assert.Equal(t, domain.EntryStatusWaiting, h.store.Entry(t, second.ID).Status)
}

func TestExpireOfferIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")
	h.join(t, eventID, "a")
	h.join(t, eventID, "b")

	h.clock.Advance(30 * time.Minute)
	first, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)
	second, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)

	assert.Equal(t, ExpiryExpired, first.Outcome)
	assert.Equal(t, ExpiryStale, second.Outcome)
	assert.Empty(t, second.Promoted)

	entries := h.store.EntriesFor(eventID)
	assert.Equal(t, 1, countStatus(entries, domain.EntryStatusOffered))
	assert.Equal(t, 1, countStatus(entries, domain.EntryStatusWaiting))
	assert.Equal(t, 1, countStatus(entries, domain.EntryStatusExpired))
}

func TestExpireOfferBeforeDeadlineIsNotDue(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "holder")

	res, err := h.expiry.ExpireOffer(context.Background(), offer.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryNotDue, res.Outcome)
	require.NotNil(t, res.DueAt)
	assert.Equal(t, *offer.OfferExpiresAt, *res.DueAt)
	assert.Equal(t, domain.EntryStatusOffered, h.store.Entry(t, offer.EntryID).Status)
}

func TestExpireOfferPromotesNothingWhenQueueEmpty(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "holder")

	h.clock.Advance(time.Hour)
	res, err := h.expiry.ExpireOffer(context.Background(), offer.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryExpired, res.Outcome)
	assert.Empty(t, res.Promoted)
	assert.Equal(t, 1, h.availability(t, eventID).AvailableSpots)
}

func TestExpireOfferMissingRecords(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)

	_, err := h.expiry.ExpireOffer(context.Background(), "missing", eventID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	_, err = h.expiry.ExpireOffer(context.Background(), "missing", "missing-event")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestExpireOfferRollsBackPromotionFailure(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")
	waiter := h.join(t, eventID, "waiter")

	h.clock.Advance(30 * time.Minute)
	h.store.FailOn("entries.MarkOffered", errors.New("deadlock detected"))
	_, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.Error(t, err)

	assert.Equal(t, domain.EntryStatusOffered, h.store.Entry(t, holder.EntryID).Status, "expiry rolled back with promotion")
	assert.Equal(t, domain.EntryStatusWaiting, h.store.Entry(t, waiter.EntryID).Status)

	res, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{waiter.EntryID}, res.Promoted)
}

func TestHandleExpireTask(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "holder")

	task := func(p any) domain.ScheduledTask {
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		return domain.ScheduledTask{ID: "task", Ref: domain.TaskExpireOffer, Payload: raw}
	}

	t.Run("defers until the offer lapses", func(t *testing.T) {
		err := h.expiry.HandleExpireTask(context.Background(), task(domain.ExpireOfferPayload{EntryID: offer.EntryID, EventID: eventID}))
		var deferred *scheduler.DeferError
		require.ErrorAs(t, err, &deferred)
		assert.Equal(t, *offer.OfferExpiresAt, deferred.Until)
	})

	t.Run("drops missing entries", func(t *testing.T) {
		err := h.expiry.HandleExpireTask(context.Background(), task(domain.ExpireOfferPayload{EntryID: "gone", EventID: eventID}))
		require.Error(t, err)
		assert.True(t, scheduler.IsPermanent(err))
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		err := h.expiry.HandleExpireTask(context.Background(), domain.ScheduledTask{Payload: []byte("{")})
		assert.True(t, scheduler.IsPermanent(err))
		err = h.expiry.HandleExpireTask(context.Background(), task(map[string]string{}))
		assert.True(t, scheduler.IsPermanent(err))
	})

	t.Run("expires once due", func(t *testing.T) {
		h.clock.Advance(30 * time.Minute)
		err := h.expiry.HandleExpireTask(context.Background(), task(domain.ExpireOfferPayload{EntryID: offer.EntryID, EventID: eventID}))
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusExpired, h.store.Entry(t, offer.EntryID).Status)
	})
}

func TestRunnerDrivesExpiryEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")
	waiter := h.join(t, eventID, "waiter")

	n, err := h.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing due yet")

	h.clock.Advance(30 * time.Minute)
	n, err = h.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.EntryStatusExpired, h.store.Entry(t, holder.EntryID).Status)
	assert.Equal(t, domain.EntryStatusOffered, h.store.Entry(t, waiter.EntryID).Status)

	tasks := h.store.PendingTasks()
	require.Len(t, tasks, 1, "holder task finished, waiter task pending")
	_, ok := h.store.ExpireTaskFor(waiter.EntryID)
	assert.True(t, ok)

	// Redelivery of an already processed trigger changes nothing.
	raw, err := json.Marshal(domain.ExpireOfferPayload{EntryID: holder.EntryID, EventID: eventID})
	require.NoError(t, err)
	require.NoError(t, h.expiry.HandleExpireTask(context.Background(), domain.ScheduledTask{Payload: raw}))
	assert.Equal(t, domain.EntryStatusOffered, h.store.Entry(t, waiter.EntryID).Status)
}

func TestSweepLapsedOffersRecoversLostTasks(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 2)
	first := h.join(t, eventID, "first")
	second := h.join(t, eventID, "second")
	waiter := h.join(t, eventID, "waiter")

	for _, task := range h.store.PendingTasks() {
		require.NoError(t, h.store.Tasks().Delete(context.Background(), task.ID))
	}

	expired, err := h.expiry.SweepLapsedOffers(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, expired, "offers still open")

	h.clock.Advance(31 * time.Minute)
	expired, err = h.expiry.SweepLapsedOffers(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	assert.Equal(t, domain.EntryStatusExpired, h.store.Entry(t, first.EntryID).Status)
	assert.Equal(t, domain.EntryStatusExpired, h.store.Entry(t, second.EntryID).Status)
	assert.Equal(t, domain.EntryStatusOffered, h.store.Entry(t, waiter.EntryID).Status)
}

func TestAuditTrailRecordsTransitions(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	holder := h.join(t, eventID, "holder")
	waiter := h.join(t, eventID, "waiter")

	h.clock.Advance(30 * time.Minute)
	_, err := h.expiry.ExpireOffer(context.Background(), holder.EntryID, eventID)
	require.NoError(t, err)

	holderTrail := h.store.HistoryFor(holder.EntryID)
	require.Len(t, holderTrail, 2)
	assert.Equal(t, domain.EntryStatusOffered, holderTrail[0].NewStatus)
	assert.Nil(t, holderTrail[0].OldStatus)
	assert.Equal(t, domain.EntryStatusExpired, holderTrail[1].NewStatus)
	assert.Equal(t, 1, holderTrail[1].Details["promoted"])

	waiterTrail, err := h.audit.History(context.Background(), waiter.EntryID)
	require.NoError(t, err)
	require.Len(t, waiterTrail, 2)
	assert.Equal(t, domain.EntryStatusWaiting, waiterTrail[0].NewStatus)
	require.NotNil(t, waiterTrail[1].OldStatus)
	assert.Equal(t, domain.EntryStatusWaiting, *waiterTrail[1].OldStatus)
	assert.Equal(t, domain.EntryStatusOffered, waiterTrail[1].NewStatus)
}
