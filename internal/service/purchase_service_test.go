package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

func TestCompletePurchase(t *testing.T) {
	t.Run("issues ticket for active offer", func(t *testing.T) {
		h := newHarness(t, nil)
		eventID := h.store.SeedEvent(t, 1)
		offer := h.join(t, eventID, "alice")

		ticket, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusValid, ticket.Status)
		assert.Equal(t, eventID, ticket.EventID)
		require.NotNil(t, ticket.WaitingListEntryID)
		assert.Equal(t, offer.EntryID, *ticket.WaitingListEntryID)
		assert.Equal(t, domain.EntryStatusPurchased, h.store.Entry(t, offer.EntryID).Status)

		a := h.availability(t, eventID)
		assert.Equal(t, 1, a.PurchasedCount)
		assert.Equal(t, 0, a.ActiveOffers)
		assert.Equal(t, 0, a.AvailableSpots)

		again, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, again.ID)
		assert.Len(t, h.store.TicketsFor(eventID), 1)
	})

	t.Run("rejects lapsed offer", func(t *testing.T) {
		h := newHarness(t, nil)
		eventID := h.store.SeedEvent(t, 1)
		offer := h.join(t, eventID, "alice")

		h.clock.Advance(30 * time.Minute)
		_, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
		assert.ErrorIs(t, err, domain.ErrOfferExpired)
		assert.Empty(t, h.store.TicketsFor(eventID))
	})

	t.Run("rejects other users", func(t *testing.T) {
		h := newHarness(t, nil)
		eventID := h.store.SeedEvent(t, 1)
		offer := h.join(t, eventID, "alice")

		_, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "mallory")
		assert.ErrorIs(t, err, domain.ErrEntryOwnership)
	})

	t.Run("rejects waiting entries", func(t *testing.T) {
		h := newHarness(t, nil)
		eventID := h.store.SeedEvent(t, 1)
		h.join(t, eventID, "alice")
		waiting := h.join(t, eventID, "bob")

		_, err := h.purchase.CompletePurchase(context.Background(), waiting.EntryID, "bob")
		assert.ErrorIs(t, err, domain.ErrOfferNotActive)
	})

	t.Run("unknown entry", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.purchase.CompletePurchase(context.Background(), "missing", "alice")
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	})
}

func TestPurchaseWinsOverLaterExpiry(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "alice")
	waiter := h.join(t, eventID, "bob")

	_, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	res, err := h.expiry.ExpireOffer(context.Background(), offer.EntryID, eventID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryStale, res.Outcome)
	assert.Equal(t, domain.EntryStatusPurchased, h.store.Entry(t, offer.EntryID).Status)
	assert.Equal(t, domain.EntryStatusWaiting, h.store.Entry(t, waiter.EntryID).Status, "no capacity was freed")
}

func TestExpiryWinsOverLaterPurchase(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "alice")

	h.clock.Advance(30 * time.Minute)
	_, err := h.expiry.ExpireOffer(context.Background(), offer.EntryID, eventID)
	require.NoError(t, err)

	_, err = h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
	assert.ErrorIs(t, err, domain.ErrOfferNotActive)
	assert.Empty(t, h.store.TicketsFor(eventID))
}

func TestConcurrentPurchasesIssueOneTicket(t *testing.T) {
	h := newHarness(t, nil)
	eventID := h.store.SeedEvent(t, 1)
	offer := h.join(t, eventID, "alice")

	var wg sync.WaitGroup
	ids := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := h.purchase.CompletePurchase(context.Background(), offer.EntryID, "alice")
			if assert.NoError(t, err) {
				ids <- ticket.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.Len(t, h.store.TicketsFor(eventID), 1)
}
