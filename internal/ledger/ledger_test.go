package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	purchased int
	offers    int
	err       error
	seenNow   time.Time
}

func (f *fakeCounter) CountPurchased(ctx context.Context, eventID string) (int, error) {
	return f.purchased, f.err
}

func (f *fakeCounter) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	f.seenNow = now
	return f.offers, nil
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		purchased int
		offers    int
		remaining int
		soldOut   bool
	}{
		{name: "empty event", total: 5, remaining: 5},
		{name: "partially sold", total: 5, purchased: 2, offers: 1, remaining: 2},
		{name: "exactly full", total: 2, purchased: 1, offers: 1, remaining: 0, soldOut: true},
		{name: "overcommitted clamps to zero", total: 2, purchased: 2, offers: 1, remaining: 0, soldOut: true},
		{name: "zero capacity", total: 0, remaining: 0, soldOut: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := Compute(tc.total, tc.purchased, tc.offers)
			assert.Equal(t, tc.remaining, snap.Remaining)
			assert.Equal(t, tc.soldOut, snap.IsSoldOut)
			assert.Equal(t, tc.purchased, snap.PurchasedCount)
			assert.Equal(t, tc.offers, snap.ActiveOfferCount)
		})
	}
}

func TestOvercommitted(t *testing.T) {
	assert.False(t, Compute(2, 1, 1).Overcommitted())
	assert.True(t, Compute(2, 2, 1).Overcommitted())
}

func TestAvailability(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("uses counter results", func(t *testing.T) {
		counter := &fakeCounter{purchased: 1, offers: 1}
		snap, err := Availability(context.Background(), counter, "evt", 2, now)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.Remaining)
		assert.True(t, snap.IsSoldOut)
		assert.Equal(t, now, counter.seenNow)
	})

	t.Run("propagates count errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Availability(context.Background(), &fakeCounter{err: boom}, "evt", 2, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}
