// Package ledger derives remaining event capacity from sold tickets and
// outstanding offers.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is the capacity state of one event at one instant.
type Snapshot struct {
	TotalTickets     int
	PurchasedCount   int
	ActiveOfferCount int
	Remaining        int
	IsSoldOut        bool
}

// Compute derives the snapshot from raw counts. Remaining never goes below zero.
func Compute(totalTickets, purchased, activeOffers int) Snapshot {
	committed := purchased + activeOffers
	remaining := totalTickets - committed
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		TotalTickets:     totalTickets,
		PurchasedCount:   purchased,
		ActiveOfferCount: activeOffers,
		Remaining:        remaining,
		IsSoldOut:        committed >= totalTickets,
	}
}

// Overcommitted reports whether sold tickets plus live offers exceed capacity.
func (s Snapshot) Overcommitted() bool {
	return s.PurchasedCount+s.ActiveOfferCount > s.TotalTickets
}

// Counter reads the persisted counts the ledger depends on.
// Implementations must read through the caller's transaction when one is present.
type Counter interface {
	CountPurchased(ctx context.Context, eventID string) (int, error)
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)
}

// Availability computes the snapshot for eventID at now.
// Callers that act on the result must run it inside the same transaction as the action.
func Availability(ctx context.Context, counter Counter, eventID string, totalTickets int, now time.Time) (Snapshot, error) {
	purchased, err := counter.CountPurchased(ctx, eventID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count purchased tickets: %w", err)
	}
	offers, err := counter.CountActiveOffers(ctx, eventID, now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count active offers: %w", err)
	}
	return Compute(totalTickets, purchased, offers), nil
}
