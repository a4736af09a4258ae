package domain

import "time"

// EntryStatus enumerates waiting-list entry states.
type EntryStatus string

const (
	EntryStatusWaiting   EntryStatus = "WAITING"
	EntryStatusOffered   EntryStatus = "OFFERED"
	EntryStatusExpired   EntryStatus = "EXPIRED"
	EntryStatusPurchased EntryStatus = "PURCHASED"
)

// IsActive reports whether the status still blocks a new join for the same user and event.
func (s EntryStatus) IsActive() bool {
	return s != EntryStatusExpired
}

// WaitingListEntry is a user's place in an event's waiting list.
// OfferExpiresAt is only set while the entry is OFFERED.
type WaitingListEntry struct {
	ID             string
	EventID        string
	UserID         string
	Status         EntryStatus
	OfferExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OfferActive reports whether the entry holds an unexpired offer at now.
func (e *WaitingListEntry) OfferActive(now time.Time) bool {
	return e.Status == EntryStatusOffered && e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now)
}

// JoinStatus is the outcome reported to a caller joining the waiting list.
type JoinStatus string

const (
	JoinStatusOffered JoinStatus = "OFFERED"
	JoinStatusWaiting JoinStatus = "WAITING"
)

// JoinResult describes the outcome of a join.
type JoinResult struct {
	EntryID        string
	Status         JoinStatus
	Message        string
	OfferExpiresAt *time.Time
}

// QueuePosition describes a caller's active entry.
type QueuePosition struct {
	Entry    WaitingListEntry
	Position int
}

// Availability is the read-only capacity view of an event.
type Availability struct {
	EventID        string
	Available      bool
	AvailableSpots int
	TotalTickets   int
	PurchasedCount int
	ActiveOffers   int
}
