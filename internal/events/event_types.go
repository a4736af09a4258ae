package events

import (
	"time"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOfferCreated    EventType = "waitlist_offer_created"
	EventEntryQueued     EventType = "waitlist_entry_queued"
	EventOfferExpired    EventType = "waitlist_offer_expired"
	EventEntryPromoted   EventType = "waitlist_entry_promoted"
	EventEntryPurchased  EventType = "waitlist_entry_purchased"
	EventCapacityChanged EventType = "event_capacity_changed"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	EventID   string      `json:"event_id"`
	EntryID   string      `json:"entry_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OfferPayload accompanies offer creation and promotion.
type OfferPayload struct {
	OfferExpiresAt time.Time `json:"offer_expires_at"`
}

// OfferExpiredPayload accompanies an expired offer.
type OfferExpiredPayload struct {
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	Promoted       int        `json:"promoted"`
}

// EntryPurchasedPayload accompanies a completed purchase.
type EntryPurchasedPayload struct {
	TicketID string `json:"ticket_id"`
}

// CapacityChangedPayload accompanies an event capacity update.
type CapacityChangedPayload struct {
	OldTotal int `json:"old_total"`
	NewTotal int `json:"new_total"`
	Promoted int `json:"promoted"`
}

// Transition returns the entry status change an event type records, if any.
func (t EventType) Transition() (from *domain.EntryStatus, to domain.EntryStatus, ok bool) {
	waiting, offered := domain.EntryStatusWaiting, domain.EntryStatusOffered
	switch t {
	case EventOfferCreated:
		return nil, domain.EntryStatusOffered, true
	case EventEntryQueued:
		return nil, domain.EntryStatusWaiting, true
	case EventEntryPromoted:
		return &waiting, domain.EntryStatusOffered, true
	case EventOfferExpired:
		return &offered, domain.EntryStatusExpired, true
	case EventEntryPurchased:
		return &offered, domain.EntryStatusPurchased, true
	}
	return nil, "", false
}
