package dto

import "time"

// JoinResponse is returned when a user joins a waiting list.
type JoinResponse struct {
	EntryID        string     `json:"entry_id"`
	Status         string     `json:"status"`
	Message        string     `json:"message"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
}

// AvailabilityResponse describes event capacity.
type AvailabilityResponse struct {
	EventID        string `json:"event_id"`
	Available      bool   `json:"available"`
	AvailableSpots int    `json:"available_spots"`
	TotalTickets   int    `json:"total_tickets"`
	PurchasedCount int    `json:"purchased_count"`
	ActiveOffers   int    `json:"active_offers"`
}

// EntryResponse describes a waiting-list entry.
type EntryResponse struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	Status         string     `json:"status"`
	Position       int        `json:"position,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TicketResponse describes an issued ticket.
type TicketResponse struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"event_id"`
	WaitingListEntryID *string   `json:"waiting_list_entry_id,omitempty"`
	Status             string    `json:"status"`
	PurchasedAt        time.Time `json:"purchased_at"`
}
