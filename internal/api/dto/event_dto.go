package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateEventRequest payload.
type CreateEventRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Location     string          `json:"location"`
	EventDate    time.Time       `json:"event_date"`
	Price        decimal.Decimal `json:"price"`
	TotalTickets int             `json:"total_tickets"`
}

// UpdateEventRequest payload. Omitted fields are unchanged.
type UpdateEventRequest struct {
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	Location     *string          `json:"location"`
	EventDate    *time.Time       `json:"event_date"`
	Price        *decimal.Decimal `json:"price"`
	TotalTickets *int             `json:"total_tickets"`
}

// EventResponse describes an event.
type EventResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Location     string          `json:"location"`
	EventDate    time.Time       `json:"event_date"`
	Price        decimal.Decimal `json:"price"`
	TotalTickets int             `json:"total_tickets"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
