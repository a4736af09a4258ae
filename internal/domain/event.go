package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a ticketed occurrence with a bounded number of tickets.
type Event struct {
	ID           string
	Name         string
	Description  string
	Location     string
	EventDate    time.Time
	Price        decimal.Decimal
	TotalTickets int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventUpdate carries the mutable event fields. Nil fields are left unchanged.
type EventUpdate struct {
	Name         *string
	Description  *string
	Location     *string
	EventDate    *time.Time
	Price        *decimal.Decimal
	TotalTickets *int
}

// Apply copies the set fields onto the event.
func (u EventUpdate) Apply(e *Event) {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.EventDate != nil {
		e.EventDate = *u.EventDate
	}
	if u.Price != nil {
		e.Price = *u.Price
	}
	if u.TotalTickets != nil {
		e.TotalTickets = *u.TotalTickets
	}
}
