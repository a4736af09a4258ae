package domain

import "time"

// TicketStatus enumerates lifecycle states for issued tickets.
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "VALID"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusRefunded  TicketStatus = "REFUNDED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// ConsumingTicketStatuses are the statuses that permanently take a unit of capacity.
var ConsumingTicketStatuses = []TicketStatus{TicketStatusValid, TicketStatusUsed}

// ConsumesCapacity reports whether a ticket in this status counts as sold.
func (s TicketStatus) ConsumesCapacity() bool {
	return s == TicketStatusValid || s == TicketStatusUsed
}

// Ticket is an issued admission to an event.
type Ticket struct {
	ID                 string
	EventID            string
	UserID             string
	WaitingListEntryID *string
	Status             TicketStatus
	PurchasedAt        time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
