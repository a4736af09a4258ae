package domain

import "errors"

var (
	ErrEventNotFound              = errors.New("event not found")
	ErrEntryNotFound              = errors.New("waiting list entry not found")
	ErrTaskNotFound               = errors.New("scheduled task not found")
	ErrAlreadyQueued              = errors.New("user already has an active waiting list entry for this event")
	ErrCapacityInvariantViolation = errors.New("capacity invariant violated")
	ErrCapacityReductionRejected  = errors.New("total tickets cannot be lower than tickets already sold")
	ErrInvalidTotalTickets        = errors.New("total tickets must be positive")
	ErrOfferNotActive             = errors.New("waiting list entry does not hold an offer")
	ErrOfferExpired               = errors.New("offer has expired")
	ErrEntryOwnership             = errors.New("waiting list entry belongs to another user")
	ErrRateLimited                = errors.New("too many join attempts")
)
