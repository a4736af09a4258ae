package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

type sentinelMapping struct {
	target error
	code   string
	status int
}

var sentinels = []sentinelMapping{
	{domain.ErrEventNotFound, "NOT_FOUND", http.StatusNotFound},
	{domain.ErrEntryNotFound, "NOT_FOUND", http.StatusNotFound},
	{domain.ErrAlreadyQueued, "ALREADY_QUEUED", http.StatusConflict},
	{domain.ErrCapacityReductionRejected, "CAPACITY_REDUCTION_REJECTED", http.StatusConflict},
	{domain.ErrCapacityInvariantViolation, "CAPACITY_INVARIANT_VIOLATION", http.StatusInternalServerError},
	{domain.ErrInvalidTotalTickets, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrOfferNotActive, "OFFER_NOT_ACTIVE", http.StatusConflict},
	{domain.ErrOfferExpired, "OFFER_EXPIRED", http.StatusGone},
	{domain.ErrEntryOwnership, "FORBIDDEN", http.StatusForbidden},
	{domain.ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
}

// ToDomainError converts any error to a DomainError, mapping domain sentinels to their codes.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, m := range sentinels {
		if errors.Is(err, m.target) {
			return &DomainError{Code: m.code, Message: m.target.Error(), HTTPStatus: m.status, Err: err}
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
