package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

func TestToDomainErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{domain.ErrEventNotFound, "NOT_FOUND", http.StatusNotFound},
		{fmt.Errorf("join: %w", domain.ErrAlreadyQueued), "ALREADY_QUEUED", http.StatusConflict},
		{domain.ErrCapacityReductionRejected, "CAPACITY_REDUCTION_REJECTED", http.StatusConflict},
		{domain.ErrCapacityInvariantViolation, "CAPACITY_INVARIANT_VIOLATION", http.StatusInternalServerError},
		{domain.ErrOfferExpired, "OFFER_EXPIRED", http.StatusGone},
		{domain.ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
		{pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{errors.New("connection reset"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	orig := NewValidationError("bad input", map[string]any{"field": "total_tickets"})
	de := ToDomainError(fmt.Errorf("wrapped: %w", orig))
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, "total_tickets", de.Details["field"])
}

func TestNilPassesThrough(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestDomainErrorUnwrap(t *testing.T) {
	de := ToDomainError(domain.ErrOfferNotActive)
	assert.ErrorIs(t, de, domain.ErrOfferNotActive)
	assert.Contains(t, de.Error(), "does not hold an offer")
}
