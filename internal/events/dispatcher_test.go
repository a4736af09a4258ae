package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

func TestPublishInvokesAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string
	d.Subscribe(EventOfferExpired, func(ctx context.Context, e Event) error {
		seen = append(seen, "first")
		return errors.New("first failed")
	})
	d.Subscribe(EventOfferExpired, func(ctx context.Context, e Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventOfferCreated, func(ctx context.Context, e Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventOfferExpired, EntryID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestPublishWithoutListeners(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventEntryQueued}))
}

func TestTransition(t *testing.T) {
	old, next, ok := EventEntryPromoted.Transition()
	require.True(t, ok)
	require.NotNil(t, old)
	assert.Equal(t, domain.EntryStatusWaiting, *old)
	assert.Equal(t, domain.EntryStatusOffered, next)

	old, next, ok = EventOfferCreated.Transition()
	require.True(t, ok)
	assert.Nil(t, old)
	assert.Equal(t, domain.EntryStatusOffered, next)

	_, _, ok = EventCapacityChanged.Transition()
	assert.False(t, ok)
}
