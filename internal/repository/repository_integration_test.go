package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
	"github.com/spec-kit/ticket-waitlist/internal/testutil"
)

func seedEvent(t *testing.T, pool *pgxpool.Pool, total int) *domain.Event {
	t.Helper()
	event := &domain.Event{
		Name:         "Integration Night",
		Location:     "Hall B",
		EventDate:    time.Now().Add(72 * time.Hour).UTC(),
		Price:        decimal.RequireFromString("12.50"),
		TotalTickets: total,
	}
	require.NoError(t, repository.NewEventRepository(pool).Create(context.Background(), event))
	return event
}

func newEntry(eventID, userID string, status domain.EntryStatus, createdAt time.Time) *domain.WaitingListEntry {
	entry := &domain.WaitingListEntry{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if status == domain.EntryStatusOffered {
		exp := createdAt.Add(30 * time.Minute)
		entry.OfferExpiresAt = &exp
	}
	return entry
}

func TestEventRepositoryRoundTrip(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewEventRepository(pool)

	event := seedEvent(t, pool, 10)
	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, event.Price.Equal(got.Price))
	assert.Equal(t, 10, got.TotalTickets)

	got.TotalTickets = 12
	got.Price = decimal.RequireFromString("15")
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, again.TotalTickets)
	assert.Equal(t, "15", again.Price.String())

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestWaitingListActiveUniqueness(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewWaitingListRepository(pool)
	event := seedEvent(t, pool, 1)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := newEntry(event.ID, "alice", domain.EntryStatusOffered, now)
	require.NoError(t, repo.Create(ctx, first))

	dup := newEntry(event.ID, "alice", domain.EntryStatusWaiting, now)
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrAlreadyQueued)

	changed, err := repo.MarkExpired(ctx, first.ID, now)
	require.NoError(t, err)
	require.True(t, changed)

	// An expired entry no longer blocks a rejoin.
	require.NoError(t, repo.Create(ctx, dup))
	active, err := repo.FindActive(ctx, event.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, dup.ID, active.ID)
}

func TestWaitingListConditionalTransitions(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewWaitingListRepository(pool)
	event := seedEvent(t, pool, 1)
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry := newEntry(event.ID, "bob", domain.EntryStatusWaiting, now)
	require.NoError(t, repo.Create(ctx, entry))

	changed, err := repo.MarkPurchased(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.False(t, changed, "waiting entries cannot be purchased")

	changed, err = repo.MarkOffered(ctx, entry.ID, now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkPurchased(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkExpired(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.False(t, changed, "purchased entries never expire")

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusPurchased, got.Status)
}

func TestWaitingListOrderingAndCounts(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewWaitingListRepository(pool)
	event := seedEvent(t, pool, 1)
	base := time.Now().UTC().Truncate(time.Microsecond)

	offered := newEntry(event.ID, "u0", domain.EntryStatusOffered, base)
	require.NoError(t, repo.Create(ctx, offered))

	var waiting []*domain.WaitingListEntry
	for i, user := range []string{"u3", "u1", "u2"} {
		e := newEntry(event.ID, user, domain.EntryStatusWaiting, base.Add(time.Duration(3-i)*time.Second))
		require.NoError(t, repo.Create(ctx, e))
		waiting = append(waiting, e)
	}

	list, err := repo.ListWaiting(ctx, event.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"u2", "u1", "u3"}, []string{list[0].UserID, list[1].UserID, list[2].UserID})

	ahead, err := repo.CountWaitingAhead(ctx, waiting[0])
	require.NoError(t, err)
	assert.Equal(t, 2, ahead)

	active, err := repo.CountActiveOffers(ctx, event.ID, base)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	active, err = repo.CountActiveOffers(ctx, event.ID, *offered.OfferExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, 0, active, "an offer at its expiry instant is no longer active")

	lapsed, err := repo.ListLapsedOffers(ctx, *offered.OfferExpiresAt, 10)
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	assert.Equal(t, offered.ID, lapsed[0].ID)
}

func TestTicketRepositoryCounts(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewTicketRepository(pool)
	event := seedEvent(t, pool, 5)

	for _, status := range []domain.TicketStatus{domain.TicketStatusValid, domain.TicketStatusUsed, domain.TicketStatusRefunded} {
		require.NoError(t, repo.Create(ctx, &domain.Ticket{
			ID:          uuid.NewString(),
			EventID:     event.ID,
			UserID:      "buyer",
			Status:      status,
			PurchasedAt: time.Now().UTC(),
		}))
	}

	sold, err := repo.CountByStatus(ctx, event.ID, domain.ConsumingTicketStatuses)
	require.NoError(t, err)
	assert.Equal(t, 2, sold)

	missing, err := repo.GetByEntry(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTxManagerRollsBack(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	tx := repository.NewTxManager(pool)
	repo := repository.NewWaitingListRepository(pool)
	event := seedEvent(t, pool, 1)
	entry := newEntry(event.ID, "carol", domain.EntryStatusWaiting, time.Now().UTC())

	boom := errors.New("boom")
	err := tx.WithTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, entry))
		return tx.WithTx(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestTaskRepositoryClaimLease(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := repository.NewTaskRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	payload, err := json.Marshal(domain.ExpireOfferPayload{EntryID: uuid.NewString(), EventID: uuid.NewString()})
	require.NoError(t, err)
	due := &domain.ScheduledTask{ID: uuid.NewString(), Ref: domain.TaskExpireOffer, Payload: payload, RunAt: now.Add(-time.Second)}
	later := &domain.ScheduledTask{ID: uuid.NewString(), Ref: domain.TaskExpireOffer, Payload: payload, RunAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, due))
	require.NoError(t, repo.Create(ctx, later))

	claimed, err := repo.ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.JSONEq(t, string(payload), string(claimed[0].Payload))

	again, err := repo.ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "leased task must not be claimed twice")

	// The lease lapses and the task becomes claimable again.
	again, err = repo.ClaimDue(ctx, now.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].Attempts)

	require.NoError(t, repo.Reschedule(ctx, due.ID, now.Add(time.Hour), 2, "transient"))
	require.NoError(t, repo.Delete(ctx, later.ID))
	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	assert.ErrorIs(t, repo.Reschedule(ctx, later.ID, now, 0, ""), domain.ErrTaskNotFound)
}
