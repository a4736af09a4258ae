package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// --- tickets ---

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("tickets.Create"); err != nil {
		return err
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	s.data.tickets = append(s.data.tickets, cloneTicket(*ticket))
	return nil
}

func (r ticketRepo) GetByEntry(ctx context.Context, entryID string) (*domain.Ticket, error) {
	s := r.s
	defer s.lock(ctx)()
	for _, t := range s.data.tickets {
		if t.WaitingListEntryID != nil && *t.WaitingListEntryID == entryID {
			ticket := t
			return &ticket, nil
		}
	}
	return nil, nil
}

func (r ticketRepo) CountByStatus(ctx context.Context, eventID string, statuses []domain.TicketStatus) (int, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("tickets.CountByStatus"); err != nil {
		return 0, err
	}
	count := 0
	for _, t := range s.data.tickets {
		if t.EventID != eventID {
			continue
		}
		for _, st := range statuses {
			if t.Status == st {
				count++
				break
			}
		}
	}
	return count, nil
}

// --- waiting list ---

func (r entryRepo) Create(ctx context.Context, entry *domain.WaitingListEntry) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("entries.Create"); err != nil {
		return err
	}
	for _, e := range s.data.entries {
		if e.EventID == entry.EventID && e.UserID == entry.UserID && e.Status.IsActive() {
			return domain.ErrAlreadyQueued
		}
	}
	s.data.entries[entry.ID] = copyEntry(*entry)
	return nil
}

func (r entryRepo) GetByID(ctx context.Context, id string) (*domain.WaitingListEntry, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("entries.GetByID"); err != nil {
		return nil, err
	}
	e, ok := s.data.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	c := copyEntry(e)
	return &c, nil
}

func (r entryRepo) FindActive(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error) {
	s := r.s
	defer s.lock(ctx)()
	for _, e := range s.data.entries {
		if e.EventID == eventID && e.UserID == userID && e.Status.IsActive() {
			c := copyEntry(e)
			return &c, nil
		}
	}
	return nil, nil
}

func (r entryRepo) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("entries.CountActiveOffers"); err != nil {
		return 0, err
	}
	count := 0
	for _, e := range s.data.entries {
		if e.EventID == eventID && e.OfferActive(now) {
			count++
		}
	}
	return count, nil
}

func (r entryRepo) CountWaitingAhead(ctx context.Context, entry *domain.WaitingListEntry) (int, error) {
	s := r.s
	defer s.lock(ctx)()
	count := 0
	for _, e := range s.data.entries {
		if e.EventID == entry.EventID && e.Status == domain.EntryStatusWaiting && fifoLess(e, *entry) {
			count++
		}
	}
	return count, nil
}

func (r entryRepo) ListWaiting(ctx context.Context, eventID string, limit int) ([]domain.WaitingListEntry, error) {
	s := r.s
	defer s.lock(ctx)()
	var result []domain.WaitingListEntry
	for _, e := range s.data.entries {
		if e.EventID == eventID && e.Status == domain.EntryStatusWaiting {
			result = append(result, copyEntry(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return fifoLess(result[i], result[j]) })
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r entryRepo) ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]domain.WaitingListEntry, error) {
	s := r.s
	defer s.lock(ctx)()
	var result []domain.WaitingListEntry
	for _, e := range s.data.entries {
		if e.Status == domain.EntryStatusOffered && e.OfferExpiresAt != nil && !e.OfferExpiresAt.After(now) {
			result = append(result, copyEntry(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OfferExpiresAt.Before(*result[j].OfferExpiresAt) })
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r entryRepo) MarkOffered(ctx context.Context, id string, expiresAt, now time.Time) (bool, error) {
	return r.transition(ctx, "entries.MarkOffered", id, domain.EntryStatusWaiting, domain.EntryStatusOffered, &expiresAt, now)
}

func (r entryRepo) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, "entries.MarkExpired", id, domain.EntryStatusOffered, domain.EntryStatusExpired, nil, now)
}

func (r entryRepo) MarkPurchased(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, "entries.MarkPurchased", id, domain.EntryStatusOffered, domain.EntryStatusPurchased, nil, now)
}

func (r entryRepo) transition(ctx context.Context, op, id string, from, to domain.EntryStatus, expiresAt *time.Time, now time.Time) (bool, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected(op); err != nil {
		return false, err
	}
	e, ok := s.data.entries[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	if expiresAt != nil {
		at := *expiresAt
		e.OfferExpiresAt = &at
	}
	e.UpdatedAt = now
	s.data.entries[id] = e
	return true, nil
}

// --- history ---

func (r historyRepo) Create(ctx context.Context, history *domain.EntryHistory) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("history.Create"); err != nil {
		return err
	}
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now().UTC()
	s.data.history = append(s.data.history, cloneHistory(*history))
	return nil
}

func (r historyRepo) ListByEntry(ctx context.Context, entryID string) ([]domain.EntryHistory, error) {
	s := r.s
	defer s.lock(ctx)()
	var result []domain.EntryHistory
	for _, h := range s.data.history {
		if h.EntryID == entryID {
			result = append(result, h)
		}
	}
	return result, nil
}

// --- tasks ---

func (r taskRepo) Create(ctx context.Context, task *domain.ScheduledTask) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("tasks.Create"); err != nil {
		return err
	}
	task.CreatedAt = time.Now().UTC()
	stored := *task
	stored.ID = strings.Clone(task.ID)
	stored.Payload = append([]byte(nil), task.Payload...)
	s.data.tasks[stored.ID] = stored
	return nil
}

func (r taskRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.ScheduledTask, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("tasks.ClaimDue"); err != nil {
		return nil, err
	}
	var due []domain.ScheduledTask
	for _, t := range s.data.tasks {
		if t.RunAt.After(now) {
			continue
		}
		if t.LockedUntil != nil && !t.LockedUntil.Before(now) {
			continue
		}
		due = append(due, t)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	until := now.Add(lease)
	for i := range due {
		due[i].Attempts++
		locked := until
		due[i].LockedUntil = &locked
		s.data.tasks[due[i].ID] = due[i]
	}
	return due, nil
}

func (r taskRepo) Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastErr string) error {
	s := r.s
	defer s.lock(ctx)()
	t, ok := s.data.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.RunAt = runAt
	t.Attempts = attempts
	t.LockedUntil = nil
	if lastErr != "" {
		msg := lastErr
		t.LastError = &msg
	} else {
		t.LastError = nil
	}
	s.data.tasks[id] = t
	return nil
}

func (r taskRepo) Delete(ctx context.Context, id string) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("tasks.Delete"); err != nil {
		return err
	}
	delete(s.data.tasks, id)
	return nil
}

func (r taskRepo) CountPending(ctx context.Context) (int, error) {
	s := r.s
	defer s.lock(ctx)()
	return len(s.data.tasks), nil
}

func fifoLess(a, b domain.WaitingListEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// The clone helpers detach stored values from caller memory. Strings handed
// in by an HTTP handler may alias a request buffer that is reused later.

func copyEntry(e domain.WaitingListEntry) domain.WaitingListEntry {
	e.ID = strings.Clone(e.ID)
	e.EventID = strings.Clone(e.EventID)
	e.UserID = strings.Clone(e.UserID)
	if e.OfferExpiresAt != nil {
		at := *e.OfferExpiresAt
		e.OfferExpiresAt = &at
	}
	return e
}

func cloneEvent(e domain.Event) domain.Event {
	e.ID = strings.Clone(e.ID)
	e.Name = strings.Clone(e.Name)
	e.Description = strings.Clone(e.Description)
	e.Location = strings.Clone(e.Location)
	return e
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.ID = strings.Clone(t.ID)
	t.EventID = strings.Clone(t.EventID)
	t.UserID = strings.Clone(t.UserID)
	if t.WaitingListEntryID != nil {
		id := strings.Clone(*t.WaitingListEntryID)
		t.WaitingListEntryID = &id
	}
	return t
}

func cloneHistory(h domain.EntryHistory) domain.EntryHistory {
	h.EntryID = strings.Clone(h.EntryID)
	h.EventID = strings.Clone(h.EventID)
	h.UserID = strings.Clone(h.UserID)
	return h
}
