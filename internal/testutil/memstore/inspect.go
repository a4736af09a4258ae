package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// SeedEvent inserts an event with the given capacity and returns its id.
func (s *Store) SeedEvent(t *testing.T, totalTickets int) string {
	t.Helper()
	event := &domain.Event{
		Name:         "Test Event",
		Location:     "Main Hall",
		EventDate:    time.Now().Add(30 * 24 * time.Hour).UTC(),
		Price:        decimal.RequireFromString("49.90"),
		TotalTickets: totalTickets,
	}
	if err := s.Events().Create(context.Background(), event); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event.ID
}

// SeedTicket inserts an issued ticket in the given status.
func (s *Store) SeedTicket(t *testing.T, eventID string, status domain.TicketStatus) {
	t.Helper()
	ticket := &domain.Ticket{
		EventID:     eventID,
		UserID:      "seed-" + uuid.NewString(),
		Status:      status,
		PurchasedAt: time.Now().UTC(),
	}
	if err := s.Tickets().Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
}

// SeedEntry inserts a raw waiting-list entry, bypassing the services.
func (s *Store) SeedEntry(t *testing.T, entry domain.WaitingListEntry) domain.WaitingListEntry {
	t.Helper()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	if err := s.Entries().Create(context.Background(), &entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

// EntriesFor returns all entries of an event in creation order.
func (s *Store) EntriesFor(eventID string) []domain.WaitingListEntry {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	var result []domain.WaitingListEntry
	for _, e := range s.data.entries {
		if e.EventID == eventID {
			result = append(result, copyEntry(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return fifoLess(result[i], result[j]) })
	return result
}

// Entry returns one entry by id.
func (s *Store) Entry(t *testing.T, id string) domain.WaitingListEntry {
	t.Helper()
	e, err := s.Entries().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load entry %s: %v", id, err)
	}
	return *e
}

// TicketsFor returns all tickets of an event.
func (s *Store) TicketsFor(eventID string) []domain.Ticket {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	var result []domain.Ticket
	for _, tk := range s.data.tickets {
		if tk.EventID == eventID {
			result = append(result, tk)
		}
	}
	return result
}

// PendingTasks returns every stored task ordered by run time.
func (s *Store) PendingTasks() []domain.ScheduledTask {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	result := make([]domain.ScheduledTask, 0, len(s.data.tasks))
	for _, task := range s.data.tasks {
		result = append(result, task)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RunAt.Before(result[j].RunAt) })
	return result
}

// ExpireTaskFor finds the expire_offer task referencing entryID.
func (s *Store) ExpireTaskFor(entryID string) (domain.ScheduledTask, bool) {
	for _, task := range s.PendingTasks() {
		if task.Ref != domain.TaskExpireOffer {
			continue
		}
		var payload domain.ExpireOfferPayload
		if err := json.Unmarshal(task.Payload, &payload); err == nil && payload.EntryID == entryID {
			return task, true
		}
	}
	return domain.ScheduledTask{}, false
}

// HistoryFor returns the audit trail of an entry.
func (s *Store) HistoryFor(entryID string) []domain.EntryHistory {
	list, _ := s.History().ListByEntry(context.Background(), entryID)
	return list
}
