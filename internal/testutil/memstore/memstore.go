// Package memstore is an in-memory implementation of every repository used
// by the services. Transactions are serialized and roll back on error.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
)

type txMarker struct{}

type state struct {
	events  map[string]domain.Event
	tickets []domain.Ticket
	entries map[string]domain.WaitingListEntry
	history []domain.EntryHistory
	tasks   map[string]domain.ScheduledTask
}

func (s state) clone() state {
	c := state{
		events:  make(map[string]domain.Event, len(s.events)),
		tickets: append([]domain.Ticket(nil), s.tickets...),
		entries: make(map[string]domain.WaitingListEntry, len(s.entries)),
		history: append([]domain.EntryHistory(nil), s.history...),
		tasks:   make(map[string]domain.ScheduledTask, len(s.tasks)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	return c
}

// Store holds all data. The zero value is not usable; call New.
type Store struct {
	txMu   sync.Mutex
	dataMu sync.Mutex
	data   state

	failMu sync.Mutex
	fail   map[string]error
}

var (
	_ repository.TxManager              = (*Store)(nil)
	_ repository.EventRepository        = eventRepo{}
	_ repository.TicketRepository       = ticketRepo{}
	_ repository.WaitingListRepository  = entryRepo{}
	_ repository.EntryHistoryRepository = historyRepo{}
	_ repository.TaskRepository         = taskRepo{}
)

// New returns an empty store.
func New() *Store {
	return &Store{
		data: state{
			events:  map[string]domain.Event{},
			entries: map[string]domain.WaitingListEntry{},
			tasks:   map[string]domain.ScheduledTask{},
		},
		fail: map[string]error{},
	}
}

type (
	eventRepo   struct{ s *Store }
	ticketRepo  struct{ s *Store }
	entryRepo   struct{ s *Store }
	historyRepo struct{ s *Store }
	taskRepo    struct{ s *Store }
)

// Events, Tickets, Entries, History and Tasks return repository views of the store.
func (s *Store) Events() repository.EventRepository         { return eventRepo{s} }
func (s *Store) Tickets() repository.TicketRepository       { return ticketRepo{s} }
func (s *Store) Entries() repository.WaitingListRepository  { return entryRepo{s} }
func (s *Store) History() repository.EntryHistoryRepository { return historyRepo{s} }
func (s *Store) Tasks() repository.TaskRepository           { return taskRepo{s} }

// FailOn makes the next call of op return err. Ops are named "<repo>.<Method>",
// for example "tasks.Create".
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.fail[op]
	delete(s.fail, op)
	return err
}

// WithTx serializes fn against every other transaction and restores the
// previous state when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.Lock()
	snapshot := s.data.clone()
	s.dataMu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.dataMu.Lock()
		s.data = snapshot
		s.dataMu.Unlock()
		return err
	}
	return nil
}

// lock guards a single operation. Outside a transaction it waits for any
// running transaction to finish.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		s.dataMu.Lock()
		return s.dataMu.Unlock
	}
	s.txMu.Lock()
	s.dataMu.Lock()
	return func() {
		s.dataMu.Unlock()
		s.txMu.Unlock()
	}
}

// --- events ---

func (r eventRepo) Create(ctx context.Context, event *domain.Event) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("events.Create"); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt, event.UpdatedAt = now, now
	s.data.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r eventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("events.GetByID"); err != nil {
		return nil, err
	}
	event, ok := s.data.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &event, nil
}

func (r eventRepo) GetForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("events.GetForUpdate"); err != nil {
		return nil, err
	}
	event, ok := s.data.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &event, nil
}

func (r eventRepo) GetForShare(ctx context.Context, id string) (*domain.Event, error) {
	return r.GetForUpdate(ctx, id)
}

func (r eventRepo) Update(ctx context.Context, event *domain.Event) error {
	s := r.s
	defer s.lock(ctx)()
	if err := s.injected("events.Update"); err != nil {
		return err
	}
	if _, ok := s.data.events[event.ID]; !ok {
		return domain.ErrEventNotFound
	}
	event.UpdatedAt = time.Now().UTC()
	s.data.events[event.ID] = cloneEvent(*event)
	return nil
}
