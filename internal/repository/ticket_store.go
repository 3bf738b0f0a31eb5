package repository

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/domain"
	"github.com/iCCupCalico/bot/internal/persistence"
	"github.com/iCCupCalico/bot/pkg/util"
)

// idProbeLimit bounds the collision scan when deriving a ticket id from the
// creation time. Exhausting it means something is badly wrong with the set.
const idProbeLimit = 1024

// TicketStore is the single serialized owner of the ticket set for the whole
// process. All reads and writes, from the chat path and from the admin API
// alike, go through one instance; the internal mutex removes the
// reload-versus-live-write race a second in-memory copy would create.
//
// Every mutation persists the entire set synchronously before returning.
// A failed persist rolls the in-memory change back, so the working copy and
// the durable copy never diverge on the success path.
type TicketStore struct {
	mu      sync.Mutex
	file    *persistence.TicketFile
	tickets map[int64]*domain.Ticket
	logger  *zap.Logger
}

// NewTicketStore loads the durable set and returns the store.
func NewTicketStore(file *persistence.TicketFile, logger *zap.Logger) (*TicketStore, error) {
	tickets, err := file.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("ticket store opened",
		zap.String("path", file.Path()),
		zap.Int("tickets", len(tickets)))
	return &TicketStore{file: file, tickets: tickets, logger: logger}, nil
}

// Create allocates an id derived from now (seconds since epoch), inserts a
// new open ticket and persists the set.
func (s *TicketStore) Create(requester domain.Requester, problem string, now time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateIDLocked(now)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ID:        id,
		Requester: requester,
		CreatedAt: now,
		Problem:   problem,
		Updates:   []domain.Update{},
		Closed:    false,
	}
	s.tickets[id] = ticket

	if err := s.file.Save(s.tickets); err != nil {
		delete(s.tickets, id)
		return nil, err
	}
	return ticket.Clone(), nil
}

// AppendUpdate adds a follow-up message to an open ticket and persists the
// set. Closed tickets are immutable.
func (s *TicketStore) AppendUpdate(ticketID int64, text string, now time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, util.NewTicketNotFound(ticketID)
	}
	if ticket.Closed {
		return nil, util.NewAlreadyClosed(ticketID)
	}

	ticket.Updates = append(ticket.Updates, domain.Update{At: now, Message: text})

	if err := s.file.Save(s.tickets); err != nil {
		ticket.Updates = ticket.Updates[:len(ticket.Updates)-1]
		return nil, err
	}
	return ticket.Clone(), nil
}

// Close marks the ticket closed and persists the set. Closing an already
// closed ticket fails with AlreadyClosed so the caller can tell the operator.
func (s *TicketStore) Close(ticketID int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, util.NewTicketNotFound(ticketID)
	}
	if ticket.Closed {
		return nil, util.NewAlreadyClosed(ticketID)
	}

	ticket.Closed = true

	if err := s.file.Save(s.tickets); err != nil {
		ticket.Closed = false
		return nil, err
	}
	return ticket.Clone(), nil
}

// FindOpenFor returns the requester's open ticket, if any. The one-open-
// ticket-per-requester invariant means there is at most one.
func (s *TicketStore) FindOpenFor(requesterID int64) (*domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOpenLocked(requesterID)
}

// Record routes an inbound user message: a follow-up if the requester already
// has an open ticket, a new ticket otherwise. The returned flag is true when
// a ticket was created.
func (s *TicketStore) Record(requester domain.Requester, text string, now time.Time) (*domain.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open, ok := s.findOpenLocked(requester.ID); ok {
		ticket := s.tickets[open.ID]
		ticket.Updates = append(ticket.Updates, domain.Update{At: now, Message: text})
		if err := s.file.Save(s.tickets); err != nil {
			ticket.Updates = ticket.Updates[:len(ticket.Updates)-1]
			return nil, false, err
		}
		return ticket.Clone(), false, nil
	}

	id, err := s.allocateIDLocked(now)
	if err != nil {
		return nil, false, err
	}
	ticket := &domain.Ticket{
		ID:        id,
		Requester: requester,
		CreatedAt: now,
		Problem:   text,
		Updates:   []domain.Update{},
	}
	s.tickets[id] = ticket
	if err := s.file.Save(s.tickets); err != nil {
		delete(s.tickets, id)
		return nil, false, err
	}
	return ticket.Clone(), true, nil
}

// Get returns a copy of the ticket.
func (s *TicketStore) Get(ticketID int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, util.NewTicketNotFound(ticketID)
	}
	return ticket.Clone(), nil
}

// List returns copies of all tickets ordered by id.
func (s *TicketStore) List() []*domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := make([]*domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		tickets = append(tickets, ticket.Clone())
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets
}

// Reload discards the in-memory set and repopulates it from the durable copy.
// With a single store instance per process this is a defensive no-op in
// effect, kept so a deployment sharing the file with another process picks up
// out-of-band changes before an operator mutation.
func (s *TicketStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.file.Load()
	if err != nil {
		return err
	}
	s.tickets = tickets
	return nil
}

func (s *TicketStore) findOpenLocked(requesterID int64) (*domain.Ticket, bool) {
	ids := make([]int64, 0, len(s.tickets))
	for id := range s.tickets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ticket := s.tickets[id]
		if ticket.Requester.ID == requesterID && !ticket.Closed {
			return ticket.Clone(), true
		}
	}
	return nil, false
}

func (s *TicketStore) allocateIDLocked(now time.Time) (int64, error) {
	candidate := now.Unix()
	for probe := 0; probe < idProbeLimit; probe++ {
		if _, exists := s.tickets[candidate]; !exists {
			return candidate, nil
		}
		candidate++
	}
	s.logger.Error("ticket id space exhausted around creation time",
		zap.Int64("base", now.Unix()), zap.Int("probes", idProbeLimit))
	return 0, util.NewDuplicateID(now.Unix())
}
