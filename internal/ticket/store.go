package ticket

import (
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"
)

// Store owns the authoritative in-memory set of tracked tickets. All
// operations are safe for concurrent use; one mutex guards the whole
// set, which is plenty at the request volumes this daemon sees.
//
// Every mutation is followed by a snapshot write when a snapshot path
// is configured. Snapshot failures are logged and do not roll back the
// in-memory change: the daemon favors availability over durability.
type Store struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	order   []string // insertion order of IDs
	path    string   // snapshot file; empty disables persistence
	logger  *slog.Logger
}

// NewStore creates a store persisting to path after every mutation.
// An empty path keeps the store memory-only.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tickets: make(map[string]*Ticket),
		path:    path,
		logger:  logger,
	}
}

// Register inserts or replaces the ticket for t.ID. Replacement is
// last-writer-wins: no fields are merged from a previous record.
func (s *Store) Register(t Ticket) {
	s.mu.Lock()
	if _, exists := s.tickets[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.tickets[t.ID] = &t
	s.persistLocked()
	s.mu.Unlock()
}

// Remove deletes the ticket if present and reports whether it existed.
// Removing an unknown ID is a no-op, never an error: completion signals
// race and the loser just observes the ticket already gone.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return false
	}
	delete(s.tickets, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.persistLocked()
	return true
}

// Get returns a copy of the ticket with the given ID.
func (s *Store) Get(id string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// FindByMessage maps an announcement message back to its ticket, which
// is how a reaction event is matched. Zero matches is an expected
// outcome (already resolved, or a reaction on some unrelated message).
func (s *Store) FindByMessage(channel, ts string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.Channel == channel && t.MessageTS == ts {
			return *t, true
		}
	}
	return Ticket{}, false
}

// ListOpen returns copies of all tracked tickets in insertion order.
func (s *Store) ListOpen() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Ticket, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tickets[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Len returns the number of open tickets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// MarkReminded records a successfully sent reminder: LastReminderAt
// moves to at and ReminderCount goes up by one. It returns the new
// count, or ok=false when the ticket was resolved in the meantime.
func (s *Store) MarkReminded(id string, at time.Time) (count int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tickets[id]
	if !exists {
		return 0, false
	}
	t.LastReminderAt = at
	t.ReminderCount++
	s.persistLocked()
	return t.ReminderCount, true
}

// ReassignMessage points the ticket at a replacement announcement
// message. Used when the original message could not be located and a
// placeholder was posted.
func (s *Store) ReassignMessage(id, channel, ts string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tickets[id]
	if !exists {
		return false
	}
	t.Channel = channel
	t.MessageTS = ts
	s.persistLocked()
	return true
}

// persistLocked writes a snapshot. Callers must hold s.mu.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	tickets := make([]Ticket, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tickets[id]; ok {
			tickets = append(tickets, *t)
		}
	}
	if err := writeSnapshot(s.path, tickets); err != nil {
		s.logger.Error("snapshot write failed", "path", s.path, "error", err)
	}
}

// Load restores the ticket set from the snapshot file. A missing file
// starts the store empty; a corrupt file does the same with a warning.
// Neither is fatal.
func (s *Store) Load() {
	if s.path == "" {
		return
	}
	tickets, err := readSnapshot(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("no snapshot found, starting empty", "path", s.path)
		} else {
			s.logger.Warn("snapshot not loaded, starting empty", "path", s.path, "error", err)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[string]*Ticket, len(tickets))
	s.order = s.order[:0]
	for i := range tickets {
		t := tickets[i]
		if _, dup := s.tickets[t.ID]; !dup {
			s.order = append(s.order, t.ID)
		}
		s.tickets[t.ID] = &t
	}
	s.logger.Info("snapshot loaded", "path", s.path, "tickets", len(s.tickets))
}
