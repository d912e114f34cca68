// Package memstore is an in-process implementation of every repository port.
// Transactions are serialized by one mutex and work on a copy of the state
// that replaces the committed state only when the callback succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
)

type state struct {
	items     map[int64]inventory.Item
	movements []inventory.Movement
	sales     map[int64]sales.Sale
	tickets   map[int64]repairs.Ticket
	parts     map[int64]repairs.Part
	reports   map[int64]damage.Report
	seq       map[string]int64
}

func newState() *state {
	return &state{
		items:   make(map[int64]inventory.Item),
		sales:   make(map[int64]sales.Sale),
		tickets: make(map[int64]repairs.Ticket),
		parts:   make(map[int64]repairs.Part),
		reports: make(map[int64]damage.Report),
		seq:     make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:     make(map[int64]inventory.Item, len(s.items)),
		movements: append([]inventory.Movement(nil), s.movements...),
		sales:     make(map[int64]sales.Sale, len(s.sales)),
		tickets:   make(map[int64]repairs.Ticket, len(s.tickets)),
		parts:     make(map[int64]repairs.Part, len(s.parts)),
		reports:   make(map[int64]damage.Report, len(s.reports)),
		seq:       make(map[string]int64, len(s.seq)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.parts {
		c.parts[k] = v
	}
	for k, v := range s.reports {
		c.reports[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *state) partsOf(ticketID int64) []repairs.Part {
	out := []repairs.Part{}
	for _, p := range s.parts {
		if p.TicketID == ticketID {
			p.ItemName = s.items[p.ItemID].Name
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Store holds all state in memory.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// SetClock overrides the timestamp source, for deterministic ordering in tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newState()
}

func (s *Store) withTx(ctx context.Context, fn func(*tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
