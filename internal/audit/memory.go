package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/repairdesk/repairdesk/internal/shared"
)

// MemoryLog keeps audit entries in process and mirrors them to a logger.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
	logger  *shared.LogAuditor
	now     func() time.Time
}

// NewMemoryLog constructs an in-process trail.
func NewMemoryLog(logger *slog.Logger) *MemoryLog {
	return &MemoryLog{logger: shared.NewLogAuditor(logger), now: time.Now}
}

// Record implements the services' audit port.
func (m *MemoryLog) Record(ctx context.Context, log shared.AuditLog) error {
	if err := m.logger.Record(ctx, log); err != nil {
		return err
	}
	if log.Actor == "" {
		log.Actor = shared.ActorFromContext(ctx)
	}
	at := log.At
	if at.IsZero() {
		at = m.now()
	}
	m.mu.Lock()
	m.entries = append(m.entries, Entry{
		At:       at.UTC(),
		Actor:    log.Actor,
		Action:   log.Action,
		Entity:   log.Entity,
		EntityID: log.EntityID,
		Meta:     log.Meta,
	})
	m.mu.Unlock()
	return nil
}

// List implements Repository.
func (m *MemoryLog) List(_ context.Context, q Query) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; matches(e, q.Filters) {
			matched = append(matched, e)
		}
	}
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func matches(e Entry, f Filters) bool {
	switch {
	case !f.From.IsZero() && e.At.Before(f.From):
		return false
	case !f.To.IsZero() && !e.At.Before(f.To):
		return false
	case f.Actor != "" && e.Actor != f.Actor:
		return false
	case f.Entity != "" && e.Entity != f.Entity:
		return false
	case f.EntityID != "" && e.EntityID != f.EntityID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	}
	return true
}
