package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "eligo/pkg/platform/audit"
)

// InMemoryStore keeps events and their outbox entries in memory. Used in
// development and tests; it ignores transactions.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []audit.Event
	entries   []audit.OutboxEntry
	published map[uuid.UUID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uuid.UUID]time.Time)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	entry, err := audit.NewOutboxEntry(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.entries = append(s.entries, entry)
	return nil
}

// ListAll returns every appended event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// Actions returns the appended actions in order. Handy in tests.
func (s *InMemoryStore) Actions() []audit.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.AuditEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, e := range s.entries {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = at
	}
	return nil
}
