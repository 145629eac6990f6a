package memory

import (
	"context"
	"sync"

	"github.com/trinsiklabs/recall/internal/audit"
)

// InMemoryStore keeps audit entries in process memory. Unit-test substitute
// for the Postgres store; entries are copied on both write and read so
// callers cannot mutate persisted state.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, copyEntry(entry))
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Entry
	for _, e := range s.entries {
		if !matches(e, filter) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func matches(e *audit.Entry, f audit.Filter) bool {
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	if f.EntryID != nil && (e.EntryID == nil || *e.EntryID != *f.EntryID) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func copyEntry(e *audit.Entry) *audit.Entry {
	dup := *e
	if e.Details != nil {
		dup.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			dup.Details[k] = v
		}
	}
	return &dup
}
