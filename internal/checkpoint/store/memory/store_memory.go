package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trinsiklabs/recall/internal/checkpoint"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/sentinel"
)

// InMemoryStore keeps checkpoints in process memory. Unit-test substitute for
// the Postgres store with the same deactivate-once semantics.
type InMemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[domain.CheckpointID]*checkpoint.Checkpoint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{checkpoints: make(map[domain.CheckpointID]*checkpoint.Checkpoint)}
}

func (s *InMemoryStore) Create(_ context.Context, cp *checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checkpoints[cp.ID]; exists {
		return sentinel.ErrConflict
	}
	s.checkpoints[cp.ID] = copyCheckpoint(cp)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.CheckpointID) (*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCheckpoint(cp), nil
}

func (s *InMemoryStore) Deactivate(_ context.Context, id domain.CheckpointID, at time.Time) (*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if cp.Active {
		cp.Active = false
		deactivatedAt := at
		cp.DeactivatedAt = &deactivatedAt
		cp.UpdatedAt = at
	}
	return copyCheckpoint(cp), nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID domain.UserID) ([]*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*checkpoint.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.UserID == userID {
			out = append(out, copyCheckpoint(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListActiveRollbacks(_ context.Context, userID domain.UserID) ([]*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*checkpoint.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.UserID == userID && cp.Active && cp.Type == checkpoint.TypeRollback {
			out = append(out, copyCheckpoint(cp))
		}
	}
	return out, nil
}

func copyCheckpoint(cp *checkpoint.Checkpoint) *checkpoint.Checkpoint {
	dup := *cp
	if cp.DeactivatedAt != nil {
		at := *cp.DeactivatedAt
		dup.DeactivatedAt = &at
	}
	return &dup
}
