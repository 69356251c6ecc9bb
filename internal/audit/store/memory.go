package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"scimgate/internal/audit"
	id "scimgate/pkg/domain"
)

// InMemory is a mutex-guarded audit store for unit tests and local wiring.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.EntryID]*audit.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.EntryID]*audit.Entry)}
}

func (s *InMemory) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries[entry.ID] = &copied
	return nil
}

func (s *InMemory) UpdateStatus(_ context.Context, entryID id.EntryID, status audit.Status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil
	}
	entry.Status = status
	entry.ErrorMessage = errorMessage
	return nil
}

func (s *InMemory) PromotePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var promoted int64
	for _, entry := range s.entries {
		if entry.Status == audit.StatusPending && entry.Timestamp.Before(cutoff) {
			entry.Status = audit.StatusSuccess
			promoted++
		}
	}
	return promoted, nil
}

// ListByEntity returns the trail for one entity, newest first.
func (s *InMemory) ListByEntity(_ context.Context, entityID uuid.UUID) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*audit.Entry
	for _, entry := range s.entries {
		if entry.EntityID == entityID {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// All returns every stored entry; test helper.
func (s *InMemory) All() []*audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*audit.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		copied := *entry
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Remove deletes an entry, simulating a rolled-back Pending row; test
// helper.
func (s *InMemory) Remove(entryID id.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryID)
}
