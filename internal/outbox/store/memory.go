package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"scimgate/internal/outbox"
	id "scimgate/pkg/domain"
)

// InMemory is a mutex-guarded outbox store for unit tests and local wiring.
type InMemory struct {
	mu       sync.RWMutex
	messages map[id.MessageID]*outbox.Message

	// failAppend simulates a transactional failure for fault-injection
	// tests.
	failAppend error
}

func NewInMemory() *InMemory {
	return &InMemory{messages: make(map[id.MessageID]*outbox.Message)}
}

// FailAppendWith makes every subsequent Append return err; nil clears it.
func (s *InMemory) FailAppendWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}

func (s *InMemory) Append(_ context.Context, msg *outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return s.failAppend
	}
	copied := *msg
	s.messages[msg.ID] = &copied
	return nil
}

func (s *InMemory) FetchUnprocessed(_ context.Context, batchSize int) ([]*outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*outbox.Message
	for _, msg := range s.messages {
		if !msg.Processed {
			copied := *msg
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > batchSize {
		pending = pending[:batchSize]
	}
	return pending, nil
}

func (s *InMemory) MarkProcessed(_ context.Context, msgID id.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[msgID]
	if !ok || msg.Processed {
		return nil
	}
	now := time.Now()
	msg.Processed = true
	msg.ProcessedAt = &now
	return nil
}

// All returns every stored message; test helper.
func (s *InMemory) All() []*outbox.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*outbox.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		copied := *msg
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
