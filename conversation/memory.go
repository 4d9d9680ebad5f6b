package conversation

import (
	"context"
	"sync"

	liveagent "github.com/ternlabs/liveagent"
)

// MemoryStore keeps conversations in process memory. Suitable for
// development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*liveagent.Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*liveagent.Conversation),
	}
}

// Get returns the conversation with the given id, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*liveagent.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return conv, nil
}

// Save stores or replaces the conversation.
func (s *MemoryStore) Save(ctx context.Context, conv *liveagent.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = conv
	return nil
}

// Delete removes the conversation.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, id)
	return nil
}
