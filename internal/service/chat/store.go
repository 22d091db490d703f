package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/zhouzirui/listing-assistant/backend/internal/model/chat"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Store keeps one transcript per user.
type Store interface {
	Transcript(ctx context.Context, userID string) (chat.Transcript, bool)
	Create(ctx context.Context, userID string, turns ...chat.Turn) error
	Append(ctx context.Context, userID string, turn chat.Turn) error
	Len() int
}

// MemoryStore is a process-local Store. Entries are never evicted.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]chat.Transcript
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcripts: make(map[string]chat.Transcript),
	}
}

// Transcript returns a copy of the user's transcript.
func (s *MemoryStore) Transcript(_ context.Context, userID string) (chat.Transcript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, ok := s.transcripts[userID]
	if !ok {
		return nil, false
	}
	return transcript.Clone(), true
}

// Create registers a new transcript seeded with turns.
func (s *MemoryStore) Create(_ context.Context, userID string, turns ...chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transcripts[userID]; exists {
		return ErrSessionExists
	}

	transcript := make(chat.Transcript, 0, len(turns)+16)
	s.transcripts[userID] = append(transcript, turns...)
	return nil
}

// Append adds a turn at the end of the user's transcript.
func (s *MemoryStore) Append(_ context.Context, userID string, turn chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, ok := s.transcripts[userID]
	if !ok {
		return ErrSessionNotFound
	}
	s.transcripts[userID] = append(transcript, turn)
	return nil
}

// Len reports how many sessions are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}
