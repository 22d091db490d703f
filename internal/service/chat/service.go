package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/listing-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/listing-assistant/backend/internal/model/profile"
)

// Provider generates the next assistant reply for a transcript.
type Provider interface {
	Generate(ctx context.Context, transcript chat.Transcript) (string, error)
}

// Unavailable stands in for a provider that could not be built. Every
// generation fails with Err.
type Unavailable struct {
	Err error
}

// Generate always fails.
func (u Unavailable) Generate(context.Context, chat.Transcript) (string, error) {
	if u.Err == nil {
		return "", ErrProviderUnavailable
	}
	return "", u.Err
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text string
	// NewSession is set when the reply is the greeting of a freshly created session.
	NewSession bool
}

// Service routes chat requests to per-user transcripts and the provider.
type Service struct {
	store    Store
	provider Provider
	profile  profile.Profile

	// locks serializes turns of the same user; values are *sync.Mutex.
	locks sync.Map
}

// NewService wires the router. provider may be nil, in which case every
// provider-backed turn fails with ErrProviderUnavailable.
func NewService(store Store, provider Provider, p profile.Profile) *Service {
	return &Service{
		store:    store,
		provider: provider,
		profile:  p,
	}
}

// ErrProviderUnavailable is wrapped in a ProviderError when no provider is configured.
var ErrProviderUnavailable = errors.New("language model provider is not configured")

// HandleChat processes one inbound message for userID.
func (s *Service) HandleChat(ctx context.Context, userID, message string) (Reply, error) {
	if userID == "" {
		return Reply{}, ErrUserIDRequired
	}

	unlock := s.lockUser(userID)
	defer unlock()

	transcript, ok := s.store.Transcript(ctx, userID)
	if !ok {
		return s.openSession(ctx, userID)
	}

	if content := strings.TrimSpace(message); content != "" {
		turn := chat.NewTurn(chat.RoleUser, content)
		if err := s.store.Append(ctx, userID, turn); err != nil {
			return Reply{}, fmt.Errorf("append user turn: %w", err)
		}
		transcript = append(transcript, turn)
	}

	if s.provider == nil {
		return Reply{}, &ProviderError{Cause: ErrProviderUnavailable}
	}

	text, err := s.provider.Generate(ctx, transcript)
	if err != nil {
		log.Printf("[chat] provider failed for user=%s turns=%d: %v", userID, len(transcript), err)
		return Reply{}, &ProviderError{Cause: err}
	}

	if err := s.store.Append(ctx, userID, chat.NewTurn(chat.RoleAssistant, text)); err != nil {
		return Reply{}, fmt.Errorf("append assistant turn: %w", err)
	}

	log.Printf("[chat] replied to user=%s turns=%d length=%d", userID, len(transcript)+1, len(text))
	return Reply{Text: text}, nil
}

// Transcript returns the stored transcript for userID.
func (s *Service) Transcript(ctx context.Context, userID string) (chat.Transcript, error) {
	transcript, ok := s.store.Transcript(ctx, userID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return transcript, nil
}

// Sessions reports the number of known users.
func (s *Service) Sessions() int {
	return s.store.Len()
}

func (s *Service) openSession(ctx context.Context, userID string) (Reply, error) {
	err := s.store.Create(ctx, userID,
		chat.NewTurn(chat.RoleSystem, s.profile.SystemPrompt),
		chat.NewTurn(chat.RoleAssistant, s.profile.Greeting),
	)
	if err != nil {
		return Reply{}, fmt.Errorf("create session: %w", err)
	}

	log.Printf("[chat] opened session for user=%s", userID)
	return Reply{Text: s.profile.Greeting, NewSession: true}, nil
}

func (s *Service) lockUser(userID string) func() {
	value, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
