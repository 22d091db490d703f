package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	model "github.com/zhouzirui/listing-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/listing-assistant/backend/internal/model/profile"
	chat "github.com/zhouzirui/listing-assistant/backend/internal/service/chat"
)

type fakeProvider struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	inputs []model.Transcript
}

func (f *fakeProvider) Generate(_ context.Context, transcript model.Transcript) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, transcript.Clone())
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newService(provider chat.Provider) (*chat.Service, *chat.MemoryStore) {
	store := chat.NewMemoryStore()
	return chat.NewService(store, provider, profile.Default()), store
}

func TestHandleChatRequiresUserID(t *testing.T) {
	provider := &fakeProvider{reply: "unused"}
	svc, store := newService(provider)

	_, err := svc.HandleChat(context.Background(), "", "Bonjour")
	if !errors.Is(err, chat.ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if err.Error() != "user_id est requis" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !chat.IsValidation(err) {
		t.Fatal("expected validation error")
	}
	if store.Len() != 0 {
		t.Fatalf("store mutated: %d sessions", store.Len())
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times", provider.calls)
	}
}

func TestHandleChatFirstContactGreets(t *testing.T) {
	provider := &fakeProvider{reply: "unused"}
	svc, _ := newService(provider)
	ctx := context.Background()

	reply, err := svc.HandleChat(ctx, "42", "Je vends un vélo")
	if err != nil {
		t.Fatalf("HandleChat err: %v", err)
	}
	if reply.Text != profile.Default().Greeting {
		t.Fatalf("unexpected reply: %s", reply.Text)
	}
	if !reply.NewSession {
		t.Fatal("expected new session flag")
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called on first contact, got %d calls", provider.calls)
	}

	transcript, err := svc.Transcript(ctx, "42")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(transcript))
	}
	if transcript[0].Role != model.RoleSystem || transcript[0].Content != profile.Default().SystemPrompt {
		t.Fatalf("unexpected first turn: %+v", transcript[0])
	}
	if transcript[1].Role != model.RoleAssistant || transcript[1].Content != profile.Default().Greeting {
		t.Fatalf("unexpected second turn: %+v", transcript[1])
	}
}

func TestHandleChatSecondRequestCallsProvider(t *testing.T) {
	provider := &fakeProvider{reply: "Quel est l'état du vélo ?"}
	svc, _ := newService(provider)
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "42", ""); err != nil {
		t.Fatalf("first HandleChat err: %v", err)
	}

	reply, err := svc.HandleChat(ctx, "42", "  Un vélo de course  ")
	if err != nil {
		t.Fatalf("second HandleChat err: %v", err)
	}
	if reply.Text != "Quel est l'état du vélo ?" || reply.NewSession {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}
	sent := provider.inputs[0]
	if len(sent) != 3 {
		t.Fatalf("expected 3 turns sent, got %d", len(sent))
	}
	if sent[2].Role != model.RoleUser || sent[2].Content != "Un vélo de course" {
		t.Fatalf("unexpected user turn: %+v", sent[2])
	}

	transcript, _ := svc.Transcript(ctx, "42")
	if len(transcript) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(transcript))
	}
	last, _ := transcript.Last()
	if last.Role != model.RoleAssistant || last.Content != reply.Text {
		t.Fatalf("unexpected last turn: %+v", last)
	}
}

func TestHandleChatReplayedFirstContactIsNotIdempotent(t *testing.T) {
	provider := &fakeProvider{reply: "Pouvez-vous préciser ?"}
	svc, _ := newService(provider)
	ctx := context.Background()

	first, err := svc.HandleChat(ctx, "7", "Bonjour")
	if err != nil {
		t.Fatalf("first HandleChat err: %v", err)
	}
	second, err := svc.HandleChat(ctx, "7", "Bonjour")
	if err != nil {
		t.Fatalf("second HandleChat err: %v", err)
	}

	if !first.NewSession || first.Text != profile.Default().Greeting {
		t.Fatalf("first call should greet: %+v", first)
	}
	if second.NewSession || second.Text != "Pouvez-vous préciser ?" {
		t.Fatalf("second call should reach the provider: %+v", second)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestHandleChatWhitespaceMessageSendsUnchangedTranscript(t *testing.T) {
	provider := &fakeProvider{reply: "Je vous écoute."}
	svc, _ := newService(provider)
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "9", ""); err != nil {
		t.Fatalf("first HandleChat err: %v", err)
	}
	if _, err := svc.HandleChat(ctx, "9", " \t\n "); err != nil {
		t.Fatalf("second HandleChat err: %v", err)
	}

	sent := provider.inputs[0]
	if len(sent) != 2 {
		t.Fatalf("expected unchanged 2-turn transcript, got %d", len(sent))
	}
	for _, turn := range sent {
		if turn.Role == model.RoleUser {
			t.Fatalf("unexpected user turn: %+v", turn)
		}
	}
}

func TestHandleChatProviderFailureKeepsTranscript(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	svc, _ := newService(provider)
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "5", ""); err != nil {
		t.Fatalf("first HandleChat err: %v", err)
	}

	_, err := svc.HandleChat(ctx, "5", "Une table")
	var providerErr *chat.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if err.Error() != "connection refused" {
		t.Fatalf("unexpected error text: %s", err.Error())
	}

	transcript, _ := svc.Transcript(ctx, "5")
	if len(transcript) != 3 {
		t.Fatalf("expected system, greeting and user turns, got %d", len(transcript))
	}
	last, _ := transcript.Last()
	if last.Role != model.RoleUser {
		t.Fatalf("no assistant turn expected after failure, got %+v", last)
	}

	provider.err = nil
	provider.reply = "Merci, et son état ?"
	if _, err := svc.HandleChat(ctx, "5", ""); err != nil {
		t.Fatalf("retry HandleChat err: %v", err)
	}
	transcript, _ = svc.Transcript(ctx, "5")
	if len(transcript) != 4 {
		t.Fatalf("expected 4 turns after retry, got %d", len(transcript))
	}
}

func TestHandleChatWithoutProvider(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "1", ""); err != nil {
		t.Fatalf("greeting should not need a provider: %v", err)
	}
	_, err := svc.HandleChat(ctx, "1", "Un canapé")
	if !errors.Is(err, chat.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHandleChatSerializesSameUser(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	svc, _ := newService(provider)
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "u", ""); err != nil {
		t.Fatalf("first HandleChat err: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.HandleChat(ctx, "u", "message"); err != nil {
				t.Errorf("HandleChat err: %v", err)
			}
		}()
	}
	wg.Wait()

	transcript, _ := svc.Transcript(ctx, "u")
	if len(transcript) != 2+2*workers {
		t.Fatalf("expected %d turns, got %d", 2+2*workers, len(transcript))
	}
	for i := 2; i < len(transcript); i += 2 {
		if transcript[i].Role != model.RoleUser || transcript[i+1].Role != model.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %s then %s", i, transcript[i].Role, transcript[i+1].Role)
		}
	}
}

func TestServiceTranscriptNotFound(t *testing.T) {
	svc, _ := newService(nil)
	if _, err := svc.Transcript(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHandleChatUnavailableProviderReportsCause(t *testing.T) {
	cause := errors.New("openai: provider credential missing")
	svc, _ := newService(chat.Unavailable{Err: cause})
	ctx := context.Background()

	if _, err := svc.HandleChat(ctx, "2", ""); err != nil {
		t.Fatalf("greeting should not need a provider: %v", err)
	}
	_, err := svc.HandleChat(ctx, "2", "Une lampe")
	if !errors.Is(err, cause) {
		t.Fatalf("expected startup cause, got %v", err)
	}
	if err.Error() != cause.Error() {
		t.Fatalf("unexpected error text: %s", err.Error())
	}

	if _, err := (chat.Unavailable{}).Generate(ctx, nil); !errors.Is(err, chat.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable without cause, got %v", err)
	}
}
