package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/listing-assistant/backend/internal/model/chat"
)

// ErrEmptyReply is returned when the model answers without any text.
var ErrEmptyReply = errors.New("provider returned empty reply")

// Options tunes the service.
type Options struct {
	// Provider names the backing model vendor, for logs and health checks.
	Provider string
	// Timeout bounds a single generation. Zero means no bound.
	Timeout time.Duration
}

// Service turns a transcript into the next assistant reply.
type Service struct {
	chatModel model.ChatModel
	opts      Options
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the generation chain around chatModel.
func NewService(ctx context.Context, chatModel model.ChatModel, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	// The transcript already starts with the system turn, so the template only
	// forwards it.
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("transcript", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(&markedModel{ChatModel: chatModel})

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		opts:      opts,
		chain:     runnable,
	}, nil
}

// Provider returns the configured vendor name.
func (s *Service) Provider() string {
	return s.opts.Provider
}

// Generate requests a single completion for transcript.
func (s *Service) Generate(ctx context.Context, transcript chat.Transcript) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	response, err := s.chain.Invoke(ctx, map[string]any{
		"transcript": ToSchemaMessages(transcript),
	})
	if err != nil {
		log.Printf("[ai] provider=%s turns=%d failed: %v", s.label(), len(transcript), err)
		return "", modelCause(err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyReply
	}

	log.Printf("[ai] provider=%s turns=%d length=%d elapsed=%s", s.label(), len(transcript), len(response.Content), time.Since(started).Round(time.Millisecond))
	return response.Content, nil
}

// modelError marks errors raised by the chat model itself, so they can be told
// apart from the chain's node wrapping.
type modelError struct {
	err error
}

func (e *modelError) Error() string { return e.err.Error() }

func (e *modelError) Unwrap() error { return e.err }

// modelCause returns the chat model's own error when err carries one.
func modelCause(err error) error {
	var me *modelError
	if errors.As(err, &me) {
		return me.err
	}
	return err
}

// markedModel tags every error returned by the wrapped model.
type markedModel struct {
	model.ChatModel
}

func (m *markedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	msg, err := m.ChatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, &modelError{err: err}
	}
	return msg, nil
}

func (m *markedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	stream, err := m.ChatModel.Stream(ctx, input, opts...)
	if err != nil {
		return nil, &modelError{err: err}
	}
	return stream, nil
}

func (s *Service) label() string {
	if s.opts.Provider == "" {
		return "llm"
	}
	return s.opts.Provider
}

// ToSchemaMessages converts transcript turns into model messages, in order.
func ToSchemaMessages(transcript chat.Transcript) []*schema.Message {
	messages := make([]*schema.Message, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	return messages
}
