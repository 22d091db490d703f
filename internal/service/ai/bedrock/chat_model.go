// Package bedrock adapts the AWS Bedrock Converse API to the eino chat model
// interface.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Config describes the Bedrock model to call.
type Config struct {
	Region      string
	Model       string
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
}

// ChatModel implements model.ChatModel on top of Converse.
type ChatModel struct {
	client ConverseAPI
	cfg    Config
}

var _ model.ChatModel = (*ChatModel)(nil)

// NewChatModel loads AWS credentials from the default chain and builds a client.
func NewChatModel(ctx context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil || cfg.Model == "" {
		return nil, fmt.Errorf("bedrock model id is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return New(bedrockruntime.NewFromConfig(awsCfg), *cfg), nil
}

// New wraps an existing Converse client.
func New(client ConverseAPI, cfg Config) *ChatModel {
	return &ChatModel{client: client, cfg: cfg}
}

// Generate sends input as one Converse call.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
	}, opts...)

	req := toConverseInput(input, options)
	out, err := m.client.Converse(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	return fromConverseOutput(out)
}

// Stream emits the full reply as a single chunk; Converse is called without streaming.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported.
func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("bedrock chat model does not support tools")
}

const continuePrompt = "Continuez la conversation."

// toConverseInput maps system messages to system blocks and merges adjacent
// messages of the same role, since Converse requires alternating roles that
// start with the user. Leading assistant messages become system context.
func toConverseInput(input []*schema.Message, options *model.Options) *bedrockruntime.ConverseInput {
	req := &bedrockruntime.ConverseInput{}
	if options.Model != nil {
		req.ModelId = options.Model
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}

		switch msg.Role {
		case schema.System:
			req.System = append(req.System, &types.SystemContentBlockMemberText{Value: msg.Content})
			continue
		case schema.Assistant:
			if len(req.Messages) == 0 {
				req.System = append(req.System, &types.SystemContentBlockMemberText{
					Value: "Message déjà envoyé par l'assistant : " + msg.Content,
				})
				continue
			}
		}

		role := types.ConversationRoleUser
		if msg.Role == schema.Assistant {
			role = types.ConversationRoleAssistant
		}

		block := &types.ContentBlockMemberText{Value: msg.Content}
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
			req.Messages[n-1].Content = append(req.Messages[n-1].Content, block)
			continue
		}
		req.Messages = append(req.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{block},
		})
	}

	// Converse 要求至少一条 user 消息，只有问候时补一条续写提示
	if len(req.Messages) == 0 {
		req.Messages = append(req.Messages, types.Message{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: continuePrompt}},
		})
	}

	if options.MaxTokens != nil || options.Temperature != nil || options.TopP != nil {
		ic := &types.InferenceConfiguration{
			Temperature: options.Temperature,
			TopP:        options.TopP,
		}
		if options.MaxTokens != nil {
			v := int32(min(*options.MaxTokens, math.MaxInt32))
			ic.MaxTokens = &v
		}
		req.InferenceConfig = ic
	}

	return req
}

func fromConverseOutput(out *bedrockruntime.ConverseOutput) (*schema.Message, error) {
	if out == nil {
		return nil, fmt.Errorf("bedrock returned no output")
	}

	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected bedrock output type: %T", out.Output)
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			builder.WriteString(text.Value)
		}
	}

	return schema.AssistantMessage(builder.String(), nil), nil
}
