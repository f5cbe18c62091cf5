package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// AnthropicChatModel adapts the Anthropic messages API to eino's ChatModel.
type AnthropicChatModel struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ model.ChatModel = (*AnthropicChatModel)(nil)

// NewAnthropicChatModel creates a client for modelName.
func NewAnthropicChatModel(apiKey, modelName string, maxTokens int) *AnthropicChatModel {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicChatModel{
		client:    anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:     modelName,
		maxTokens: int64(maxTokens),
	}
}

// Generate sends one messages request. System messages move into the
// request's system field, the rest keep their user/assistant roles.
func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var system []string
	msgs := make([]anthropic.MessageParam, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		Messages:  msgs,
		MaxTokens: m.maxTokens,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("messages request with %s: %w", m.model, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return schema.AssistantMessage(text.String(), nil), nil
}

// Stream returns the full reply as a single-chunk stream.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported.
func (m *AnthropicChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errToolsUnsupported
}
