package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var errToolsUnsupported = errors.New("tool binding is not supported by this backend")

// OpenAIChatModel adapts any OpenAI-compatible chat completions API (OpenAI
// itself, Gemini's compatibility endpoint) to eino's ChatModel.
type OpenAIChatModel struct {
	client openai.Client
	model  string
}

var _ model.ChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel creates a client. An empty baseURL targets OpenAI.
func NewOpenAIChatModel(apiKey, baseURL, modelName string) *OpenAIChatModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	return &OpenAIChatModel{
		client: openai.NewClient(opts...),
		model:  modelName,
	}
}

// Generate sends one chat completion request.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: toOpenAIMessages(input),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion with %s: %w", m.model, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return schema.AssistantMessage("", nil), nil
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream returns the full completion as a single-chunk stream.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported.
func (m *OpenAIChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errToolsUnsupported
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			params = append(params, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}
	return params
}
