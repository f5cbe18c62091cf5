package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// Replier turns session context and a new user message into reply text.
// Implementations never fail: backend problems become fixed fallback text.
type Replier interface {
	Reply(ctx context.Context, study, sleep, mood []wellbeing.Record, history []chat.Turn, userMessage string) string
}

// Adapter runs one backend behind a prompt template chain.
type Adapter struct {
	name  string
	label string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewAdapter compiles the prompt chain for chatModel. label is the
// human-readable backend name used in fallback replies.
func NewAdapter(ctx context.Context, name, label string, chatModel model.ChatModel) (*Adapter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model for %s is nil", name)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s chat chain: %w", name, err)
	}

	return &Adapter{name: name, label: label, chain: runnable}, nil
}

// Name returns the provider name the adapter is registered under.
func (a *Adapter) Name() string {
	return a.name
}

// EmptyReply is returned when the backend answers with nothing.
func (a *Adapter) EmptyReply() string {
	return a.label + " returned no response."
}

// FailureReply is returned when the backend call fails.
func (a *Adapter) FailureReply() string {
	return a.label + " agent failed due to an internal error."
}

// Reply implements Replier.
func (a *Adapter) Reply(ctx context.Context, study, sleep, mood []wellbeing.Record, history []chat.Turn, userMessage string) string {
	input := map[string]any{
		"system":  SystemPrompt,
		"history": historyMessages(Window(history, HistoryWindow)),
		"query":   FormatQuery(study, sleep, mood, userMessage),
	}

	response, err := a.chain.Invoke(ctx, input)
	if err != nil {
		log.Printf("[agent] %s backend call failed: %v", a.name, err)
		return a.FailureReply()
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		log.Printf("[agent] %s backend returned an empty reply", a.name)
		return a.EmptyReply()
	}

	log.Printf("[agent] %s generated reply length=%d", a.name, len(response.Content))
	return strings.TrimSpace(response.Content)
}
