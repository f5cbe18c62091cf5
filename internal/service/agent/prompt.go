package agent

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// HistoryWindow is how many of the most recent turns reach a backend.
const HistoryWindow = 6

// SystemPrompt frames every conversation.
const SystemPrompt = "You are a wellbeing assistant."

// Window keeps the last size turns of history and drops the rest.
func Window(history []chat.Turn, size int) []chat.Turn {
	if size <= 0 {
		return nil
	}
	if len(history) > size {
		history = history[len(history)-size:]
	}
	return chat.CloneHistory(history)
}

// FormatQuery renders the logs and the user's question into a single prompt.
// Records are rendered as JSON with sorted keys, so equal inputs always give
// the same text.
func FormatQuery(study, sleep, mood []wellbeing.Record, userMessage string) string {
	var b strings.Builder
	b.WriteString("The user's wellbeing data for the last 2 weeks is below.\n\n")
	fmt.Fprintf(&b, "Study sessions (%d): %s\n\n", len(study), renderRecords(study))
	fmt.Fprintf(&b, "Sleep logs (%d): %s\n\n", len(sleep), renderRecords(sleep))
	fmt.Fprintf(&b, "Mood logs (%d): %s\n\n", len(mood), renderRecords(mood))
	fmt.Fprintf(&b, "User question: %s\n\n", userMessage)
	b.WriteString("Answer helpfully and concisely, referring only to the data above when making claims about the user. ")
	b.WriteString("Return the answer in plain text. Limit to about five sentences.")
	return b.String()
}

func renderRecords(records []wellbeing.Record) string {
	if len(records) == 0 {
		return "[]"
	}
	out, err := sonic.ConfigStd.MarshalToString(records)
	if err != nil {
		return fmt.Sprintf("%v", records)
	}
	return out
}

// historyMessages maps stored turns onto eino messages. Backends translate
// schema.Assistant into their own role vocabulary.
func historyMessages(history []chat.Turn) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
