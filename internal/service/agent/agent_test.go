package agent_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
	"github.com/eunoia/backend/internal/service/agent"
)

type recordingModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *recordingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *recordingModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func (m *recordingModel) lastInput(t *testing.T) []*schema.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.inputs, "model was never called")
	return m.inputs[len(m.inputs)-1]
}

func alternating(n int) []chat.Turn {
	history := make([]chat.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			history = append(history, chat.UserTurn("u"+string(rune('a'+i))))
		} else {
			history = append(history, chat.AssistantTurn("a"+string(rune('a'+i))))
		}
	}
	return history
}

func TestAdapterSendsWindowedHistory(t *testing.T) {
	fake := &recordingModel{reply: "  You slept well.  "}
	adapter, err := agent.NewAdapter(context.Background(), "openai", "OpenAI", fake)
	require.NoError(t, err)

	history := alternating(10)
	reply := adapter.Reply(context.Background(), nil, nil, nil, history, "How was my sleep?")
	assert.Equal(t, "You slept well.", reply)

	input := fake.lastInput(t)
	// system + 6 history turns + query
	require.Len(t, input, 8)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, agent.SystemPrompt, input[0].Content)

	for i, turn := range history[4:] {
		msg := input[i+1]
		assert.Equal(t, turn.Content, msg.Content)
		if turn.Role == chat.RoleUser {
			assert.Equal(t, schema.User, msg.Role)
		} else {
			assert.Equal(t, schema.Assistant, msg.Role)
		}
	}

	last := input[len(input)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Contains(t, last.Content, "User question: How was my sleep?")
}

func TestAdapterShortHistoryIsSentWhole(t *testing.T) {
	fake := &recordingModel{reply: "ok"}
	adapter, err := agent.NewAdapter(context.Background(), "gemini", "Gemini", fake)
	require.NoError(t, err)

	adapter.Reply(context.Background(), nil, nil, nil, alternating(2), "hi")
	assert.Len(t, fake.lastInput(t), 4)
}

func TestAdapterFallbacks(t *testing.T) {
	ctx := context.Background()

	empty := &recordingModel{reply: "   "}
	adapter, err := agent.NewAdapter(ctx, "gemini", "Gemini", empty)
	require.NoError(t, err)
	assert.Equal(t, "Gemini returned no response.", adapter.Reply(ctx, nil, nil, nil, nil, "hi"))

	failing := &recordingModel{err: errors.New("quota exceeded")}
	adapter, err = agent.NewAdapter(ctx, "gemini", "Gemini", failing)
	require.NoError(t, err)
	assert.Equal(t, "Gemini agent failed due to an internal error.", adapter.Reply(ctx, nil, nil, nil, nil, "hi"))
}

func TestNewAdapterRejectsNilModel(t *testing.T) {
	_, err := agent.NewAdapter(context.Background(), "openai", "OpenAI", nil)
	assert.Error(t, err)
}

func TestFormatQueryRendersCountsAndRecords(t *testing.T) {
	study := []wellbeing.Record{{"productivity": 4, "note": "focused"}}
	mood := []wellbeing.Record{{"score": 7}, {"score": 3}}

	query := agent.FormatQuery(study, nil, mood, "Am I ok?")

	assert.Contains(t, query, `Study sessions (1): [{"note":"focused","productivity":4}]`)
	assert.Contains(t, query, "Sleep logs (0): []")
	assert.Contains(t, query, `Mood logs (2): [{"score":7},{"score":3}]`)
	assert.Contains(t, query, "User question: Am I ok?")
	assert.Contains(t, query, "five sentences")
	assert.Equal(t, query, agent.FormatQuery(study, nil, mood, "Am I ok?"))
}

func TestWindow(t *testing.T) {
	history := alternating(8)

	got := agent.Window(history, 6)
	require.Len(t, got, 6)
	assert.Equal(t, history[2:], got)

	got[0].Content = "changed"
	assert.NotEqual(t, "changed", history[2].Content)

	assert.Len(t, agent.Window(history[:3], 6), 3)
	assert.Empty(t, agent.Window(history, 0))
}

type snapshotRecorder struct {
	study, sleep, mood []wellbeing.Record
	history            []chat.Turn
	message            string
}

func (r *snapshotRecorder) Reply(_ context.Context, study, sleep, mood []wellbeing.Record, history []chat.Turn, msg string) string {
	r.study, r.sleep, r.mood, r.history, r.message = study, sleep, mood, history, msg
	return "recorded"
}

func TestRouterDispatch(t *testing.T) {
	rec := &snapshotRecorder{}
	router := agent.NewRouter()
	router.Register(agent.ProviderOpenAI, rec)

	snapshot := wellbeing.Snapshot{
		Study: []wellbeing.Record{{"id": 1}},
		Sleep: []wellbeing.Record{{"id": 2}, {"id": 3}},
		Mood:  []wellbeing.Record{},
	}
	history := alternating(2)

	reply, err := router.Dispatch(context.Background(), agent.ProviderOpenAI, snapshot, history, "hello")
	require.NoError(t, err)
	assert.Equal(t, "recorded", reply)
	assert.Equal(t, snapshot.Study, rec.study)
	assert.Equal(t, snapshot.Sleep, rec.sleep)
	assert.Equal(t, snapshot.Mood, rec.mood)
	assert.Equal(t, history, rec.history)
	assert.Equal(t, "hello", rec.message)
}

func TestRouterInvalidProvider(t *testing.T) {
	router := agent.NewRouter()
	router.Register(agent.ProviderOpenAI, &snapshotRecorder{})

	_, err := router.Dispatch(context.Background(), "mistral", wellbeing.Snapshot{}, nil, "hello")
	require.ErrorIs(t, err, agent.ErrInvalidProvider)
	assert.True(t, strings.Contains(err.Error(), "mistral"))

	assert.True(t, router.Has(agent.ProviderOpenAI))
	assert.False(t, router.Has("mistral"))
}

func TestNewRouterFromBackends(t *testing.T) {
	backends := map[string]model.ChatModel{
		agent.ProviderGemini: &recordingModel{err: errors.New("boom")},
		agent.ProviderOpenAI: &recordingModel{reply: "hi"},
	}

	router, err := agent.NewRouterFromBackends(context.Background(), backends)
	require.NoError(t, err)
	assert.Equal(t, []string{agent.ProviderGemini, agent.ProviderOpenAI}, router.Names())

	reply, err := router.Dispatch(context.Background(), agent.ProviderGemini, wellbeing.Snapshot{}, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, "Gemini agent failed due to an internal error.", reply)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Claude", agent.Label(agent.ProviderAnthropic))
	assert.Equal(t, "custom", agent.Label("custom"))
}
