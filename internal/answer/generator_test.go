package answer

import (
	"context"
	"fmt"
	"testing"

	"github.com/oakhealth/medassist/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures the messages it was called with.
type recordingClient struct {
	messages []llm.Message
	reply    string
}

func (r *recordingClient) Complete(_ context.Context, messages []llm.Message) (string, error) {
	r.messages = messages
	return r.reply, nil
}

func (r *recordingClient) Stream(_ context.Context, messages []llm.Message) (llm.Stream, error) {
	r.messages = messages
	return llm.NewTextStream(r.reply), nil
}

func TestAnswer_MessageShape(t *testing.T) {
	client := &recordingClient{reply: "  Dexamethasone requires caution in the elderly.  "}
	g := New(client, nil)

	history := []Turn{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleAssistant, Content: "earlier answer"},
	}

	got, err := g.Answer(context.Background(), "Is it safe?", "retrieved context here", history)
	require.NoError(t, err)
	assert.Equal(t, "Dexamethasone requires caution in the elderly.", got)

	require.Len(t, client.messages, 4)
	assert.Equal(t, llm.RoleSystem, client.messages[0].Role)
	assert.Equal(t, "earlier question", client.messages[1].Content)
	assert.Equal(t, "earlier answer", client.messages[2].Content)

	final := client.messages[3]
	assert.Equal(t, llm.RoleUser, final.Role)
	assert.Contains(t, final.Content, "retrieved context here")
	assert.Contains(t, final.Content, "Is it safe?")
	assert.Contains(t, final.Content, "Answer concisely")
}

func TestAnswer_HistoryWindowKeepsLastSixTurns(t *testing.T) {
	client := &recordingClient{reply: "ok"}
	g := New(client, nil)

	var history []Turn
	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)})
	}

	_, err := g.Answer(context.Background(), "q", "ctx", history)
	require.NoError(t, err)

	// system + 6 history turns + final user turn
	require.Len(t, client.messages, 8)
	assert.Equal(t, "turn-4", client.messages[1].Content)
	assert.Equal(t, "turn-9", client.messages[6].Content)
}

func TestAnswer_NoHistory(t *testing.T) {
	client := &recordingClient{reply: "ok"}
	g := New(client, nil)

	_, err := g.Answer(context.Background(), "q", "ctx", nil)
	require.NoError(t, err)
	require.Len(t, client.messages, 2)
}

func TestAnswerStream_SameMessagesAsComplete(t *testing.T) {
	client := &recordingClient{reply: "streamed answer"}
	g := New(client, nil)

	stream, err := g.AnswerStream(context.Background(), "q", "ctx", nil)
	require.NoError(t, err)

	text, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", text)
	require.Len(t, client.messages, 2)
	assert.Contains(t, client.messages[1].Content, "ctx")
}

func TestSummarize(t *testing.T) {
	client := &recordingClient{reply: "Key conditions: hypertension."}
	g := New(client, nil)

	got, err := g.Summarize(context.Background(), "anonymized record text")
	require.NoError(t, err)
	assert.Equal(t, "Key conditions: hypertension.", got)

	require.Len(t, client.messages, 2)
	assert.Equal(t, llm.RoleSystem, client.messages[0].Role)
	assert.Contains(t, client.messages[0].Content, "summarizing a patient's health record")
	assert.Contains(t, client.messages[1].Content, "anonymized record text")
	assert.Contains(t, client.messages[1].Content, "1 paragraph")
}
