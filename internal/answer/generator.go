// Package answer generates grounded answers and clinical summaries.
//
// The generator builds a fixed message shape: a system instruction, a
// trailing window of prior conversation turns, then a final user turn
// embedding the retrieved context and the question. The model is told
// to answer only from the provided material.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/oakhealth/medassist/internal/llm"
	"go.uber.org/zap"
)

// historyWindow is the number of trailing turns included verbatim
// (3 user/assistant pairs).
const historyWindow = 6

const systemPrompt = "You are a helpful medical assistant. Use the biomedical context and chat history " +
	"to answer the user's health question with clarity and transparency."

const summarizeSystemPrompt = "You are a medical assistant summarizing a patient's health record. " +
	"Produce a brief clinical summary suitable for finding related biomedical research."

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior conversation turn. The caller owns the transcript;
// the generator only reads the trailing window.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Generator produces grounded answers and record summaries.
type Generator struct {
	client llm.Client
	logger *zap.Logger
}

// New creates a Generator.
func New(client llm.Client, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, logger: logger}
}

// buildMessages assembles the completion input for a question.
func buildMessages(question, context string, history []Turn) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf(
			"Context:\n%s\n\nQuestion: %s\n\nAnswer concisely using the provided context and prior conversation.",
			context, question,
		),
	})
	return messages
}

// Answer returns the complete answer text for a question given
// retrieved context and prior conversation.
func (g *Generator) Answer(ctx context.Context, question, context_ string, history []Turn) (string, error) {
	text, err := g.client.Complete(ctx, buildMessages(question, context_, history))
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// AnswerStream returns the answer as a lazy fragment stream. The caller
// must Close the stream, including on early abandonment.
func (g *Generator) AnswerStream(ctx context.Context, question, context_ string, history []Turn) (llm.Stream, error) {
	stream, err := g.client.Stream(ctx, buildMessages(question, context_, history))
	if err != nil {
		return nil, fmt.Errorf("starting answer stream: %w", err)
	}
	return stream, nil
}

// Summarize condenses an anonymized health record into a one-paragraph
// clinical summary. Used only by ingestion.
func (g *Generator) Summarize(ctx context.Context, record string) (string, error) {
	text, err := g.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summarizeSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Patient Record:\n%s\n\nSummarize their key conditions, lab findings, and relevant clinical info in 1 paragraph.",
			record,
		)},
	})
	if err != nil {
		return "", fmt.Errorf("summarizing record: %w", err)
	}

	summary := strings.TrimSpace(text)
	g.logger.Debug("summarized health record", zap.Int("summary_len", len(summary)))
	return summary, nil
}
