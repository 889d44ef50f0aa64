// Package llm provides the narrow completion surface the engine
// consumes: complete a message sequence, or stream it as incremental
// text fragments. No other part of the system talks to a model provider
// directly.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/oakhealth/medassist/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrNoCompletion indicates the model returned no usable choice.
	ErrNoCompletion = errors.New("no completion returned")

	// ErrMissingAPIKey indicates the client was constructed without
	// credentials.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a model conversation.
type Message struct {
	Role    string
	Content string
}

// Client is the completion contract the rest of the system depends on.
type Client interface {
	// Complete returns the full completion text for the messages.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream returns a lazy, finite, single-pass sequence of text
	// fragments. The caller must Close the stream, including on early
	// abandonment.
	Stream(ctx context.Context, messages []Message) (Stream, error)
}

// completionTemperature keeps answers focused and reproducible enough
// for grounded question answering.
const completionTemperature = 0.3

// defaultTimeout bounds model calls when no timeout is configured.
const defaultTimeout = 30 * time.Second

// OpenAIClient implements Client against the OpenAI chat API or any
// compatible server.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIClient creates a completion client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey.Value())
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	// ResponseHeaderTimeout bounds the wait for the first byte, so a hung
	// server cannot stall a streaming request that has no overall deadline.
	clientCfg.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
		},
	}

	model := cfg.ChatModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Complete returns the full completion text. The call is bounded by the
// configured timeout regardless of the caller's context.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: completionTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion. There is no overall deadline,
// which would cut long answers mid-stream; the transport's first-byte
// timeout bounds how long a hung server can block the request.
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: completionTemperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	return &openaiStream{inner: stream}, nil
}
