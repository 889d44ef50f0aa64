// Package expand rewrites a free-form user question into a handful of
// focused literature search phrases using one model completion.
package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/oakhealth/medassist/internal/llm"
	"go.uber.org/zap"
)

// maxQueries caps the number of search phrases returned.
const maxQueries = 5

const expandPrompt = "You are a biomedical research assistant. A user asks a health-related question, " +
	"but we want to search a biomedical literature index using more focused search queries. " +
	"Generate 3 distinct and precise search terms that could return relevant articles.\n\n" +
	"User question: %s\n\nSearch queries:"

// Expander generates focused search phrases from a question.
type Expander struct {
	client llm.Client
	logger *zap.Logger
}

// New creates an Expander.
func New(client llm.Client, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{client: client, logger: logger}
}

// Expand returns up to 5 focused search phrases for the question.
//
// The model output is parsed line by line; a malformed response is not
// retried, so the result may be shorter than requested or empty, and
// callers must tolerate that.
func (e *Expander) Expand(ctx context.Context, question string) ([]string, error) {
	content, err := e.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf(expandPrompt, question)},
	})
	if err != nil {
		return nil, fmt.Errorf("expanding question: %w", err)
	}

	queries := parseQueries(content)
	e.logger.Debug("expanded question", zap.Int("queries", len(queries)))
	return queries, nil
}

// parseQueries splits model output into clean search phrases, stripping
// list markers (numerals, bullets, dashes) and quote/markdown
// punctuation, and discarding empty lines.
func parseQueries(text string) []string {
	var queries []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*0123456789.) ")
		line = strings.ReplaceAll(line, `"`, "")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.Trim(line, "`'")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}
