// Package engine orchestrates the question-answering pipeline: moderation
// gate, similarity-memory lookup, literature fallback, and answer generation,
// plus the batch document ingestion flow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/oakhealth/medassist/internal/answer"
	"github.com/oakhealth/medassist/internal/docsource"
	"github.com/oakhealth/medassist/internal/europepmc"
	"github.com/oakhealth/medassist/internal/llm"
	"github.com/oakhealth/medassist/internal/memory"
	"github.com/oakhealth/medassist/internal/metrics"
	"github.com/oakhealth/medassist/internal/moderation"
)

// Outcome is the terminal state of a handled question.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeNoResult Outcome = "no_result"
)

// NoLiteratureMessage is returned when neither memory nor the literature
// fallback produced any usable context.
const NoLiteratureMessage = "I couldn't find relevant medical literature to answer your question. " +
	"Please consult a healthcare professional for advice specific to your situation."

// defaultMaxContextTexts caps how many literature section texts are folded
// into the generation context.
const defaultMaxContextTexts = 3

// Gate decides whether a question may proceed.
type Gate interface {
	Decide(ctx context.Context, text string) (moderation.Verdict, error)
}

// Memory is the similarity store the pipeline reads and enriches.
type Memory interface {
	Add(ctx context.Context, text string, metadata map[string]string) error
	Search(ctx context.Context, query string, topK int, threshold float32) ([]memory.Match, error)
}

// Literature finds open-access article ids and fetches their sections.
// Both calls are best-effort: failures surface as empty results.
type Literature interface {
	SearchArticles(ctx context.Context, query string, maxResults int) []string
	FetchArticleSections(ctx context.Context, id string) europepmc.Sections
}

// QueryExpander turns a question or summary into focused search phrases.
type QueryExpander interface {
	Expand(ctx context.Context, question string) ([]string, error)
}

// Generator produces answers and clinical summaries.
type Generator interface {
	Answer(ctx context.Context, question, context string, history []answer.Turn) (string, error)
	AnswerStream(ctx context.Context, question, context string, history []answer.Turn) (llm.Stream, error)
	Summarize(ctx context.Context, record string) (string, error)
}

// Sanitizer strips personal identifiers from document text before it is
// summarized or stored.
type Sanitizer interface {
	Anonymize(text string) string
}

// Reply is the terminal result of a handled question. Exactly one of Text
// or Stream carries the response body; Stream is set only when streaming
// was requested.
type Reply struct {
	Outcome  Outcome
	Category moderation.Category
	Text     string
	Stream   llm.Stream
}

// Config wires the engine's collaborators.
type Config struct {
	Gate       Gate
	Memory     Memory
	Literature Literature
	Expander   QueryExpander
	Generator  Generator
	Sanitizer  Sanitizer
	Source     docsource.Source
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	// MaxContextTexts caps literature context size; <= 0 uses the default.
	MaxContextTexts int
}

// Engine runs questions and ingestion through the pipeline.
type Engine struct {
	gate       Gate
	memory     Memory
	literature Literature
	expander   QueryExpander
	generator  Generator
	sanitizer  Sanitizer
	source     docsource.Source
	metrics    *metrics.Metrics
	logger     *zap.Logger

	maxContextTexts int
}

// New validates the wiring and returns a ready engine. Source and Sanitizer
// may be nil when ingestion is not used.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Gate == nil:
		return nil, errors.New("engine: moderation gate is required")
	case cfg.Memory == nil:
		return nil, errors.New("engine: memory store is required")
	case cfg.Literature == nil:
		return nil, errors.New("engine: literature client is required")
	case cfg.Expander == nil:
		return nil, errors.New("engine: query expander is required")
	case cfg.Generator == nil:
		return nil, errors.New("engine: answer generator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.MaxContextTexts <= 0 {
		cfg.MaxContextTexts = defaultMaxContextTexts
	}
	return &Engine{
		gate:            cfg.Gate,
		memory:          cfg.Memory,
		literature:      cfg.Literature,
		expander:        cfg.Expander,
		generator:       cfg.Generator,
		sanitizer:       cfg.Sanitizer,
		source:          cfg.Source,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		maxContextTexts: cfg.MaxContextTexts,
	}, nil
}

// Ask runs a question through moderation, memory search, the literature
// fallback, and answer generation. A moderation block or an empty literature
// result is a normal Reply, not an error; errors are reserved for
// infrastructure failures (classifier outage, embedding failure, model call
// failure) that prevent a trustworthy answer.
func (e *Engine) Ask(ctx context.Context, question string, history []answer.Turn, stream bool) (*Reply, error) {
	verdict, err := e.gate.Decide(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("moderation check: %w", err)
	}
	if verdict.Blocked {
		e.metrics.BlockedTotal.WithLabelValues(string(verdict.Category)).Inc()
		e.metrics.QuestionsTotal.WithLabelValues(string(OutcomeBlocked)).Inc()
		e.logger.Info("question blocked",
			zap.String("category", string(verdict.Category)),
		)
		return e.terminal(OutcomeBlocked, verdict.Category, verdict.SafeMessage, stream), nil
	}

	matches, err := e.memory.Search(ctx, question, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	var contextTexts []string
	if len(matches) > 0 {
		for _, m := range matches {
			contextTexts = append(contextTexts, m.Entry.Text)
		}
		e.logger.Debug("answering from memory", zap.Int("matches", len(matches)))
	} else {
		contextTexts = e.literatureFallback(ctx, question)
		if len(contextTexts) == 0 {
			e.metrics.QuestionsTotal.WithLabelValues(string(OutcomeNoResult)).Inc()
			e.logger.Info("no literature found for question")
			return e.terminal(OutcomeNoResult, moderation.CategoryAllow, NoLiteratureMessage, stream), nil
		}
		if len(contextTexts) > e.maxContextTexts {
			contextTexts = contextTexts[:e.maxContextTexts]
		}
	}

	answerContext := strings.Join(contextTexts, "\n\n")

	reply := &Reply{Outcome: OutcomeAnswered, Category: moderation.CategoryAllow}
	if stream {
		s, err := e.generator.AnswerStream(ctx, question, answerContext, history)
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}
		reply.Stream = s
	} else {
		text, err := e.generator.Answer(ctx, question, answerContext, history)
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}
		reply.Text = text
	}
	e.metrics.QuestionsTotal.WithLabelValues(string(OutcomeAnswered)).Inc()
	return reply, nil
}

// terminal wraps a fixed message as a Reply, as a single-fragment stream
// when streaming was requested.
func (e *Engine) terminal(outcome Outcome, category moderation.Category, message string, stream bool) *Reply {
	reply := &Reply{Outcome: outcome, Category: category}
	if stream {
		reply.Stream = llm.NewTextStream(message)
	} else {
		reply.Text = message
	}
	return reply
}

// literatureFallback expands the question into search phrases and, for each,
// searches the literature service and stores every non-empty section found.
// Returned texts are the collected candidates in stored order. Expansion
// failure degrades to no candidates.
func (e *Engine) literatureFallback(ctx context.Context, question string) []string {
	queries, err := e.expander.Expand(ctx, question)
	if err != nil {
		e.logger.Warn("query expansion failed, skipping literature fallback", zap.Error(err))
		return nil
	}

	var collected []string
	for _, query := range queries {
		collected = append(collected, e.searchAndStore(ctx, query)...)
	}
	return collected
}

// searchAndStore runs one literature query, fetches sections for every
// returned article, and appends each non-empty section text to memory.
func (e *Engine) searchAndStore(ctx context.Context, query string) []string {
	e.metrics.LiteratureSearches.Inc()
	ids := e.literature.SearchArticles(ctx, query, 0)

	var texts []string
	for _, id := range ids {
		sections := e.literature.FetchArticleSections(ctx, id)
		for _, part := range sections.Texts() {
			metadata := map[string]string{
				"type":       "literature",
				"article_id": id,
				"section":    part.Name,
			}
			if err := e.memory.Add(ctx, part.Text, metadata); err != nil {
				e.logger.Warn("storing literature section failed",
					zap.String("article_id", id),
					zap.String("section", part.Name),
					zap.Error(err),
				)
			} else {
				e.metrics.SectionsStored.Inc()
			}
			texts = append(texts, part.Text)
		}
	}
	return texts
}

// Ingest processes every document in the configured source folder: sanitize,
// summarize, store the summary as a tagged memory entry, then enrich memory
// with literature for queries expanded from the summary. A failure on one
// document is logged and does not abort the rest of the batch.
func (e *Engine) Ingest(ctx context.Context) error {
	if e.source == nil {
		return errors.New("engine: no document source configured")
	}
	if e.sanitizer == nil {
		return errors.New("engine: no sanitizer configured")
	}

	docs, err := e.source.Documents(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ingestDocument(ctx, doc); err != nil {
			e.logger.Warn("document ingestion failed",
				zap.String("document", doc.Name), zap.Error(err),
			)
		}
	}
	return nil
}

func (e *Engine) ingestDocument(ctx context.Context, doc docsource.Document) error {
	clean := e.sanitizer.Anonymize(doc.Text)

	summary, err := e.generator.Summarize(ctx, clean)
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}

	metadata := map[string]string{
		"type":   "user_summary",
		"source": doc.Name,
	}
	if err := e.memory.Add(ctx, summary, metadata); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	e.metrics.DocumentsIngested.Inc()
	e.logger.Info("document ingested", zap.String("document", doc.Name))

	queries, err := e.expander.Expand(ctx, summary)
	if err != nil {
		// The summary is stored; literature enrichment is best-effort.
		e.logger.Warn("summary expansion failed, skipping literature enrichment",
			zap.String("document", doc.Name), zap.Error(err),
		)
		return nil
	}
	for _, query := range queries {
		e.searchAndStore(ctx, query)
	}
	return nil
}
