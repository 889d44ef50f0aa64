// Package memory stores embedded text fragments and answers
// nearest-neighbor queries over them.
//
// The store is backed by chromem-go, an embeddable pure-Go vector
// database. Entries are immutable once added; the only removal is a
// full clear. The corpus is bounded to one user's uploaded documents
// plus literature fetched for their queries, so exhaustive cosine
// search per query is acceptable.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
)

const (
	// DefaultTopK is the default number of matches returned per search.
	DefaultTopK = 3

	// DefaultThreshold is the default minimum cosine similarity for a
	// match.
	DefaultThreshold = 0.75
)

// Embedder generates normalized vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Entry is one stored text fragment with its metadata. The embedding
// itself stays inside the underlying collection.
type Entry struct {
	Text     string
	Metadata map[string]string
}

// Match pairs an entry with its similarity score in [0,1].
type Match struct {
	Entry Entry
	Score float32
}

// Config holds configuration for the similarity memory.
type Config struct {
	// Path is the directory for persistent storage. Empty keeps the
	// store purely in memory.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool

	// Collection is the collection name.
	Collection string

	// TopK is the default result count per search.
	TopK int

	// Threshold is the default minimum similarity per search.
	Threshold float32
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "medassist_memory"
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
}

// Store is a similarity-searchable collection of embedded text
// fragments.
type Store struct {
	db       *chromem.DB
	embedder Embedder
	config   Config
	logger   *zap.Logger
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k cannot be negative", ErrInvalidConfig)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0,1]", ErrInvalidConfig)
	}

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	s := &Store{db: db, embedder: embedder, config: cfg, logger: logger}

	logger.Info("similarity memory initialized",
		zap.String("collection", cfg.Collection),
		zap.Bool("persistent", cfg.Path != ""),
		zap.Int("top_k", cfg.TopK),
		zap.Float32("threshold", cfg.Threshold),
	)

	return s, nil
}

// embeddingFunc adapts the Embedder for chromem query-time embedding.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *Store) collection() (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
}

// Add embeds text and appends it as a new immutable entry. Duplicates
// are allowed; there is no uniqueness constraint.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) error {
	if text == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidConfig)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	collection, err := s.collection()
	if err != nil {
		return fmt.Errorf("getting collection: %w", err)
	}

	doc := chromem.Document{
		ID:        uuid.NewString(),
		Content:   text,
		Metadata:  metadata,
		Embedding: vectors[0],
	}
	if err := collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}

	s.logger.Debug("added memory entry",
		zap.String("id", doc.ID),
		zap.Int("text_len", len(text)),
		zap.Int("count", collection.Count()),
	)
	return nil
}

// Search returns up to topK entries with cosine similarity to the query
// of at least threshold, in descending score order. An empty store or no
// entry meeting the threshold yields an empty result, not an error.
//
// topK <= 0 and threshold < 0 fall back to the configured defaults.
func (s *Store) Search(ctx context.Context, query string, topK int, threshold float32) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidConfig)
	}
	if topK <= 0 {
		topK = s.config.TopK
	}
	if threshold < 0 {
		threshold = s.config.Threshold
	}

	collection, err := s.collection()
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}

	count := collection.Count()
	if count == 0 {
		return []Match{}, nil
	}

	// chromem requires nResults <= document count
	k := topK
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		matches = append(matches, Match{
			Entry: Entry{Text: r.Content, Metadata: r.Metadata},
			Score: r.Similarity,
		})
	}

	s.logger.Debug("memory search",
		zap.Int("stored", count),
		zap.Int("matches", len(matches)),
		zap.Float32("threshold", threshold),
	)
	return matches, nil
}

// Clear removes every entry from the store.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	s.logger.Info("similarity memory cleared", zap.String("collection", s.config.Collection))
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}
