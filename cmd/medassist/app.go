package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oakhealth/medassist/internal/answer"
	"github.com/oakhealth/medassist/internal/anonymize"
	"github.com/oakhealth/medassist/internal/config"
	"github.com/oakhealth/medassist/internal/docsource"
	"github.com/oakhealth/medassist/internal/embeddings"
	"github.com/oakhealth/medassist/internal/engine"
	"github.com/oakhealth/medassist/internal/europepmc"
	"github.com/oakhealth/medassist/internal/expand"
	"github.com/oakhealth/medassist/internal/llm"
	"github.com/oakhealth/medassist/internal/logging"
	"github.com/oakhealth/medassist/internal/memory"
	"github.com/oakhealth/medassist/internal/metrics"
	"github.com/oakhealth/medassist/internal/moderation"
)

// app bundles the fully wired pipeline shared by all subcommands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *engine.Engine
	metrics *metrics.Metrics
}

// newApp loads configuration and wires every pipeline component.
// Configuration problems (missing API key, bad port) are fatal here,
// before any request is accepted.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	classifier, err := moderation.NewHTTPClassifier(moderation.HTTPClassifierConfig{
		BaseURL: cfg.Moderation.BaseURL,
		Timeout: time.Duration(cfg.Moderation.Timeout),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing moderation classifier: %w", err)
	}
	gate, err := moderation.NewGate(classifier, cfg.Moderation.Thresholds, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing moderation gate: %w", err)
	}

	embedder, err := embeddings.NewService(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding service: %w", err)
	}
	store, err := memory.NewStore(memory.Config{
		Path:       cfg.Memory.Path,
		Collection: cfg.Memory.Collection,
		TopK:       cfg.Memory.TopK,
		Threshold:  cfg.Memory.Threshold,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing memory store: %w", err)
	}

	client, err := llm.NewOpenAIClient(cfg.OpenAI, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing model client: %w", err)
	}

	literature := europepmc.NewClient(europepmc.Config{
		BaseURL:    cfg.Literature.BaseURL,
		MaxResults: cfg.Literature.MaxResults,
		Timeout:    time.Duration(cfg.Literature.Timeout),
	}, logger)

	m := metrics.New()

	eng, err := engine.New(engine.Config{
		Gate:       gate,
		Memory:     store,
		Literature: literature,
		Expander:   expand.New(client, logger),
		Generator:  answer.New(client, logger),
		Sanitizer:  anonymize.New(anonymize.NewProseRecognizer(logger), logger),
		Source:     docsource.NewFolderSource(cfg.Ingest.Dir, logger),
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, engine: eng, metrics: m}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
