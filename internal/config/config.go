// Package config provides configuration loading for medassist.
//
// Configuration is loaded from a YAML file and then overridden by
// environment variables. Defaults are safe for local development except
// for the OpenAI API key, which must be supplied.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid or incomplete configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete medassist configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Moderation ModerationConfig `koanf:"moderation"`
	Memory     MemoryConfig     `koanf:"memory"`
	Literature LiteratureConfig `koanf:"literature"`
	Ingest     IngestConfig     `koanf:"ingest"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OpenAIConfig holds the chat completion client configuration.
// Timeout bounds each completion call; streaming is bounded to the
// first byte of the response.
type OpenAIConfig struct {
	APIKey    Secret   `koanf:"api_key"`
	BaseURL   string   `koanf:"base_url"`
	ChatModel string   `koanf:"chat_model"`
	Timeout   Duration `koanf:"timeout"`
}

// EmbeddingConfig holds the embedding service configuration.
// Works with the OpenAI API or any OpenAI-compatible server (TEI).
type EmbeddingConfig struct {
	BaseURL string   `koanf:"base_url"`
	Model   string   `koanf:"model"`
	APIKey  Secret   `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// ModerationConfig holds the toxicity classifier configuration.
// Thresholds override the built-in defaults per category.
type ModerationConfig struct {
	BaseURL    string             `koanf:"base_url"`
	Timeout    Duration           `koanf:"timeout"`
	Thresholds map[string]float64 `koanf:"thresholds"`
}

// MemoryConfig holds the similarity memory configuration.
// An empty Path keeps the store purely in memory.
type MemoryConfig struct {
	Path       string  `koanf:"path"`
	Collection string  `koanf:"collection"`
	TopK       int     `koanf:"top_k"`
	Threshold  float32 `koanf:"threshold"`
}

// LiteratureConfig holds the Europe PMC client configuration.
type LiteratureConfig struct {
	BaseURL    string   `koanf:"base_url"`
	MaxResults int      `koanf:"max_results"`
	Timeout    Duration `koanf:"timeout"`
}

// IngestConfig holds the document ingestion configuration.
type IngestConfig struct {
	Dir string `koanf:"dir"`
}

// NewDefault returns a Config populated with defaults.
func NewDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8087,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		OpenAI: OpenAIConfig{
			ChatModel: "gpt-4o-mini",
			Timeout:   Duration(30 * time.Second),
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
			Timeout: Duration(15 * time.Second),
		},
		Moderation: ModerationConfig{
			BaseURL: "http://localhost:8081",
			Timeout: Duration(15 * time.Second),
		},
		Memory: MemoryConfig{
			Collection: "medassist_memory",
			TopK:       3,
			Threshold:  0.75,
		},
		Literature: LiteratureConfig{
			BaseURL:    "https://www.ebi.ac.uk/europepmc/webservices/rest",
			MaxResults: 3,
			Timeout:    Duration(10 * time.Second),
		},
		Ingest: IngestConfig{
			Dir: "sample_data",
		},
	}
}

// Validate checks the configuration for fatal problems.
//
// A missing OpenAI API key is a startup error: the engine cannot expand
// queries, summarize records, or answer questions without it.
func (c *Config) Validate() error {
	if !c.OpenAI.APIKey.IsSet() {
		return fmt.Errorf("%w: openai.api_key is required (set OPENAI_API_KEY)", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("%w: memory.top_k must be positive", ErrInvalidConfig)
	}
	if c.Memory.Threshold < 0 || c.Memory.Threshold > 1 {
		return fmt.Errorf("%w: memory.threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.Literature.MaxResults <= 0 {
		return fmt.Errorf("%w: literature.max_results must be positive", ErrInvalidConfig)
	}
	for name, v := range c.Moderation.Thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: moderation.thresholds[%s] must be in [0,1]", ErrInvalidConfig, name)
		}
	}
	return nil
}
