package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrClassifierUnavailable indicates the classifier could not be reached
	// or returned an unusable response.
	ErrClassifierUnavailable = errors.New("toxicity classifier unavailable")
)

// Classifier produces toxicity scores for a text. The model identity is
// deployment configuration, not part of this contract.
type Classifier interface {
	Predict(ctx context.Context, text string) (Scores, error)
}

// HTTPClassifierConfig configures the remote classifier client.
type HTTPClassifierConfig struct {
	// BaseURL is the classifier server base URL.
	BaseURL string
	// Timeout bounds each prediction call. Default: 15s.
	Timeout time.Duration
}

// HTTPClassifier calls a text-classification inference server that
// exposes a TEI-style POST /predict endpoint returning label/score
// pairs (a Detoxify-class toxicity model in production).
type HTTPClassifier struct {
	config HTTPClassifierConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClassifier creates a classifier client.
func NewHTTPClassifier(cfg HTTPClassifierConfig, logger *zap.Logger) (*HTTPClassifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrClassifierUnavailable)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClassifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type predictRequest struct {
	Inputs string `json:"inputs"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Predict returns the classifier's per-category probabilities.
func (c *HTTPClassifier) Predict(ctx context.Context, text string) (Scores, error) {
	body, err := json.Marshal(predictRequest{Inputs: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("classifier returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrClassifierUnavailable, err)
	}

	pairs, err := parsePredictions(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	scores := make(Scores, len(pairs))
	for _, p := range pairs {
		scores[p.Label] = p.Score
	}
	return scores, nil
}

// parsePredictions accepts both the flat single-input form
// [{"label":..,"score":..}] and the batched form [[...]].
func parsePredictions(raw []byte) ([]labelScore, error) {
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, errors.New("empty prediction batch")
		}
		return nested[0], nil
	}

	return nil, errors.New("unrecognized prediction response shape")
}
