// Package europepmc queries the Europe PMC REST API for open-access
// biomedical articles and extracts structured sections from full-text
// XML.
//
// Literature search is best-effort: transport failures, timeouts,
// non-success statuses, and parse failures degrade to empty results and
// never abort the caller's pipeline.
package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production Europe PMC REST endpoint.
const DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// Config holds the literature client configuration.
type Config struct {
	// BaseURL is the Europe PMC REST base URL.
	BaseURL string

	// MaxResults is the default page size for searches.
	MaxResults int

	// Timeout bounds every HTTP call. Default: 10s.
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Client is a best-effort Europe PMC client.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a literature client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type searchResponse struct {
	ResultList struct {
		Result []struct {
			PMCID string `json:"pmcid"`
		} `json:"result"`
	} `json:"resultList"`
}

// SearchArticles returns open-access article identifiers for the query.
// maxResults <= 0 uses the configured default. Any failure yields an
// empty list, never an error.
func (c *Client) SearchArticles(ctx context.Context, query string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	params := url.Values{}
	params.Set("query", query+" OPEN_ACCESS:Y")
	params.Set("format", "json")
	params.Set("pageSize", strconv.Itoa(maxResults))

	endpoint := c.config.BaseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("building literature search request failed", zap.Error(err))
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("literature search request failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("literature search returned non-OK status",
			zap.Int("status", resp.StatusCode),
		)
		return nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("literature search response parse failed", zap.Error(err))
		return nil
	}

	var ids []string
	for _, r := range parsed.ResultList.Result {
		if r.PMCID != "" {
			ids = append(ids, r.PMCID)
		}
	}

	c.logger.Debug("literature search",
		zap.Int("ids", len(ids)),
	)
	return ids
}

// FetchArticleSections retrieves the article's full-text XML and
// extracts abstract, introduction, discussion, and conclusion sections.
// On any failure it returns whatever sections were populated so far;
// partial results are valid and no error is surfaced.
func (c *Client) FetchArticleSections(ctx context.Context, id string) Sections {
	endpoint := fmt.Sprintf("%s/%s/fullTextXML", c.config.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("building full-text request failed",
			zap.String("id", id), zap.Error(err),
		)
		return Sections{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("full-text fetch failed",
			zap.String("id", id), zap.Error(err),
		)
		return Sections{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("full-text fetch returned non-OK status",
			zap.String("id", id),
			zap.Int("status", resp.StatusCode),
		)
		return Sections{}
	}

	sections := parseSections(resp.Body)

	c.logger.Debug("fetched article sections",
		zap.String("id", id),
		zap.Bool("empty", sections.Empty()),
	)
	return sections
}
