// Package search queries the Tavily web search API for similar
// repositories and README guidance.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zen-systems/drrepo/pkg/adapter"
	"github.com/zen-systems/drrepo/pkg/logging"
)

const (
	defaultEndpoint   = "https://api.tavily.com/search"
	defaultMaxResults = 5

	// maxDescriptionRunes bounds how much of a description goes into a query.
	maxDescriptionRunes = 50
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Searcher is the subset of the client the pipeline depends on.
type Searcher interface {
	SimilarRepositories(ctx context.Context, language, description string) ([]Result, error)
	BestPractices(ctx context.Context) ([]Result, error)
}

// TavilyClient talks to the Tavily search endpoint.
type TavilyClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a TavilyClient.
type Option func(*TavilyClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *TavilyClient) {
		t.httpClient = c
	}
}

// WithEndpoint points the client at a different search URL.
func WithEndpoint(url string) Option {
	return func(t *TavilyClient) {
		t.endpoint = url
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *TavilyClient) {
		t.logger = l
	}
}

// NewTavilyClient creates a client using apiKey.
func NewTavilyClient(apiKey string, opts ...Option) *TavilyClient {
	t := &TavilyClient{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.New("search")
	}
	return t
}

// Available returns true if the API key is configured.
func (t *TavilyClient) Available() bool {
	return t.apiKey != ""
}

// SimilarRepositories looks for well-regarded repositories in the same
// language with a similar description.
func (t *TavilyClient) SimilarRepositories(ctx context.Context, language, description string) ([]Result, error) {
	if r := []rune(description); len(r) > maxDescriptionRunes {
		description = string(r[:maxDescriptionRunes])
	}
	query := strings.Join(strings.Fields(fmt.Sprintf("top GitHub %s repositories %s stars trending", language, description)), " ")
	return t.Search(ctx, query, 5)
}

// BestPractices returns guidance on README structure.
func (t *TavilyClient) BestPractices(ctx context.Context) ([]Result, error) {
	return t.Search(ctx, "GitHub README best practices professional structure", 3)
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
}

// Search runs a basic-depth query. max <= 0 uses the client default.
// HTTP 429 and 5xx responses are returned as transient adapter errors.
func (t *TavilyClient) Search(ctx context.Context, query string, max int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if !t.Available() {
		return nil, fmt.Errorf("tavily API key not configured")
	}
	if max <= 0 {
		max = defaultMaxResults
	}

	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  max,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &adapter.AdapterError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("tavily API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	t.logger.Debug("search completed", "query", query, "results", len(out.Results))
	return out.Results, nil
}
