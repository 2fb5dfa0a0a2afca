// Package lyrics acquires lyric text: catalog lookup first, then Tavily web
// search, then scraping the known lyric sites.
package lyrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned when no source produced a lyric.
var ErrNotFound = errors.New("lyrics: not found")

// Result is one web search hit.
type Result struct {
	Title string
	URL   string
}

// Searcher finds candidate lyric pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// TavilyClient searches the web through the Tavily Search API.
type TavilyClient struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	maxResults int
}

// TavilyConfig configures the search client.
type TavilyConfig struct {
	APIKey     string
	BaseURL    string // empty = api.tavily.com
	MaxResults int
	Timeout    time.Duration
}

// NewTavilyClient creates a Tavily search client.
func NewTavilyClient(cfg TavilyConfig) *TavilyClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TavilyClient{
		client:     &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		maxResults: maxResults,
	}
}

// tavilyRequest is the request format for the Tavily Search API.
type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
	IncludeImages bool   `json:"include_images"`
	MaxResults    int    `json:"max_results"`
}

// tavilyResponse is the response from the Tavily Search API.
type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search runs one query and returns the hits in result order.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, errors.New("tavily api key not configured")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: false,
		IncludeImages: false,
		MaxResults:    c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	out := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL})
	}
	return out, nil
}
