// Package tmdb exposes The Movie Database as agent tools.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL          = "https://api.themoviedb.org/3"
	defaultTimeout          = 10 * time.Second
	defaultMaxResponseBytes = int64(1 << 20)
)

// Config configures the TMDb client.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client
}

// Client wraps the TMDb v3 REST API.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	maxBytes int64
}

// NewClient creates a TMDb API client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("tmdb: api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   client,
		maxBytes: maxBytes,
	}, nil
}

// SearchMulti searches movies, series, and people in one query
// (GET /search/multi).
func (c *Client) SearchMulti(ctx context.Context, query string, year int) (map[string]any, error) {
	q := url.Values{"query": {query}}
	if year > 0 {
		q.Set("year", fmt.Sprint(year))
	}
	return c.getJSON(ctx, "/search/multi", q)
}

// MovieDetails returns full movie metadata (GET /movie/{id}).
func (c *Client) MovieDetails(ctx context.Context, id int) (map[string]any, error) {
	return c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), nil)
}

// TVDetails returns full series metadata (GET /tv/{id}).
func (c *Client) TVDetails(ctx context.Context, id int) (map[string]any, error) {
	return c.getJSON(ctx, fmt.Sprintf("/tv/%d", id), nil)
}

// Trending returns this week's trending titles (GET /trending/{type}/week).
func (c *Client) Trending(ctx context.Context, mediaType string) (map[string]any, error) {
	if mediaType == "" {
		mediaType = "all"
	}
	return c.getJSON(ctx, "/trending/"+url.PathEscape(mediaType)+"/week", nil)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("tmdb: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("tmdb: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tmdb: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tmdb: decode response: %w", err)
	}
	return out, nil
}
