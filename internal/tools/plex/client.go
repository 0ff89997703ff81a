// Package plex exposes the household Plex server as agent tools.
package plex

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
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = int64(4 << 20)
)

// Config configures the Plex client.
type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client
}

// Client wraps the Plex Media Server HTTP API. All responses are requested
// as JSON; Plex wraps everything in a MediaContainer envelope which is
// returned as-is.
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	maxBytes int64
}

// NewClient creates a Plex API client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("plex: base_url is required")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("plex: token is required")
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
		token:    token,
		client:   client,
		maxBytes: maxBytes,
	}, nil
}

// Search queries the whole library (GET /search).
func (c *Client) Search(ctx context.Context, query string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/search", url.Values{"query": {query}})
}

// RecentlyAdded lists the newest library items (GET /library/recentlyAdded).
func (c *Client) RecentlyAdded(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/library/recentlyAdded", nil)
}

// OnDeck lists partially watched items (GET /library/onDeck).
func (c *Client) OnDeck(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/library/onDeck", nil)
}

// Rate sets a user rating on an item (PUT /:/rate). rating is 0-10.
func (c *Client) Rate(ctx context.Context, ratingKey string, rating float64) (map[string]any, error) {
	if ratingKey == "" {
		return nil, fmt.Errorf("plex: rating_key is required")
	}
	if rating < 0 || rating > 10 {
		return nil, fmt.Errorf("plex: rating %v out of range 0-10", rating)
	}
	q := url.Values{
		"key":        {ratingKey},
		"identifier": {"com.plexapp.plugins.library"},
		"rating":     {fmt.Sprint(rating)},
	}
	return c.do(ctx, http.MethodPut, "/:/rate", q)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (map[string]any, error) {
	if query == nil {
		query = url.Values{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("plex: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("plex: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plex: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// Mutation endpoints reply with an empty body.
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{"success": true}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("plex: decode response: %w", err)
	}
	return flattenContainer(out), nil
}

// flattenContainer lifts the items out of Plex's MediaContainer envelope so
// tool results look like every other family's.
func flattenContainer(raw map[string]any) map[string]any {
	container, ok := raw["MediaContainer"].(map[string]any)
	if !ok {
		return raw
	}
	out := map[string]any{}
	if meta, ok := container["Metadata"].([]any); ok {
		out["items"] = meta
	} else {
		out["items"] = []any{}
	}
	if size, ok := container["size"].(float64); ok {
		out["size"] = size
	}
	return out
}
