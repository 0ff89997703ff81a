// Package radarr exposes the Radarr movie manager as agent tools.
package radarr

import (
	"bytes"
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

// Config configures the Radarr client.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client

	// RootFolderPath and QualityProfileID are the defaults applied when an
	// add request does not specify them.
	RootFolderPath   string
	QualityProfileID int
}

// Client wraps the Radarr v3 API.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	maxBytes int64

	rootFolder     string
	qualityProfile int
}

// NewClient creates a Radarr API client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("radarr: base_url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("radarr: api key is required")
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
	profile := cfg.QualityProfileID
	if profile <= 0 {
		profile = 1
	}

	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		client:         client,
		maxBytes:       maxBytes,
		rootFolder:     cfg.RootFolderPath,
		qualityProfile: profile,
	}, nil
}

// Movies lists everything Radarr manages (GET /api/v3/movie).
func (c *Client) Movies(ctx context.Context) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/movie", nil, nil)
	if err != nil {
		return nil, err
	}
	return wrapList(raw, "movies"), nil
}

// Queue returns the download queue (GET /api/v3/queue).
func (c *Client) Queue(ctx context.Context) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/queue", nil, nil)
	if err != nil {
		return nil, err
	}
	return remapRecords(raw), nil
}

// Lookup searches Radarr's indexers for a movie (GET /api/v3/movie/lookup).
func (c *Client) Lookup(ctx context.Context, term string) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/movie/lookup", url.Values{"term": {term}}, nil)
	if err != nil {
		return nil, err
	}
	return wrapList(raw, "movies"), nil
}

// AddMovie adds a movie by TMDb id (POST /api/v3/movie), applying the
// configured root folder and quality profile defaults.
func (c *Client) AddMovie(ctx context.Context, tmdbID int, title string, searchNow bool) (map[string]any, error) {
	if tmdbID <= 0 {
		return nil, fmt.Errorf("radarr: tmdb_id is required")
	}
	payload := map[string]any{
		"tmdbId":           tmdbID,
		"title":            title,
		"qualityProfileId": c.qualityProfile,
		"rootFolderPath":   c.rootFolder,
		"monitored":        true,
		"addOptions":       map[string]any{"searchForMovie": searchNow},
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/v3/movie", nil, payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("radarr: decode response: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("radarr: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("radarr: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("radarr: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("radarr: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("radarr: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// wrapList puts a top-level JSON array under a named key so list results
// share one shape across tool families.
func wrapList(raw json.RawMessage, key string) map[string]any {
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err == nil {
			return obj
		}
		return map[string]any{key: []any{}}
	}
	return map[string]any{key: list}
}

// remapRecords renames the queue envelope's records field to items.
func remapRecords(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return map[string]any{"items": []any{}}
	}
	if records, ok := obj["records"]; ok {
		obj["items"] = records
		delete(obj, "records")
	}
	return obj
}
