// Package sonarr exposes the Sonarr series manager as agent tools.
package sonarr

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

// Config configures the Sonarr client.
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

// Client wraps the Sonarr v3 API.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	maxBytes int64

	rootFolder     string
	qualityProfile int
}

// NewClient creates a Sonarr API client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("sonarr: base_url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("sonarr: api key is required")
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

// Series lists every managed series (GET /api/v3/series).
func (c *Client) Series(ctx context.Context) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/series", nil, nil)
	if err != nil {
		return nil, err
	}
	return wrapList(raw, "series"), nil
}

// SeriesByID fetches one series with its season list.
func (c *Client) SeriesByID(ctx context.Context, id int) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/series/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sonarr: decode response: %w", err)
	}
	return out, nil
}

// Queue returns the download queue (GET /api/v3/queue).
func (c *Client) Queue(ctx context.Context) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/queue", nil, nil)
	if err != nil {
		return nil, err
	}
	return remapRecords(raw), nil
}

// Lookup searches for series to add (GET /api/v3/series/lookup).
func (c *Client) Lookup(ctx context.Context, term string) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v3/series/lookup", url.Values{"term": {term}}, nil)
	if err != nil {
		return nil, err
	}
	return wrapList(raw, "series"), nil
}

// AddSeries adds a series by TVDB id (POST /api/v3/series).
func (c *Client) AddSeries(ctx context.Context, tvdbID int, title string, searchNow bool) (map[string]any, error) {
	if tvdbID <= 0 {
		return nil, fmt.Errorf("sonarr: tvdb_id is required")
	}
	payload := map[string]any{
		"tvdbId":           tvdbID,
		"title":            title,
		"qualityProfileId": c.qualityProfile,
		"rootFolderPath":   c.rootFolder,
		"monitored":        true,
		"addOptions":       map[string]any{"searchForMissingEpisodes": searchNow},
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/v3/series", nil, payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sonarr: decode response: %w", err)
	}
	return out, nil
}

// UpdateSeries writes a modified series document back (PUT /api/v3/series).
func (c *Client) UpdateSeries(ctx context.Context, series map[string]any) (map[string]any, error) {
	raw, err := c.do(ctx, http.MethodPut, "/api/v3/series", nil, series)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sonarr: decode response: %w", err)
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
			return nil, fmt.Errorf("sonarr: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("sonarr: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sonarr: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("sonarr: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sonarr: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

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
