package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
)

// SearchTool looks titles up by name.
type SearchTool struct {
	client *Client
}

func NewSearchTool(client *Client) *SearchTool { return &SearchTool{client: client} }

func (t *SearchTool) Name() string { return "tmdb_search" }

func (t *SearchTool) Description() string {
	return "Search TMDb for movies and TV series by title. Returns candidates with ids, media types, and release dates."
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Title to search for" },
    "year": { "type": "integer", "description": "Release year to narrow the search" }
  },
  "required": ["query"]
}`)
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Query string `json:"query"`
		Year  int    `json:"year"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("tmdb: invalid parameters: %w", err)
	}
	return t.client.SearchMulti(ctx, input.Query, input.Year)
}

// DetailsTool fetches full metadata for one title.
type DetailsTool struct {
	client *Client
}

func NewDetailsTool(client *Client) *DetailsTool { return &DetailsTool{client: client} }

func (t *DetailsTool) Name() string { return "tmdb_get_details" }

func (t *DetailsTool) Description() string {
	return "Get full TMDb metadata for a movie or TV series by its TMDb id."
}

func (t *DetailsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": { "type": "integer", "description": "TMDb id from a search result" },
    "media_type": { "type": "string", "enum": ["movie", "tv"], "description": "Whether the id is a movie or a TV series" }
  },
  "required": ["id", "media_type"]
}`)
}

func (t *DetailsTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		ID        int    `json:"id"`
		MediaType string `json:"media_type"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("tmdb: invalid parameters: %w", err)
	}
	if input.MediaType == "tv" {
		return t.client.TVDetails(ctx, input.ID)
	}
	return t.client.MovieDetails(ctx, input.ID)
}

// TrendingTool lists what is popular this week.
type TrendingTool struct {
	client *Client
}

func NewTrendingTool(client *Client) *TrendingTool { return &TrendingTool{client: client} }

func (t *TrendingTool) Name() string { return "tmdb_trending" }

func (t *TrendingTool) Description() string {
	return "List titles trending on TMDb this week, optionally filtered to movies or TV."
}

func (t *TrendingTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "media_type": { "type": "string", "enum": ["all", "movie", "tv"], "description": "Filter by media type" }
  }
}`)
}

func (t *TrendingTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		MediaType string `json:"media_type"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("tmdb: invalid parameters: %w", err)
	}
	return t.client.Trending(ctx, input.MediaType)
}
