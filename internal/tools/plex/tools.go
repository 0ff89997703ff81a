package plex

import (
	"context"
	"encoding/json"
	"fmt"
)

// SearchTool searches the library.
type SearchTool struct {
	client *Client
}

func NewSearchTool(client *Client) *SearchTool { return &SearchTool{client: client} }

func (t *SearchTool) Name() string { return "plex_search" }

func (t *SearchTool) Description() string {
	return "Search the household Plex library for movies, shows, and episodes by title."
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Title to search for" }
  },
  "required": ["query"]
}`)
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("plex: invalid parameters: %w", err)
	}
	return t.client.Search(ctx, input.Query)
}

// RecentlyAddedTool lists what landed in the library lately.
type RecentlyAddedTool struct {
	client *Client
}

func NewRecentlyAddedTool(client *Client) *RecentlyAddedTool {
	return &RecentlyAddedTool{client: client}
}

func (t *RecentlyAddedTool) Name() string { return "plex_recently_added" }

func (t *RecentlyAddedTool) Description() string {
	return "List the most recently added items in the Plex library."
}

func (t *RecentlyAddedTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *RecentlyAddedTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.RecentlyAdded(ctx)
}

// OnDeckTool lists what the household is mid-way through.
type OnDeckTool struct {
	client *Client
}

func NewOnDeckTool(client *Client) *OnDeckTool { return &OnDeckTool{client: client} }

func (t *OnDeckTool) Name() string { return "plex_on_deck" }

func (t *OnDeckTool) Description() string {
	return "List partially watched items the household can resume."
}

func (t *OnDeckTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *OnDeckTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.OnDeck(ctx)
}

// RateTool sets a user rating on a library item.
type RateTool struct {
	client *Client
}

func NewRateTool(client *Client) *RateTool { return &RateTool{client: client} }

func (t *RateTool) Name() string { return "plex_set_rating" }

func (t *RateTool) Description() string {
	return "Set the household's rating (0-10) on a Plex library item by its ratingKey."
}

func (t *RateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "rating_key": { "type": "string", "description": "The item's ratingKey from a Plex search" },
    "rating": { "type": "number", "minimum": 0, "maximum": 10, "description": "Rating from 0 to 10" }
  },
  "required": ["rating_key", "rating"]
}`)
}

func (t *RateTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		RatingKey string  `json:"rating_key"`
		Rating    float64 `json:"rating"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("plex: invalid parameters: %w", err)
	}
	return t.client.Rate(ctx, input.RatingKey, input.Rating)
}
