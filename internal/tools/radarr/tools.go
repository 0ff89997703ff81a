package radarr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MoviesTool lists the managed library.
type MoviesTool struct {
	client *Client
}

func NewMoviesTool(client *Client) *MoviesTool { return &MoviesTool{client: client} }

func (t *MoviesTool) Name() string { return "radarr_get_movies" }

func (t *MoviesTool) Description() string {
	return "List every movie Radarr manages, including download state and monitoring."
}

func (t *MoviesTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *MoviesTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.Movies(ctx)
}

// QueueTool shows active downloads.
type QueueTool struct {
	client *Client
}

func NewQueueTool(client *Client) *QueueTool { return &QueueTool{client: client} }

func (t *QueueTool) Name() string { return "radarr_get_queue" }

func (t *QueueTool) Description() string {
	return "Show Radarr's current download queue with progress and status."
}

func (t *QueueTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *QueueTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.Queue(ctx)
}

// LookupTool searches indexers for candidates to add.
type LookupTool struct {
	client *Client
}

func NewLookupTool(client *Client) *LookupTool { return &LookupTool{client: client} }

func (t *LookupTool) Name() string { return "radarr_lookup" }

func (t *LookupTool) Description() string {
	return "Look a movie up by title through Radarr to find its tmdbId before adding."
}

func (t *LookupTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Movie title to look up" }
  },
  "required": ["query"]
}`)
}

func (t *LookupTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("radarr: invalid parameters: %w", err)
	}
	return t.client.Lookup(ctx, input.Query)
}

// AddMovieTool adds a movie to the library. A duplicate add is reported as
// success with an already_exists marker; the desired end state holds either
// way.
type AddMovieTool struct {
	client *Client
}

func NewAddMovieTool(client *Client) *AddMovieTool { return &AddMovieTool{client: client} }

func (t *AddMovieTool) Name() string { return "radarr_add_movie" }

func (t *AddMovieTool) Description() string {
	return "Add a movie to Radarr by its tmdbId and start searching for it. Use radarr_lookup or tmdb_search first to find the id."
}

func (t *AddMovieTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "tmdb_id": { "type": "integer", "description": "TMDb id of the movie" },
    "title": { "type": "string", "description": "Movie title, for display" },
    "search_now": { "type": "boolean", "description": "Start searching immediately (default true)" }
  },
  "required": ["tmdb_id", "title"]
}`)
}

func (t *AddMovieTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		TMDbID    int    `json:"tmdb_id"`
		Title     string `json:"title"`
		SearchNow *bool  `json:"search_now"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("radarr: invalid parameters: %w", err)
	}
	searchNow := input.SearchNow == nil || *input.SearchNow

	out, err := t.client.AddMovie(ctx, input.TMDbID, input.Title, searchNow)
	if err != nil {
		if isAlreadyAdded(err) {
			return map[string]any{
				"tmdbId":         float64(input.TMDbID),
				"title":          input.Title,
				"already_exists": true,
			}, nil
		}
		return nil, err
	}
	return out, nil
}

// isAlreadyAdded matches Radarr's duplicate-movie rejection.
func isAlreadyAdded(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already been added") ||
		strings.Contains(msg, "movieexistsvalidator") ||
		strings.Contains(msg, "already exists")
}
