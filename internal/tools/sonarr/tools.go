package sonarr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SeriesTool lists the managed library.
type SeriesTool struct {
	client *Client
}

func NewSeriesTool(client *Client) *SeriesTool { return &SeriesTool{client: client} }

func (t *SeriesTool) Name() string { return "sonarr_get_series" }

func (t *SeriesTool) Description() string {
	return "List every TV series Sonarr manages, including season and monitoring state."
}

func (t *SeriesTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *SeriesTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.Series(ctx)
}

// QueueTool shows active downloads.
type QueueTool struct {
	client *Client
}

func NewQueueTool(client *Client) *QueueTool { return &QueueTool{client: client} }

func (t *QueueTool) Name() string { return "sonarr_get_queue" }

func (t *QueueTool) Description() string {
	return "Show Sonarr's current download queue with progress and status."
}

func (t *QueueTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *QueueTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return t.client.Queue(ctx)
}

// LookupTool searches for series to add.
type LookupTool struct {
	client *Client
}

func NewLookupTool(client *Client) *LookupTool { return &LookupTool{client: client} }

func (t *LookupTool) Name() string { return "sonarr_lookup" }

func (t *LookupTool) Description() string {
	return "Look a TV series up by title through Sonarr to find its tvdbId before adding."
}

func (t *LookupTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Series title to look up" }
  },
  "required": ["query"]
}`)
}

func (t *LookupTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("sonarr: invalid parameters: %w", err)
	}
	return t.client.Lookup(ctx, input.Query)
}

// AddSeriesTool adds a series. Duplicate adds report success with an
// already_exists marker.
type AddSeriesTool struct {
	client *Client
}

func NewAddSeriesTool(client *Client) *AddSeriesTool { return &AddSeriesTool{client: client} }

func (t *AddSeriesTool) Name() string { return "sonarr_add_series" }

func (t *AddSeriesTool) Description() string {
	return "Add a TV series to Sonarr by its tvdbId and start searching for episodes. Use sonarr_lookup first to find the id."
}

func (t *AddSeriesTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "tvdb_id": { "type": "integer", "description": "TVDB id of the series" },
    "title": { "type": "string", "description": "Series title, for display" },
    "search_now": { "type": "boolean", "description": "Start searching immediately (default true)" }
  },
  "required": ["tvdb_id", "title"]
}`)
}

func (t *AddSeriesTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		TVDbID    int    `json:"tvdb_id"`
		Title     string `json:"title"`
		SearchNow *bool  `json:"search_now"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("sonarr: invalid parameters: %w", err)
	}
	searchNow := input.SearchNow == nil || *input.SearchNow

	out, err := t.client.AddSeries(ctx, input.TVDbID, input.Title, searchNow)
	if err != nil {
		if isAlreadyAdded(err) {
			return map[string]any{
				"tvdbId":         float64(input.TVDbID),
				"title":          input.Title,
				"already_exists": true,
			}, nil
		}
		return nil, err
	}
	return out, nil
}

// MonitorSeasonTool toggles monitoring for one season of a managed series.
type MonitorSeasonTool struct {
	client *Client
}

func NewMonitorSeasonTool(client *Client) *MonitorSeasonTool {
	return &MonitorSeasonTool{client: client}
}

func (t *MonitorSeasonTool) Name() string { return "sonarr_monitor_season" }

func (t *MonitorSeasonTool) Description() string {
	return "Turn monitoring on or off for one season of a series Sonarr already manages."
}

func (t *MonitorSeasonTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "series_id": { "type": "integer", "description": "Sonarr series id from sonarr_get_series" },
    "season": { "type": "integer", "description": "Season number" },
    "monitored": { "type": "boolean", "description": "Whether the season should be monitored" }
  },
  "required": ["series_id", "season", "monitored"]
}`)
}

func (t *MonitorSeasonTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		SeriesID  int  `json:"series_id"`
		Season    int  `json:"season"`
		Monitored bool `json:"monitored"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("sonarr: invalid parameters: %w", err)
	}

	series, err := t.client.SeriesByID(ctx, input.SeriesID)
	if err != nil {
		return nil, err
	}
	seasons, ok := series["seasons"].([]any)
	if !ok {
		return nil, fmt.Errorf("sonarr: series %d has no season list", input.SeriesID)
	}

	found := false
	for _, s := range seasons {
		season, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := season["seasonNumber"].(float64); ok && int(n) == input.Season {
			season["monitored"] = input.Monitored
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("sonarr: series %d has no season %d", input.SeriesID, input.Season)
	}
	return t.client.UpdateSeries(ctx, series)
}

// isAlreadyAdded matches Sonarr's duplicate-series rejection.
func isAlreadyAdded(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already been added") ||
		strings.Contains(msg, "seriesexistsvalidator") ||
		strings.Contains(msg, "already exists")
}
