// Package tools assembles the agent's tool catalog from configuration.
// Services without connection info are simply absent from the catalog; the
// agent only sees tools it can actually call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools/plex"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools/prefs"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools/radarr"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools/sonarr"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools/tmdb"
)

// Catalog holds the service clients and stores shared by every registry.
// Construct once at startup; Tools is the build function handed to
// agent.NewBoundRegistries so the preferences query tool can be bound to
// whichever LLM client runs the conversation.
type Catalog struct {
	cfg     *config.Config
	results *cache.ResultCache

	tmdb   *tmdb.Client
	plex   *plex.Client
	radarr *radarr.Client
	sonarr *sonarr.Client
	prefs  *prefs.Store
}

// NewCatalog wires service clients from configuration. A service with no
// base URL (or no key, for TMDb) is skipped, not an error.
func NewCatalog(cfg *config.Config, results *cache.ResultCache) (*Catalog, error) {
	c := &Catalog{cfg: cfg, results: results}
	svc := cfg.Services

	if svc.TMDb.APIKey != "" {
		client, err := tmdb.NewClient(tmdb.Config{
			BaseURL: svc.TMDb.BaseURL,
			APIKey:  svc.TMDb.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("tmdb: %w", err)
		}
		c.tmdb = client
	}
	if svc.Plex.BaseURL != "" {
		client, err := plex.NewClient(plex.Config{
			BaseURL: svc.Plex.BaseURL,
			Token:   svc.Plex.Token,
		})
		if err != nil {
			return nil, fmt.Errorf("plex: %w", err)
		}
		c.plex = client
	}
	if svc.Radarr.BaseURL != "" {
		client, err := radarr.NewClient(radarr.Config{
			BaseURL: svc.Radarr.BaseURL,
			APIKey:  svc.Radarr.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("radarr: %w", err)
		}
		c.radarr = client
	}
	if svc.Sonarr.BaseURL != "" {
		client, err := sonarr.NewClient(sonarr.Config{
			BaseURL: svc.Sonarr.BaseURL,
			APIKey:  svc.Sonarr.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("sonarr: %w", err)
		}
		c.sonarr = client
	}
	if svc.PreferencesPath != "" {
		store, err := prefs.NewStore(svc.PreferencesPath)
		if err != nil {
			return nil, err
		}
		c.prefs = store
	}
	return c, nil
}

// Tools returns the full tool set for one LLM client.
func (c *Catalog) Tools(client agent.LLMClient) ([]agent.Tool, error) {
	var out []agent.Tool

	if c.tmdb != nil {
		out = append(out,
			tmdb.NewSearchTool(c.tmdb),
			tmdb.NewDetailsTool(c.tmdb),
			tmdb.NewTrendingTool(c.tmdb),
		)
	}
	if c.plex != nil {
		out = append(out,
			plex.NewSearchTool(c.plex),
			plex.NewRecentlyAddedTool(c.plex),
			plex.NewOnDeckTool(c.plex),
			plex.NewRateTool(c.plex),
		)
	}
	if c.radarr != nil {
		out = append(out,
			radarr.NewMoviesTool(c.radarr),
			radarr.NewQueueTool(c.radarr),
			radarr.NewLookupTool(c.radarr),
			radarr.NewAddMovieTool(c.radarr),
		)
	}
	if c.sonarr != nil {
		out = append(out,
			sonarr.NewSeriesTool(c.sonarr),
			sonarr.NewQueueTool(c.sonarr),
			sonarr.NewLookupTool(c.sonarr),
			sonarr.NewAddSeriesTool(c.sonarr),
			sonarr.NewMonitorSeasonTool(c.sonarr),
		)
	}
	if c.prefs != nil {
		out = append(out,
			prefs.NewUpdateTool(c.prefs),
			prefs.NewQueryTool(c.prefs, client, c.queryModel()),
		)
	}
	out = append(out, NewFetchDetailsTool(c.results))
	return out, nil
}

// Preferences renders the stored household preferences as a compact block
// for the system prompt. Empty when no store is configured, nothing is
// recorded, or the file cannot be read.
func (c *Catalog) Preferences() string {
	if c.prefs == nil {
		return ""
	}
	snap, err := c.prefs.Snapshot()
	if err != nil || len(snap) == 0 {
		return ""
	}
	members := make([]string, 0, len(snap))
	for m := range snap {
		members = append(members, m)
	}
	sort.Strings(members)

	var b strings.Builder
	for _, m := range members {
		fmt.Fprintf(&b, "%s: %s\n", m, strings.Join(snap[m], "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// queryModel picks the cheap model for the preferences query tool.
func (c *Catalog) queryModel() string {
	for _, role := range []string{"quick", "summarizer", "chat"} {
		if m := c.cfg.LLM.Models[role]; m != "" {
			return m
		}
	}
	return ""
}

// FetchDetailsTool resolves a ref id from an earlier summarized result back
// to the full payload.
type FetchDetailsTool struct {
	results *cache.ResultCache
}

func NewFetchDetailsTool(results *cache.ResultCache) *FetchDetailsTool {
	return &FetchDetailsTool{results: results}
}

func (t *FetchDetailsTool) Name() string { return "fetch_details" }

func (t *FetchDetailsTool) Description() string {
	return "Fetch the full, unsummarized result of an earlier tool call by its ref_id."
}

func (t *FetchDetailsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "ref_id": { "type": "string", "description": "The ref_id from an earlier tool result" }
  },
  "required": ["ref_id"]
}`)
}

func (t *FetchDetailsTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		RefID string `json:"ref_id"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	id := strings.TrimSpace(input.RefID)
	if id == "" {
		return nil, fmt.Errorf("ref_id is required")
	}
	value, ok := t.results.ResolveRef(id)
	if !ok {
		return nil, fmt.Errorf("ref %s is unknown or expired", id)
	}
	return value, nil
}
