package agent

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is an executable the LLM can invoke. Implementations perform network
// I/O and must return an error on failure; timeouts are imposed by the
// executor, not the tool.
type Tool interface {
	// Name returns the tool name used for LLM function calling.
	Name() string

	// Description helps the LLM decide when to use the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool. Arguments match Schema.
	Execute(ctx context.Context, args json.RawMessage) (map[string]any, error)
}

// ToolSchema is the LLM-visible descriptor for one tool.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Family groups tools by backing service for tuning, batching, and caching.
type Family string

const (
	FamilyTMDb   Family = "tmdb"
	FamilyPlex   Family = "plex"
	FamilyRadarr Family = "radarr"
	FamilySonarr Family = "sonarr"
	FamilyOther  Family = "other"
)

// ClassifyFamily maps a tool name to its service family by prefix.
func ClassifyFamily(name string) Family {
	switch {
	case strings.HasPrefix(name, "tmdb_"):
		return FamilyTMDb
	case strings.HasPrefix(name, "plex_"):
		return FamilyPlex
	case strings.HasPrefix(name, "radarr_"):
		return FamilyRadarr
	case strings.HasPrefix(name, "sonarr_"):
		return FamilySonarr
	default:
		return FamilyOther
	}
}

// writeVerbSegments are the name segments that identify mutating tools.
// Matched per underscore-separated segment so names like
// plex_recently_added stay reads.
var writeVerbSegments = map[string]bool{
	"add":     true,
	"update":  true,
	"delete":  true,
	"monitor": true,
	"set":     true,
	"create":  true,
	"remove":  true,
}

// IsWriteStyle reports whether a tool mutates external state. Write-style
// tools are never hedged, never cached, and are scheduled individually.
func IsWriteStyle(name string) bool {
	for _, seg := range strings.Split(strings.ToLower(name), "_") {
		if writeVerbSegments[seg] {
			return true
		}
	}
	return false
}
