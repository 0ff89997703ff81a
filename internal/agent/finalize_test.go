package agent

import (
	"testing"

	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

func okResult(tool string, value map[string]any) models.ToolResult {
	return models.ToolResult{CallID: "c", ToolName: tool, Value: value, Attempts: 1}
}

func errResult(tool string, kind models.ErrorKind) models.ToolResult {
	return models.ToolResult{CallID: "c", ToolName: tool, Error: &models.ToolFailure{Kind: kind, Message: "x"}}
}

func TestFinalizable(t *testing.T) {
	searchHit := okResult("tmdb_search", map[string]any{
		"results": []any{map[string]any{"id": 603.0, "title": "The Matrix"}},
	})

	tests := []struct {
		name    string
		results []models.ToolResult
		st      RunState
		want    bool
	}{
		{
			name:    "clean read with content",
			results: []models.ToolResult{searchHit},
			want:    true,
		},
		{
			name:    "no results yet",
			results: nil,
			want:    false,
		},
		{
			name:    "any error blocks",
			results: []models.ToolResult{searchHit, errResult("plex_search", models.ErrKindTimeout)},
			want:    false,
		},
		{
			name:    "empty search results keep going",
			results: []models.ToolResult{okResult("tmdb_search", map[string]any{"results": []any{}})},
			want:    false,
		},
		{
			name: "unvalidated write blocks",
			results: []models.ToolResult{okResult("radarr_add_movie", map[string]any{
				"id": 12.0, "title": "Dune",
			})},
			st:   RunState{WriteCompleted: true},
			want: false,
		},
		{
			name:    "validated write finalizes",
			results: []models.ToolResult{searchHit},
			st:      RunState{WriteCompleted: true, ValidationDone: true},
			want:    true,
		},
		{
			name:    "pending mandatory write blocks",
			results: []models.ToolResult{searchHit},
			st:      RunState{MustWrite: true},
			want:    false,
		},
		{
			name:    "seen write intent without write blocks",
			results: []models.ToolResult{searchHit},
			st:      RunState{SeenWriteIntent: true},
			want:    false,
		},
		{
			name:    "scalar-only value counts as content",
			results: []models.ToolResult{okResult("plex_get_status", map[string]any{"version": "1.40"})},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Finalizable(tt.results, &tt.st); got != tt.want {
				t.Errorf("Finalizable() = %v, want %v", got, tt.want)
			}
		})
	}
}
