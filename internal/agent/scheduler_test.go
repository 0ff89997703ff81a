package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want speedClass
	}{
		{"tmdb_search", classFast},
		{"tmdb_get_details", classFast},
		{"plex_recently_added", classFast},
		{"plex_search", classMedium},
		{"radarr_get_queue", classMedium},
		{"sonarr_search_missing", classSlow},
		{"radarr_run_command", classSlow},
		{"radarr_add_movie", classWrite},
		{"prefs_update", classWrite},
		{"fetch_details", classMedium},
	}
	for _, tt := range tests {
		if got := classify(tt.name); got != tt.want {
			t.Errorf("classify(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func newTestScheduler(t *testing.T, tools ...Tool) *Scheduler {
	t.Helper()
	exec, _, _ := newTestExecutor(t, tools...)
	return NewScheduler(exec, config.Default(), testLogger())
}

func TestExecuteTurn_PreservesOrder(t *testing.T) {
	echo := func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		var a map[string]any
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return map[string]any{"n": a["n"]}, nil
	}
	s := newTestScheduler(t,
		&fakeTool{name: "tmdb_search", fn: echo},
		&fakeTool{name: "plex_search", fn: echo},
		&fakeTool{name: "radarr_get_queue", fn: echo},
	)

	var calls []models.ToolCall
	names := []string{"radarr_get_queue", "tmdb_search", "plex_search", "tmdb_search"}
	for i, name := range names {
		calls = append(calls, models.ToolCall{
			ID:        fmt.Sprintf("c%d", i),
			Name:      name,
			Arguments: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		})
	}

	results := s.ExecuteTurn(context.Background(), calls, cache.NewRunDedup(), nil)
	if len(results) != len(calls) {
		t.Fatalf("got %d results, want %d", len(results), len(calls))
	}
	for i, r := range results {
		if r.CallID != calls[i].ID {
			t.Errorf("results[%d].CallID = %q, want %q", i, r.CallID, calls[i].ID)
		}
		if !r.OK() {
			t.Errorf("results[%d] failed: %+v", i, r.Error)
			continue
		}
		if n := r.Value["n"].(float64); int(n) != i {
			t.Errorf("results[%d] carries n=%v, want %d", i, n, i)
		}
	}
}

func TestExecuteTurn_EmitsEvents(t *testing.T) {
	s := newTestScheduler(t, &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}})

	var mu sync.Mutex
	counts := map[string]int{}
	emit := func(event string, data map[string]any) {
		mu.Lock()
		counts[event]++
		mu.Unlock()
	}

	calls := []models.ToolCall{
		{ID: "a", Name: "tmdb_search", Arguments: json.RawMessage(`{"query":"x"}`)},
		{ID: "b", Name: "missing_tool", Arguments: json.RawMessage(`{}`)},
	}
	s.ExecuteTurn(context.Background(), calls, cache.NewRunDedup(), emit)

	if counts["tool.start"] != 2 {
		t.Errorf("tool.start = %d, want 2", counts["tool.start"])
	}
	if counts["tool.finish"] != 1 || counts["tool.error"] != 1 {
		t.Errorf("finish/error = %d/%d, want 1/1", counts["tool.finish"], counts["tool.error"])
	}
}

func TestExecuteTurn_SurvivesPanickingEmit(t *testing.T) {
	s := newTestScheduler(t, &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}})

	// The first emit panics; the retry's emits behave. Each call runs in
	// its own goroutine, so an unrecovered panic would kill the process.
	var fired atomic.Int32
	emit := func(event string, data map[string]any) {
		if fired.Add(1) == 1 {
			panic("sink exploded")
		}
	}

	calls := []models.ToolCall{
		{ID: "a", Name: "tmdb_search", Arguments: json.RawMessage(`{"query":"x"}`)},
	}
	results := s.ExecuteTurn(context.Background(), calls, cache.NewRunDedup(), emit)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].OK() {
		t.Errorf("retried call failed: %+v", results[0].Error)
	}
}

func TestExecuteTurn_RepeatedPanicBecomesFailure(t *testing.T) {
	s := newTestScheduler(t, &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}})

	emit := func(event string, data map[string]any) {
		panic("sink keeps exploding")
	}

	calls := []models.ToolCall{
		{ID: "a", Name: "tmdb_search", Arguments: json.RawMessage(`{"query":"x"}`)},
	}
	results := s.ExecuteTurn(context.Background(), calls, cache.NewRunDedup(), emit)

	if results[0].OK() {
		t.Fatal("a call that panics on every attempt must fail, not succeed silently")
	}
	if results[0].Error.Kind != models.ErrKindNonRetryable {
		t.Errorf("error kind = %q, want %q", results[0].Error.Kind, models.ErrKindNonRetryable)
	}
}

func TestExecuteTurn_FamilyLimitHolds(t *testing.T) {
	var inflight, peak atomic.Int32
	slow := func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer inflight.Add(-1)
		return map[string]any{"ok": true}, nil
	}
	s := newTestScheduler(t, &fakeTool{name: "radarr_get_queue", fn: slow})

	var calls []models.ToolCall
	for i := 0; i < 12; i++ {
		calls = append(calls, models.ToolCall{
			ID:        fmt.Sprintf("c%d", i),
			Name:      "radarr_get_queue",
			Arguments: json.RawMessage(fmt.Sprintf(`{"page":%d}`, i)),
		})
	}
	s.ExecuteTurn(context.Background(), calls, cache.NewRunDedup(), nil)

	if p := peak.Load(); p > 4 {
		t.Errorf("radarr concurrency peaked at %d, limit is 4", p)
	}
}

func TestExecuteTurn_Empty(t *testing.T) {
	s := newTestScheduler(t)
	results := s.ExecuteTurn(context.Background(), nil, cache.NewRunDedup(), nil)
	if len(results) != 0 {
		t.Errorf("got %d results for empty turn", len(results))
	}
}
