package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/infra"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// fakeTool is a scriptable tool for executor and scheduler tests.
type fakeTool struct {
	name   string
	schema string
	fn     func(ctx context.Context, args json.RawMessage) (map[string]any, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }
func (f *fakeTool) Schema() json.RawMessage {
	if f.schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(f.schema)
}
func (f *fakeTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	return f.fn(ctx, args)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, tools ...Tool) (*Executor, *cache.ResultCache, *infra.BreakerSet) {
	t.Helper()
	reg, err := NewRegistry(tools)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	breakers := infra.NewBreakerSet(infra.BreakerConfig{})
	results := cache.NewResultCache()
	return NewExecutor(reg, breakers, results, nil, testLogger()), results, breakers
}

func quickTuning() ExecTuning {
	return ExecTuning{
		Timeout:     time.Second,
		RetryMax:    2,
		BackoffBase: time.Millisecond,
		CacheTTL:    time.Minute,
	}
}

func call(name, args string) models.ToolCall {
	return models.ToolCall{ID: "call-1", Name: name, Arguments: json.RawMessage(args)}
}

func TestExecute_Success(t *testing.T) {
	tool := &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		return map[string]any{"results": []any{map[string]any{"id": 603.0}}}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)

	r := exec.Execute(context.Background(), call("tmdb_search", `{"query":"matrix"}`), cache.NewRunDedup(), quickTuning())
	if !r.OK() {
		t.Fatalf("unexpected error: %+v", r.Error)
	}
	if r.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", r.Attempts)
	}
	if r.RefID == "" {
		t.Error("success must mint a ref id")
	}
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "plex_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return map[string]any{"items": []any{}}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)

	r := exec.Execute(context.Background(), call("plex_search", `{"query":"dune"}`), cache.NewRunDedup(), quickTuning())
	if !r.OK() {
		t.Fatalf("unexpected error: %+v", r.Error)
	}
	if r.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", r.Attempts)
	}
}

func TestExecute_NonRetryableStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "plex_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return nil, errors.New("401 Unauthorized")
	}}
	exec, _, _ := newTestExecutor(t, tool)

	r := exec.Execute(context.Background(), call("plex_search", `{}`), cache.NewRunDedup(), quickTuning())
	if r.OK() {
		t.Fatal("expected failure")
	}
	if r.Error.Kind != models.ErrKindNonRetryable {
		t.Errorf("kind = %s, want non_retryable", r.Error.Kind)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("tool ran %d times, want 1", got)
	}
}

func TestExecute_RetryMaxZeroMeansOneAttempt(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "plex_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}}
	exec, _, _ := newTestExecutor(t, tool)

	tuning := quickTuning()
	tuning.RetryMax = 0
	r := exec.Execute(context.Background(), call("plex_search", `{}`), cache.NewRunDedup(), tuning)
	if r.OK() {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("tool ran %d times, want 1", got)
	}
	if r.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", r.Attempts)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	r := exec.Execute(context.Background(), call("nope", `{}`), cache.NewRunDedup(), quickTuning())
	if r.OK() || r.Error.Kind != models.ErrKindNonRetryable {
		t.Fatalf("result = %+v, want non_retryable failure", r)
	}
	if r.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", r.Attempts)
	}
}

func TestExecute_InvalidArguments(t *testing.T) {
	tool := &fakeTool{
		name:   "tmdb_search",
		schema: `{"type":"object","required":["query"],"properties":{"query":{"type":"string"}}}`,
		fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			t.Error("tool must not run on invalid arguments")
			return nil, nil
		},
	}
	exec, _, _ := newTestExecutor(t, tool)

	for _, args := range []string{`{"query":`, `{"other":1}`} {
		r := exec.Execute(context.Background(), call("tmdb_search", args), cache.NewRunDedup(), quickTuning())
		if r.OK() || r.Error.Kind != models.ErrKindInvalidJSON {
			t.Errorf("args %q: result = %+v, want invalid_json failure", args, r)
		}
		if r.Attempts != 0 {
			t.Errorf("args %q: Attempts = %d, want 0", args, r.Attempts)
		}
	}
}

func TestExecute_Timeout(t *testing.T) {
	tool := &fakeTool{name: "plex_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	exec, _, _ := newTestExecutor(t, tool)

	tuning := quickTuning()
	tuning.Timeout = 10 * time.Millisecond
	tuning.RetryMax = 0
	r := exec.Execute(context.Background(), call("plex_search", `{}`), cache.NewRunDedup(), tuning)
	if r.OK() || r.Error.Kind != models.ErrKindTimeout {
		t.Fatalf("result = %+v, want timeout failure", r)
	}
}

func TestExecute_CircuitOpenShortCircuits(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "radarr_get_queue", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}}
	exec, _, breakers := newTestExecutor(t, tool)

	tuning := quickTuning()
	tuning.RetryMax = 0
	// Three failures open the breaker.
	for i := 0; i < 3; i++ {
		exec.Execute(context.Background(), call("radarr_get_queue", `{}`), cache.NewRunDedup(), tuning)
	}
	before := calls.Load()

	r := exec.Execute(context.Background(), call("radarr_get_queue", `{}`), cache.NewRunDedup(), tuning)
	if r.OK() || r.Error.Kind != models.ErrKindCircuitOpen {
		t.Fatalf("result = %+v, want circuit_open failure", r)
	}
	if r.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", r.Attempts)
	}
	if calls.Load() != before {
		t.Error("tool must not run while the breaker is open")
	}

	breakers.Reset()
	if !breakers.Allow("radarr_get_queue") {
		t.Error("reset breaker should allow again")
	}
}

func TestExecute_DedupSharesResult(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"results": []any{map[string]any{"id": 603.0}}}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)
	dedup := cache.NewRunDedup()

	first := exec.Execute(context.Background(), call("tmdb_search", `{"query":"The Matrix"}`), dedup, quickTuning())
	second := exec.Execute(context.Background(), call("tmdb_search", `{"query":"the matrix "}`), dedup, quickTuning())

	if got := calls.Load(); got != 1 {
		t.Fatalf("tool ran %d times, want 1", got)
	}
	if !second.CacheHit || second.Attempts != 0 {
		t.Errorf("second = %+v, want cache hit with zero attempts", second)
	}
	if second.RefID != first.RefID {
		t.Errorf("dedup hit RefID = %q, want leader's %q", second.RefID, first.RefID)
	}
}

func TestExecute_CrossRunCacheHit(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"results": []any{map[string]any{"id": 603.0}}}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)

	exec.Execute(context.Background(), call("tmdb_search", `{"query":"matrix"}`), cache.NewRunDedup(), quickTuning())
	r := exec.Execute(context.Background(), call("tmdb_search", `{"query":"matrix"}`), cache.NewRunDedup(), quickTuning())

	if got := calls.Load(); got != 1 {
		t.Fatalf("tool ran %d times, want 1", got)
	}
	if !r.CacheHit {
		t.Error("second run should hit the cross-run cache")
	}
	if r.RefID == "" {
		t.Error("cache hit must still mint a ref id")
	}
}

func TestExecute_WritesNeverCached(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "radarr_add_movie", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"id": 12.0}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)

	exec.Execute(context.Background(), call("radarr_add_movie", `{"tmdbId":603}`), cache.NewRunDedup(), quickTuning())
	exec.Execute(context.Background(), call("radarr_add_movie", `{"tmdbId":603}`), cache.NewRunDedup(), quickTuning())

	if got := calls.Load(); got != 2 {
		t.Errorf("tool ran %d times, want 2 across separate runs", got)
	}
}

func TestExecute_HedgeCountsAsOneAttempt(t *testing.T) {
	var calls atomic.Int32
	tool := &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		if calls.Add(1) == 1 {
			// Primary hangs; the hedge should win.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, errors.New("too slow")
			}
		}
		return map[string]any{"results": []any{map[string]any{"id": 603.0}}}, nil
	}}
	exec, _, _ := newTestExecutor(t, tool)

	tuning := quickTuning()
	tuning.Hedge = true
	tuning.HedgeDelay = 5 * time.Millisecond
	r := exec.Execute(context.Background(), call("tmdb_search", `{"query":"matrix"}`), cache.NewRunDedup(), tuning)
	if !r.OK() {
		t.Fatalf("unexpected error: %+v", r.Error)
	}
	if r.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 for a hedged pair", r.Attempts)
	}
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	tool := &fakeTool{name: "plex_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
		panic("boom")
	}}
	exec, _, _ := newTestExecutor(t, tool)

	tuning := quickTuning()
	tuning.RetryMax = 0
	r := exec.Execute(context.Background(), call("plex_search", `{}`), cache.NewRunDedup(), tuning)
	if r.OK() {
		t.Fatal("panicking tool must produce a failure result")
	}
}
