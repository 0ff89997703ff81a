package agent

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistry_DuplicateRejected(t *testing.T) {
	mk := func() Tool {
		return &fakeTool{name: "tmdb_search", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			return nil, nil
		}}
	}
	if _, err := NewRegistry([]Tool{mk(), mk()}); err == nil {
		t.Fatal("duplicate tool names must be rejected")
	}
}

func TestRegistry_SchemasSorted(t *testing.T) {
	nop := func(ctx context.Context, args json.RawMessage) (map[string]any, error) { return nil, nil }
	reg, err := NewRegistry([]Tool{
		&fakeTool{name: "zeta", fn: nop},
		&fakeTool{name: "alpha", fn: nop},
		&fakeTool{name: "mid", fn: nop},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	schemas := reg.Schemas()
	want := []string{"alpha", "mid", "zeta"}
	for i, s := range schemas {
		if s.Name != want[i] {
			t.Errorf("schemas[%d] = %q, want %q", i, s.Name, want[i])
		}
	}
}

func TestRegistry_Validate(t *testing.T) {
	tool := &fakeTool{
		name:   "tmdb_search",
		schema: `{"type":"object","required":["query"],"properties":{"query":{"type":"string"},"year":{"type":"integer"}}}`,
		fn:     func(ctx context.Context, args json.RawMessage) (map[string]any, error) { return nil, nil },
	}
	reg, err := NewRegistry([]Tool{tool})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if _, err := reg.Validate("tmdb_search", json.RawMessage(`{"query":"dune","year":2021}`)); err != nil {
		t.Errorf("valid arguments rejected: %v", err)
	}
	if _, err := reg.Validate("tmdb_search", json.RawMessage(`{"year":2021}`)); err == nil {
		t.Error("missing required field should be rejected")
	}
	if _, err := reg.Validate("tmdb_search", json.RawMessage(`{"query":1}`)); err == nil {
		t.Error("wrong field type should be rejected")
	}
	if _, err := reg.Validate("tmdb_search", json.RawMessage(`[1,2]`)); err == nil {
		t.Error("non-object arguments should be rejected")
	}
	if _, err := reg.Validate("tmdb_search", nil); err == nil {
		t.Error("empty arguments should fail a required-field schema")
	}
}

func TestRegistry_InvalidSchemaRejected(t *testing.T) {
	tool := &fakeTool{
		name:   "broken",
		schema: `{"type":`,
		fn:     func(ctx context.Context, args json.RawMessage) (map[string]any, error) { return nil, nil },
	}
	if _, err := NewRegistry([]Tool{tool}); err == nil {
		t.Fatal("malformed schema must fail construction")
	}
}

func TestBoundRegistries_Memoized(t *testing.T) {
	builds := 0
	factory := NewBoundRegistries(func(client LLMClient) ([]Tool, error) {
		builds++
		return []Tool{&fakeTool{name: "prefs_query", fn: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			return nil, nil
		}}}, nil
	})

	client := &scriptedClient{}
	a, err := factory.For(client)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	b, err := factory.For(client)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if a != b {
		t.Error("same client should get the same registry")
	}
	if builds != 1 {
		t.Errorf("build ran %d times, want 1", builds)
	}
}
