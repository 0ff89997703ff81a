package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is an immutable set of tools with their compiled argument schemas.
// Construct once at startup; lookups are lock-free.
type Registry struct {
	tools      map[string]Tool
	schemas    []ToolSchema
	validators map[string]*jsonschema.Schema
}

// NewRegistry builds a registry from tools, compiling each argument schema.
// Duplicate names and invalid schemas are construction errors.
func NewRegistry(tools []Tool) (*Registry, error) {
	r := &Registry{
		tools:      make(map[string]Tool, len(tools)),
		validators: make(map[string]*jsonschema.Schema, len(tools)),
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		name := t.Name()
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools[name] = t
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := r.tools[name]
		raw := t.Schema()
		if len(raw) == 0 {
			raw = json.RawMessage(`{"type":"object"}`)
		}

		compiler := jsonschema.NewCompiler()
		url := "inline://" + name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", name, err)
		}
		r.validators[name] = schema

		r.schemas = append(r.schemas, ToolSchema{
			Name:        name,
			Description: t.Description(),
			Parameters:  raw,
		})
	}
	return r, nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the LLM-visible tool descriptors in stable name order.
func (r *Registry) Schemas() []ToolSchema {
	return r.schemas
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Validate decodes and checks the raw arguments for a tool against its
// schema. Returns the decoded arguments on success.
func (r *Registry) Validate(name string, args json.RawMessage) (map[string]any, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	if v := r.validators[name]; v != nil {
		if err := v.Validate(decoded); err != nil {
			return nil, fmt.Errorf("arguments rejected by schema: %w", err)
		}
	}
	return obj, nil
}

// boundRegistries memoizes per-client registries so that tools needing an LLM
// (the preferences query tool) are constructed once per client.
type boundRegistries struct {
	mu    sync.Mutex
	build func(LLMClient) ([]Tool, error)
	cache map[LLMClient]*Registry
}

// NewBoundRegistries creates a memoizing factory for client-bound registries.
// build receives the client and returns the full tool set, including any
// tools that call back into the LLM.
func NewBoundRegistries(build func(LLMClient) ([]Tool, error)) *boundRegistries {
	return &boundRegistries{
		build: build,
		cache: make(map[LLMClient]*Registry),
	}
}

// For returns the registry bound to client, constructing it on first use.
func (b *boundRegistries) For(client LLMClient) (*Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.cache[client]; ok {
		return r, nil
	}
	tools, err := b.build(client)
	if err != nil {
		return nil, err
	}
	r, err := NewRegistry(tools)
	if err != nil {
		return nil, err
	}
	b.cache[client] = r
	return r, nil
}
