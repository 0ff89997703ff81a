package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// UpdateTool records or removes a member's preference note.
type UpdateTool struct {
	store *Store
}

func NewUpdateTool(store *Store) *UpdateTool { return &UpdateTool{store: store} }

func (t *UpdateTool) Name() string { return "prefs_update" }

func (t *UpdateTool) Description() string {
	return "Record a household member's viewing preference, or remove one that no longer holds. Use action=remove with a phrase matching the old note."
}

func (t *UpdateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "member": { "type": "string", "description": "Household member name" },
    "note": { "type": "string", "description": "The preference, stated plainly, e.g. 'hates horror'" },
    "action": { "type": "string", "enum": ["add", "remove"], "description": "add (default) records the note; remove drops notes containing it" }
  },
  "required": ["member", "note"]
}`)
}

func (t *UpdateTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Member string `json:"member"`
		Note   string `json:"note"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("prefs: invalid parameters: %w", err)
	}

	if input.Action == "remove" {
		removed, err := t.store.RemoveNotes(input.Member, input.Note)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"member":  input.Member,
			"removed": removed,
		}, nil
	}

	if err := t.store.AddNote(input.Member, input.Note); err != nil {
		return nil, err
	}
	return map[string]any{
		"member": input.Member,
		"note":   input.Note,
		"saved":  true,
	}, nil
}

const queryPrompt = `You answer questions about a household's viewing preferences.
Use only the notes below. If the notes do not cover the question, say so.
Answer in one or two short sentences.`

// QueryTool answers natural-language questions over the stored notes by
// asking the model to read them. It is the reason the tool registry is bound
// per LLM client.
type QueryTool struct {
	store  *Store
	client agent.LLMClient
	model  string
}

func NewQueryTool(store *Store, client agent.LLMClient, model string) *QueryTool {
	return &QueryTool{store: store, client: client, model: model}
}

func (t *QueryTool) Name() string { return "prefs_query" }

func (t *QueryTool) Description() string {
	return "Ask a question about the household's stored viewing preferences, e.g. 'does anyone dislike horror?'"
}

func (t *QueryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "question": { "type": "string", "description": "The question to answer from stored preferences" }
  },
  "required": ["question"]
}`)
}

func (t *QueryTool) Execute(ctx context.Context, args json.RawMessage) (map[string]any, error) {
	var input struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("prefs: invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("prefs: question is required")
	}

	notes, err := t.store.Snapshot()
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return map[string]any{"answer": "No preferences have been recorded yet."}, nil
	}

	doc, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("prefs: encode notes: %w", err)
	}

	resp, err := t.client.Chat(ctx, agent.ChatRequest{
		Model: t.model,
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: queryPrompt},
			{Role: models.RoleUser, Content: "Preferences:\n" + string(doc) + "\n\nQuestion: " + input.Question},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prefs: query model: %w", err)
	}
	return map[string]any{"answer": resp.Content}, nil
}
