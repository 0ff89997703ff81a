package prefs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStore_AddAndSnapshot(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddNote("sam", "hates horror"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := store.AddNote("sam", "loves sci-fi"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := store.AddNote("alex", "prefers subtitles"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap["sam"]) != 2 || snap["sam"][0] != "hates horror" {
		t.Errorf("sam notes = %v", snap["sam"])
	}
	if len(snap["alex"]) != 1 {
		t.Errorf("alex notes = %v", snap["alex"])
	}

	members, err := store.Members()
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 2 || members[0] != "alex" || members[1] != "sam" {
		t.Errorf("members = %v", members)
	}
}

func TestStore_RemoveNotesMatchesCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	store.AddNote("sam", "Hates Horror movies")
	store.AddNote("sam", "loves sci-fi")

	removed, err := store.RemoveNotes("sam", "horror")
	if err != nil {
		t.Fatalf("RemoveNotes: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d", removed)
	}

	snap, _ := store.Snapshot()
	if len(snap["sam"]) != 1 || snap["sam"][0] != "loves sci-fi" {
		t.Errorf("remaining = %v", snap["sam"])
	}
}

func TestStore_RemoveLastNoteDropsMember(t *testing.T) {
	store := newTestStore(t)
	store.AddNote("sam", "hates horror")

	if _, err := store.RemoveNotes("sam", "horror"); err != nil {
		t.Fatalf("RemoveNotes: %v", err)
	}
	members, _ := store.Members()
	if len(members) != 0 {
		t.Errorf("members = %v", members)
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("snap = %v", snap)
	}
}

func TestUpdateTool_AddAndRemove(t *testing.T) {
	store := newTestStore(t)
	tool := NewUpdateTool(store)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"member": "sam", "note": "hates horror"}`))
	if err != nil {
		t.Fatalf("Execute add: %v", err)
	}
	if out["saved"] != true {
		t.Errorf("out = %v", out)
	}

	out, err = tool.Execute(context.Background(), json.RawMessage(`{"member": "sam", "note": "horror", "action": "remove"}`))
	if err != nil {
		t.Fatalf("Execute remove: %v", err)
	}
	if out["removed"] != 1 {
		t.Errorf("out = %v", out)
	}
}

// scriptedClient returns a canned answer and records the request.
type scriptedClient struct {
	answer  string
	lastReq agent.ChatRequest
}

func (c *scriptedClient) Chat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error) {
	c.lastReq = req
	return agent.ChatResponse{Content: c.answer}, nil
}

func (c *scriptedClient) StreamChat(ctx context.Context, req agent.ChatRequest, onChunk func(string)) (agent.ChatResponse, error) {
	return c.Chat(ctx, req)
}

func TestQueryTool_SendsNotesToModel(t *testing.T) {
	store := newTestStore(t)
	store.AddNote("sam", "hates horror")

	client := &scriptedClient{answer: "Sam hates horror."}
	tool := NewQueryTool(store, client, "quick-model")

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"question": "does anyone dislike horror?"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out["answer"] != "Sam hates horror." {
		t.Errorf("answer = %v", out["answer"])
	}
	if client.lastReq.Model != "quick-model" {
		t.Errorf("model = %q", client.lastReq.Model)
	}
	if len(client.lastReq.Tools) != 0 {
		t.Errorf("query request should carry no tools")
	}
	user := client.lastReq.Messages[len(client.lastReq.Messages)-1].Content
	if !strings.Contains(user, "hates horror") || !strings.Contains(user, "does anyone dislike horror?") {
		t.Errorf("user message = %q", user)
	}
}

func TestQueryTool_EmptyStoreShortCircuits(t *testing.T) {
	store := newTestStore(t)
	client := &scriptedClient{answer: "should not be called"}
	tool := NewQueryTool(store, client, "quick-model")

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"question": "anything?"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	answer, _ := out["answer"].(string)
	if !strings.Contains(answer, "No preferences") {
		t.Errorf("answer = %q", answer)
	}
	if client.lastReq.Model != "" {
		t.Error("model should not be called for an empty store")
	}
}
