package plex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL, Token: "plex-token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSearch_FlattensMediaContainer(t *testing.T) {
	var gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Plex-Token")
		json.NewEncoder(w).Encode(map[string]any{
			"MediaContainer": map[string]any{
				"size": 2,
				"Metadata": []any{
					map[string]any{"ratingKey": "101", "title": "Dune"},
					map[string]any{"ratingKey": "102", "title": "Dune: Part Two"},
				},
			},
		})
	})

	out, err := client.Search(context.Background(), "dune")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotToken != "plex-token" {
		t.Errorf("token header = %q", gotToken)
	}
	items, ok := out["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", out["items"])
	}
	if out["size"] != float64(2) {
		t.Errorf("size = %v", out["size"])
	}
}

func TestSearch_EmptyContainerYieldsEmptyItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"MediaContainer": map[string]any{"size": 0}})
	})

	out, err := client.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	items, ok := out["items"].([]any)
	if !ok || len(items) != 0 {
		t.Errorf("items = %v", out["items"])
	}
}

func TestRate_ValidatesInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if _, err := client.Rate(context.Background(), "", 5); err == nil {
		t.Error("expected error for empty rating key")
	}
	if _, err := client.Rate(context.Background(), "101", 11); err == nil {
		t.Error("expected error for rating out of range")
	}
}

func TestRate_EmptyBodyIsSuccess(t *testing.T) {
	var gotMethod string
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = map[string]string{
			"key":        r.URL.Query().Get("key"),
			"rating":     r.URL.Query().Get("rating"),
			"identifier": r.URL.Query().Get("identifier"),
		}
		w.WriteHeader(http.StatusOK)
	})

	out, err := client.Rate(context.Background(), "101", 8)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q", gotMethod)
	}
	if gotQuery["key"] != "101" || gotQuery["rating"] != "8" || gotQuery["identifier"] != "com.plexapp.plugins.library" {
		t.Errorf("query = %v", gotQuery)
	}
	if out["success"] != true {
		t.Errorf("out = %v", out)
	}
}
