// Package prefs stores and answers questions about household viewing
// preferences.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is a JSON file of per-member preference notes. Small enough to read
// and rewrite whole; writes go through a temp file and rename.
type Store struct {
	mu   sync.Mutex
	path string
}

// document is the on-disk shape.
type document struct {
	Members map[string][]note `json:"members"`
}

type note struct {
	Text  string    `json:"text"`
	Added time.Time `json:"added"`
}

// NewStore creates a store backed by path. The file is created on first
// write.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("prefs: path is required")
	}
	return &Store{path: path}, nil
}

// Snapshot returns every member's notes, oldest first.
func (s *Store) Snapshot() (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(doc.Members))
	for member, notes := range doc.Members {
		texts := make([]string, len(notes))
		for i, n := range notes {
			texts[i] = n.Text
		}
		out[member] = texts
	}
	return out, nil
}

// AddNote appends a preference note for a member.
func (s *Store) AddNote(member, text string) error {
	if member == "" || text == "" {
		return fmt.Errorf("prefs: member and note are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Members[member] = append(doc.Members[member], note{Text: text, Added: time.Now()})
	return s.save(doc)
}

// RemoveNotes drops every note for a member containing the phrase, returning
// how many were removed.
func (s *Store) RemoveNotes(member, phrase string) (int, error) {
	if member == "" || phrase == "" {
		return 0, fmt.Errorf("prefs: member and phrase are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, err
	}
	needle := strings.ToLower(phrase)
	notes := doc.Members[member]
	kept := notes[:0]
	removed := 0
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Text), needle) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	if removed == 0 {
		return 0, nil
	}
	if len(kept) == 0 {
		delete(doc.Members, member)
	} else {
		doc.Members[member] = kept
	}
	return removed, s.save(doc)
}

// Members lists members with stored preferences, sorted.
func (s *Store) Members() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(doc.Members))
	for m := range doc.Members {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Members: map[string][]note{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("prefs: parse %s: %w", s.path, err)
	}
	if doc.Members == nil {
		doc.Members = map[string][]note{}
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("prefs: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("prefs: rename: %w", err)
	}
	return nil
}
