package agent

import (
	"strings"
	"unicode/utf8"
)

// DetailLevel controls how much of a tool result survives summarization into
// the conversation context. The full payload always stays addressable via its
// ref id.
type DetailLevel int

const (
	DetailMinimal DetailLevel = iota
	DetailCompact
	DetailStandard
	DetailDetailed
)

// maxStringLen caps long free-text fields like overviews.
const maxStringLen = 280

// smallListMax is the size at or below which list items pass through whole;
// trimming two results saves nothing and loses fields the model may want.
const smallListMax = 2

// listKeys are the top-level fields treated as result lists.
var listKeys = map[string]bool{
	"items":       true,
	"results":     true,
	"movies":      true,
	"series":      true,
	"episodes":    true,
	"playlists":   true,
	"collections": true,
}

// fieldTiers lists, per family, the item fields kept at each detail level.
// Levels are cumulative: Standard keeps everything Compact does plus its own.
var fieldTiers = map[Family][4][]string{
	FamilyTMDb: {
		{"id", "title", "name"},
		{"media_type", "release_date", "first_air_date", "vote_average"},
		{"overview", "popularity", "year"},
		{"genre_ids", "original_language", "poster_path"},
	},
	FamilyPlex: {
		{"ratingKey", "title", "type"},
		{"year", "addedAt", "viewCount"},
		{"summary", "rating", "duration"},
		{"guid", "librarySectionTitle", "lastViewedAt"},
	},
	FamilyRadarr: {
		{"id", "tmdbId", "title"},
		{"year", "hasFile", "monitored"},
		{"status", "qualityProfileId", "sizeOnDisk"},
		{"path", "added", "minimumAvailability"},
	},
	FamilySonarr: {
		{"id", "tvdbId", "title"},
		{"year", "monitored", "seasonCount"},
		{"status", "network", "qualityProfileId"},
		{"path", "added", "episodeFileCount"},
	},
}

// Summarizer shrinks tool values for LLM context while keeping enough signal
// for the model to act. Summarization is idempotent: applying it to its own
// output yields the same value.
type Summarizer struct {
	// MaxItems caps the length of each summarized list.
	MaxItems int
}

// NewSummarizer returns a summarizer keeping at most maxItems list entries.
func NewSummarizer(maxItems int) *Summarizer {
	if maxItems <= 0 {
		maxItems = 5
	}
	return &Summarizer{MaxItems: maxItems}
}

// Summarize produces the compact rendering of one tool value.
func (s *Summarizer) Summarize(toolName string, value map[string]any, level DetailLevel) map[string]any {
	if value == nil {
		return nil
	}
	family := ClassifyFamily(toolName)
	allowed := allowedFields(family, level)

	out := make(map[string]any, len(value))
	for key, v := range value {
		switch {
		case listKeys[key]:
			list, ok := v.([]any)
			if !ok {
				out[key] = v
				continue
			}
			items, total := s.trimList(list, value, key, allowed)
			out[key] = items
			out[key+"_total"] = total
		case strings.HasSuffix(key, "_total"):
			// Re-summarizing an already summarized value keeps its totals.
			if _, present := out[key]; !present {
				out[key] = v
			}
		default:
			out[key] = capValue(v)
		}
	}
	return out
}

// trimList truncates a list to MaxItems and filters item fields. total is the
// original list length, or a previously recorded total when re-summarizing.
func (s *Summarizer) trimList(list []any, value map[string]any, key string, allowed map[string]bool) ([]any, float64) {
	total := float64(len(list))
	if prior, ok := value[key+"_total"].(float64); ok && prior > total {
		total = prior
	}

	items := list
	if len(items) > s.MaxItems {
		items = items[:s.MaxItems]
	}

	if len(list) <= smallListMax {
		return items, total
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		filtered := make(map[string]any, len(allowed))
		for field, fv := range m {
			if allowed == nil || allowed[field] {
				filtered[field] = capValue(fv)
			}
		}
		if len(filtered) == 0 {
			// Unknown shape; keep the item rather than erasing it.
			filtered = m
		}
		out = append(out, filtered)
	}
	return out, total
}

// allowedFields merges the family's tiers up to the given level. nil means
// no filtering for families without a tier table.
func allowedFields(family Family, level DetailLevel) map[string]bool {
	tiers, ok := fieldTiers[family]
	if !ok {
		return nil
	}
	if level < DetailMinimal {
		level = DetailMinimal
	}
	if level > DetailDetailed {
		level = DetailDetailed
	}
	allowed := make(map[string]bool)
	for i := DetailMinimal; i <= level; i++ {
		for _, f := range tiers[i] {
			allowed[f] = true
		}
	}
	return allowed
}

// capValue truncates long strings; other scalars pass through unchanged.
// Truncation backs up to a rune boundary so multibyte text stays valid UTF-8.
func capValue(v any) any {
	s, ok := v.(string)
	if !ok || len(s) <= maxStringLen {
		return v
	}
	cut := maxStringLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
