// Package cache provides tool-result deduplication, the cross-run result
// cache, and the ref-id store for full tool payloads.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// queryFields are argument keys whose string values are case- and
// whitespace-insensitive for key purposes. The arguments actually passed to
// the tool are not modified.
var queryFields = map[string]bool{
	"query": true,
	"q":     true,
	"title": true,
	"name":  true,
}

// CanonicalKey produces a stable key for (tool, args): map keys are
// deep-sorted and query-like string fields are lowercased and trimmed.
// Permuting argument keys yields the same key.
func CanonicalKey(tool string, args json.RawMessage) (string, error) {
	var parsed any
	if len(args) == 0 {
		parsed = map[string]any{}
	} else if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("canonicalize %s args: %w", tool, err)
	}

	var sb strings.Builder
	sb.WriteString(tool)
	sb.WriteByte('|')
	writeCanonical(&sb, parsed, false)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:16]), nil
}

// writeCanonical renders a JSON value deterministically. queryField marks
// string values reached through a query-like key.
func writeCanonical(sb *strings.Builder, v any, queryField bool) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(k)
			sb.WriteByte(':')
			writeCanonical(sb, val[k], queryFields[k])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item, false)
		}
		sb.WriteByte(']')
	case string:
		if queryField {
			val = strings.ToLower(strings.TrimSpace(val))
		}
		// Length-prefix so "ab","c" and "a","bc" cannot collide.
		fmt.Fprintf(sb, "s%d:%s", len(val), val)
	case float64:
		fmt.Fprintf(sb, "n%v", val)
	case bool:
		fmt.Fprintf(sb, "b%t", val)
	case nil:
		sb.WriteString("null")
	default:
		fmt.Fprintf(sb, "?%v", val)
	}
}
