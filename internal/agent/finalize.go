package agent

import (
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// Finalizable decides whether the run may stop calling tools and compose its
// final answer from the latest batch of results.
//
// The gate is conservative: errors, pending writes, and unvalidated writes
// all keep the loop going. Only a batch of clean results with real content,
// with no outstanding write obligation, opens it.
func Finalizable(results []models.ToolResult, st *RunState) bool {
	if len(results) == 0 {
		return false
	}

	wroteThisBatch := false
	for i := range results {
		r := &results[i]
		if !r.OK() {
			return false
		}
		if IsWriteStyle(r.ToolName) {
			wroteThisBatch = true
		}
	}

	if wroteThisBatch && !st.ValidationDone {
		// A fresh write must be confirmed by a read before finalizing.
		return false
	}
	if st.MustWrite && !st.WriteCompleted {
		return false
	}
	if st.SeenWriteIntent && !st.WriteCompleted {
		return false
	}

	for i := range results {
		if hasContent(results[i].Value) {
			return true
		}
	}
	return false
}

// hasContent reports whether a tool value carries something worth answering
// with: a non-empty result list or any meaningful scalar.
func hasContent(value map[string]any) bool {
	if len(value) == 0 {
		return false
	}
	sawList := false
	for key, v := range value {
		if listKeys[key] {
			sawList = true
			if list, ok := v.([]any); ok && len(list) > 0 {
				return true
			}
			continue
		}
		switch v.(type) {
		case map[string]any, []any, nil:
		default:
			return true
		}
	}
	// Values made only of empty lists have nothing to say yet.
	return !sawList && len(value) > 0
}
