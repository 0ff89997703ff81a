package agent

import (
	"strings"

	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// Phase is the loop's tool discipline state. Runs start read-only, move to
// the write phase once context is gathered, and enter validation after a
// successful write to confirm it took effect.
type Phase int

const (
	PhaseReadOnly Phase = iota
	PhaseWrite
	PhaseValidation
)

func (p Phase) String() string {
	switch p {
	case PhaseReadOnly:
		return "read_only"
	case PhaseWrite:
		return "write"
	case PhaseValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// FilterCalls drops write-style calls when the phase forbids them. Dropped
// calls are returned so the loop can tell the model why they did not run.
func FilterCalls(phase Phase, calls []models.ToolCall) (allowed, dropped []models.ToolCall) {
	if phase == PhaseWrite {
		return calls, nil
	}
	for _, call := range calls {
		if IsWriteStyle(call.Name) {
			dropped = append(dropped, call)
		} else {
			allowed = append(allowed, call)
		}
	}
	return allowed, dropped
}

// writeVerbs and writeTargets drive write-intent inference over the user's
// request text. A verb plus a target in the same message signals that the run
// must perform a mutation before it may finalize.
var writeVerbs = []string{"add", "delete", "remove", "update", "monitor", "set"}

var writeTargets = []string{
	"radarr", "sonarr", "rating", "watchlist", "queue",
	"library", "download", "collection",
}

// InferWriteIntent reports whether the user's message asks for a mutation.
// Bare "add <title>" counts even without a named target; adding media is the
// dominant write request.
func InferWriteIntent(text string) bool {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	hasVerb := false
	for _, verb := range writeVerbs {
		for _, w := range words {
			if strings.Trim(w, ".,!?") == verb {
				hasVerb = true
				break
			}
		}
		if hasVerb {
			break
		}
	}
	if !hasVerb {
		return false
	}

	for _, target := range writeTargets {
		if strings.Contains(lower, target) {
			return true
		}
	}

	// "add the matrix", "add dune to plex" and similar.
	for i, w := range words {
		if strings.Trim(w, ".,!?") == "add" && i+1 < len(words) {
			return true
		}
	}
	return false
}
