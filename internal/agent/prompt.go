package agent

import (
	"fmt"
	"strings"
	"time"
)

// systemPrompt is the agent's standing instruction set. Kept deliberately
// short; tool descriptions carry the per-service detail.
const systemPrompt = `You are MovieBot, the household media assistant. You manage the family's
Plex library and the Radarr/Sonarr download queue, look up titles on TMDb,
and remember household viewing preferences.

Rules:
- Gather context with read tools before changing anything.
- After any change, confirm it with a read before reporting success.
- When a tool reports an error, tell the user plainly; never pretend it worked.
- Answer in one short, friendly message. No markdown tables.
- Results are truncated; use fetch_details with a ref_id when you need the
  full payload for an earlier result.`

// BuildSystemPrompt renders the system message, stamping the current date so
// "newest season" style questions resolve correctly. preferences, when
// non-empty, gives the model the household's recorded tastes up front.
// mustWrite adds a standing directive for requests that ask for a change.
func BuildSystemPrompt(now time.Time, preferences string, mustWrite bool) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	fmt.Fprintf(&b, "\n\nToday is %s.", now.Format("Monday, January 2, 2006"))
	if preferences != "" {
		b.WriteString("\n\nHousehold preferences:\n")
		b.WriteString(preferences)
	}
	if mustWrite {
		b.WriteString("\n\n")
		b.WriteString(mustWriteDirective)
	}
	return b.String()
}

// mustWriteDirective goes into the system prompt when the user's request asks
// for a mutation, so the model acts instead of narrating.
const mustWriteDirective = `The user is asking you to make a change. Carry it out with the appropriate
write tool and confirm it with a read before answering. Never report the
change as done without having performed it.`

// workerPrompt instructs sub-agents, which get one tool turn and must then
// report back.
const workerPrompt = `You are a research worker for a media assistant. Use the available tools
once to gather exactly what the task asks for, then answer concisely with
the facts you found. Do not address the user; your output goes to another
agent.`

// toolsRequiredNote is injected when the model tries to finish a mutation
// request without having performed the mutation.
const toolsRequiredNote = `You have not completed the requested change yet. Use the appropriate tools
to perform it now; do not answer the user until the change is made and
confirmed.`

// droppedWritesNote explains write calls filtered out by phase discipline.
func droppedWritesNote(names []string) string {
	return fmt.Sprintf(
		"The following calls were not executed because changes are not allowed yet in this step: %s. Gather context first, then retry them.",
		strings.Join(names, ", "))
}

// prunedContextNote replaces tool message groups dropped from the context.
const prunedContextNote = "Earlier tool results were removed to save space. Use fetch_details with a ref_id to recover anything you still need."
