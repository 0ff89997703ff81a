package progress

import "fmt"

// friendly per-family activity phrases. Tool names never reach the user.
var familyPhrases = map[string]string{
	"tmdb":   "Looking that up on TMDb",
	"plex":   "Checking the Plex library",
	"radarr": "Talking to Radarr",
	"sonarr": "Talking to Sonarr",
	"other":  "Checking my notes",
}

// humanize renders one engine event as a single short status line. Empty
// means the event is not user-visible.
func humanize(event string, data map[string]any) string {
	family, _ := data["family"].(string)

	switch event {
	case "agent.start":
		return "On it..."
	case "agent.finish":
		return ""
	case "llm.start":
		return "Thinking..."
	case "llm.finish":
		return ""
	case "tool.start":
		if phrase, ok := familyPhrases[family]; ok {
			return phrase + "..."
		}
		return "Working on it..."
	case "tool.finish":
		if hit, _ := data["cache_hit"].(bool); hit {
			return ""
		}
		if phrase, ok := familyPhrases[family]; ok {
			return phrase + ", done."
		}
		return ""
	case "tool.error":
		if phrase, ok := familyPhrases[family]; ok {
			return fmt.Sprintf("%s didn't work, trying another way...", phrase)
		}
		return "That didn't work, trying another way..."
	case "phase.validation_planned":
		return "Making sure that took effect..."
	default:
		// phase.read_only, phase.write_enabled, phase.validation, and
		// agent.metrics are engine-internal, not user-visible.
		return ""
	}
}
