package providers

import (
	"errors"
	"os"
	"strings"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
)

// FromEnv builds the client for a model id using API keys from the
// environment. Claude models use ANTHROPIC_API_KEY; everything else goes
// through the OpenAI-compatible path with OPENAI_API_KEY and an optional
// OPENAI_BASE_URL.
func FromEnv(model string) (agent.LLMClient, error) {
	if strings.HasPrefix(model, "claude") {
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropic(key)
	}

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	return NewOpenAI(key, os.Getenv("OPENAI_BASE_URL"))
}
