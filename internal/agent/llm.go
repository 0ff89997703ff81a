package agent

import (
	"context"

	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// ToolChoice constrains how the LLM may respond to a request.
type ToolChoice string

const (
	// ToolChoiceUnset lets the provider default apply.
	ToolChoiceUnset ToolChoice = ""

	// ToolChoiceAuto lets the model decide between text and tool calls.
	ToolChoiceAuto ToolChoice = "auto"

	// ToolChoiceRequired forces the model to emit at least one tool call.
	ToolChoiceRequired ToolChoice = "required"

	// ToolChoiceNone forbids tool calls; used for finalization. Requests
	// carrying it omit the tool list entirely.
	ToolChoiceNone ToolChoice = "none"
)

// ChatRequest is one LLM invocation.
type ChatRequest struct {
	Model      string
	Messages   []models.Message
	Tools      []ToolSchema
	ToolChoice ToolChoice
}

// ChatResponse is the model's reply: free text, tool calls, or both.
// Providers normalize their native shapes into this.
type ChatResponse struct {
	Content   string
	ToolCalls []models.ToolCall
}

// LLMClient abstracts a chat-completion provider.
type LLMClient interface {
	// Chat performs a blocking completion.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// StreamChat streams the completion's text deltas through onChunk and
	// returns the assembled response. Providers that cannot stream may fall
	// back to a blocking call with a single chunk.
	StreamChat(ctx context.Context, req ChatRequest, onChunk func(delta string)) (ChatResponse, error)
}
