package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation context passed to the LLM.
//
// An assistant message that declares ToolCalls must be followed by one tool
// message per declared call, in the same order, before the next assistant
// turn. The loop enforces this when appending results.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// CallID and ToolName are set on tool messages to correlate the result
	// with the assistant's declared call.
	CallID   string `json:"tool_call_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a structured request from the LLM to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ErrorKind categorizes tool failures for retry, breaker, and reporting.
type ErrorKind string

const (
	ErrKindInvalidJSON  ErrorKind = "invalid_json"
	ErrKindTimeout      ErrorKind = "timeout"
	ErrKindCircuitOpen  ErrorKind = "circuit_open"
	ErrKindRetryable    ErrorKind = "retryable"
	ErrKindNonRetryable ErrorKind = "non_retryable"
	ErrKindRateLimited  ErrorKind = "rate_limited"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindRetryable, ErrKindTimeout, ErrKindRateLimited:
		return true
	default:
		return false
	}
}

// CountsTowardBreaker reports whether this failure increments the per-tool
// circuit breaker. Argument parse failures and breaker short-circuits do not.
func (k ErrorKind) CountsTowardBreaker() bool {
	switch k {
	case ErrKindInvalidJSON, ErrKindCircuitOpen:
		return false
	default:
		return true
	}
}

// ToolFailure describes the error side of a ToolResult.
type ToolFailure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ToolResult is the materialized outcome of one tool invocation. Tool errors
// are never raised to the loop; they are carried here so the model can react.
type ToolResult struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`

	// Value holds the tool's structured output when the call succeeded.
	Value map[string]any `json:"value,omitempty"`

	// Error is set when the call failed; Value is nil in that case.
	Error *ToolFailure `json:"error,omitempty"`

	// Attempts is the number of executions performed. Zero for dedup and
	// cache hits and for calls rejected before dispatch.
	Attempts int `json:"attempts"`

	Duration time.Duration `json:"duration_ms"`
	CacheHit bool          `json:"cache_hit,omitempty"`

	// RefID addresses the full result in the result store; present on success.
	RefID string `json:"ref_id,omitempty"`
}

// OK reports whether the invocation succeeded.
func (r *ToolResult) OK() bool {
	return r.Error == nil
}
