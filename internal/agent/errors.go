package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// Common sentinel errors for agent operations.
var (
	// ErrMaxIterations indicates the loop exceeded its iteration limit.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNoClient indicates no LLM client is configured.
	ErrNoClient = errors.New("no LLM client configured")

	// ErrToolNotFound indicates a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")
)

// ClassifyError maps a tool failure to an error kind using the error text.
// The taxonomy drives retry policy and breaker accounting; see
// models.ErrorKind for the semantics of each kind.
func ClassifyError(err error) models.ErrorKind {
	if err == nil {
		return models.ErrKindRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ErrKindTimeout
	}

	text := strings.ToLower(err.Error())

	switch {
	case containsAny(text,
		"timeout", "timed out", "deadline exceeded", "context deadline"):
		return models.ErrKindTimeout

	case containsAny(text,
		"rate limit", "rate_limit", "too many requests", "429",
		"service unavailable", "503", "quota"):
		return models.ErrKindRateLimited

	case containsAny(text,
		"unauthorized", "401", "forbidden", "403", "authentication",
		"invalid api key", "api key required", "validation", "invalid request",
		"bad request", "already exists", "already been added"):
		return models.ErrKindNonRetryable

	case containsAny(text,
		"connection", "network", "dns", "refused", "unreachable", "reset",
		"internal server error", "500", "502", "bad gateway"):
		return models.ErrKindRetryable

	default:
		return models.ErrKindRetryable
	}
}

// IsAlreadyExists reports whether an error is the duplicate-add rejection
// some services return. Write adapters upgrade these to success with an
// already_exists annotation.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "already exists") ||
		strings.Contains(text, "already been added")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func failure(call models.ToolCall, kind models.ErrorKind, msg string) models.ToolResult {
	return models.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Error:    &models.ToolFailure{Kind: kind, Message: msg},
	}
}
