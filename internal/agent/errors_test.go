package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want models.ErrorKind
	}{
		{context.DeadlineExceeded, models.ErrKindTimeout},
		{errors.New("request timed out after 8s"), models.ErrKindTimeout},
		{errors.New("429 Too Many Requests"), models.ErrKindRateLimited},
		{errors.New("rate limit exceeded"), models.ErrKindRateLimited},
		{errors.New("503 Service Unavailable"), models.ErrKindRateLimited},
		{errors.New("401 Unauthorized"), models.ErrKindNonRetryable},
		{errors.New("403 Forbidden"), models.ErrKindNonRetryable},
		{errors.New("validation failed: rootFolderPath is required"), models.ErrKindNonRetryable},
		{errors.New("movie already exists in library"), models.ErrKindNonRetryable},
		{errors.New("500 Internal Server Error"), models.ErrKindRetryable},
		{errors.New("connection refused"), models.ErrKindRetryable},
		{errors.New("something odd happened"), models.ErrKindRetryable},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%q) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestClassifyError_WrappedDeadline(t *testing.T) {
	err := fmt.Errorf("plex: %w", context.DeadlineExceeded)
	if got := ClassifyError(err); got != models.ErrKindTimeout {
		t.Errorf("wrapped deadline = %s, want timeout", got)
	}
}

func TestIsAlreadyExists(t *testing.T) {
	if !IsAlreadyExists(errors.New("This movie has already been added")) {
		t.Error("radarr duplicate message should match")
	}
	if IsAlreadyExists(errors.New("not found")) {
		t.Error("unrelated error should not match")
	}
	if IsAlreadyExists(nil) {
		t.Error("nil should not match")
	}
}
