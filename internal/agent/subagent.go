package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// SubAgent runs bounded research tasks on behalf of the main loop: one tool
// turn, then a forced answer. Workers share the process-wide caches and
// breakers but use the cheaper worker model.
type SubAgent struct {
	client     LLMClient
	registry   *Registry
	scheduler  *Scheduler
	summarizer *Summarizer
	cfg        *config.Config
	log        *slog.Logger
}

// NewSubAgent wires a sub-agent runner.
func NewSubAgent(client LLMClient, registry *Registry, scheduler *Scheduler, summarizer *Summarizer, cfg *config.Config, log *slog.Logger) *SubAgent {
	if log == nil {
		log = slog.Default()
	}
	return &SubAgent{
		client:     client,
		registry:   registry,
		scheduler:  scheduler,
		summarizer: summarizer,
		cfg:        cfg,
		log:        log,
	}
}

// Run executes one research task and returns the worker's answer. The dedup
// map is the parent run's, so workers never repeat the parent's calls.
func (s *SubAgent) Run(ctx context.Context, task string, dedup *cache.RunDedup, emit EventFunc) (string, error) {
	if s.client == nil {
		return "", ErrNoClient
	}
	if dedup == nil {
		dedup = cache.NewRunDedup()
	}
	model := s.cfg.LLM.Models["worker"]
	if model == "" {
		model = s.cfg.LLM.Models["quick"]
	}

	messages := []models.Message{
		{Role: models.RoleSystem, Content: workerPrompt},
		{Role: models.RoleUser, Content: task},
	}

	started := time.Now()
	resp, err := s.client.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    s.registry.Schemas(),
	})
	if err != nil {
		return "", fmt.Errorf("worker request: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		return resp.Content, nil
	}

	// Writes are never delegated to workers.
	allowed, dropped := FilterCalls(PhaseReadOnly, resp.ToolCalls)
	if len(dropped) > 0 {
		s.log.Warn("worker requested write calls, dropped",
			"task", task, "count", len(dropped))
	}
	if len(allowed) == 0 {
		return "", fmt.Errorf("worker produced only write calls for task %q", task)
	}

	messages = append(messages, models.Message{Role: models.RoleAssistant, ToolCalls: allowed})

	results := s.scheduler.ExecuteTurn(ctx, allowed, dedup, emit)
	for i := range results {
		messages = append(messages, s.toolMessage(&results[i]))
	}

	// Finalize with tools withheld so the worker must answer.
	final, err := s.client.Chat(ctx, ChatRequest{
		Model:      model,
		Messages:   messages,
		ToolChoice: ToolChoiceNone,
	})
	if err != nil {
		return "", fmt.Errorf("worker finalization: %w", err)
	}
	s.log.Debug("worker finished",
		"task", task, "tools", len(allowed), "duration", time.Since(started))
	return final.Content, nil
}

func (s *SubAgent) toolMessage(r *models.ToolResult) models.Message {
	var payload map[string]any
	if r.OK() {
		payload = map[string]any{
			"ref_id":  r.RefID,
			"summary": s.summarizer.Summarize(r.ToolName, r.Value, DetailCompact),
		}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"kind":    string(r.Error.Kind),
				"message": r.Error.Message,
			},
		}
	}
	body, _ := json.Marshal(payload)
	return models.Message{
		Role:     models.RoleTool,
		Content:  string(body),
		CallID:   r.CallID,
		ToolName: r.ToolName,
	}
}
