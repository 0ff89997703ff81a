package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/observability"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// maxForcedToolRetries bounds how often the loop re-prompts a model that
// keeps answering in text while a requested change is still pending.
const maxForcedToolRetries = 2

// writeIdentity records what the last successful write targeted so the
// validation read can be checked against it.
type writeIdentity struct {
	ID    float64
	Title string
}

// RunState is the per-run mutable state of the agent loop.
type RunState struct {
	IterIndex int
	Phase     Phase

	// MustWrite is set when the user's request asks for a mutation.
	MustWrite bool

	// SeenWriteIntent is set once the model requests any write-style call.
	SeenWriteIntent bool

	// WriteCompleted and ValidationDone track the write lifecycle: a write
	// succeeded, and a subsequent read confirmed it.
	WriteCompleted bool
	ValidationDone bool

	// RequireValidationRead forces at least one read turn after a write.
	RequireValidationRead bool

	// NextToolChoice is consumed by the next LLM request, then cleared.
	NextToolChoice ToolChoice

	LastWrite writeIdentity

	Dedup *cache.RunDedup

	LLMCalls  int
	ToolCalls int
	StartedAt time.Time

	forcedToolRetries int
}

// RunOptions configures one agent run.
type RunOptions struct {
	// Role selects the iteration cap and metrics label: "agent" or "worker".
	Role string

	// Model overrides the configured model for the role.
	Model string

	// Emit receives progress events. May be nil.
	Emit EventFunc

	// Preferences is a compact rendering of the household's recorded
	// preferences, included in the system prompt when non-empty.
	Preferences string

	// OnChunk receives streamed finalization text. May be nil, in which case
	// finalization is a blocking call.
	OnChunk func(delta string)
}

// RunResult is the outcome of one run.
type RunResult struct {
	Text       string
	Iterations int
	LLMCalls   int
	ToolCalls  int
	Duration   time.Duration
}

// Loop drives the conversation: ask the model, execute its tool calls, feed
// back summarized results, and finalize when the gate opens.
type Loop struct {
	client     LLMClient
	registry   *Registry
	scheduler  *Scheduler
	summarizer *Summarizer
	cfg        *config.Config
	metrics    *observability.Metrics
	log        *slog.Logger
}

// NewLoop wires an agent loop. metrics may be nil.
func NewLoop(client LLMClient, registry *Registry, scheduler *Scheduler, summarizer *Summarizer, cfg *config.Config, metrics *observability.Metrics, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		client:     client,
		registry:   registry,
		scheduler:  scheduler,
		summarizer: summarizer,
		cfg:        cfg,
		metrics:    metrics,
		log:        log,
	}
}

// Run executes one user turn to completion. history carries prior
// conversation messages without system prompts; the loop adds its own.
func (l *Loop) Run(ctx context.Context, userText string, history []models.Message, opts RunOptions) (RunResult, error) {
	if l.client == nil {
		return RunResult{}, ErrNoClient
	}
	role := opts.Role
	if role == "" {
		role = "agent"
	}
	model := opts.Model
	if model == "" {
		model = l.cfg.LLM.Models[role]
	}

	st := &RunState{
		Phase:     PhaseReadOnly,
		MustWrite: InferWriteIntent(userText),
		Dedup:     cache.NewRunDedup(),
		StartedAt: time.Now(),
	}

	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.Message{
		Role:    models.RoleSystem,
		Content: BuildSystemPrompt(time.Now(), opts.Preferences, st.MustWrite),
	})
	messages = append(messages, history...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: userText})

	if opts.Emit != nil {
		opts.Emit("agent.start", map[string]any{"role": role})
		opts.Emit("phase.read_only", map[string]any{"must_write": st.MustWrite})
	}
	defer func() {
		if opts.Emit != nil {
			opts.Emit("agent.metrics", map[string]any{
				"llm_calls":  st.LLMCalls,
				"tool_calls": st.ToolCalls,
				"elapsed_ms": time.Since(st.StartedAt).Milliseconds(),
			})
			opts.Emit("agent.finish", map[string]any{"role": role})
		}
		if l.metrics != nil {
			l.metrics.RunDuration.Observe(time.Since(st.StartedAt).Seconds())
			l.metrics.RunIterations.Observe(float64(st.LLMCalls))
		}
	}()

	limit := l.cfg.LLM.IterLimit(role)
	var lastResults []models.ToolResult

	for st.IterIndex = 0; st.IterIndex < limit; st.IterIndex++ {
		choice := st.NextToolChoice
		st.NextToolChoice = ToolChoiceUnset

		resp, err := l.chat(ctx, role, model, messages, choice, opts)
		if err != nil {
			return l.result(st, ""), fmt.Errorf("llm request: %w", err)
		}
		st.LLMCalls++

		if choice == ToolChoiceNone {
			// Finalization turn: the reply is the answer.
			return l.result(st, resp.Content), nil
		}

		if len(resp.ToolCalls) == 0 {
			if (st.MustWrite || st.SeenWriteIntent) && !st.WriteCompleted &&
				st.forcedToolRetries < maxForcedToolRetries {
				st.forcedToolRetries++
				messages = append(messages, models.Message{
					Role:    models.RoleSystem,
					Content: toolsRequiredNote,
				})
				st.NextToolChoice = ToolChoiceRequired
				st.Phase = PhaseWrite
				continue
			}
			return l.result(st, resp.Content), nil
		}

		for _, call := range resp.ToolCalls {
			if IsWriteStyle(call.Name) {
				st.SeenWriteIntent = true
			}
		}

		allowed, dropped := FilterCalls(st.Phase, resp.ToolCalls)
		if len(allowed) == 0 {
			names := make([]string, len(dropped))
			for i, c := range dropped {
				names[i] = c.Name
			}
			messages = append(messages, models.Message{
				Role:    models.RoleSystem,
				Content: droppedWritesNote(names),
			})
			continue
		}

		// The assistant message declares exactly the calls that will run, and
		// each gets a tool message in the same order.
		messages = append(messages, models.Message{
			Role:      models.RoleAssistant,
			ToolCalls: allowed,
		})

		results := l.scheduler.ExecuteTurn(ctx, allowed, st.Dedup, opts.Emit)
		st.ToolCalls += len(allowed)
		lastResults = results

		for i := range results {
			messages = append(messages, l.toolMessage(&results[i]))
		}
		if len(dropped) > 0 {
			names := make([]string, len(dropped))
			for i, c := range dropped {
				names[i] = c.Name
			}
			messages = append(messages, models.Message{
				Role:    models.RoleSystem,
				Content: droppedWritesNote(names),
			})
		}

		messages = l.pruneContext(messages)
		l.advancePhase(st, allowed, results, opts.Emit)

		if Finalizable(results, st) {
			st.NextToolChoice = ToolChoiceNone
		}
	}

	// Iteration budget exhausted; answer with whatever we have.
	return l.result(st, fallbackText(lastResults, st)), nil
}

// chat performs one LLM request, streaming the finalization turn when a
// chunk handler is set. ToolChoiceNone requests carry no tool list.
func (l *Loop) chat(ctx context.Context, role, model string, messages []models.Message, choice ToolChoice, opts RunOptions) (ChatResponse, error) {
	req := ChatRequest{
		Model:      model,
		Messages:   messages,
		ToolChoice: choice,
	}
	if choice != ToolChoiceNone {
		req.Tools = l.registry.Schemas()
	}

	if opts.Emit != nil {
		opts.Emit("llm.start", map[string]any{"role": role})
	}
	started := time.Now()

	var resp ChatResponse
	var err error
	if choice == ToolChoiceNone && opts.OnChunk != nil {
		resp, err = l.client.StreamChat(ctx, req, opts.OnChunk)
		if err != nil {
			l.log.Warn("streaming finalization failed, retrying blocking", "error", err)
			resp, err = l.client.Chat(ctx, req)
		}
	} else {
		resp, err = l.client.Chat(ctx, req)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if l.metrics != nil {
		l.metrics.LLMRequests.WithLabelValues(role, status).Inc()
		l.metrics.LLMLatency.WithLabelValues(role).Observe(time.Since(started).Seconds())
	}
	if opts.Emit != nil {
		opts.Emit("llm.finish", map[string]any{"role": role, "status": status})
	}
	return resp, err
}

// toolMessage renders one result as the tool message fed back to the model:
// a ref id plus the summarized value, or the error.
func (l *Loop) toolMessage(r *models.ToolResult) models.Message {
	var payload map[string]any
	if r.OK() {
		payload = map[string]any{
			"ref_id":  r.RefID,
			"summary": l.summarizer.Summarize(r.ToolName, r.Value, DetailStandard),
		}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"kind":    string(r.Error.Kind),
				"message": r.Error.Message,
			},
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":{"kind":"non_retryable","message":"result could not be encoded"}}`)
	}
	return models.Message{
		Role:     models.RoleTool,
		Content:  string(body),
		CallID:   r.CallID,
		ToolName: r.ToolName,
	}
}

// pruneContext drops the oldest assistant/tool groups once the context holds
// more tool messages than configured, leaving one note in their place.
func (l *Loop) pruneContext(messages []models.Message) []models.Message {
	max := l.cfg.Tools.MaxToolMessagesInContext

	count := 0
	for i := range messages {
		if messages[i].Role == models.RoleTool {
			count++
		}
	}
	if count <= max {
		return messages
	}

	pruned := make([]models.Message, 0, len(messages))
	notedOnce := false
	i := 0
	for i < len(messages) && count > max {
		m := messages[i]
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			// Drop the whole group: the declaration and its results.
			group := 1
			for i+group < len(messages) && messages[i+group].Role == models.RoleTool {
				count--
				group++
			}
			i += group
			if !notedOnce {
				notedOnce = true
				pruned = append(pruned, models.Message{
					Role:    models.RoleSystem,
					Content: prunedContextNote,
				})
			}
			continue
		}
		pruned = append(pruned, m)
		i++
	}
	pruned = append(pruned, messages[i:]...)
	return pruned
}

// advancePhase applies the phase state machine after a batch, announcing
// each transition through emit.
func (l *Loop) advancePhase(st *RunState, calls []models.ToolCall, results []models.ToolResult, emit EventFunc) {
	wrote := false
	readOK := false
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		if IsWriteStyle(r.ToolName) {
			wrote = true
			st.LastWrite = identityFromCall(findCall(calls, r.CallID))
		} else {
			readOK = true
		}
	}

	switch {
	case wrote:
		st.WriteCompleted = true
		st.ValidationDone = false
		st.RequireValidationRead = true
		st.Phase = PhaseValidation
		emitEvent(emit, "phase.validation_planned", map[string]any{
			"id": st.LastWrite.ID, "title": st.LastWrite.Title,
		})
	case st.Phase == PhaseValidation && readOK:
		if confirms(results, st.LastWrite) {
			st.ValidationDone = true
			st.RequireValidationRead = false
			st.Phase = PhaseWrite
			emitEvent(emit, "phase.validation", map[string]any{"confirmed": true})
		}
	case st.Phase == PhaseReadOnly && readOK:
		st.Phase = PhaseWrite
		emitEvent(emit, "phase.write_enabled", nil)
	}
}

func emitEvent(emit EventFunc, event string, data map[string]any) {
	if emit == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	emit(event, data)
}

func findCall(calls []models.ToolCall, id string) models.ToolCall {
	for _, c := range calls {
		if c.ID == id {
			return c
		}
	}
	return models.ToolCall{}
}

// identityFromCall pulls the target id and title out of a write call's
// arguments for later validation.
func identityFromCall(call models.ToolCall) writeIdentity {
	var args map[string]any
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return writeIdentity{}
	}
	var ident writeIdentity
	for _, key := range []string{"tmdbId", "tmdb_id", "tvdbId", "tvdb_id", "id"} {
		if n, ok := args[key].(float64); ok {
			ident.ID = n
			break
		}
	}
	for _, key := range []string{"title", "name", "query"} {
		if s, ok := args[key].(string); ok && s != "" {
			ident.Title = s
			break
		}
	}
	return ident
}

// confirms reports whether any read result mentions the written item by id
// or title. With no recorded identity, any successful read confirms.
func confirms(results []models.ToolResult, ident writeIdentity) bool {
	if ident.ID == 0 && ident.Title == "" {
		return true
	}
	for i := range results {
		if !results[i].OK() {
			continue
		}
		if valueMentions(results[i].Value, ident) {
			return true
		}
	}
	return false
}

func valueMentions(v any, ident writeIdentity) bool {
	switch t := v.(type) {
	case map[string]any:
		for _, inner := range t {
			if valueMentions(inner, ident) {
				return true
			}
		}
	case []any:
		for _, inner := range t {
			if valueMentions(inner, ident) {
				return true
			}
		}
	case float64:
		return ident.ID != 0 && t == ident.ID
	case string:
		return ident.Title != "" && strings.Contains(strings.ToLower(t), strings.ToLower(ident.Title))
	}
	return false
}

// fallbackText synthesizes an answer when the iteration budget runs out.
func fallbackText(results []models.ToolResult, st *RunState) string {
	if st.WriteCompleted && !st.ValidationDone {
		return "I made the change you asked for, but I ran out of time confirming it took effect. It should show up shortly."
	}
	for i := range results {
		if results[i].OK() && hasContent(results[i].Value) {
			return "I found some results but ran out of time putting together a full answer. Ask me again and I'll pick up where I left off."
		}
	}
	return "I wasn't able to finish that request. Mind trying again, maybe with a bit more detail?"
}

func (l *Loop) result(st *RunState, text string) RunResult {
	return RunResult{
		Text:       text,
		Iterations: st.LLMCalls,
		LLMCalls:   st.LLMCalls,
		ToolCalls:  st.ToolCalls,
		Duration:   time.Since(st.StartedAt),
	}
}
