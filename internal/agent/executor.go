package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/backoff"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/infra"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/observability"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// ExecTuning is the effective per-call executor configuration, resolved from
// global, family, and tool layers before dispatch.
type ExecTuning struct {
	// Timeout bounds each individual attempt, not the whole call.
	Timeout time.Duration

	// RetryMax is the number of retries after the first attempt. Zero means
	// exactly one attempt.
	RetryMax int

	// BackoffBase seeds the exponential retry delay.
	BackoffBase time.Duration

	// Hedge enables a second racing attempt for read calls. HedgeDelay is how
	// long the primary runs alone first; zero starts both together.
	Hedge      bool
	HedgeDelay time.Duration

	// CacheTTL is the cross-run cache lifetime for read results. Zero
	// disables cross-run caching for this call.
	CacheTTL time.Duration
}

// Executor runs individual tool calls with validation, deduplication,
// caching, circuit breaking, timeouts, retries, and hedging. Tool errors are
// materialized as results, never returned as Go errors.
type Executor struct {
	registry *Registry
	breakers *infra.BreakerSet
	results  *cache.ResultCache
	metrics  *observability.Metrics
	log      *slog.Logger
}

// NewExecutor wires an executor. metrics may be nil.
func NewExecutor(registry *Registry, breakers *infra.BreakerSet, results *cache.ResultCache, metrics *observability.Metrics, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		registry: registry,
		breakers: breakers,
		results:  results,
		metrics:  metrics,
		log:      log,
	}
}

// Execute runs one tool call to completion. dedup is the per-run dedup map;
// identical concurrent calls execute once and share the result.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall, dedup *cache.RunDedup, tuning ExecTuning) models.ToolResult {
	family := ClassifyFamily(call.Name)

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return e.finish(family, failure(call, models.ErrKindNonRetryable,
			fmt.Sprintf("unknown tool %q", call.Name)))
	}

	if _, err := e.registry.Validate(call.Name, call.Arguments); err != nil {
		return e.finish(family, failure(call, models.ErrKindInvalidJSON, err.Error()))
	}

	key, err := cache.CanonicalKey(call.Name, call.Arguments)
	if err != nil {
		return e.finish(family, failure(call, models.ErrKindInvalidJSON, err.Error()))
	}

	isWrite := IsWriteStyle(call.Name)

	// Claim the canonical key. Followers wait for the leader's result; a
	// leader that fails abandons the key so a later identical call can retry.
	for !dedup.Begin(key) {
		e.countLookup("dedup", "hit")
		if val, ok := dedup.Wait(ctx, key); ok {
			r := models.ToolResult{
				CallID:   call.ID,
				ToolName: call.Name,
				Value:    val.Value,
				CacheHit: true,
				RefID:    val.RefID,
			}
			return e.finish(family, r)
		}
		if ctx.Err() != nil {
			return e.finish(family, failure(call, models.ErrKindTimeout, "run cancelled while waiting for duplicate call"))
		}
	}
	e.countLookup("dedup", "miss")

	if !e.breakers.Allow(call.Name) {
		dedup.Abandon(key)
		return e.finish(family, failure(call, models.ErrKindCircuitOpen,
			fmt.Sprintf("%s is unavailable right now, try again shortly", call.Name)))
	}

	if !isWrite {
		if v, ok := e.results.Get(key); ok {
			e.countLookup("cross_run", "hit")
			refID := e.results.StoreRef(v)
			dedup.Complete(key, cache.DedupValue{Value: v, RefID: refID})
			r := models.ToolResult{
				CallID:   call.ID,
				ToolName: call.Name,
				Value:    v,
				CacheHit: true,
				RefID:    refID,
			}
			return e.finish(family, r)
		}
		e.countLookup("cross_run", "miss")
	}

	started := time.Now()
	policy := backoff.Policy{Base: tuning.BackoffBase}
	hedge := tuning.Hedge && !isWrite && family == FamilyTMDb

	attempts := 0
	var lastKind models.ErrorKind
	var lastMsg string

	for attempt := 0; attempt <= tuning.RetryMax; attempt++ {
		attempts++

		var value map[string]any
		var err error
		if hedge {
			value, err = e.hedgedAttempt(ctx, tool, call.Arguments, tuning.Timeout, tuning.HedgeDelay)
		} else {
			value, err = runToolWithTimeout(ctx, tool, call.Arguments, tuning.Timeout)
		}

		if err == nil {
			e.breakers.RecordSuccess(call.Name)
			if value == nil {
				value = map[string]any{}
			}
			refID := e.results.StoreRef(value)
			if !isWrite {
				e.results.Put(key, value, tuning.CacheTTL)
			}
			dedup.Complete(key, cache.DedupValue{Value: value, RefID: refID})
			r := models.ToolResult{
				CallID:   call.ID,
				ToolName: call.Name,
				Value:    value,
				Attempts: attempts,
				Duration: time.Since(started),
				RefID:    refID,
			}
			return e.finish(family, r)
		}

		kind := ClassifyError(err)
		lastKind, lastMsg = kind, err.Error()
		if kind.CountsTowardBreaker() {
			e.breakers.RecordFailure(call.Name)
		}
		e.log.Warn("tool attempt failed",
			"tool", call.Name, "attempt", attempt, "kind", string(kind), "error", err)

		if !kind.Retryable() || attempt == tuning.RetryMax || ctx.Err() != nil {
			break
		}
		if !sleepCtx(ctx, policy.Delay(attempt)) {
			break
		}
	}

	dedup.Abandon(key)
	r := failure(call, lastKind, lastMsg)
	r.Attempts = attempts
	r.Duration = time.Since(started)
	return e.finish(family, r)
}

type attemptOutcome struct {
	value map[string]any
	err   error
}

// runToolWithTimeout executes the tool in its own goroutine so a hung tool
// cannot stall the attempt past its deadline. Panics become errors.
func runToolWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (map[string]any, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- attemptOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		v, err := tool.Execute(tctx, args)
		ch <- attemptOutcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-tctx.Done():
		return nil, tctx.Err()
	}
}

// hedgedAttempt races a second execution started after delay. The first
// success wins and the loser is cancelled. Both runs together still count as
// one attempt for retry accounting.
func (e *Executor) hedgedAttempt(ctx context.Context, tool Tool, args json.RawMessage, timeout, delay time.Duration) (map[string]any, error) {
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan attemptOutcome, 2)
	run := func() {
		v, err := runToolWithTimeout(hctx, tool, args, timeout)
		ch <- attemptOutcome{value: v, err: err}
	}

	go run()
	inflight := 1
	hedged := false

	timer := time.NewTimer(delay)
	defer timer.Stop()

	var firstErr error
	for {
		select {
		case out := <-ch:
			if out.err == nil {
				return out.value, nil
			}
			if firstErr == nil {
				firstErr = out.err
			}
			inflight--
			if inflight == 0 {
				return nil, firstErr
			}
		case <-timer.C:
			if !hedged {
				hedged = true
				inflight++
				go run()
			}
		}
	}
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Executor) finish(family Family, r models.ToolResult) models.ToolResult {
	if e.metrics != nil {
		outcome := "ok"
		if r.Error != nil {
			outcome = string(r.Error.Kind)
		}
		e.metrics.ToolExecutions.WithLabelValues(string(family), outcome).Inc()
		if r.Duration > 0 {
			e.metrics.ToolLatency.WithLabelValues(string(family)).Observe(r.Duration.Seconds())
		}
	}
	return r
}

func (e *Executor) countLookup(layer, result string) {
	if e.metrics != nil {
		e.metrics.CacheLookups.WithLabelValues(layer, result).Inc()
	}
}
