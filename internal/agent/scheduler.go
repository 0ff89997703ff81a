package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// speedClass buckets tools by expected latency; the bucket decides how many
// calls share one batch.
type speedClass int

const (
	classFast   speedClass = iota // cheap metadata reads
	classMedium                   // searches and library scans
	classSlow                     // service commands and heavy queries
	classWrite                    // mutations, always alone
)

// batch sizes per class.
const (
	fastBatchSize   = 8
	mediumBatchSize = 4
	slowBatchSize   = 2
)

// classify buckets one call for batching.
func classify(name string) speedClass {
	if IsWriteStyle(name) {
		return classWrite
	}
	family := ClassifyFamily(name)
	lower := strings.ToLower(name)
	switch family {
	case FamilyTMDb:
		return classFast
	case FamilyPlex:
		if strings.Contains(lower, "search") {
			return classMedium
		}
		return classFast
	case FamilyRadarr, FamilySonarr:
		if strings.Contains(lower, "search") || strings.Contains(lower, "command") {
			return classSlow
		}
		return classMedium
	default:
		return classMedium
	}
}

// EventFunc receives progress events from the loop and scheduler. The data
// map is event-specific and must not be mutated by the receiver.
type EventFunc func(event string, data map[string]any)

// Scheduler fans a turn's tool calls out across batches while respecting the
// global and per-family concurrency limits. Results always come back in the
// caller's original order.
type Scheduler struct {
	exec *Executor
	cfg  *config.Config
	log  *slog.Logger

	outer    chan struct{}
	families map[Family]chan struct{}
}

// NewScheduler builds a scheduler around the executor. The semaphores are
// shared across every run in the process so family limits hold globally.
func NewScheduler(exec *Executor, cfg *config.Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		exec:     exec,
		cfg:      cfg,
		log:      log,
		outer:    make(chan struct{}, cfg.Tools.Parallelism),
		families: make(map[Family]chan struct{}),
	}
	for family, n := range cfg.Tools.FamilyParallelism {
		s.families[Family(family)] = make(chan struct{}, n)
	}
	return s
}

// indexedCall pairs a call with its position in the turn so results can be
// written back in declared order.
type indexedCall struct {
	index int
	call  models.ToolCall
}

// ExecuteTurn runs every call from one assistant turn and returns results in
// the same order the calls were declared. emit may be nil.
func (s *Scheduler) ExecuteTurn(ctx context.Context, calls []models.ToolCall, dedup *cache.RunDedup, emit EventFunc) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	batches := s.planBatches(calls)

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func(batch []indexedCall) {
			defer wg.Done()

			select {
			case s.outer <- struct{}{}:
			case <-ctx.Done():
				for _, ic := range batch {
					results[ic.index] = failure(ic.call, models.ErrKindTimeout, "run cancelled before execution")
				}
				return
			}
			defer func() { <-s.outer }()

			s.runBatch(ctx, batch, dedup, results, emit)
		}(batch)
	}
	wg.Wait()
	return results
}

// planBatches groups calls by speed class and chunks each class into batches.
// Writes get a batch of one each.
func (s *Scheduler) planBatches(calls []models.ToolCall) [][]indexedCall {
	grouped := map[speedClass][]indexedCall{}
	for i, call := range calls {
		c := classify(call.Name)
		grouped[c] = append(grouped[c], indexedCall{index: i, call: call})
	}

	var batches [][]indexedCall
	chunk := func(items []indexedCall, size int) {
		for len(items) > 0 {
			n := size
			if n > len(items) {
				n = len(items)
			}
			batches = append(batches, items[:n])
			items = items[n:]
		}
	}
	chunk(grouped[classFast], fastBatchSize)
	chunk(grouped[classMedium], mediumBatchSize)
	chunk(grouped[classSlow], slowBatchSize)
	chunk(grouped[classWrite], 1)
	return batches
}

// runBatch executes one batch's calls concurrently. Recovery lives inside
// each call's goroutine; a recover on the batch goroutine could not catch a
// panic raised there.
func (s *Scheduler) runBatch(ctx context.Context, batch []indexedCall, dedup *cache.RunDedup, results []models.ToolResult, emit EventFunc) {
	var wg sync.WaitGroup
	for _, ic := range batch {
		wg.Add(1)
		go func(ic indexedCall) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("tool call panicked, retrying once",
						"tool", ic.call.Name, "panic", r)
					results[ic.index] = s.runOneRecovered(ctx, ic.call, dedup, emit)
				}
			}()
			results[ic.index] = s.runOne(ctx, ic.call, dedup, emit)
		}(ic)
	}
	wg.Wait()
}

// runOneRecovered retries a call whose first attempt panicked. A second panic
// becomes a failure result instead of crashing the process.
func (s *Scheduler) runOneRecovered(ctx context.Context, call models.ToolCall, dedup *cache.RunDedup, emit EventFunc) (res models.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tool call panicked again, giving up",
				"tool", call.Name, "panic", r)
			res = failure(call, models.ErrKindNonRetryable, "tool execution panicked")
		}
	}()
	return s.runOne(ctx, call, dedup, emit)
}

// runOne executes a single call behind its family semaphore.
func (s *Scheduler) runOne(ctx context.Context, call models.ToolCall, dedup *cache.RunDedup, emit EventFunc) models.ToolResult {
	family := ClassifyFamily(call.Name)
	if sem, ok := s.families[family]; ok {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return failure(call, models.ErrKindTimeout, "run cancelled before execution")
		}
	}

	if emit != nil {
		emit("tool.start", map[string]any{"tool": call.Name, "family": string(family)})
	}
	started := time.Now()

	r := s.exec.Execute(ctx, call, dedup, s.tuningFor(call.Name, family))

	if emit != nil {
		data := map[string]any{
			"tool":        call.Name,
			"family":      string(family),
			"duration_ms": time.Since(started).Milliseconds(),
			"cache_hit":   r.CacheHit,
		}
		if r.OK() {
			emit("tool.finish", data)
		} else {
			data["kind"] = string(r.Error.Kind)
			emit("tool.error", data)
		}
	}
	return r
}

// tuningFor resolves ExecTuning from the layered config plus cache and hedge
// policy for the family.
func (s *Scheduler) tuningFor(name string, family Family) ExecTuning {
	rt := s.cfg.TuningFor(name, string(family))
	t := ExecTuning{
		Timeout:     time.Duration(rt.TimeoutMs) * time.Millisecond,
		RetryMax:    rt.RetryMax,
		BackoffBase: time.Duration(rt.BackoffBaseMs) * time.Millisecond,
	}

	if _, ok := s.cfg.Tools.HedgeDelayMsByFamily[string(family)]; ok {
		t.Hedge = true
		t.HedgeDelay = s.cfg.HedgeDelay(string(family))
	}

	if !IsWriteStyle(name) {
		switch family {
		case FamilyTMDb:
			// TMDb metadata is stable; cache longer.
			t.CacheTTL = time.Duration(s.cfg.Cache.TTLMediumSec) * time.Second
		default:
			t.CacheTTL = time.Duration(s.cfg.Cache.TTLShortSec) * time.Second
		}
	}
	return t
}
