// Package progress turns engine events into throttled, human-readable
// status updates on whatever channel the user is chatting through.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink delivers progress to the user's channel. Implementations must be safe
// for concurrent use. Errors are logged and swallowed; progress is best
// effort and never fails a run.
type Sink interface {
	// Emit sends one status line.
	Emit(ctx context.Context, message string) error

	// TypingPulse refreshes the channel's typing indicator, for channels
	// that have one. No-op implementations are fine.
	TypingPulse(ctx context.Context) error
}

// controlEvents bypass throttling: run boundaries, LLM and tool lifecycle,
// and failures always reach the sink promptly. Only derived events (phase
// transitions, metrics) are paced.
var controlEvents = map[string]bool{
	"agent.start":  true,
	"agent.finish": true,
	"llm.start":    true,
	"llm.finish":   true,
	"tool.start":   true,
	"tool.finish":  true,
	"tool.error":   true,
}

// Options configures a Broadcaster.
type Options struct {
	// UpdateInterval is the minimum gap between non-control updates.
	UpdateInterval time.Duration

	// HeartbeatInterval is how often a quiet run says it is still working.
	// Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// TypingInterval is how often the typing indicator is refreshed.
	// Zero disables pulses.
	TypingInterval time.Duration
}

// Broadcaster receives engine events, humanizes them, and forwards them to
// the sink at a human pace. One Broadcaster serves one run.
type Broadcaster struct {
	sink Sink
	opts Options
	log  *slog.Logger

	// lastSent is kept per event type so one chatty event cannot starve
	// another; time.Time subtraction reads the monotonic clock.
	mu           sync.Mutex
	lastSent     map[string]time.Time
	lastActivity time.Time
	lastMsg      string
	active       bool

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// New creates a broadcaster over the sink. log may be nil.
func New(sink Sink, opts Options, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 900 * time.Millisecond
	}
	return &Broadcaster{
		sink:     sink,
		opts:     opts,
		log:      log,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Start launches the heartbeat and typing goroutines. Call Stop when the run
// finishes; Stop is safe to call without Start.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return
	}
	b.active = true

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.background(ctx)
}

// Stop halts the background goroutines and waits for them to exit.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.active = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done
}

// Handle is the EventFunc fed into the agent loop.
func (b *Broadcaster) Handle(event string, data map[string]any) {
	msg := humanize(event, data)
	if msg == "" {
		return
	}

	b.mu.Lock()
	now := b.now()
	throttled := false
	if !controlEvents[event] {
		if last, ok := b.lastSent[event]; ok && now.Sub(last) < b.opts.UpdateInterval {
			throttled = true
		} else {
			b.lastSent[event] = now
		}
	}
	if !throttled {
		b.lastActivity = now
	}
	b.lastMsg = msg
	b.mu.Unlock()

	if throttled {
		return
	}
	b.send(msg)
}

func (b *Broadcaster) send(msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.sink.Emit(ctx, msg); err != nil {
		b.log.Debug("progress emit failed", "error", err)
	}
}

// background drives heartbeats and typing pulses until the run stops.
func (b *Broadcaster) background(ctx context.Context) {
	defer close(b.done)

	var heartbeat, typing <-chan time.Time
	if b.opts.HeartbeatInterval > 0 {
		t := time.NewTicker(b.opts.HeartbeatInterval)
		defer t.Stop()
		heartbeat = t.C
	}
	if b.opts.TypingInterval > 0 {
		t := time.NewTicker(b.opts.TypingInterval)
		defer t.Stop()
		typing = t.C
	}
	if heartbeat == nil && typing == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat:
			b.mu.Lock()
			quiet := b.now().Sub(b.lastActivity) >= b.opts.HeartbeatInterval
			b.mu.Unlock()
			if quiet {
				b.send("Still working on it...")
			}
		case <-typing:
			if err := b.sink.TypingPulse(ctx); err != nil {
				b.log.Debug("typing pulse failed", "error", err)
			}
		}
	}
}

// SetNowFunc overrides the clock, for tests.
func (b *Broadcaster) SetNowFunc(now func() time.Time) {
	b.now = now
}
