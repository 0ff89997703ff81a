// handlers.go contains the command implementations: wiring configuration
// into the agent runtime and driving conversations from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/cache"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/config"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/infra"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/observability"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/progress"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/providers"
	"github.com/ParallelUniverseProgrammer/moviebot/internal/tools"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// loadConfig reads the config file. A missing file at the default location is
// an all-defaults config so the CLI works with just environment variables.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) && path == defaultConfigName {
		return config.Default(), nil
	}
	return cfg, err
}

// runtime is the assembled agent stack for one CLI session.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	loop    *agent.Loop
	catalog *tools.Catalog
}

// buildRuntime wires the full stack: config, logging, metrics, breakers,
// result cache, tool catalog, LLM provider, and the agent loop.
func buildRuntime(cfg *config.Config, debug bool) (*runtime, error) {
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	log := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
	})

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	breakers := infra.NewBreakerSet(infra.BreakerConfig{
		OpenAfterFailures: cfg.Tools.Circuit.OpenAfterFailures,
		Cooldown:          time.Duration(cfg.Tools.Circuit.OpenForMs) * time.Millisecond,
		OnOpen: func(tool string) {
			log.Warn("circuit opened", "tool", tool)
			metrics.BreakerOpens.WithLabelValues(tool).Inc()
		},
	})
	results := cache.NewResultCache()

	catalog, err := tools.NewCatalog(cfg, results)
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}
	registries := agent.NewBoundRegistries(catalog.Tools)

	client, err := providers.FromEnv(cfg.LLM.Models["chat"])
	if err != nil {
		return nil, err
	}
	registry, err := registries.For(client)
	if err != nil {
		return nil, err
	}

	exec := agent.NewExecutor(registry, breakers, results, metrics, log)
	scheduler := agent.NewScheduler(exec, cfg, log)
	summarizer := agent.NewSummarizer(cfg.Tools.ListMaxItems)
	loop := agent.NewLoop(client, registry, scheduler, summarizer, cfg, metrics, log)

	return &runtime{cfg: cfg, log: log, loop: loop, catalog: catalog}, nil
}

// consoleSink prints progress lines to the terminal.
type consoleSink struct {
	out io.Writer
}

func (s consoleSink) Emit(_ context.Context, message string) error {
	_, err := fmt.Fprintf(s.out, "  · %s\n", message)
	return err
}

func (s consoleSink) TypingPulse(context.Context) error { return nil }

// runTurn executes one conversation turn with progress on stderr and the
// streamed answer on stdout.
func runTurn(ctx context.Context, rt *runtime, userText string, history []models.Message) (agent.RunResult, error) {
	broadcaster := progress.New(consoleSink{out: os.Stderr}, progress.Options{
		UpdateInterval:    time.Duration(rt.cfg.UX.ProgressUpdateIntervalMs) * time.Millisecond,
		HeartbeatInterval: time.Duration(rt.cfg.UX.HeartbeatIntervalMs) * time.Millisecond,
	}, rt.log)
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	streamed := false
	res, err := rt.loop.Run(ctx, userText, history, agent.RunOptions{
		Emit:        broadcaster.Handle,
		Preferences: rt.catalog.Preferences(),
		OnChunk: func(delta string) {
			streamed = true
			fmt.Print(delta)
		},
	})
	if err != nil {
		return res, err
	}
	if !streamed {
		fmt.Print(res.Text)
	}
	fmt.Println()
	return res, nil
}

// runChat drives the interactive REPL.
func runChat(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("MovieBot ready. Type a request, or \"exit\" to leave.")
	var history []models.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		res, err := runTurn(ctx, rt, line, history)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			rt.log.Error("turn failed", "error", err)
			fmt.Fprintf(os.Stderr, "Something went wrong: %v\n", err)
			continue
		}
		history = append(history,
			models.Message{Role: models.RoleUser, Content: line},
			models.Message{Role: models.RoleAssistant, Content: res.Text},
		)
	}
}

// runAsk answers one question and exits.
func runAsk(ctx context.Context, configPath string, debug bool, question string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = runTurn(ctx, rt, question, nil)
	return err
}

// disconnectedClient satisfies the LLM interface for commands that only
// inspect the catalog and never talk to a model.
type disconnectedClient struct{}

func (disconnectedClient) Chat(context.Context, agent.ChatRequest) (agent.ChatResponse, error) {
	return agent.ChatResponse{}, fmt.Errorf("no LLM provider in this command")
}

func (disconnectedClient) StreamChat(context.Context, agent.ChatRequest, func(string)) (agent.ChatResponse, error) {
	return agent.ChatResponse{}, fmt.Errorf("no LLM provider in this command")
}

// runTools prints the catalog for the current configuration.
func runTools(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	results := cache.NewResultCache()
	catalog, err := tools.NewCatalog(cfg, results)
	if err != nil {
		return err
	}
	registry, err := agent.NewBoundRegistries(catalog.Tools).For(disconnectedClient{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, schema := range registry.Schemas() {
		fmt.Fprintf(out, "%-24s %s\n", schema.Name, schema.Description)
	}
	return nil
}
