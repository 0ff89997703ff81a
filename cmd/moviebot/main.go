// Package main provides the CLI entry point for MovieBot, a household media
// assistant that drives TMDb, Plex, Radarr, and Sonarr through an LLM agent.
//
// # Basic Usage
//
// Start an interactive chat:
//
//	moviebot chat
//
// Ask a single question:
//
//	moviebot ask "what's trending this week?"
//
// List the tools the agent can call:
//
//	moviebot tools
//
// # Environment Variables
//
//   - MOVIEBOT_CONFIG: Path to configuration file (default: moviebot.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - OPENAI_BASE_URL: Override for OpenAI-compatible endpoints
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moviebot",
		Short: "MovieBot - LLM agent for the household media stack",
		Long: `MovieBot answers questions and carries out requests against the household
media services: TMDb for metadata, Plex for the library, Radarr and Sonarr
for acquisitions, plus a local store of member viewing preferences.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildAskCmd(),
		buildToolsCmd(),
	)
	return rootCmd
}

// resolveConfigPath applies the MOVIEBOT_CONFIG override.
func resolveConfigPath(path string) string {
	if env := os.Getenv("MOVIEBOT_CONFIG"); env != "" && path == defaultConfigName {
		return env
	}
	return path
}
