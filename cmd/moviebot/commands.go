// commands.go contains the cobra command definitions and their flags. Each
// builder wires a command to its handler in handlers.go.
package main

import (
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigName = "moviebot.yaml"

// buildChatCmd creates the "chat" command, an interactive conversation that
// keeps history across turns.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with the media assistant",
		Long: `Start an interactive conversation. The agent keeps the conversation
history for the session, calls media tools as needed, and streams its
answers. Type "exit" or press Ctrl-D to leave.`,
		Example: `  # Chat with default config
  moviebot chat

  # Chat with a custom config and debug logging
  moviebot chat --config /etc/moviebot/home.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

// buildAskCmd creates the "ask" command for one-shot questions.
func buildAskCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		Example: `  moviebot ask "is Dune on Plex?"
  moviebot ask add the new Denis Villeneuve movie to radarr`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), resolveConfigPath(configPath), debug, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

// buildToolsCmd creates the "tools" command that lists the catalog.
func buildToolsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Long: `List every tool the agent can call with the current configuration.
Services without connection info are omitted from the catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd, resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	return cmd
}
