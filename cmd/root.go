// Package cmd implements the nova command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "nova",
	Short: "NOVA - retrieval-augmented customer service assistant",
	Long: `NOVA answers customer questions for Nexobotics by retrieving relevant
knowledge-base passages and generating grounded replies with Gemini.

Commands:
  serve    start the HTTP API (chat, clear-session, health)
  ingest   build or rebuild the knowledge base
  ask      answer a single question from the terminal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the process logger.
//
// The DEBUG environment variable (any value) enables debug level. Logs go
// to stderr so command output on stdout stays machine-readable.
func initLogger(json bool) log.Logger {
	cfg := log.Config{Level: slog.LevelInfo, JSON: json}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies GEMINI_API_KEY is set, printing setup
// instructions when it is not.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "NOVA requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
