// Package cmd contains the sage CLI: the session loop and one-shot
// commands driving the generation orchestrator.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagechat/sage/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "sage - grounded conversational answers over your documents",
	Long: `sage answers questions by retrieving relevant passages from your
search index and grounding each generated answer in them, with cited
sources. Running sage without a subcommand starts an interactive
conversation.`,
	RunE: runChat,
	// Connection errors already carry usage hints; repeating flag help adds noise.
	SilenceUsage: true,
}

// Execute is the entry point for the sage CLI.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment
// lowers the level; stderr keeps stdout clean for conversation output.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
