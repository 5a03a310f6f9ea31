package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sagechat/sage/internal/backend"
	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/orchestrator"
	"github.com/sagechat/sage/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	client := backend.NewClient(cfg, logger.With("component", "backend"))
	orch, err := orchestrator.New(orchestrator.Config{
		Generator: client,
		AppConfig: cfg,
		Logger:    logger.With("component", "orchestrator"),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess := session.New()
	answer, err := orch.Ask(ctx, sess, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("%s", renderFailure(err))
	}

	fmt.Fprintln(os.Stdout, answer.Text)
	printCitations(os.Stdout, answer.Citations)
	return nil
}
