package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sagechat/sage/internal/backend"
	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/orchestrator"
	"github.com/sagechat/sage/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive grounded conversation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// Terminal styles for conversation output.
var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	citationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// terminationTokens end the loop without a generation call.
var terminationTokens = []string{"quit", "exit"}

// asker is the session loop's view of the orchestrator.
type asker interface {
	Ask(ctx context.Context, sess *session.Session, query string) (backend.Answer, error)
}

func runChat(cmd *cobra.Command, _ []string) error {
	// A .env file is a convenience for local runs; absence is fine.
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

	sess := session.New()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return runLoop(ctx, os.Stdin, os.Stdout, orch, sess)
}

// runLoop drives the session from creation until a termination signal.
// A single failed turn never terminates the loop; the session object is
// discarded when the loop returns.
func runLoop(ctx context.Context, in io.Reader, out io.Writer, orch asker, sess *session.Session) error {
	fmt.Fprintf(out, "Ask about your documents. Type %q to leave.\n", terminationTokens[0])
	fmt.Fprintf(out, "Session %s\n\n", sess.ID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("you> ")+" ")

		if !scanner.Scan() {
			// EOF (Ctrl+D) ends the session like a termination token.
			fmt.Fprintln(out, "\nGoodbye.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if isTerminationToken(input) {
			fmt.Fprintln(out, "Goodbye.")
			break
		}

		answer, err := orch.Ask(ctx, sess, input)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(renderFailure(err)))
			continue
		}

		fmt.Fprintln(out, answerStyle.Render(answer.Text))
		printCitations(out, answer.Citations)
		fmt.Fprintln(out)
	}

	sess.End()
	return scanner.Err()
}

// isTerminationToken reports whether input ends the loop.
// Matching is case-insensitive.
func isTerminationToken(input string) bool {
	for _, token := range terminationTokens {
		if strings.EqualFold(input, token) {
			return true
		}
	}
	return false
}

// renderFailure maps the error taxonomy to the three user-facing
// messages: re-ask, check configuration, or service problem.
func renderFailure(err error) string {
	if errors.Is(err, session.ErrEmptyQuery) {
		return "Please enter a question."
	}
	switch backend.Classify(err) {
	case backend.KindConfiguration:
		return fmt.Sprintf("Check your configuration: %v", err)
	default:
		return fmt.Sprintf("Service problem: your question was recorded but not answered (%v).", err)
	}
}

// printCitations lists the answer's sources in relevance order.
func printCitations(out io.Writer, citations []session.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(out, citationStyle.Render("Sources:"))
	for _, c := range citations {
		line := fmt.Sprintf("  [%d] %s", c.Rank, c.Title)
		if c.ID != "" {
			line += fmt.Sprintf(" (%s)", c.ID)
		}
		fmt.Fprintln(out, citationStyle.Render(line))
	}
}
