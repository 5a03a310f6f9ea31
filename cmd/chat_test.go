package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/sagechat/sage/internal/backend"
	"github.com/sagechat/sage/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedAsker records queries and returns scripted outcomes.
type scriptedAsker struct {
	queries []string
	respond func(query string) (backend.Answer, error)
}

func (a *scriptedAsker) Ask(_ context.Context, sess *session.Session, query string) (backend.Answer, error) {
	a.queries = append(a.queries, query)
	if _, err := sess.AppendUser(query); err != nil {
		return backend.Answer{}, err
	}
	answer, err := a.respond(query)
	if err != nil {
		return backend.Answer{}, err
	}
	if _, err := sess.AppendAssistant(answer.Text, answer.Citations); err != nil {
		return backend.Answer{}, err
	}
	return answer, nil
}

func runScriptedLoop(t *testing.T, input string, asker *scriptedAsker) (*session.Session, string) {
	t.Helper()
	sess := session.New()
	var out bytes.Buffer
	if err := runLoop(context.Background(), strings.NewReader(input), &out, asker, sess); err != nil {
		t.Fatalf("runLoop failed: %v", err)
	}
	return sess, out.String()
}

// A termination token ends the loop without any orchestrator call and
// without appending a turn. Matching is case-insensitive.
func TestLoopTerminationToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"lowercase quit", "quit\n"},
		{"capitalized quit", "Quit\n"},
		{"uppercase quit", "QUIT\n"},
		{"exit", "Exit\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
				t.Error("orchestrator must not be called for the termination token")
				return backend.Answer{}, nil
			}}

			sess, out := runScriptedLoop(t, tt.input, asker)

			if len(asker.queries) != 0 {
				t.Errorf("orchestrator called with %v", asker.queries)
			}
			if sess.Len() != 0 {
				t.Errorf("history = %d turns, want 0", sess.Len())
			}
			if !sess.Ended() {
				t.Error("session should be ended after loop exit")
			}
			if !strings.Contains(out, "Goodbye") {
				t.Errorf("missing goodbye message in %q", out)
			}
		})
	}
}

func TestLoopAnswerAndCitations(t *testing.T) {
	asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
		return backend.Answer{
			Text: "Contoso Hotel, Times Square, $200/night",
			Citations: []session.Citation{
				{ID: "doc-17", Title: "NY Brochure", Rank: 1},
			},
		}, nil
	}}

	sess, out := runScriptedLoop(t, "Where can I stay in New York?\nquit\n", asker)

	if len(asker.queries) != 1 || asker.queries[0] != "Where can I stay in New York?" {
		t.Errorf("queries = %v", asker.queries)
	}
	if sess.Len() != 2 {
		t.Errorf("history = %d turns, want 2", sess.Len())
	}
	if !strings.Contains(out, "Contoso Hotel, Times Square, $200/night") {
		t.Errorf("answer missing from output: %q", out)
	}
	if !strings.Contains(out, "NY Brochure") || !strings.Contains(out, "[1]") {
		t.Errorf("citation missing from output: %q", out)
	}
}

// An empty query is reported and the loop continues.
func TestLoopEmptyQueryContinues(t *testing.T) {
	asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
		return backend.Answer{Text: "ok"}, nil
	}}

	_, out := runScriptedLoop(t, "\nreal question\nquit\n", asker)

	if !strings.Contains(out, "Please enter a question") {
		t.Errorf("missing re-ask message in %q", out)
	}
	// The real question still went through after the rejected one.
	found := false
	for _, q := range asker.queries {
		if q == "real question" {
			found = true
		}
	}
	if !found {
		t.Errorf("loop did not continue past empty input: %v", asker.queries)
	}
}

// A failed turn never terminates the session.
func TestLoopFailureContinues(t *testing.T) {
	calls := 0
	asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
		calls++
		if calls == 1 {
			return backend.Answer{}, &backend.Error{Kind: backend.KindFatal, Status: 500, Message: "boom"}
		}
		return backend.Answer{Text: "second time lucky"}, nil
	}}

	sess, out := runScriptedLoop(t, "first\nsecond\nquit\n", asker)

	if !strings.Contains(out, "your question was recorded but not answered") {
		t.Errorf("missing failure message in %q", out)
	}
	if !strings.Contains(out, "second time lucky") {
		t.Errorf("loop did not continue after failure: %q", out)
	}
	// First user turn retained despite the failure.
	hist := sess.History()
	if len(hist) != 3 {
		t.Errorf("history = %d turns, want 3 (user, user, assistant)", len(hist))
	}
}

func TestLoopConfigurationErrorMessage(t *testing.T) {
	asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
		return backend.Answer{}, &backend.Error{
			Kind: backend.KindConfiguration, Status: 404,
			Field: "chat_deployment", Message: "deployment not found",
		}
	}}

	_, out := runScriptedLoop(t, "question\nquit\n", asker)

	if !strings.Contains(out, "Check your configuration") {
		t.Errorf("missing configuration message in %q", out)
	}
	if !strings.Contains(out, "chat_deployment") {
		t.Errorf("configuration message should name the field: %q", out)
	}
}

// EOF ends the loop cleanly like a termination token.
func TestLoopEOF(t *testing.T) {
	asker := &scriptedAsker{respond: func(string) (backend.Answer, error) {
		return backend.Answer{Text: "ok"}, nil
	}}

	sess, out := runScriptedLoop(t, "only question\n", asker)

	if !strings.Contains(out, "Goodbye") {
		t.Errorf("missing goodbye on EOF in %q", out)
	}
	if !sess.Ended() {
		t.Error("session should be ended after EOF")
	}
}
