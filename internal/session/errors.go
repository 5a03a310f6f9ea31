package session

import "errors"

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrEmptyQuery indicates the user query is empty or whitespace-only.
	// The caller should re-prompt; no turn is appended.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoPendingQuery indicates an assistant turn was appended without
	// a preceding user turn awaiting an answer.
	ErrNoPendingQuery = errors.New("no pending user query")

	// ErrSessionEnded indicates the session has been terminated and
	// accepts no further turns.
	ErrSessionEnded = errors.New("session ended")
)
