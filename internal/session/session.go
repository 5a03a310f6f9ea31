// Package session owns conversational state: the ordered turn history
// of one continuous conversation.
//
// A Session is created when the session loop starts, mutated by
// appending turns after each exchange, and discarded when the loop
// ends; no persistence is kept. Turns are strictly ordered by
// occurrence and only removed by the history trim policy, which evicts
// oldest turns first and never evicts the most recent user turn.
//
// # Concurrency
//
// A Session is owned by a single execution context. Access is still
// mutex-guarded so accidental sharing cannot corrupt the turn order.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session represents one continuous conversation.
//
// The zero value is NOT useful - use New() to create instances.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu    sync.RWMutex
	turns []Turn
	ended bool
}

// New creates an empty Session with a fresh identifier.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		turns:     make([]Turn, 0),
	}
}

// AppendUser appends a user turn.
// Empty or whitespace-only text is rejected with ErrEmptyQuery and the
// history is left unchanged.
func (s *Session) AppendUser(text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return Turn{}, ErrSessionEnded
	}

	turn := Turn{
		Role:      RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	s.turns = append(s.turns, turn)
	return turn, nil
}

// AppendAssistant appends an assistant turn answering the most recent
// user turn. Citation ranks are normalized to their 1-based position
// in retrieval relevance order.
func (s *Session) AppendAssistant(text string, citations []Citation) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return Turn{}, ErrSessionEnded
	}
	// Every assistant turn must answer a user turn.
	if len(s.turns) == 0 || s.turns[len(s.turns)-1].Role != RoleUser {
		return Turn{}, ErrNoPendingQuery
	}

	cits := make([]Citation, len(citations))
	copy(cits, citations)
	for i := range cits {
		cits[i].Rank = i + 1
	}

	turn := Turn{
		Role:      RoleAssistant,
		Content:   text,
		Citations: cits,
		CreatedAt: time.Now(),
	}
	s.turns = append(s.turns, turn)
	return turn, nil
}

// History returns a copy of all turns in occurrence order, oldest first.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Turn, len(s.turns))
	copy(result, s.turns)
	return result
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// TrimToBudget evicts oldest turns (FIFO) until the history fits
// within maxTokens. The most recent user turn is never evicted, even
// if it alone exceeds the budget, so a request can always be formed.
// Returns the number of turns evicted.
func (s *Session) TrimToBudget(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lastUser := -1
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleUser {
			lastUser = i
			break
		}
	}

	total := 0
	for i := range s.turns {
		total += CountTokens(s.turns[i].Content)
	}

	evicted := 0
	for total > maxTokens && len(s.turns) > 1 {
		// Stop once the front is the most recent user turn.
		if lastUser-evicted <= 0 {
			break
		}
		total -= CountTokens(s.turns[0].Content)
		s.turns = s.turns[1:]
		evicted++
	}
	return evicted
}

// End marks the session terminated. Subsequent appends fail with
// ErrSessionEnded. History remains readable.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// Ended reports whether the session has been terminated.
func (s *Session) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}
