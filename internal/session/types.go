package session

import "time"

// Role constants define valid turn roles for type safety.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one exchange unit in a conversation: a user query or an
// assistant answer. Assistant turns may carry citations for the
// retrieved passages that grounded the answer.
type Turn struct {
	Role      string
	Content   string
	Citations []Citation // assistant turns only
	CreatedAt time.Time
}

// Citation references a retrieved document backing part of an answer.
// Rank is 1-based and unique within a turn, following retrieval
// relevance order.
type Citation struct {
	ID      string
	Title   string
	Snippet string
	Rank    int
}
