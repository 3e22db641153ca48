package memory

import (
	"context"
	"time"
)

// Snippet is a long-term memory fragment returned from a search.
type Snippet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Score     float32   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Scope restricts memory reads and writes to one user, and optionally to
// one session within that user.
type Scope struct {
	UserID    string
	SessionID string
}

// Store is the long-term memory collaborator. It is best-effort: callers
// bound every call with a timeout and degrade gracefully when it fails.
type Store interface {
	// AddMemory stores a memory snippet under the given scope and returns
	// its ID.
	AddMemory(ctx context.Context, text string, scope Scope) (string, error)

	// SearchMemories returns the most relevant snippets for the query
	// within the given scope, best match first.
	SearchMemories(ctx context.Context, query string, scope Scope, limit int) ([]Snippet, error)

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of stored snippets.
	Count() int
}
