package thread

import (
	"context"
	"errors"
)

// ErrWriteConflict indicates two appends raced on the same thread sequence
// number. Appends are serialized per thread, so this should never occur;
// seeing it means a concurrency-control bug, and callers treat it as fatal.
var ErrWriteConflict = errors.New("thread store write conflict")

// Store is the contract for thread persistence. It is the only mutable
// shared state in the system; everything else is computed per turn.
type Store interface {
	// Append adds a turn to the thread, creating the thread record if it
	// does not exist. Appends to the same thread are serialized; a turn is
	// either fully visible to readers or not yet visible.
	Append(ctx context.Context, threadID string, turn Turn) (*Turn, error)

	// History returns the most recent maxTurns turns in original append
	// order. maxTurns <= 0 returns all turns. Reading an unknown thread
	// returns an empty slice and lazily creates the thread record.
	History(ctx context.Context, threadID string, maxTurns int) ([]Turn, error)

	// EnsureThread creates the thread record if missing and returns it.
	// An existing thread's UserID is not overwritten.
	EnsureThread(ctx context.Context, threadID, userID string) (*Thread, error)

	// Get returns the thread record, or nil if the thread is unknown.
	Get(ctx context.Context, threadID string) (*Thread, error)
}
