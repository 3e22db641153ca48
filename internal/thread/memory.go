package thread

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store implementation. Each thread carries
// its own mutex so appends to the same thread serialize while different
// threads proceed independently.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*memThread
}

type memThread struct {
	mu     sync.Mutex
	record Thread
	turns  []Turn
}

// NewMemoryStore creates an empty in-memory thread store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*memThread)}
}

// lookup returns the thread entry, creating it when create is true.
func (s *MemoryStore) lookup(threadID, userID string, create bool) *memThread {
	s.mu.RLock()
	t, ok := s.threads[threadID]
	s.mu.RUnlock()
	if ok || !create {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.threads[threadID]; ok {
		return t
	}
	now := time.Now().UTC()
	t = &memThread{record: Thread{ID: threadID, UserID: userID, CreatedAt: now, UpdatedAt: now}}
	s.threads[threadID] = t
	return t
}

func (s *MemoryStore) Append(ctx context.Context, threadID string, turn Turn) (*Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.lookup(threadID, "", true)

	t.mu.Lock()
	defer t.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	t.turns = append(t.turns, turn)
	t.record.UpdatedAt = turn.CreatedAt
	return &turn, nil
}

func (s *MemoryStore) History(ctx context.Context, threadID string, maxTurns int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.lookup(threadID, "", true)

	t.mu.Lock()
	defer t.mu.Unlock()

	turns := t.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) EnsureThread(ctx context.Context, threadID, userID string) (*Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.lookup(threadID, userID, true)

	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.record
	return &rec, nil
}

func (s *MemoryStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.lookup(threadID, "", false)
	if t == nil {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.record
	return &rec, nil
}
