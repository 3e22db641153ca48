package thread

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/threadflow/internal/db"
)

// SQLiteStore is the durable Store implementation. Sequence numbers are
// assigned inside a transaction, with a per-thread mutex serializing
// appends so two turns never race on the same sequence slot.
type SQLiteStore struct {
	db    *db.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore creates a thread store backed by the given database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database, locks: make(map[string]*sync.Mutex)}
}

// threadLock returns the append lock for a thread, creating it on demand.
func (s *SQLiteStore) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

func (s *SQLiteStore) Append(ctx context.Context, threadID string, turn Turn) (*Turn, error) {
	l := s.threadLock(threadID)
	l.Lock()
	defer l.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureThreadTx(ctx, tx, threadID, ""); err != nil {
		return nil, err
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM turns WHERE thread_id = ?`, threadID,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("computing next sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, thread_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, threadID, seq, turn.Role, turn.Content, turn.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("appending turn %s to %s: %w", turn.ID, threadID, ErrWriteConflict)
		}
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, turn.CreatedAt, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("touching thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing append: %w", err)
	}
	return &turn, nil
}

func (s *SQLiteStore) History(ctx context.Context, threadID string, maxTurns int) ([]Turn, error) {
	if _, err := s.EnsureThread(ctx, threadID, ""); err != nil {
		return nil, err
	}

	query := `SELECT id, role, content, created_at FROM turns WHERE thread_id = ? ORDER BY seq DESC`
	args := []interface{}{threadID}
	if maxTurns > 0 {
		query += ` LIMIT ?`
		args = append(args, maxTurns)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest-first; restore append order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

func (s *SQLiteStore) EnsureThread(ctx context.Context, threadID, userID string) (*Thread, error) {
	l := s.threadLock(threadID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureThreadTx(ctx, tx, threadID, userID); err != nil {
		return nil, err
	}

	rec, err := getThreadTx(ctx, tx, threadID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM threads WHERE id = ?`, threadID,
	).Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	return &t, nil
}

func ensureThreadTx(ctx context.Context, tx *sql.Tx, threadID, userID string) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO threads (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		threadID, userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("ensuring thread %s: %w", threadID, err)
	}
	return nil
}

func getThreadTx(ctx context.Context, tx *sql.Tx, threadID string) (*Thread, error) {
	var t Thread
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM threads WHERE id = ?`, threadID,
	).Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading thread %s: %w", threadID, err)
	}
	return &t, nil
}
