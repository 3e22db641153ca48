package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/threadflow/internal/db"
)

// stores returns each Store implementation under its name so the contract
// tests below run against both.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(database),
	}
}

func TestAppendAndHistory(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				_, err := store.Append(ctx, "t1", Turn{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
				if err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			turns, err := store.History(ctx, "t1", 0)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(turns) != 3 {
				t.Fatalf("expected 3 turns, got %d", len(turns))
			}
			for i, turn := range turns {
				if turn.Content != fmt.Sprintf("msg %d", i) {
					t.Errorf("turn %d out of order: %q", i, turn.Content)
				}
				if turn.ID == "" {
					t.Errorf("turn %d has empty ID", i)
				}
			}
		})
	}
}

func TestSlidingWindow(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			const k = 7
			for i := 0; i < k; i++ {
				store.Append(ctx, "t1", Turn{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
			}

			// maxTurns < K returns exactly the last N, in original order.
			turns, err := store.History(ctx, "t1", 3)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(turns) != 3 {
				t.Fatalf("expected 3 turns, got %d", len(turns))
			}
			for i, turn := range turns {
				want := fmt.Sprintf("msg %d", k-3+i)
				if turn.Content != want {
					t.Errorf("window turn %d: expected %q, got %q", i, want, turn.Content)
				}
			}

			// maxTurns >= K returns all K.
			all, _ := store.History(ctx, "t1", 100)
			if len(all) != k {
				t.Errorf("expected %d turns, got %d", k, len(all))
			}
		})
	}
}

func TestUnknownThreadReadsEmpty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			turns, err := store.History(ctx, "never-seen", 10)
			if err != nil {
				t.Fatalf("History on unknown thread: %v", err)
			}
			if len(turns) != 0 {
				t.Errorf("expected empty history, got %d turns", len(turns))
			}

			// The read lazily created the thread record.
			rec, err := store.Get(ctx, "never-seen")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if rec == nil {
				t.Error("expected thread record after lazy creation")
			}
		})
	}
}

func TestEnsureThreadKeepsUserID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := store.EnsureThread(ctx, "t1", "alice")
			if err != nil {
				t.Fatalf("EnsureThread: %v", err)
			}
			if first.UserID != "alice" {
				t.Errorf("expected user alice, got %q", first.UserID)
			}

			// A second ensure with a different user must not overwrite.
			again, _ := store.EnsureThread(ctx, "t1", "bob")
			if again.UserID != "alice" {
				t.Errorf("expected user alice preserved, got %q", again.UserID)
			}
		})
	}
}

func TestConcurrentThreadIsolation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const perThread = 25

			var wg sync.WaitGroup
			for _, id := range []string{"alpha", "beta"} {
				wg.Add(1)
				go func(threadID string) {
					defer wg.Done()
					for i := 0; i < perThread; i++ {
						store.Append(ctx, threadID, Turn{
							Role:    RoleUser,
							Content: fmt.Sprintf("%s %d", threadID, i),
						})
					}
				}(id)
			}
			wg.Wait()

			for _, id := range []string{"alpha", "beta"} {
				turns, err := store.History(ctx, id, 0)
				if err != nil {
					t.Fatalf("History(%s): %v", id, err)
				}
				if len(turns) != perThread {
					t.Errorf("thread %s: expected %d turns, got %d", id, perThread, len(turns))
				}
				for i, turn := range turns {
					if !strings.HasPrefix(turn.Content, id) {
						t.Fatalf("thread %s leaked foreign turn %q", id, turn.Content)
					}
					if turn.Content != fmt.Sprintf("%s %d", id, i) {
						t.Errorf("thread %s turn %d out of order: %q", id, i, turn.Content)
					}
				}
			}
		})
	}
}

func TestRoute_GetHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.EnsureThread(ctx, "t1", "alice")
	store.Append(ctx, "t1", Turn{Role: RoleUser, Content: "hello"})
	store.Append(ctx, "t1", Turn{Role: RoleAssistant, Content: "hi there"})

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest("GET", "/api/threads/t1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var h History
	json.Unmarshal(w.Body.Bytes(), &h)
	if h.UserID != "alice" {
		t.Errorf("expected user alice, got %q", h.UserID)
	}
	if len(h.Turns) != 2 {
		t.Errorf("expected 2 turns, got %d", len(h.Turns))
	}
}

func TestRoute_GetHistoryNotFound(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, NewMemoryStore())

	req := httptest.NewRequest("GET", "/api/threads/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRoute_ExportFormats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.EnsureThread(ctx, "t1", "")
	store.Append(ctx, "t1", Turn{Role: RoleUser, Content: "show me code"})
	store.Append(ctx, "t1", Turn{Role: RoleAssistant, Content: "```go\nfmt.Println(\"hi\")\n```"})

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest("GET", "/api/threads/t1/export?format=markdown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("markdown export: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "## assistant") {
		t.Errorf("markdown export missing role heading: %s", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/threads/t1/export?format=html", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("html export: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Errorf("html export missing html wrapper")
	}
}
