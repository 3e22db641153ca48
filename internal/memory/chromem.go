package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/threadflow/internal/embeddings"
)

const collectionName = "memories"

// ChromemStore implements Store using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddMemory(ctx context.Context, text string, scope Scope) (string, error) {
	id := uuid.New().String()
	doc := chromem.Document{
		ID:      id,
		Content: text,
		Metadata: map[string]string{
			"user_id":    scope.UserID,
			"session_id": scope.SessionID,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return "", fmt.Errorf("adding memory: %w", err)
	}
	return id, nil
}

func (s *ChromemStore) SearchMemories(ctx context.Context, query string, scope Scope, limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	where := buildWhereClause(scope)

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	snippets := make([]Snippet, len(results))
	for i, r := range results {
		createdAt, _ := time.Parse(time.RFC3339, r.Metadata["created_at"])
		snippets[i] = Snippet{
			ID:        r.ID,
			Text:      r.Content,
			Score:     r.Similarity,
			CreatedAt: createdAt,
		}
	}
	return snippets, nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/memories.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(dir+"/memories.gob.gz", ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// buildWhereClause converts a Scope to a chromem where clause.
func buildWhereClause(scope Scope) map[string]string {
	where := make(map[string]string)
	if scope.UserID != "" {
		where["user_id"] = scope.UserID
	}
	if scope.SessionID != "" {
		where["session_id"] = scope.SessionID
	}
	if len(where) == 0 {
		return nil
	}
	return where
}
