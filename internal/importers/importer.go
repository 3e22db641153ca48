package importers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/ziadkadry99/threadflow/internal/progress"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

// Transcript is the on-disk JSON format for an importable conversation.
// A missing thread_id gets a generated one.
type Transcript struct {
	ThreadID string           `json:"thread_id"`
	UserID   string           `json:"user_id"`
	Turns    []TranscriptTurn `json:"turns"`
}

// TranscriptTurn is one message in an imported transcript.
type TranscriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary reports what an import run did.
type Summary struct {
	Files   int
	Threads int
	Turns   int
	Skipped []string
}

// Importer appends transcript files into the thread store.
type Importer struct {
	store    thread.Store
	reporter progress.Reporter
}

// New creates an importer. reporter may be nil for silent operation.
func New(store thread.Store, reporter progress.Reporter) *Importer {
	return &Importer{store: store, reporter: reporter}
}

// ImportGlob imports every JSON transcript matching the doublestar
// pattern (e.g. "exports/**/*.json"). Unreadable or malformed files are
// skipped and reported in the summary, not fatal.
func (i *Importer) ImportGlob(ctx context.Context, pattern string) (*Summary, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}

	summary := &Summary{Files: len(matches)}
	if i.reporter != nil {
		i.reporter.Start(len(matches))
	}

	for n, path := range matches {
		if i.reporter != nil {
			i.reporter.Update(n+1, filepath.Base(path))
		}
		turns, err := i.ImportFile(ctx, path)
		if err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		summary.Threads++
		summary.Turns += turns
	}

	if i.reporter != nil {
		i.reporter.Finish()
	}
	return summary, nil
}

// ImportFile imports a single transcript file and returns the number of
// turns appended.
func (i *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return 0, fmt.Errorf("parsing transcript: %w", err)
	}
	if len(t.Turns) == 0 {
		return 0, fmt.Errorf("transcript has no turns")
	}
	if t.ThreadID == "" {
		t.ThreadID = uuid.NewString()
	}

	if _, err := i.store.EnsureThread(ctx, t.ThreadID, t.UserID); err != nil {
		return 0, fmt.Errorf("ensuring thread %s: %w", t.ThreadID, err)
	}

	appended := 0
	for n, turn := range t.Turns {
		role := thread.Role(turn.Role)
		switch role {
		case thread.RoleSystem, thread.RoleUser, thread.RoleAssistant, thread.RoleTool:
		default:
			return appended, fmt.Errorf("turn %d has unknown role %q", n, turn.Role)
		}
		if _, err := i.store.Append(ctx, t.ThreadID, thread.Turn{Role: role, Content: turn.Content}); err != nil {
			return appended, fmt.Errorf("appending turn %d: %w", n, err)
		}
		appended++
	}
	return appended, nil
}
