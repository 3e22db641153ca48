package contextengine

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/resolver"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

// Options bound the size and framing of every context window.
type Options struct {
	SystemPrompt string
	MaxTurns     int // sliding window size over dialogue history
	TokenBudget  int // estimated-token cap for the whole window; 0 = unlimited
}

// Window is the canonical ordered message sequence for one turn — the
// single source of truth for what every candidate provider receives.
// It is built fresh per turn and never persisted.
type Window struct {
	Messages []llm.Message
	Dropped  int  // turns dropped to fit the token budget
	Degraded bool // memory snippets were requested but unavailable
}

// Last returns the final message of the window.
func (w *Window) Last() llm.Message {
	return w.Messages[len(w.Messages)-1]
}

// Engine assembles context windows from thread history, memory snippets,
// and the resolved query.
type Engine struct {
	store thread.Store
	opts  Options
}

// New creates a context engine over the given thread store.
func New(store thread.Store, opts Options) *Engine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	return &Engine{store: store, opts: opts}
}

// Build assembles the context window for the current turn: system prompt
// first, memory snippets as context turns, then the sliding window of
// dialogue history, and the resolved user query as the final message.
//
// raw is the unresolved message of the in-flight turn; since the user
// turn is appended to the store before context assembly, the trailing
// history entry matching it is excluded here and re-enters as the
// resolved final message. Build is idempotent: calling it twice against
// unchanged storage yields identical windows.
func (e *Engine) Build(ctx context.Context, threadID, raw string, resolved resolver.ResolvedQuery, snippets []memory.Snippet) (*Window, error) {
	history, err := e.store.History(ctx, threadID, e.opts.MaxTurns+1)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", threadID, err)
	}

	// Exclude the in-flight user turn from the dialogue window.
	if n := len(history); n > 0 && history[n-1].Role == thread.RoleUser && history[n-1].Content == raw {
		history = history[:n-1]
	}
	if len(history) > e.opts.MaxTurns {
		history = history[len(history)-e.opts.MaxTurns:]
	}

	var snippetMsgs []llm.Message
	for _, s := range snippets {
		snippetMsgs = append(snippetMsgs, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Relevant memory: " + s.Text,
		})
	}

	dialogue := make([]llm.Message, 0, len(history))
	for _, t := range history {
		dialogue = append(dialogue, llm.Message{Role: llm.Role(t.Role), Content: t.Content})
	}

	final := llm.Message{Role: llm.RoleUser, Content: resolved.Query}
	system := llm.Message{Role: llm.RoleSystem, Content: e.opts.SystemPrompt}

	dialogue, snippetMsgs, dropped := trimToBudget(e.opts.TokenBudget, system, final, dialogue, snippetMsgs)

	messages := make([]llm.Message, 0, 2+len(snippetMsgs)+len(dialogue))
	messages = append(messages, system)
	messages = append(messages, snippetMsgs...)
	messages = append(messages, dialogue...)
	messages = append(messages, final)

	return &Window{Messages: messages, Dropped: dropped}, nil
}

// trimToBudget drops the oldest dialogue turns first, then the oldest
// snippet turns, until the estimated token count fits the budget. The
// system prompt and the final user turn are never dropped.
func trimToBudget(budget int, system, final llm.Message, dialogue, snippets []llm.Message) ([]llm.Message, []llm.Message, int) {
	if budget <= 0 {
		return dialogue, snippets, 0
	}

	total := EstimateTokens(system.Content) + EstimateTokens(final.Content)
	for _, m := range dialogue {
		total += EstimateTokens(m.Content)
	}
	for _, m := range snippets {
		total += EstimateTokens(m.Content)
	}

	dropped := 0
	for total > budget && len(dialogue) > 0 {
		total -= EstimateTokens(dialogue[0].Content)
		dialogue = dialogue[1:]
		dropped++
	}
	for total > budget && len(snippets) > 0 {
		total -= EstimateTokens(snippets[0].Content)
		snippets = snippets[1:]
		dropped++
	}
	return dialogue, snippets, dropped
}

// EstimateTokens approximates the token count of a text. Four characters
// per token is close enough for budget enforcement.
func EstimateTokens(text string) int {
	return len(text)/4 + 1
}
