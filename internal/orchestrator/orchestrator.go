package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/threadflow/internal/contextengine"
	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/resolver"
	"github.com/ziadkadry99/threadflow/internal/router"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

// ProviderFactory builds a provider for a routing decision. Production
// code wires llm.NewProvider; tests inject mocks.
type ProviderFactory func(providerType, model string) (llm.Provider, error)

// Options configures an Orchestrator.
type Options struct {
	// Fallback names the provider tried once when the primary call fails
	// with a fallback-eligible error. Empty disables fallback.
	FallbackProvider string
	FallbackModel    string

	// TurnTimeout bounds resolve + context build + provider calls for
	// one turn. Zero means 120s.
	TurnTimeout time.Duration

	// MemoryTimeout bounds each memory search and write-back call.
	// Zero means 3s.
	MemoryTimeout time.Duration

	// RecallLimit is how many memory snippets a turn may pull in.
	// Zero means 3.
	RecallLimit int
}

// Orchestrator drives a user turn through resolution, context assembly,
// routing, and the provider call, persisting the dialogue on the way.
// Turns on the same thread are processed strictly in arrival order.
type Orchestrator struct {
	store     thread.Store
	resolver  resolver.Resolver
	engine    *contextengine.Engine
	router    *router.Router
	providers ProviderFactory
	memories  memory.Store // nil disables long-term memory
	opts      Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator. memories may be nil.
func New(store thread.Store, res resolver.Resolver, engine *contextengine.Engine, rt *router.Router, providers ProviderFactory, memories memory.Store, opts Options) *Orchestrator {
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 120 * time.Second
	}
	if opts.MemoryTimeout <= 0 {
		opts.MemoryTimeout = 3 * time.Second
	}
	if opts.RecallLimit <= 0 {
		opts.RecallLimit = 3
	}
	return &Orchestrator{
		store:     store,
		resolver:  res,
		engine:    engine,
		router:    rt,
		providers: providers,
		memories:  memories,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
	}
}

// threadLock returns the mutex serializing turns on one thread.
func (o *Orchestrator) threadLock(threadID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[threadID] = lock
	}
	return lock
}

// ProcessTurn runs one turn end to end. The user turn is appended before
// anything else and persists even if the rest of the pipeline fails; the
// assistant turn is appended exactly once, only on success. The whole
// turn holds the thread's lock, so rapid-fire messages on one thread are
// handled strictly in arrival order.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.ThreadID == "" || req.Message == "" {
		return nil, fmt.Errorf("orchestrator: thread_id and message are required")
	}

	lock := o.threadLock(req.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.opts.TurnTimeout)
	defer cancel()

	if _, err := o.store.EnsureThread(ctx, req.ThreadID, req.UserID); err != nil {
		return nil, fmt.Errorf("ensuring thread %s: %w", req.ThreadID, err)
	}
	if _, err := o.store.Append(ctx, req.ThreadID, thread.Turn{Role: thread.RoleUser, Content: req.Message}); err != nil {
		return nil, fmt.Errorf("appending user turn: %w", err)
	}

	recent, err := o.store.History(ctx, req.ThreadID, 20)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	// Resolution looks at the history before the in-flight message.
	if n := len(recent); n > 0 && recent[n-1].Role == thread.RoleUser && recent[n-1].Content == req.Message {
		recent = recent[:n-1]
	}
	resolved, err := o.resolver.Resolve(ctx, req.Message, recent)
	if err != nil {
		// Resolvers degrade internally; an error here means the context
		// itself died.
		return nil, fmt.Errorf("resolving query: %w", err)
	}

	snippets, degraded := o.recall(ctx, resolved.Query, req.UserID)

	window, err := o.engine.Build(ctx, req.ThreadID, req.Message, resolved, snippets)
	if err != nil {
		return nil, fmt.Errorf("building context: %w", err)
	}
	window.Degraded = degraded

	decision := o.router.Route(resolved.Query, req.Metadata())
	log.Printf("orchestrator: thread %s routed to %s/%s (%s)", req.ThreadID, decision.Provider, decision.Model, decision.Reason)

	result, callErr := o.call(ctx, decision.Provider, decision.Model, window.Messages)
	if callErr != nil {
		if !llm.Fallbackable(callErr) || o.opts.FallbackProvider == "" {
			log.Printf("orchestrator: thread %s turn failed (%s): %v", req.ThreadID, StateFailed, callErr)
			return nil, fmt.Errorf("provider %s: %w", decision.Provider, callErr)
		}

		log.Printf("orchestrator: primary %s failed, trying fallback %s: %v", decision.Provider, o.opts.FallbackProvider, callErr)
		// The fallback receives the exact window already built. It is
		// never rebuilt between attempts.
		result, err = o.call(ctx, o.opts.FallbackProvider, o.opts.FallbackModel, window.Messages)
		if err != nil {
			return nil, fmt.Errorf("fallback %s after primary %s failed: %w", o.opts.FallbackProvider, decision.Provider, err)
		}
		decision.Provider = o.opts.FallbackProvider
		decision.Model = o.opts.FallbackModel
		decision.Reason = "fallback"
	}

	if _, err := o.store.Append(ctx, req.ThreadID, thread.Turn{Role: thread.RoleAssistant, Content: result.Content}); err != nil {
		return nil, fmt.Errorf("appending assistant turn: %w", err)
	}

	o.remember(req.UserID, req.Message, result.Content)

	return &TurnResult{
		ThreadID:      req.ThreadID,
		Answer:        result.Content,
		ResolvedQuery: resolved.Query,
		Entities:      resolved.Entities,
		Provider:      decision.Provider,
		Model:         decision.Model,
		RoutingReason: decision.Reason,
		Degraded:      window.Degraded,
		State:         StateDone,
	}, nil
}

// call builds the provider for a decision and runs the chat. Errors come
// back classified into the failure taxonomy.
func (o *Orchestrator) call(ctx context.Context, providerType, model string, messages []llm.Message) (*llm.ChatResult, error) {
	provider, err := o.providers(providerType, model)
	if err != nil {
		return nil, llm.Classify(err)
	}
	result, err := provider.Chat(ctx, llm.ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, llm.Classify(err)
	}
	return result, nil
}

// recall searches long-term memory for the resolved query. Failures and
// timeouts degrade the turn instead of failing it.
func (o *Orchestrator) recall(ctx context.Context, query, userID string) ([]memory.Snippet, bool) {
	if o.memories == nil {
		return nil, false
	}
	memCtx, cancel := context.WithTimeout(ctx, o.opts.MemoryTimeout)
	defer cancel()

	snippets, err := o.memories.SearchMemories(memCtx, query, memory.Scope{UserID: userID}, o.opts.RecallLimit)
	if err != nil {
		log.Printf("orchestrator: memory search failed, continuing without snippets: %v", err)
		return nil, true
	}
	return snippets, false
}

// remember writes a condensed record of the exchange back to long-term
// memory. Best effort; a failure is logged and otherwise ignored.
func (o *Orchestrator) remember(userID, question, answer string) {
	if o.memories == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.MemoryTimeout)
	defer cancel()

	text := fmt.Sprintf("User asked: %s\nAssistant answered: %s", question, truncate(answer, 500))
	if _, err := o.memories.AddMemory(ctx, text, memory.Scope{UserID: userID}); err != nil {
		log.Printf("orchestrator: memory write-back failed: %v", err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
