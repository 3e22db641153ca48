package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/threadflow/internal/contextengine"
	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/resolver"
	"github.com/ziadkadry99/threadflow/internal/router"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

// scriptedProvider records every request and replies with a canned
// answer or error.
type scriptedProvider struct {
	mu       sync.Mutex
	name     string
	answer   string
	err      error
	requests []llm.ChatRequest
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResult{Content: p.answer, Model: req.Model}, nil
}

func (p *scriptedProvider) recorded() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// factoryFor returns a ProviderFactory serving the given providers by
// type name.
func factoryFor(providers map[string]llm.Provider) ProviderFactory {
	return func(providerType, model string) (llm.Provider, error) {
		p, ok := providers[providerType]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported provider type: %s", llm.ErrConfig, providerType)
		}
		return p, nil
	}
}

func newTestOrchestrator(t *testing.T, providers map[string]llm.Provider, memories memory.Store, opts Options) (*Orchestrator, thread.Store) {
	t.Helper()
	store := thread.NewMemoryStore()
	engine := contextengine.New(store, contextengine.Options{SystemPrompt: "You are a helpful assistant.", MaxTurns: 20})
	rt := router.New(0, nil)
	o := New(store, resolver.NewHeuristicResolver(), engine, rt, factoryFor(providers), memories, opts)
	return o, store
}

func TestProcessTurnHappyPath(t *testing.T) {
	primary := &scriptedProvider{name: "mock", answer: "The capital of France is Paris."}
	o, store := newTestOrchestrator(t, map[string]llm.Provider{"mock": primary}, nil, Options{})

	result, err := o.ProcessTurn(context.Background(), TurnRequest{
		ThreadID:         "t1",
		Message:          "what is the capital of France?",
		ProviderOverride: "mock",
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.Answer != "The capital of France is Paris." {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.State != StateDone {
		t.Errorf("expected DONE, got %s", result.State)
	}

	turns, _ := store.History(context.Background(), "t1", 0)
	if len(turns) != 2 {
		t.Fatalf("expected user + assistant turns, got %d", len(turns))
	}
	if turns[0].Role != thread.RoleUser || turns[1].Role != thread.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", turns[0].Role, turns[1].Role)
	}
}

func TestFollowUpResolvesAgainstHistory(t *testing.T) {
	primary := &scriptedProvider{name: "mock", answer: "ok"}
	o, _ := newTestOrchestrator(t, map[string]llm.Provider{"mock": primary}, nil, Options{})

	ctx := context.Background()
	if _, err := o.ProcessTurn(ctx, TurnRequest{ThreadID: "t1", Message: "Who is Donald Trump?", ProviderOverride: "mock"}); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	result, err := o.ProcessTurn(ctx, TurnRequest{ThreadID: "t1", Message: "who are his children?", ProviderOverride: "mock"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if result.ResolvedQuery != "who are Donald Trump's children?" {
		t.Errorf("expected pronoun resolution, got %q", result.ResolvedQuery)
	}

	// The provider must see the resolved query as the final message.
	reqs := primary.recorded()
	last := reqs[len(reqs)-1]
	if got := last.Messages[len(last.Messages)-1].Content; got != "who are Donald Trump's children?" {
		t.Errorf("provider saw %q as final message", got)
	}
}

func TestOverrideCarriesProviderModel(t *testing.T) {
	primary := &scriptedProvider{name: "anthropic", answer: "ok"}
	o, _ := newTestOrchestrator(t, map[string]llm.Provider{"anthropic": primary}, nil, Options{})

	result, err := o.ProcessTurn(context.Background(), TurnRequest{
		ThreadID:         "t1",
		Message:          "hello there",
		ProviderOverride: "anthropic",
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.Provider != "anthropic" {
		t.Errorf("expected overridden provider, got %s", result.Provider)
	}
	if result.Model == "" {
		t.Error("overridden turn resolved to an empty model")
	}

	// The model reaches the provider call itself.
	reqs := primary.recorded()
	if len(reqs) != 1 || reqs[0].Model == "" {
		t.Errorf("provider received requests %+v, want one with a model set", reqs)
	}
}

func TestFallbackReceivesIdenticalContext(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: &llm.ProviderError{Provider: "primary", Status: 500, Message: "overloaded"}}
	fallback := &scriptedProvider{name: "fallback", answer: "answer from fallback"}
	o, store := newTestOrchestrator(t,
		map[string]llm.Provider{"primary": primary, "fallback": fallback},
		nil,
		Options{FallbackProvider: "fallback", FallbackModel: "fb-model"},
	)

	result, err := o.ProcessTurn(context.Background(), TurnRequest{
		ThreadID:         "t1",
		Message:          "hello there",
		ProviderOverride: "primary",
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.Provider != "fallback" {
		t.Errorf("expected fallback provider, got %s", result.Provider)
	}
	if result.RoutingReason != "fallback" {
		t.Errorf("expected fallback reason, got %q", result.RoutingReason)
	}

	preqs := primary.recorded()
	freqs := fallback.recorded()
	if len(preqs) != 1 || len(freqs) != 1 {
		t.Fatalf("expected one call each, got %d and %d", len(preqs), len(freqs))
	}
	if !reflect.DeepEqual(preqs[0].Messages, freqs[0].Messages) {
		t.Errorf("fallback context differs from primary context:\n%+v\n%+v", preqs[0].Messages, freqs[0].Messages)
	}

	// Exactly one assistant turn appended.
	turns, _ := store.History(context.Background(), "t1", 0)
	assistants := 0
	for _, turn := range turns {
		if turn.Role == thread.RoleAssistant {
			assistants++
		}
	}
	if assistants != 1 {
		t.Errorf("expected exactly one assistant turn, got %d", assistants)
	}
}

func TestPrimaryTimeoutFallsBackWithIdenticalContext(t *testing.T) {
	// The primary's client hits its own deadline; the raw deadline error
	// classifies as a timeout and is eligible for fallback.
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("primary request failed: %w", context.DeadlineExceeded)}
	fallback := &scriptedProvider{name: "fallback", answer: "answer from fallback"}
	o, store := newTestOrchestrator(t,
		map[string]llm.Provider{"primary": primary, "fallback": fallback},
		nil,
		Options{FallbackProvider: "fallback", FallbackModel: "fb-model"},
	)

	result, err := o.ProcessTurn(context.Background(), TurnRequest{
		ThreadID:         "t1",
		Message:          "hello there",
		ProviderOverride: "primary",
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.Provider != "fallback" || result.RoutingReason != "fallback" {
		t.Errorf("expected fallback provider, got %s (%s)", result.Provider, result.RoutingReason)
	}

	preqs := primary.recorded()
	freqs := fallback.recorded()
	if len(preqs) != 1 || len(freqs) != 1 {
		t.Fatalf("expected one call each, got %d and %d", len(preqs), len(freqs))
	}
	if !reflect.DeepEqual(preqs[0].Messages, freqs[0].Messages) {
		t.Errorf("fallback context differs from primary context:\n%+v\n%+v", preqs[0].Messages, freqs[0].Messages)
	}

	turns, _ := store.History(context.Background(), "t1", 0)
	assistants := 0
	for _, turn := range turns {
		if turn.Role == thread.RoleAssistant {
			assistants++
		}
	}
	if assistants != 1 {
		t.Errorf("expected exactly one assistant turn, got %d", assistants)
	}
}

// blockingProvider never answers; it waits out whatever deadline the
// turn gives it.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "primary" }

func (blockingProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTurnDeadlineBoundsBlockedProvider(t *testing.T) {
	o, store := newTestOrchestrator(t,
		map[string]llm.Provider{"primary": blockingProvider{}},
		nil,
		Options{TurnTimeout: 50 * time.Millisecond},
	)

	_, err := o.ProcessTurn(context.Background(), TurnRequest{ThreadID: "t1", Message: "hello", ProviderOverride: "primary"})
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", err)
	}

	// The user turn persists; no assistant turn exists.
	turns, _ := store.History(context.Background(), "t1", 0)
	if len(turns) != 1 || turns[0].Role != thread.RoleUser {
		t.Errorf("expected lone persisted user turn, got %+v", turns)
	}
}

func TestConfigErrorSkipsFallback(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("%w: API key not set", llm.ErrConfig)}
	fallback := &scriptedProvider{name: "fallback", answer: "should never run"}
	o, store := newTestOrchestrator(t,
		map[string]llm.Provider{"primary": primary, "fallback": fallback},
		nil,
		Options{FallbackProvider: "fallback"},
	)

	_, err := o.ProcessTurn(context.Background(), TurnRequest{ThreadID: "t1", Message: "hello", ProviderOverride: "primary"})
	if !errors.Is(err, llm.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if len(fallback.recorded()) != 0 {
		t.Error("fallback must not run on a config error")
	}

	// The user turn persists; no assistant turn exists.
	turns, _ := store.History(context.Background(), "t1", 0)
	if len(turns) != 1 || turns[0].Role != thread.RoleUser {
		t.Errorf("expected lone persisted user turn, got %+v", turns)
	}
}

func TestBothProvidersFailingSurfacesOneError(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("%w: no choices", llm.ErrMalformed)}
	fallback := &scriptedProvider{name: "fallback", err: &llm.ProviderError{Provider: "fallback", Status: 503, Message: "unavailable"}}
	o, store := newTestOrchestrator(t,
		map[string]llm.Provider{"primary": primary, "fallback": fallback},
		nil,
		Options{FallbackProvider: "fallback"},
	)

	_, err := o.ProcessTurn(context.Background(), TurnRequest{ThreadID: "t1", Message: "hello", ProviderOverride: "primary"})
	if err == nil {
		t.Fatal("expected an error when both providers fail")
	}

	turns, _ := store.History(context.Background(), "t1", 0)
	for _, turn := range turns {
		if turn.Role == thread.RoleAssistant {
			t.Error("no assistant turn may be appended on total failure")
		}
	}
}

func TestRapidFireOrdering(t *testing.T) {
	primary := &scriptedProvider{name: "mock", answer: "ack"}
	o, store := newTestOrchestrator(t, map[string]llm.Provider{"mock": primary}, nil, Options{})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := o.ProcessTurn(ctx, TurnRequest{
			ThreadID:         "t1",
			Message:          fmt.Sprintf("message %d", i),
			ProviderOverride: "mock",
		}); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	turns, _ := store.History(ctx, "t1", 0)
	if len(turns) != 8 {
		t.Fatalf("expected 4 user + 4 assistant turns, got %d", len(turns))
	}
	for i := 0; i < 4; i++ {
		user := turns[2*i]
		assistant := turns[2*i+1]
		if user.Role != thread.RoleUser || user.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("turn %d: expected user message %d, got %s %q", 2*i, i, user.Role, user.Content)
		}
		if assistant.Role != thread.RoleAssistant {
			t.Errorf("turn %d: expected assistant turn, got %s", 2*i+1, assistant.Role)
		}
	}
}

func TestThreadIsolationUnderConcurrency(t *testing.T) {
	primary := &scriptedProvider{name: "mock", answer: "ack"}
	o, store := newTestOrchestrator(t, map[string]llm.Provider{"mock": primary}, nil, Options{})

	var wg sync.WaitGroup
	for _, id := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(threadID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := o.ProcessTurn(context.Background(), TurnRequest{
					ThreadID:         threadID,
					Message:          threadID + " message",
					ProviderOverride: "mock",
				}); err != nil {
					t.Errorf("%s turn %d: %v", threadID, i, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"alpha", "beta"} {
		turns, _ := store.History(context.Background(), id, 0)
		if len(turns) != 10 {
			t.Errorf("thread %s: expected 10 turns, got %d", id, len(turns))
		}
		for _, turn := range turns {
			if turn.Role == thread.RoleUser && turn.Content != id+" message" {
				t.Errorf("thread %s contains foreign turn %q", id, turn.Content)
			}
		}
	}
}

// failingMemory always errors, to exercise degradation.
type failingMemory struct{}

func (failingMemory) AddMemory(ctx context.Context, text string, scope memory.Scope) (string, error) {
	return "", errors.New("memory store down")
}
func (failingMemory) SearchMemories(ctx context.Context, query string, scope memory.Scope, limit int) ([]memory.Snippet, error) {
	return nil, errors.New("memory store down")
}
func (failingMemory) Persist(ctx context.Context, dir string) error { return nil }
func (failingMemory) Load(ctx context.Context, dir string) error    { return nil }
func (failingMemory) Count() int                                    { return 0 }

func TestMemoryFailureDegradesTurn(t *testing.T) {
	primary := &scriptedProvider{name: "mock", answer: "still fine"}
	o, _ := newTestOrchestrator(t, map[string]llm.Provider{"mock": primary}, failingMemory{}, Options{})

	result, err := o.ProcessTurn(context.Background(), TurnRequest{ThreadID: "t1", Message: "hello", ProviderOverride: "mock"})
	if err != nil {
		t.Fatalf("memory failure must not fail the turn: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded flag when memory search fails")
	}
	if result.Answer != "still fine" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
}
