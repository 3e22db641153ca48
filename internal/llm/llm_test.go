package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []ChatRequest
	Response *ChatResult
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &ChatResult{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Chat(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestFactoryReturnsConfigErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	providers := []string{"anthropic", "openai", "google", "openrouter"}
	for _, p := range providers {
		_, err := NewProvider(p, "some-model")
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
			continue
		}
		if !errors.Is(err, ErrConfig) {
			t.Errorf("provider %q: expected ErrConfig, got %v", p, err)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for unknown provider, got %v", err)
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", provider.Name())
	}
}

func TestFallbackEligibility(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"config", fmt.Errorf("%w: no key", ErrConfig), false},
		{"timeout", fmt.Errorf("%w: slow", ErrTimeout), true},
		{"malformed", fmt.Errorf("%w: empty", ErrMalformed), true},
		{"provider", &ProviderError{Provider: "openai", Status: 500, Message: "boom"}, true},
		{"wrapped provider", fmt.Errorf("call: %w", &ProviderError{Provider: "x", Status: 429}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("something else"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fallbackable(tt.err); got != tt.want {
				t.Errorf("Fallbackable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyMapsDeadlineToTimeout(t *testing.T) {
	err := Classify(fmt.Errorf("call: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	pe := &ProviderError{Provider: "x", Status: 503}
	if got := Classify(pe); got != error(pe) {
		t.Errorf("expected provider error passthrough, got %v", got)
	}
}

func TestOllamaTransmitsMessagesInOrder(t *testing.T) {
	var received ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := jsonDecode(r, &received); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"model":"llama3","done":true,"done_reason":"stop"}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	msgs := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "second"},
		{Role: RoleUser, Content: "third"},
	}
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: msgs})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected content %q", resp.Content)
	}

	if len(received.Messages) != len(msgs) {
		t.Fatalf("expected %d messages transmitted, got %d", len(msgs), len(received.Messages))
	}
	for i, m := range msgs {
		if received.Messages[i].Content != m.Content || received.Messages[i].Role != string(m.Role) {
			t.Errorf("message %d altered in transit: %+v", i, received.Messages[i])
		}
	}
}

func TestOllamaStatusErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", pe.Status)
	}
	if !Fallbackable(err) {
		t.Error("provider error should be fallback-eligible")
	}
}

func TestOllamaEmptyContentIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"model":"llama3","done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func jsonDecode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
