package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/threadflow/internal/contextengine"
	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/orchestrator"
	"github.com/ziadkadry99/threadflow/internal/resolver"
	"github.com/ziadkadry99/threadflow/internal/router"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

type cannedProvider struct{ answer string }

func (p *cannedProvider) Name() string { return "canned" }
func (p *cannedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	return &llm.ChatResult{Content: p.answer}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := thread.NewMemoryStore()
	engine := contextengine.New(store, contextengine.Options{SystemPrompt: "sys"})
	factory := func(providerType, model string) (llm.Provider, error) {
		return &cannedProvider{answer: "hello from " + providerType}, nil
	}
	orch := orchestrator.New(store, resolver.NewHeuristicResolver(), engine, router.New(0, nil), factory, nil, orchestrator.Options{})
	return New(Config{Port: 0}, store, orch)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	store := thread.NewMemoryStore()
	srv := New(Config{Port: 0, AllowAll: true}, store, nil)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestChatEndpointRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	payload := map[string]string{
		"thread_id":         "t1",
		"message":           "what is the capital of France?",
		"provider_override": "mock",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result orchestrator.TurnResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Answer == "" {
		t.Error("expected a non-empty answer")
	}

	// The turn is visible through the history endpoint.
	req = httptest.NewRequest("GET", "/api/threads/t1", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
}

func TestWebsocketChatRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := map[string]string{
		"thread_id":         "t1",
		"message":           "what is the capital of France?",
		"provider_override": "mock",
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp struct {
		Type     string `json:"type"`
		ThreadID string `json:"thread_id"`
		Content  string `json:"content"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "response" {
		t.Fatalf("expected response message, got %+v", resp)
	}
	if resp.ThreadID != "t1" || resp.Content == "" {
		t.Errorf("unexpected reply %+v", resp)
	}
}

func TestChatEndpointRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"message": "hi"})
	req := httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
