package orchestrator

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/threadflow/internal/llm"
)

// RegisterRoutes mounts the HTTP chat endpoint on the given router.
func RegisterRoutes(r chi.Router, o *Orchestrator) {
	r.Post("/api/chat", handleChat(o))
}

// RegisterWebsocket mounts the chat WebSocket endpoint. Registered
// separately so the server can keep per-request timeout middleware off
// a long-lived connection.
func RegisterWebsocket(r chi.Router, o *Orchestrator) {
	r.Get("/api/chat/ws", handleChatWS(o))
}

func handleChat(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ThreadID == "" || req.Message == "" {
			writeError(w, http.StatusBadRequest, "thread_id and message are required")
			return
		}

		result, err := o.ProcessTurn(r.Context(), req)
		if err != nil {
			log.Printf("orchestrator: chat request failed: %v", err)
			writeError(w, statusFor(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("orchestrator: encoding response: %v", err)
		}
	}
}

// statusFor maps the provider failure taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, llm.ErrConfig):
		return http.StatusInternalServerError
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrMalformed):
		return http.StatusBadGateway
	}
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
