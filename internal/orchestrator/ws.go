package orchestrator

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format. A missing
// thread_id starts a fresh thread whose ID comes back in every response.
type wsRequest struct {
	ThreadID         string `json:"thread_id"`
	UserID           string `json:"user_id,omitempty"`
	Message          string `json:"message"`
	ProviderOverride string `json:"provider_override,omitempty"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type     string `json:"type"` // "response" or "error"
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func handleChatWS(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("orchestrator: websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("orchestrator: websocket read: %v", err)
				}
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				sendWSError(conn, "", "invalid message format")
				continue
			}
			if req.Message == "" {
				sendWSError(conn, req.ThreadID, "message is required")
				continue
			}
			if req.ThreadID == "" {
				req.ThreadID = uuid.NewString()
			}

			result, err := o.ProcessTurn(r.Context(), TurnRequest{
				ThreadID:         req.ThreadID,
				UserID:           req.UserID,
				Message:          req.Message,
				ProviderOverride: req.ProviderOverride,
			})
			if err != nil {
				sendWSError(conn, req.ThreadID, "processing failed: "+err.Error())
				continue
			}

			sendWSResponse(conn, wsResponse{
				Type:     "response",
				ThreadID: result.ThreadID,
				Content:  result.Answer,
				Provider: result.Provider,
				Model:    result.Model,
			})
		}
	}
}

func sendWSResponse(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("orchestrator: websocket write: %v", err)
	}
}

func sendWSError(conn *websocket.Conn, threadID, message string) {
	if err := conn.WriteJSON(wsResponse{Type: "error", ThreadID: threadID, Content: message}); err != nil {
		log.Printf("orchestrator: websocket write error: %v", err)
	}
}
