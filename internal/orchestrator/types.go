package orchestrator

import "github.com/ziadkadry99/threadflow/internal/router"

// TurnState tracks a turn through the processing pipeline. States only
// move forward; Done and Failed are terminal.
type TurnState string

const (
	StateReceived        TurnState = "RECEIVED"
	StateResolving       TurnState = "RESOLVING"
	StateContextBuilt    TurnState = "CONTEXT_BUILT"
	StateRouted          TurnState = "ROUTED"
	StateCallingPrimary  TurnState = "CALLING_PRIMARY"
	StateCallingFallback TurnState = "CALLING_FALLBACK"
	StateDone            TurnState = "DONE"
	StateFailed          TurnState = "FAILED"
)

// TurnRequest is one inbound user message plus its routing metadata.
type TurnRequest struct {
	ThreadID         string          `json:"thread_id"`
	UserID           string          `json:"user_id,omitempty"`
	Message          string          `json:"message"`
	SearchMode       bool            `json:"search_mode,omitempty"`
	CodingMode       bool            `json:"coding_mode,omitempty"`
	Priority         router.Priority `json:"priority,omitempty"`
	ProviderOverride string          `json:"provider_override,omitempty"`
}

// Metadata extracts the routing-relevant slice of the request.
func (r TurnRequest) Metadata() router.Metadata {
	return router.Metadata{
		SearchMode:       r.SearchMode,
		CodingMode:       r.CodingMode,
		Priority:         r.Priority,
		ProviderOverride: r.ProviderOverride,
	}
}

// TurnResult is the outcome of one fully processed turn.
type TurnResult struct {
	ThreadID      string    `json:"thread_id"`
	Answer        string    `json:"answer"`
	ResolvedQuery string    `json:"resolved_query"`
	Entities      []string  `json:"entities"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	RoutingReason string    `json:"routing_reason"`
	Degraded      bool      `json:"degraded,omitempty"`
	State         TurnState `json:"state"`
}
