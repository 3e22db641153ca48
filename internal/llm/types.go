package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in a provider request.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest contains the parameters for a provider chat call. Messages
// is the canonical context window; adapters transmit it exactly as given,
// never truncating, reordering, or dropping entries.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// ChatResult contains the normalized result of a provider chat call.
type ChatResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
