package llm

import "context"

// Provider is the uniform interface over heterogeneous model APIs. Each
// adapter normalizes one external chat API into this single shape.
type Provider interface {
	// Chat sends the given context window and returns the normalized result.
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	// Name returns the name of this provider.
	Name() string
}
