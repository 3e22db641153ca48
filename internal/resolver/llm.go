package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

const resolvePrompt = `You rewrite a user's latest message so it stands alone.
Replace pronouns and vague references with the entity they refer to, using the
conversation below. If nothing needs resolving, return the message unchanged.
Respond with JSON only: {"resolved_query": "...", "entities": ["..."]}`

// LLMResolver resolves references with a model call. The call is bounded
// by its own timeout and any failure or malformed output falls back to
// the heuristic resolver, so a turn never fails on resolution.
type LLMResolver struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	fallback *HeuristicResolver
}

// NewLLMResolver creates a model-backed resolver using the given provider.
func NewLLMResolver(provider llm.Provider, model string, timeout time.Duration) *LLMResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMResolver{
		provider: provider,
		model:    model,
		timeout:  timeout,
		fallback: NewHeuristicResolver(),
	}
}

type resolveResult struct {
	ResolvedQuery string   `json:"resolved_query"`
	Entities      []string `json:"entities"`
}

func (r *LLMResolver) Resolve(ctx context.Context, latest string, recent []thread.Turn) (ResolvedQuery, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.provider.Chat(callCtx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: resolvePrompt},
			{Role: llm.RoleUser, Content: buildResolveInput(latest, recent)},
		},
		MaxTokens:   512,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		log.Printf("resolver: model call failed, falling back to heuristic: %v", err)
		return r.fallback.Resolve(ctx, latest, recent)
	}

	parsed, err := parseResolveResult(resp.Content)
	if err != nil {
		log.Printf("resolver: malformed model output, falling back to heuristic: %v", err)
		return r.fallback.Resolve(ctx, latest, recent)
	}

	if parsed.ResolvedQuery == "" {
		parsed.ResolvedQuery = latest
	}
	if parsed.Entities == nil {
		parsed.Entities = []string{}
	}
	return ResolvedQuery{Query: parsed.ResolvedQuery, Entities: parsed.Entities}, nil
}

// parseResolveResult unmarshals the model's JSON, repairing it first when
// the raw output is not valid JSON.
func parseResolveResult(content string) (resolveResult, error) {
	var out resolveResult
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return out, fmt.Errorf("repairing resolver JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, fmt.Errorf("unmarshalling repaired resolver JSON: %w", err)
	}
	return out, nil
}

func buildResolveInput(latest string, recent []thread.Turn) string {
	var sb strings.Builder
	sb.WriteString("Conversation:\n")
	for _, t := range recent {
		sb.WriteString(fmt.Sprintf("%s: %s\n", t.Role, t.Content))
	}
	sb.WriteString("\nLatest message: ")
	sb.WriteString(latest)
	return sb.String()
}
