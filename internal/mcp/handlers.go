package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/orchestrator"
)

// handleChat runs one conversational turn through the orchestrator.
func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	threadID := request.GetString("thread_id", "")
	if threadID == "" {
		threadID = uuid.NewString()
	}

	result, err := s.orch.ProcessTurn(ctx, orchestrator.TurnRequest{
		ThreadID:         threadID,
		UserID:           request.GetString("user_id", ""),
		Message:          message,
		ProviderOverride: request.GetString("provider", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(result.Answer)
	sb.WriteString(fmt.Sprintf("\n\n(thread: %s, answered by %s/%s)", result.ThreadID, result.Provider, result.Model))
	return mcp.NewToolResultText(sb.String()), nil
}

// handleSearchMemories performs a semantic search over long-term memory.
func (s *Server) handleSearchMemories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.memories == nil {
		return mcp.NewToolResultError("long-term memory is disabled; enable it in .threadflow.yml"), nil
	}

	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	scope := memory.Scope{UserID: request.GetString("user_id", "")}
	snippets, err := s.memories.SearchMemories(ctx, query, scope, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(snippets) == 0 {
		return mcp.NewToolResultText("No memories found for that query."), nil
	}

	return mcp.NewToolResultText(formatSnippets(snippets)), nil
}

// formatSnippets converts memory search results into a text format
// optimized for AI agent consumption.
func formatSnippets(snippets []memory.Snippet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d memory(ies):\n", len(snippets)))

	for i, s := range snippets {
		sb.WriteString(fmt.Sprintf("\n--- Memory %d ---\n", i+1))
		sb.WriteString(fmt.Sprintf("Relevance: %.1f%%\n", s.Score*100))
		if !s.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("Recorded: %s\n", s.CreatedAt.Format("2006-01-02")))
		}
		sb.WriteString("\n")
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
