package mcp

import "github.com/mark3labs/mcp-go/mcp"

// chatTool defines the chat MCP tool.
var chatTool = mcp.NewTool("chat",
	mcp.WithDescription("Send a message to a conversation thread and get the assistant's answer. Follow-up questions resolve pronouns against earlier turns in the same thread."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The user message to send"),
	),
	mcp.WithString("thread_id",
		mcp.Description("Thread to continue; omit to start a new thread"),
	),
	mcp.WithString("user_id",
		mcp.Description("User the thread belongs to"),
	),
	mcp.WithString("provider",
		mcp.Description("Force a specific provider instead of automatic routing"),
		mcp.Enum("anthropic", "openai", "google", "ollama", "openrouter"),
	),
)

// searchMemoriesTool defines the search_memories MCP tool.
var searchMemoriesTool = mcp.NewTool("search_memories",
	mcp.WithDescription("Search long-term memory for facts recorded in past conversations."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("user_id",
		mcp.Description("Restrict results to one user's memories"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)
