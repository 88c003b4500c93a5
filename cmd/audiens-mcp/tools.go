package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchKnowledgeTool returns the search_knowledge tool definition
func createSearchKnowledgeTool() mcp.Tool {
	return mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search the enrollment FAQ corpus by relevance over title, body, and tags"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (plain words, no operators)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 5, max: 25)"),
		),
	)
}

// createGetArticleTool returns the get_article tool definition
func createGetArticleTool() mcp.Tool {
	return mcp.NewTool("get_article",
		mcp.WithDescription("Retrieve a single knowledge article by its unique ID"),
		mcp.WithString("article_id",
			mcp.Required(),
			mcp.Description("Article ID (format: kb_{uuid})"),
		),
	)
}

// createListSessionsTool returns the list_sessions tool definition
func createListSessionsTool() mcp.Tool {
	return mcp.NewTool("list_sessions",
		mcp.WithDescription("List counselor workflow sessions with their current state"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// createGetSessionTool returns the get_session tool definition
func createGetSessionTool() mcp.Tool {
	return mcp.NewTool("get_session",
		mcp.WithDescription("Retrieve one workflow session including its full event history"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID (format: sess_{uuid})"),
		),
	)
}

// createListDraftsTool returns the list_drafts tool definition
func createListDraftsTool() mcp.Tool {
	return mcp.NewTool("list_drafts",
		mcp.WithDescription("List reply drafts, optionally filtered by lifecycle state"),
		mcp.WithString("state",
			mcp.Description("Filter: staged, sent, saved, discarded"),
		),
	)
}
