package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/knowledge"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchKnowledge implements the search_knowledge tool
func handleSearchKnowledge(knowledgeService *knowledge.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 5)
		if limit > 25 {
			limit = 25
		}

		articles, err := knowledgeService.SearchN(ctx, query, limit)
		if err != nil {
			logger.Error().Err(err).Msg("Knowledge search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchResults(query, articles)), nil
	}
}

// handleGetArticle implements the get_article tool
func handleGetArticle(knowledgeService *knowledge.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		articleID, err := request.RequireString("article_id")
		if err != nil || articleID == "" {
			return textResult("Error: article_id parameter is required"), nil
		}

		article, err := knowledgeService.GetArticle(ctx, articleID)
		if err != nil {
			logger.Error().Err(err).Str("article_id", articleID).Msg("GetArticle failed")
			return textResult(fmt.Sprintf("Article not found: %v", err)), nil
		}

		return textResult(formatArticle(article)), nil
	}
}

// handleListSessions implements the list_sessions tool
func handleListSessions(sessions interfaces.SessionStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)

		all, err := sessions.ListSessions(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("ListSessions failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}
		if len(all) > limit {
			all = all[:limit]
		}

		return textResult(formatSessions(all)), nil
	}
}

// handleGetSession implements the get_session tool
func handleGetSession(sessions interfaces.SessionStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil || sessionID == "" {
			return textResult("Error: session_id parameter is required"), nil
		}

		session, err := sessions.GetSession(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("GetSession failed")
			return textResult(fmt.Sprintf("Session not found: %v", err)), nil
		}

		return textResult(formatSession(session)), nil
	}
}

// handleListDrafts implements the list_drafts tool
func handleListDrafts(drafts interfaces.DraftStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := models.DraftState(request.GetString("state", ""))

		list, err := drafts.ListDrafts(ctx, state)
		if err != nil {
			logger.Error().Err(err).Msg("ListDrafts failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatDrafts(state, list)), nil
	}
}
