package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/services/knowledge"
	"github.com/ternarybob/audiens/internal/storage/badger"
)

func main() {
	configPath := os.Getenv("AUDIENS_CONFIG")
	if configPath == "" {
		configPath = "audiens.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console logger at warn so stdio stays clean for MCP
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	knowledgeService := knowledge.NewService(
		&config.Knowledge,
		storageManager.KnowledgeStorage(),
		logger,
	)

	mcpServer := server.NewMCPServer(
		"audiens",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Knowledge corpus tools
	mcpServer.AddTool(createSearchKnowledgeTool(), handleSearchKnowledge(knowledgeService, logger))
	mcpServer.AddTool(createGetArticleTool(), handleGetArticle(knowledgeService, logger))

	// Workflow state tools
	mcpServer.AddTool(createListSessionsTool(), handleListSessions(storageManager.SessionStorage(), logger))
	mcpServer.AddTool(createGetSessionTool(), handleGetSession(storageManager.SessionStorage(), logger))
	mcpServer.AddTool(createListDraftsTool(), handleListDrafts(storageManager.DraftStorage(), logger))

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
