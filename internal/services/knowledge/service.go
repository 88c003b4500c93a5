package knowledge

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// Service exposes the enrollment FAQ corpus to the email pipeline and the
// MCP server. Retrieval is storage-backed token-overlap search.
type Service struct {
	storage     interfaces.KnowledgeStorage
	searchLimit int
	logger      arbor.ILogger
}

// NewService creates a knowledge service
func NewService(cfg *common.KnowledgeConfig, storage interfaces.KnowledgeStorage, logger arbor.ILogger) *Service {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 3
	}
	return &Service{
		storage:     storage,
		searchLimit: limit,
		logger:      logger,
	}
}

// Search returns the best-matching articles for a free-text query
func (s *Service) Search(ctx context.Context, query string) ([]*models.KnowledgeArticle, error) {
	return s.SearchN(ctx, query, s.searchLimit)
}

// SearchN returns up to limit best-matching articles
func (s *Service) SearchN(ctx context.Context, query string, limit int) ([]*models.KnowledgeArticle, error) {
	if limit <= 0 {
		limit = s.searchLimit
	}
	articles, err := s.storage.SearchArticles(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(articles)).
		Msg("Knowledge search completed")

	return articles, nil
}

// GetArticle returns a single article by ID
func (s *Service) GetArticle(ctx context.Context, id string) (*models.KnowledgeArticle, error) {
	return s.storage.GetArticle(ctx, id)
}

// ListArticles returns the full corpus
func (s *Service) ListArticles(ctx context.Context) ([]*models.KnowledgeArticle, error) {
	return s.storage.ListArticles(ctx)
}

// SaveArticle adds or updates a corpus entry
func (s *Service) SaveArticle(ctx context.Context, article *models.KnowledgeArticle) error {
	if article.ID == "" {
		article.ID = common.NewArticleID()
	}
	return s.storage.SaveArticle(ctx, article)
}

// DeleteArticle removes a corpus entry
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	return s.storage.DeleteArticle(ctx, id)
}
