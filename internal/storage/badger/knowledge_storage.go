package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// KnowledgeStorage implements the KnowledgeStorage interface for Badger
type KnowledgeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKnowledgeStorage creates a new KnowledgeStorage instance
func NewKnowledgeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KnowledgeStorage {
	return &KnowledgeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *KnowledgeStorage) SaveArticle(ctx context.Context, article *models.KnowledgeArticle) error {
	if article.ID == "" {
		return fmt.Errorf("article ID is required")
	}

	now := time.Now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	if err := s.db.Store().Upsert(article.ID, article); err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

func (s *KnowledgeStorage) GetArticle(ctx context.Context, id string) (*models.KnowledgeArticle, error) {
	var article models.KnowledgeArticle
	if err := s.db.Store().Get(id, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

func (s *KnowledgeStorage) ListArticles(ctx context.Context) ([]*models.KnowledgeArticle, error) {
	var articles []models.KnowledgeArticle
	if err := s.db.Store().Find(&articles, nil); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	result := make([]*models.KnowledgeArticle, len(articles))
	for i := range articles {
		result[i] = &articles[i]
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Title < result[j].Title
	})
	return result, nil
}

// SearchArticles ranks articles by token overlap between the query and
// the article title, tags, and body. Title and tag hits weigh more than
// body hits. Articles with zero overlap are excluded.
func (s *KnowledgeStorage) SearchArticles(ctx context.Context, query string, limit int) ([]*models.KnowledgeArticle, error) {
	if limit <= 0 {
		limit = 3
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var articles []models.KnowledgeArticle
	if err := s.db.Store().Find(&articles, nil); err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}

	type scored struct {
		article *models.KnowledgeArticle
		score   float64
	}

	var matches []scored
	for i := range articles {
		article := &articles[i]

		titleTokens := tokenSet(tokenize(article.Title))
		bodyTokens := tokenSet(tokenize(article.Body))
		tagTokens := make(map[string]bool)
		for _, tag := range article.Tags {
			for _, t := range tokenize(tag) {
				tagTokens[t] = true
			}
		}

		score := 0.0
		for _, token := range queryTokens {
			if titleTokens[token] {
				score += 3.0
			}
			if tagTokens[token] {
				score += 2.0
			}
			if bodyTokens[token] {
				score += 1.0
			}
		}

		if score > 0 {
			matches = append(matches, scored{article: article, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := make([]*models.KnowledgeArticle, len(matches))
	for i, m := range matches {
		result[i] = m.article
	}
	return result, nil
}

func (s *KnowledgeStorage) DeleteArticle(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.KnowledgeArticle{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return nil
}

// stopwords excluded from search scoring
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true,
	"do": true, "for": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "my": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "what": true, "when": true,
	"you": true, "your": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
