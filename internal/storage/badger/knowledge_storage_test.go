package badger

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/models"
)

func seedArticles(t *testing.T, storage *KnowledgeStorage) {
	t.Helper()

	ctx := context.Background()
	articles := []*models.KnowledgeArticle{
		{
			ID:    "deadlines-fall",
			Title: "Fall application deadlines",
			Body:  "The priority deadline for fall admission is January 15. Regular decision closes March 1.",
			Tags:  []string{"deadlines", "fall"},
		},
		{
			ID:    "transcripts",
			Title: "Submitting official transcripts",
			Body:  "Official transcripts must be sent directly from the issuing institution.",
			Tags:  []string{"documents", "transcripts"},
		},
		{
			ID:    "status-check",
			Title: "Checking application status",
			Body:  "Applicants can check their status through the applicant portal once all documents arrive.",
			Tags:  []string{"status"},
		},
	}
	for _, a := range articles {
		if err := storage.SaveArticle(ctx, a); err != nil {
			t.Fatalf("Failed to save article %s: %v", a.ID, err)
		}
	}
}

func TestSearchArticlesRanking(t *testing.T) {
	db := newTestDB(t)
	storage := NewKnowledgeStorage(db, arbor.NewLogger()).(*KnowledgeStorage)
	seedArticles(t, storage)

	results, err := storage.SearchArticles(context.Background(), "when is the fall deadline", 3)
	if err != nil {
		t.Fatalf("SearchArticles() error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != "deadlines-fall" {
		t.Errorf("top result = %s, want deadlines-fall", results[0].ID)
	}
}

func TestSearchArticlesNoMatch(t *testing.T) {
	db := newTestDB(t)
	storage := NewKnowledgeStorage(db, arbor.NewLogger()).(*KnowledgeStorage)
	seedArticles(t, storage)

	results, err := storage.SearchArticles(context.Background(), "zzzz qqqq", 3)
	if err != nil {
		t.Fatalf("SearchArticles() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchArticlesLimit(t *testing.T) {
	db := newTestDB(t)
	storage := NewKnowledgeStorage(db, arbor.NewLogger()).(*KnowledgeStorage)
	seedArticles(t, storage)

	// "application" appears in two articles
	results, err := storage.SearchArticles(context.Background(), "application", 1)
	if err != nil {
		t.Fatalf("SearchArticles() error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result with limit 1, got %d", len(results))
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("When is the Fall deadline?")
	want := []string{"fall", "deadline"}
	if len(tokens) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokenize()[%d] = %s, want %s", i, tokens[i], want[i])
		}
	}
}
