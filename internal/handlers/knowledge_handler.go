package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/knowledge"
)

// KnowledgeHandler manages the enrollment FAQ corpus
type KnowledgeHandler struct {
	knowledge *knowledge.Service
	logger    arbor.ILogger
}

func NewKnowledgeHandler(knowledgeSvc *knowledge.Service, logger arbor.ILogger) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledge: knowledgeSvc,
		logger:    logger,
	}
}

type articleRequest struct {
	ID    string   `json:"id"`
	Title string   `json:"title" validate:"required"`
	Body  string   `json:"body" validate:"required"`
	Tags  []string `json:"tags"`
}

// ArticlesHandler lists articles or saves one
func (h *KnowledgeHandler) ArticlesHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.listArticles, h.saveArticle, nil, nil)
}

func (h *KnowledgeHandler) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.knowledge.ListArticles(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(articles),
		"articles": articles,
	})
}

func (h *KnowledgeHandler) saveArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	article := &models.KnowledgeArticle{
		ID:        req.ID,
		Title:     req.Title,
		Body:      req.Body,
		Tags:      req.Tags,
		UpdatedAt: time.Now(),
	}
	if article.ID == "" {
		article.ID = common.NewArticleID()
		article.CreatedAt = article.UpdatedAt
	}

	if err := h.knowledge.SaveArticle(r.Context(), article); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "saved",
		"article": article,
	})
}

// ArticleHandler handles GET and DELETE for one article
func (h *KnowledgeHandler) ArticleHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.getArticle, nil, nil, h.deleteArticle)
}

func (h *KnowledgeHandler) getArticle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/knowledge/article/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Article ID required")
		return
	}

	article, err := h.knowledge.GetArticle(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, article)
}

func (h *KnowledgeHandler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/knowledge/article/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Article ID required")
		return
	}

	if err := h.knowledge.DeleteArticle(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteSuccess(w, "Article deleted")
}

// SearchHandler runs a relevance search over the corpus
func (h *KnowledgeHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter 'q' required")
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	articles, err := h.knowledge.SearchN(r.Context(), query, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":    query,
		"count":    len(articles),
		"articles": articles,
	})
}
