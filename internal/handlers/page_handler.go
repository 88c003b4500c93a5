package handlers

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
)

// PageHandler serves the local review dashboard
type PageHandler struct {
	logger    arbor.ILogger
	templates *template.Template
}

func NewPageHandler(logger arbor.ILogger) *PageHandler {
	pagesDir := findPagesDir()
	templates := template.Must(template.ParseGlob(filepath.Join(pagesDir, "*.html")))

	return &PageHandler{
		logger:    logger,
		templates: templates,
	}
}

// findPagesDir locates the pages directory relative to the binary
func findPagesDir() string {
	dirs := []string{
		"./pages",
		"../pages",
		"../../pages",
		".",
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}

	return "."
}

// ServePage returns a handler rendering one page template
func (h *PageHandler) ServePage(templateName string, pageName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"Page": pageName,
		}

		if err := h.templates.ExecuteTemplate(w, templateName, data); err != nil {
			h.logger.Error().
				Err(err).
				Str("template", templateName).
				Msg("Failed to render page")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
