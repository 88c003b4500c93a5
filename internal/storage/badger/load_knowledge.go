package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/audiens/internal/models"
)

// ArticleFile represents one knowledge article in a TOML file
// Format:
//
//	[[article]]
//	id = "deadlines-fall"       # optional, derived from title when omitted
//	title = "Fall application deadlines"
//	body = "..."
//	tags = ["deadlines", "fall"]
type ArticleFile struct {
	Articles []struct {
		ID    string   `toml:"id"`
		Title string   `toml:"title"`
		Body  string   `toml:"body"`
		Tags  []string `toml:"tags"`
	} `toml:"article"`
}

// LoadKnowledgeFromFiles loads FAQ articles from all .toml files in a directory
func (m *Manager) LoadKnowledgeFromFiles(ctx context.Context, dirPath string) error {
	m.logger.Debug().Str("dir", dirPath).Msg("Loading knowledge articles from files")

	if info, err := os.Stat(dirPath); err != nil || !info.IsDir() {
		m.logger.Debug().Str("dir", dirPath).Msg("Knowledge directory does not exist, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		m.logger.Warn().Err(err).Str("dir", dirPath).Msg("Failed to read knowledge directory")
		return nil // Non-fatal
	}

	loadedCount := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(filePath)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read knowledge file")
			errorCount++
			continue
		}

		var file ArticleFile
		if err := toml.Unmarshal(content, &file); err != nil {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse knowledge file")
			errorCount++
			continue
		}

		for _, a := range file.Articles {
			if a.Title == "" || a.Body == "" {
				m.logger.Warn().Str("file", filePath).Msg("Skipping article with empty title or body")
				continue
			}

			id := a.ID
			if id == "" {
				id = slugify(a.Title)
			}

			article := &models.KnowledgeArticle{
				ID:     id,
				Title:  a.Title,
				Body:   a.Body,
				Tags:   a.Tags,
				Source: entry.Name(),
			}
			if err := m.knowledge.SaveArticle(ctx, article); err != nil {
				m.logger.Error().Err(err).Str("id", id).Msg("Failed to store knowledge article")
				errorCount++
				continue
			}
			loadedCount++
		}
	}

	m.logger.Info().
		Str("dir", dirPath).
		Int("loaded", loadedCount).
		Int("errors", errorCount).
		Msg("Finished loading knowledge articles")

	return nil
}

// slugify derives a stable article ID from a title
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case ('a' <= r && r <= 'z') || ('0' <= r && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
