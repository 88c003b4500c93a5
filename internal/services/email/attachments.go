package email

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/models"
)

// AttachmentStore writes applicant attachments to the local filesystem.
// PDF files are validated before storage so corrupt uploads are rejected
// instead of silently filed against an application.
type AttachmentStore struct {
	dir     string
	pdfConf *model.Configuration
	logger  arbor.ILogger
}

// NewAttachmentStore creates an attachment store rooted at dir
func NewAttachmentStore(dir string, logger arbor.ILogger) *AttachmentStore {
	os.MkdirAll(dir, 0755)

	return &AttachmentStore{
		dir:     dir,
		pdfConf: model.NewDefaultConfiguration(),
		logger:  logger,
	}
}

// Store validates and persists one attachment, returning its metadata.
// The stored filename is prefixed with the email ID to avoid collisions
// between applicants sending identically named files.
func (a *AttachmentStore) Store(emailID, filename, contentType string, content []byte) (*models.Attachment, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("attachment %s is empty", filename)
	}

	if isPDF(filename, contentType) {
		if err := api.Validate(bytes.NewReader(content), a.pdfConf); err != nil {
			return nil, fmt.Errorf("attachment %s is not a valid PDF: %w", filename, err)
		}
	}

	name := fmt.Sprintf("%s_%s", sanitizeID(emailID), sanitizeFilename(filename))
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	a.logger.Debug().
		Str("email_id", emailID).
		Str("file", name).
		Int("size", len(content)).
		Msg("Attachment stored")

	return &models.Attachment{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		StoredPath:  path,
	}, nil
}

// Read loads a previously stored attachment
func (a *AttachmentStore) Read(att *models.Attachment) ([]byte, error) {
	if att == nil || att.StoredPath == "" {
		return nil, fmt.Errorf("attachment has no stored path")
	}
	return os.ReadFile(att.StoredPath)
}

// Sweep removes stored attachments older than the retention window
func (a *AttachmentStore) Sweep(keepDays int) int {
	if keepDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(a.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		a.logger.Info().Int("removed", removed).Msg("Swept expired attachments")
	}
	return removed
}

func isPDF(filename, contentType string) bool {
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// sanitizeFilename keeps only characters safe for local filesystem names
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "attachment"
	}
	return b.String()
}

func sanitizeID(id string) string {
	return sanitizeFilename(strings.ReplaceAll(id, "/", "_"))
}
