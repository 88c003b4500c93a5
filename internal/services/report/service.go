// -----------------------------------------------------------------------
// Report Service - daily digest of counselor activity. Builds a markdown
// summary, renders it to PDF, keeps a retention window on disk, and
// mails it to the configured recipient.
// -----------------------------------------------------------------------

package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/mailer"
	"github.com/ternarybob/audiens/internal/services/monitor"
)

// Service generates and distributes the daily digest
type Service struct {
	config   *common.ReportConfig
	sessions interfaces.SessionStorage
	drafts   interfaces.DraftStorage
	monitor  *monitor.Monitor
	mailer   *mailer.Service
	logger   arbor.ILogger
}

// NewService creates the report service
func NewService(
	cfg *common.ReportConfig,
	sessions interfaces.SessionStorage,
	drafts interfaces.DraftStorage,
	mon *monitor.Monitor,
	mailerSvc *mailer.Service,
	logger arbor.ILogger,
) *Service {
	os.MkdirAll(cfg.OutputDir, 0755)

	return &Service{
		config:   cfg,
		sessions: sessions,
		drafts:   drafts,
		monitor:  mon,
		mailer:   mailerSvc,
		logger:   logger,
	}
}

// GenerateDigest builds the digest for the last 24 hours, writes the
// PDF, and mails it when a recipient is configured
func (s *Service) GenerateDigest(ctx context.Context) (string, error) {
	if !s.config.Enabled {
		return "", nil
	}

	since := time.Now().Add(-24 * time.Hour)
	markdown, err := s.buildMarkdown(ctx, since)
	if err != nil {
		return "", fmt.Errorf("failed to build digest: %w", err)
	}

	pdfData, err := RenderPDF(markdown, s.config.Title)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("digest_%s.pdf", time.Now().Format("2006-01-02"))
	path := filepath.Join(s.config.OutputDir, filename)
	if err := os.WriteFile(path, pdfData, 0644); err != nil {
		return "", fmt.Errorf("failed to write digest PDF: %w", err)
	}

	s.logger.Info().Str("path", path).Int("size", len(pdfData)).Msg("Digest report generated")

	if s.config.Recipient != "" && s.mailer.IsConfigured(ctx) {
		err := s.mailer.SendEmailWithAttachments(ctx,
			s.config.Recipient,
			s.config.Title+" - "+time.Now().Format("Jan 2, 2006"),
			"",
			"The daily enrollment assistant digest is attached.",
			[]mailer.Attachment{{
				Filename:    filename,
				ContentType: "application/pdf",
				Content:     pdfData,
			}},
		)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to mail digest")
		} else {
			s.logger.Info().Str("to", s.config.Recipient).Msg("Digest mailed")
		}
	}

	s.sweep()
	return path, nil
}

// buildMarkdown assembles the digest body
func (s *Service) buildMarkdown(ctx context.Context, since time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.config.Title)
	fmt.Fprintf(&b, "Generated %s\n\n---\n\n", time.Now().Format(time.RFC1123))

	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	recent := 0
	for _, session := range sessions {
		if session.StartedAt.After(since) {
			recent++
		}
	}
	b.WriteString("## Sessions\n\n")
	fmt.Fprintf(&b, "- Sessions started in the last 24 hours: **%d**\n", recent)
	fmt.Fprintf(&b, "- Total sessions on record: **%d**\n\n", len(sessions))

	b.WriteString("## Drafts\n\n")
	for _, state := range []models.DraftState{models.DraftStaged, models.DraftSent, models.DraftSaved, models.DraftDiscarded} {
		drafts, err := s.drafts.ListDrafts(ctx, state)
		if err != nil {
			return "", err
		}
		count := 0
		for _, draft := range drafts {
			if draft.UpdatedAt.After(since) {
				count++
			}
		}
		fmt.Fprintf(&b, "- %s: **%d**\n", capitalize(string(state)), count)
	}
	b.WriteString("\n")

	if s.monitor != nil {
		b.WriteString("## Services\n\n")
		for name, snapshot := range s.monitor.AllSnapshots() {
			metrics, ok := snapshot.(map[string]interface{})
			if !ok {
				continue
			}
			requests, ok := metrics["requests"].(map[string]interface{})
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- **%s**: %v requests, %v errors, success rate %v\n",
				name, requests["total"], requests["error"], requests["success_rate"])
		}
	}

	return b.String(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sweep removes digest PDFs past the retention window
func (s *Service) sweep() {
	if s.config.KeepDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.config.KeepDays)

	entries, err := os.ReadDir(s.config.OutputDir)
	if err != nil {
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.config.OutputDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired digest reports removed")
	}
}
