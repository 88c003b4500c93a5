package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

const drafterSystemPrompt = `You are an admissions counselor at a university enrollment office.
Write a reply to the applicant email below. Be warm, concise, and professional.
Ground every factual claim in the reference articles provided; if the articles
do not answer the question, say you will follow up rather than guessing.
Do not invent deadlines, fees, or policy. Sign off as "The Admissions Team".
Reply with the email body only, in plain text.`

// Drafter turns an applicant email plus knowledge articles into a reply
// draft using the configured LLM provider
type Drafter struct {
	llm     interfaces.LLMService
	tracker interfaces.Tracker
	logger  arbor.ILogger
}

// NewDrafter creates a reply drafter on top of an LLM service
func NewDrafter(llm interfaces.LLMService, logger arbor.ILogger) *Drafter {
	return &Drafter{
		llm:    llm,
		logger: logger,
	}
}

// SetTracker attaches the request metrics recorder
func (d *Drafter) SetTracker(t interfaces.Tracker) {
	d.tracker = t
}

// DraftReply generates a reply body for an applicant email, grounded in the
// given knowledge articles. The returned text is the reply body only; the
// caller stages it as a ReplyDraft for review.
func (d *Drafter) DraftReply(ctx context.Context, email *models.EmailMessage, intent models.EmailIntent, articles []*models.KnowledgeArticle) (reply string, err error) {
	if d.tracker != nil {
		defer func(start time.Time) {
			d.tracker.Record("llm", err == nil, time.Since(start), err)
		}(time.Now())
	}

	if email == nil {
		return "", fmt.Errorf("email is required")
	}

	prompt := buildDraftPrompt(email, intent, articles)

	d.logger.Debug().
		Str("email_id", email.EmailID).
		Str("intent", string(intent)).
		Int("articles", len(articles)).
		Msg("Generating reply draft")

	reply, err = d.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: drafterSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("reply draft generation failed: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("reply draft generation returned empty text")
	}

	return reply, nil
}

// buildDraftPrompt assembles the user turn: intent, reference articles,
// then the applicant email itself
func buildDraftPrompt(email *models.EmailMessage, intent models.EmailIntent, articles []*models.KnowledgeArticle) string {
	var b strings.Builder

	if intent != "" && intent != models.IntentUnknown {
		fmt.Fprintf(&b, "The applicant is asking about: %s\n\n", strings.ReplaceAll(string(intent), "_", " "))
	}

	if len(articles) > 0 {
		b.WriteString("Reference articles:\n\n")
		for i, article := range articles {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, article.Title, article.Body)
		}
	} else {
		b.WriteString("No reference articles matched this question.\n\n")
	}

	fmt.Fprintf(&b, "Applicant email:\nFrom: %s\nSubject: %s\n\n%s\n", email.Sender, email.Subject, email.Body)

	return b.String()
}
