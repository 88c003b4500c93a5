package email

import (
	"strings"

	"github.com/ternarybob/audiens/internal/models"
)

// intentKeywords maps each intent to the phrases that signal it. Matching
// is ordered so the more specific intents win over program_info.
var intentKeywords = []struct {
	intent   models.EmailIntent
	keywords []string
}{
	{models.IntentStatusInquiry, []string{
		"application status", "status of my application", "decision",
		"heard back", "admitted", "waitlist", "any update", "update on my",
	}},
	{models.IntentDocuments, []string{
		"transcript", "recommendation", "test score", "document",
		"upload", "missing item", "checklist", "submit my",
	}},
	{models.IntentDeadlines, []string{
		"deadline", "due date", "last day", "cutoff", "when is", "how long",
		"extension",
	}},
	{models.IntentProgramInfo, []string{
		"program", "major", "course", "curriculum", "tuition", "scholarship",
		"financial aid", "housing", "campus",
	}},
}

// ClassifyIntent determines what an applicant is asking for based on the
// subject and body text. Returns IntentUnknown when nothing matches.
func ClassifyIntent(email *models.EmailMessage) models.EmailIntent {
	if email == nil {
		return models.IntentUnknown
	}

	text := strings.ToLower(email.Subject + " " + email.Body)

	for _, entry := range intentKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.intent
			}
		}
	}

	return models.IntentUnknown
}
