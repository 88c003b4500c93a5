package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/audiens/internal/models"
)

// formatSearchResults formats knowledge search results as markdown
func formatSearchResults(query string, articles []*models.KnowledgeArticle) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Knowledge Results for \"%s\" (%d results)\n\n", query, len(articles)))

	if len(articles) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, article := range articles {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, article.Title))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", article.ID))
		if len(article.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(article.Tags, ", ")))
		}
		sb.WriteString("\n")

		body := article.Body
		if len(body) > 300 {
			body = body[:300] + "..."
		}
		sb.WriteString(body)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatArticle formats a single knowledge article as markdown
func formatArticle(article *models.KnowledgeArticle) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", article.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", article.ID))
	if len(article.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(article.Tags, ", ")))
	}
	if article.Source != "" {
		sb.WriteString(fmt.Sprintf("**Source:** %s\n", article.Source))
	}
	sb.WriteString(fmt.Sprintf("**Updated:** %s\n\n", article.UpdatedAt.Format(time.RFC3339)))
	sb.WriteString(article.Body)
	sb.WriteString("\n")
	return sb.String()
}

// formatSessions formats a session list as markdown
func formatSessions(sessions []*models.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Workflow Sessions (%d)\n\n", len(sessions)))

	if len(sessions) == 0 {
		sb.WriteString("No sessions found.\n")
		return sb.String()
	}

	for i, session := range sessions {
		sb.WriteString(fmt.Sprintf("%d. **%s** state: %s, events: %d\n", i+1, session.ID, session.CurrentState, len(session.Events)))
		sb.WriteString(fmt.Sprintf("   Started: %s\n", session.StartedAt.Format(time.RFC3339)))
		if session.EndedAt != nil {
			sb.WriteString(fmt.Sprintf("   Ended: %s\n", session.EndedAt.Format(time.RFC3339)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatSession formats one session with its event history as markdown
func formatSession(session *models.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Session %s\n\n", session.ID))
	sb.WriteString(fmt.Sprintf("**State:** %s\n", session.CurrentState))
	if session.BrowserSessionID != "" {
		sb.WriteString(fmt.Sprintf("**Browser session:** %s\n", session.BrowserSessionID))
	}
	if session.CurrentEmailID != "" {
		sb.WriteString(fmt.Sprintf("**Current email:** %s\n", session.CurrentEmailID))
	}
	if session.DraftID != "" {
		sb.WriteString(fmt.Sprintf("**Staged draft:** %s\n", session.DraftID))
	}
	sb.WriteString(fmt.Sprintf("**Started:** %s\n\n", session.StartedAt.Format(time.RFC3339)))

	sb.WriteString("## Events\n\n")
	for _, event := range session.Events {
		sb.WriteString(fmt.Sprintf("- %s **%s**", event.Timestamp.Format("15:04:05"), event.State))
		if event.Message != "" {
			sb.WriteString(": " + event.Message)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatDrafts formats a draft list as markdown
func formatDrafts(state models.DraftState, drafts []*models.ReplyDraft) string {
	var sb strings.Builder
	if state != "" {
		sb.WriteString(fmt.Sprintf("## Drafts in state \"%s\" (%d)\n\n", state, len(drafts)))
	} else {
		sb.WriteString(fmt.Sprintf("## Drafts (%d)\n\n", len(drafts)))
	}

	if len(drafts) == 0 {
		sb.WriteString("No drafts found.\n")
		return sb.String()
	}

	for i, draft := range drafts {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, draft.Subject))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", draft.ID))
		sb.WriteString(fmt.Sprintf("**State:** %s, **Intent:** %s, **Confidence:** %.0f%%\n", draft.State, draft.Intent, draft.Confidence*100))
		sb.WriteString(fmt.Sprintf("**Updated:** %s\n\n", draft.UpdatedAt.Format(time.RFC3339)))

		body := draft.Body
		if len(body) > 300 {
			body = body[:300] + "..."
		}
		sb.WriteString(body)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}
