package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// fakeLLM captures the messages it receives and replies with canned text
type fakeLLM struct {
	lastMessages []interfaces.Message
	reply        string
	err          error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.lastMessages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeClaude }
func (f *fakeLLM) Close() error                          { return nil }

func testEmail() *models.EmailMessage {
	return &models.EmailMessage{
		EmailID: "email-1",
		Sender:  "applicant@example.com",
		Subject: "Question about deadlines",
		Body:    "When is the fall application deadline?",
	}
}

func TestDraftReply(t *testing.T) {
	llm := &fakeLLM{reply: "  Dear Applicant,\n\nThe priority deadline is January 15.\n\nThe Admissions Team  "}
	drafter := NewDrafter(llm, arbor.NewLogger())

	articles := []*models.KnowledgeArticle{
		{ID: "deadlines-fall", Title: "Fall application deadlines", Body: "Priority deadline is January 15."},
	}

	reply, err := drafter.DraftReply(context.Background(), testEmail(), models.IntentDeadlines, articles)
	if err != nil {
		t.Fatalf("DraftReply() error: %v", err)
	}
	if strings.HasPrefix(reply, " ") || strings.HasSuffix(reply, " ") {
		t.Error("reply should be trimmed")
	}

	if len(llm.lastMessages) != 2 {
		t.Fatalf("message count = %d, want 2", len(llm.lastMessages))
	}
	if llm.lastMessages[0].Role != "system" {
		t.Errorf("first message role = %s, want system", llm.lastMessages[0].Role)
	}

	userPrompt := llm.lastMessages[1].Content
	if !strings.Contains(userPrompt, "Fall application deadlines") {
		t.Error("prompt should include the article title")
	}
	if !strings.Contains(userPrompt, "When is the fall application deadline?") {
		t.Error("prompt should include the applicant email body")
	}
	if !strings.Contains(userPrompt, "deadlines") {
		t.Error("prompt should name the classified intent")
	}
}

func TestDraftReplyNoArticles(t *testing.T) {
	llm := &fakeLLM{reply: "We will follow up shortly."}
	drafter := NewDrafter(llm, arbor.NewLogger())

	_, err := drafter.DraftReply(context.Background(), testEmail(), models.IntentUnknown, nil)
	if err != nil {
		t.Fatalf("DraftReply() error: %v", err)
	}

	userPrompt := llm.lastMessages[1].Content
	if !strings.Contains(userPrompt, "No reference articles matched") {
		t.Error("prompt should state that no articles matched")
	}
	if strings.Contains(userPrompt, "asking about: unknown") {
		t.Error("unknown intent should not be named in the prompt")
	}
}

func TestDraftReplyProviderError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("rate limited")}
	drafter := NewDrafter(llm, arbor.NewLogger())

	_, err := drafter.DraftReply(context.Background(), testEmail(), models.IntentDeadlines, nil)
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
}

func TestDraftReplyEmptyResponse(t *testing.T) {
	llm := &fakeLLM{reply: "   "}
	drafter := NewDrafter(llm, arbor.NewLogger())

	_, err := drafter.DraftReply(context.Background(), testEmail(), models.IntentDeadlines, nil)
	if err == nil {
		t.Fatal("expected error for empty draft")
	}
}

func TestDraftReplyNilEmail(t *testing.T) {
	drafter := NewDrafter(&fakeLLM{reply: "x"}, arbor.NewLogger())

	if _, err := drafter.DraftReply(context.Background(), nil, models.IntentUnknown, nil); err == nil {
		t.Fatal("expected error for nil email")
	}
}

func TestConvertMessagesToClaude(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}

	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		t.Fatalf("convertMessagesToClaude() error: %v", err)
	}
	if systemText != "be helpful" {
		t.Errorf("systemText = %q, want 'be helpful'", systemText)
	}
	if len(claudeMessages) != 2 {
		t.Errorf("message count = %d, want 2", len(claudeMessages))
	}
}

func TestConvertMessagesToClaudeNoUser(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be helpful"},
	}

	if _, _, err := convertMessagesToClaude(messages); err == nil {
		t.Fatal("expected error when no user message present")
	}
}
