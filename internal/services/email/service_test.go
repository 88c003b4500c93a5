package email

import (
	"strings"
	"testing"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/models"
)

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Fall deadline", "Re: Fall deadline"},
		{"Re: Fall deadline", "Re: Fall deadline"},
		{"RE: status", "RE: status"},
		{"", "Re: your message"},
	}
	for _, tt := range tests {
		if got := replySubject(tt.in); got != tt.expected {
			t.Errorf("replySubject(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestDraftConfidence(t *testing.T) {
	if got := draftConfidence(models.IntentUnknown, 0); got != 0.4 {
		t.Errorf("Expected 0.4 for ungrounded unknown intent, got %f", got)
	}
	if got := draftConfidence(models.IntentDeadlines, 0); got != 0.7 {
		t.Errorf("Expected 0.7 for known intent without articles, got %f", got)
	}
	grounded := draftConfidence(models.IntentDeadlines, 3)
	if grounded <= draftConfidence(models.IntentDeadlines, 1) {
		t.Error("Expected confidence to increase with more grounding articles")
	}
	if grounded > 1.0 {
		t.Errorf("Confidence should not exceed 1.0, got %f", grounded)
	}
}

func TestNormalizeBody(t *testing.T) {
	svc := &Service{
		converter: md.NewConverter("", true, nil),
		logger:    common.GetLogger(),
	}

	msg := &models.EmailMessage{
		EmailID:  "msg-1",
		BodyHTML: "<p>Hello, when is the <strong>deadline</strong>?</p>",
	}
	svc.normalizeBody(msg)

	if !strings.Contains(msg.Body, "**deadline**") {
		t.Errorf("Expected markdown emphasis in body, got %q", msg.Body)
	}
	if strings.Contains(msg.Body, "<p>") {
		t.Errorf("Expected HTML tags stripped, got %q", msg.Body)
	}
}

func TestNormalizeBodyKeepsExistingText(t *testing.T) {
	svc := &Service{
		converter: md.NewConverter("", true, nil),
		logger:    common.GetLogger(),
	}

	msg := &models.EmailMessage{
		EmailID:  "msg-2",
		Body:     "already plain",
		BodyHTML: "<p>should be ignored</p>",
	}
	svc.normalizeBody(msg)

	if msg.Body != "already plain" {
		t.Errorf("Expected existing body preserved, got %q", msg.Body)
	}
}
