package email

import (
	"testing"

	"github.com/ternarybob/audiens/internal/models"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		body     string
		expected models.EmailIntent
	}{
		{
			name:     "status inquiry in subject",
			subject:  "Application status?",
			body:     "Hi, just checking in.",
			expected: models.IntentStatusInquiry,
		},
		{
			name:     "decision question",
			subject:  "Question",
			body:     "When will I hear about a decision on my file?",
			expected: models.IntentStatusInquiry,
		},
		{
			name:     "missing transcript",
			subject:  "Missing items",
			body:     "My transcript was mailed last week, has it arrived?",
			expected: models.IntentDocuments,
		},
		{
			name:     "deadline question",
			subject:  "Fall deadline",
			body:     "What is the deadline for the fall term?",
			expected: models.IntentDeadlines,
		},
		{
			name:     "program question",
			subject:  "Biology major",
			body:     "Can you tell me more about the biology program?",
			expected: models.IntentProgramInfo,
		},
		{
			name:     "no match",
			subject:  "Hello",
			body:     "Thanks for your help yesterday!",
			expected: models.IntentUnknown,
		},
		{
			name:     "case insensitive",
			subject:  "DEADLINE",
			body:     "",
			expected: models.IntentDeadlines,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &models.EmailMessage{Subject: tt.subject, Body: tt.body}
			if got := ClassifyIntent(msg); got != tt.expected {
				t.Errorf("Expected intent %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestClassifyIntentNilEmail(t *testing.T) {
	if got := ClassifyIntent(nil); got != models.IntentUnknown {
		t.Errorf("Expected unknown intent for nil email, got %s", got)
	}
}
