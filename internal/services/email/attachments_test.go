package email

import (
	"os"
	"testing"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/models"
)

func TestAttachmentStoreRoundTrip(t *testing.T) {
	store := NewAttachmentStore(t.TempDir(), common.GetLogger())

	att, err := store.Store("msg-1", "essay.txt", "text/plain", []byte("my admissions essay"))
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if att.Size != int64(len("my admissions essay")) {
		t.Errorf("Size = %d", att.Size)
	}
	if att.StoredPath == "" {
		t.Fatal("expected a stored path")
	}

	content, err := store.Read(att)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(content) != "my admissions essay" {
		t.Errorf("Read() = %q", content)
	}
}

func TestAttachmentStoreRejectsEmpty(t *testing.T) {
	store := NewAttachmentStore(t.TempDir(), common.GetLogger())

	if _, err := store.Store("msg-1", "blank.txt", "text/plain", nil); err == nil {
		t.Fatal("expected error for empty attachment")
	}
}

func TestAttachmentStoreRejectsCorruptPDF(t *testing.T) {
	store := NewAttachmentStore(t.TempDir(), common.GetLogger())

	if _, err := store.Store("msg-1", "transcript.pdf", "application/pdf", []byte("not a pdf")); err == nil {
		t.Fatal("expected validation error for corrupt PDF")
	}
}

func TestStoreAttachmentsPersistsParts(t *testing.T) {
	svc := &Service{
		attachments: NewAttachmentStore(t.TempDir(), common.GetLogger()),
		logger:      common.GetLogger(),
	}

	msg := &models.EmailMessage{
		EmailID: "msg-2",
		Parts: []models.AttachmentPart{
			{Filename: "notes.txt", ContentType: "text/plain", Content: []byte("hello")},
			{Filename: "undownloaded.pdf", URL: "/files/undownloaded.pdf"},
		},
	}
	svc.storeAttachments(msg)

	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments = %+v", msg.Attachments)
	}
	if msg.Attachments[0].Filename != "notes.txt" {
		t.Errorf("Filename = %q", msg.Attachments[0].Filename)
	}
	if msg.Parts != nil {
		t.Error("expected raw parts cleared after storage")
	}
	if _, err := os.Stat(msg.Attachments[0].StoredPath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"transcript.pdf", "transcript.pdf"},
		{"../../etc/passwd", "passwd"},
		{"my essay (final).docx", "my_essay__final_.docx"},
		{"", "attachment"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}
