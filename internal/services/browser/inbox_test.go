package browser

import (
	"testing"
	"time"
)

const inboxHTML = `
<html><body>
<table class="inbox">
<tbody>
<tr data-email-id="em-101" class="unread">
  <td class="sender">applicant@example.com</td>
  <td class="subject">Question about deadlines</td>
  <td class="date">2026-03-01 09:30</td>
</tr>
<tr data-email-id="em-102">
  <td class="sender">parent@example.com</td>
  <td class="subject">Transcript question</td>
  <td class="date">2026-02-28 14:05</td>
</tr>
<tr>
  <td colspan="3">No more messages</td>
</tr>
</tbody>
</table>
</body></html>`

const messageHTML = `
<html><body>
<h1 class="message-subject">Question about deadlines</h1>
<span class="message-sender">applicant@example.com</span>
<span class="message-recipient">admissions@example.edu</span>
<span class="message-date">2026-03-01 09:30</span>
<div class="message-body">
  <p>Hello,</p>
  <p>When is the <strong>fall</strong> deadline?</p>
</div>
<ul class="attachments">
  <li><a href="/files/transcript.pdf">transcript.pdf</a></li>
</ul>
</body></html>`

func TestParseInboxHTML(t *testing.T) {
	summaries, err := ParseInboxHTML(inboxHTML)
	if err != nil {
		t.Fatalf("ParseInboxHTML() error: %v", err)
	}

	// The filler row without data-email-id is skipped
	if len(summaries) != 2 {
		t.Fatalf("summaries length = %d, want 2", len(summaries))
	}

	first := summaries[0]
	if first.EmailID != "em-101" {
		t.Errorf("EmailID = %s, want em-101", first.EmailID)
	}
	if first.Subject != "Question about deadlines" {
		t.Errorf("Subject = %q", first.Subject)
	}
	if first.Sender != "applicant@example.com" {
		t.Errorf("Sender = %q", first.Sender)
	}
	if first.Read {
		t.Error("unread row should have Read=false")
	}
	if first.Date.IsZero() {
		t.Error("Date should be parsed")
	}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", first.Date, want)
	}

	if !summaries[1].Read {
		t.Error("row without unread class should have Read=true")
	}
}

func TestParseInboxHTMLEmpty(t *testing.T) {
	summaries, err := ParseInboxHTML("<html><body><table class=\"inbox\"><tbody></tbody></table></body></html>")
	if err != nil {
		t.Fatalf("ParseInboxHTML() error: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected empty listing, got %d rows", len(summaries))
	}
}

func TestParseMessageHTML(t *testing.T) {
	message, err := ParseMessageHTML(messageHTML)
	if err != nil {
		t.Fatalf("ParseMessageHTML() error: %v", err)
	}

	if message.Subject != "Question about deadlines" {
		t.Errorf("Subject = %q", message.Subject)
	}
	if message.Sender != "applicant@example.com" {
		t.Errorf("Sender = %q", message.Sender)
	}
	if message.Recipient != "admissions@example.edu" {
		t.Errorf("Recipient = %q", message.Recipient)
	}
	if message.BodyHTML == "" {
		t.Fatal("BodyHTML should not be empty")
	}
	if message.Body != "" {
		t.Error("Body should stay empty until markdown conversion")
	}
	if len(message.Parts) != 1 || message.Parts[0].Filename != "transcript.pdf" {
		t.Fatalf("Parts = %+v", message.Parts)
	}
	if message.Parts[0].URL != "/files/transcript.pdf" {
		t.Errorf("Part URL = %q", message.Parts[0].URL)
	}
}

func TestParseMessageHTMLMissingBody(t *testing.T) {
	if _, err := ParseMessageHTML("<html><body><p>nothing here</p></body></html>"); err == nil {
		t.Fatal("expected error when message body is missing")
	}
}
