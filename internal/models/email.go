package models

import "time"

// EmailIntent classifies what an applicant is asking for
type EmailIntent string

const (
	IntentStatusInquiry EmailIntent = "status_inquiry"
	IntentDocuments     EmailIntent = "documents"
	IntentDeadlines     EmailIntent = "deadlines"
	IntentProgramInfo   EmailIntent = "program_info"
	IntentUnknown       EmailIntent = "unknown"
)

// EmailSummary is one row of the CRM inbox listing
type EmailSummary struct {
	EmailID string    `json:"email_id"`
	Subject string    `json:"subject"`
	Sender  string    `json:"sender"`
	Date    time.Time `json:"date"`
	Read    bool      `json:"read"`
}

// EmailMessage is a full applicant message pulled from the CRM or IMAP
type EmailMessage struct {
	EmailID     string       `json:"email_id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	Recipient   string       `json:"recipient"`
	Date        time.Time    `json:"date"`
	BodyHTML    string       `json:"body_html,omitempty"`
	Body        string       `json:"body"` // markdown, converted from HTML
	Attachments []Attachment `json:"attachments,omitempty"`

	// Parts holds raw attachment content fetched by the transport, waiting
	// to be validated and written to disk. Never serialized.
	Parts []AttachmentPart `json:"-"`
}

// AttachmentPart is raw attachment content in flight between a mail
// transport and the attachment store
type AttachmentPart struct {
	Filename    string
	ContentType string
	URL         string // CRM download link, empty for IMAP parts
	Content     []byte
}

// Attachment describes a stored message attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StoredPath  string `json:"stored_path,omitempty"`
}

// DraftState tracks a reply draft through the review gate
type DraftState string

const (
	DraftStaged    DraftState = "staged"    // generated, waiting for counselor review
	DraftSent      DraftState = "sent"      // submitted to the CRM as outgoing mail
	DraftSaved     DraftState = "saved"     // filed in the CRM as a draft
	DraftDiscarded DraftState = "discarded" // rejected by the counselor
)

// ReplyDraft is an LLM-generated reply staged for human review.
// Drafts are never sent without an explicit send or save command.
type ReplyDraft struct {
	ID         string      `json:"id" badgerhold:"key"`
	SessionID  string      `json:"session_id"`
	EmailID    string      `json:"email_id" badgerhold:"index"`
	Recipient  string      `json:"recipient"` // applicant address, used for the SMTP fallback
	Subject    string      `json:"subject"`
	Body       string      `json:"body"` // markdown
	Intent     EmailIntent `json:"intent"`
	Confidence float64     `json:"confidence"`
	Sources    []string    `json:"sources,omitempty"` // knowledge article IDs used for grounding
	State      DraftState  `json:"state"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
