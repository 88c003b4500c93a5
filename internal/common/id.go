package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique workflow session ID
// Format: sess_<uuid>
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}

// NewDraftID generates a unique reply draft ID
// Format: draft_<uuid>
func NewDraftID() string {
	return "draft_" + uuid.New().String()
}

// NewArticleID generates a unique knowledge article ID
// Format: kb_<uuid>
func NewArticleID() string {
	return "kb_" + uuid.New().String()
}

// NewCredentialID generates a unique stored-credential ID
// Format: cred_<uuid>
func NewCredentialID() string {
	return "cred_" + uuid.New().String()
}
