package handlers

import (
	"testing"
)

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"anthropic_api_key", true},
		{"smtp_password", true},
		{"oauth_token", true},
		{"client_secret", true},
		{"imap_host", false},
		{"smtp_from", false},
	}

	for _, tt := range tests {
		if got := isSensitiveKey(tt.key); got != tt.want {
			t.Errorf("isSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("sk-ant-abcdef123456"); got != "sk-a...3456" {
		t.Errorf("maskValue long = %q", got)
	}

	// Short values reveal nothing, not even length
	if got := maskValue("abc"); got != "••••••••" {
		t.Errorf("maskValue short = %q", got)
	}
}
