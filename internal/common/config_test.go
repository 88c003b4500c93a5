package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", config.Server.Port)
	}
	if config.Server.Host != "localhost" {
		t.Errorf("Server.Host = %s, want localhost", config.Server.Host)
	}
	if config.Storage.Badger.Path != "./data" {
		t.Errorf("Storage.Badger.Path = %s, want ./data", config.Storage.Badger.Path)
	}
	if config.Voice.WakeWord != "hey slate" {
		t.Errorf("Voice.WakeWord = %s, want 'hey slate'", config.Voice.WakeWord)
	}
	if config.Voice.Enabled {
		t.Error("Voice.Enabled should default to false")
	}
	if config.LLM.DefaultProvider != LLMProviderClaude {
		t.Errorf("LLM.DefaultProvider = %s, want claude", config.LLM.DefaultProvider)
	}
	if config.Workflow.RequireReview != true {
		t.Error("Workflow.RequireReview should default to true")
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	if err := os.WriteFile(base, []byte(`
[server]
port = 9000
host = "0.0.0.0"

[voice]
wake_word = "hey admissions"
`), 0644); err != nil {
		t.Fatal(err)
	}

	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles() error: %v", err)
	}

	// Later files override earlier ones
	if config.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", config.Server.Port)
	}
	// Earlier files still apply where not overridden
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %s, want 0.0.0.0", config.Server.Host)
	}
	if config.Voice.WakeWord != "hey admissions" {
		t.Errorf("Voice.WakeWord = %s, want 'hey admissions'", config.Voice.WakeWord)
	}
	// Defaults survive for untouched sections
	if config.CRM.PoolSize != 2 {
		t.Errorf("CRM.PoolSize = %d, want 2", config.CRM.PoolSize)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/audiens.toml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AUDIENS_SERVER_PORT", "7070")
	t.Setenv("AUDIENS_VOICE_WAKE_WORD", "hey slate please")
	t.Setenv("AUDIENS_LLM_DEFAULT_PROVIDER", "gemini")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	if config.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", config.Server.Port)
	}
	if config.Voice.WakeWord != "hey slate please" {
		t.Errorf("Voice.WakeWord = %s, want 'hey slate please'", config.Voice.WakeWord)
	}
	if config.LLM.DefaultProvider != LLMProviderGemini {
		t.Errorf("LLM.DefaultProvider = %s, want gemini", config.LLM.DefaultProvider)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 6060, "example.com")
	if config.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want 6060", config.Server.Port)
	}
	if config.Server.Host != "example.com" {
		t.Errorf("Server.Host = %s, want example.com", config.Server.Host)
	}

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 6060 || config.Server.Host != "example.com" {
		t.Error("zero-value flags should not override config")
	}
}

func TestResolveAPIKeyEnvPriority(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	key, err := ResolveAPIKey(t.Context(), nil, "anthropic_api_key", "config-key")
	if err != nil {
		t.Fatalf("ResolveAPIKey() error: %v", err)
	}
	if key != "env-key" {
		t.Errorf("ResolveAPIKey() = %s, want env-key", key)
	}
}

func TestResolveAPIKeyConfigFallback(t *testing.T) {
	key, err := ResolveAPIKey(t.Context(), nil, "gemini_api_key", "config-key")
	if err != nil {
		t.Fatalf("ResolveAPIKey() error: %v", err)
	}
	if key != "config-key" {
		t.Errorf("ResolveAPIKey() = %s, want config-key", key)
	}
}

func TestResolveAPIKeyNotFound(t *testing.T) {
	_, err := ResolveAPIKey(t.Context(), nil, "unknown_api_key", "")
	if err == nil {
		t.Fatal("expected error when key is not resolvable")
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"every ten minutes", "0 */10 * * * *", false},
		{"daily at seven", "0 0 7 * * *", false},
		{"every second", "* * * * * *", true},
		{"five fields", "*/10 * * * *", true},
		{"garbage", "not a schedule", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationOr(t *testing.T) {
	if d := ParseDurationOr("90s", time.Minute); d != 90*time.Second {
		t.Errorf("ParseDurationOr(90s) = %v, want 90s", d)
	}
	if d := ParseDurationOr("", time.Minute); d != time.Minute {
		t.Errorf("ParseDurationOr(empty) = %v, want 1m", d)
	}
	if d := ParseDurationOr("bogus", time.Minute); d != time.Minute {
		t.Errorf("ParseDurationOr(bogus) = %v, want 1m", d)
	}
}
