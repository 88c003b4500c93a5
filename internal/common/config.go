package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/audiens/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Voice       VoiceConfig     `toml:"voice"`
	CRM         CRMConfig       `toml:"crm"`
	IMAP        IMAPConfig      `toml:"imap"`
	SMTP        SMTPConfig      `toml:"smtp"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Knowledge   KnowledgeConfig `toml:"knowledge"`
	Workflow    WorkflowConfig  `toml:"workflow"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Report      ReportConfig    `toml:"report"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	GCInterval     string `toml:"gc_interval"`      // Value-log garbage collection interval (e.g., "10m")
}

type FilesystemConfig struct {
	Attachments string `toml:"attachments"` // Directory for downloaded email attachments
	Reports     string `toml:"reports"`     // Directory for generated PDF reports
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to publish as events to UI
}

// WebSocketConfig contains configuration for WebSocket log and event streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	// Whitelist of event types to broadcast via WebSocket. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// VoiceConfig contains voice capture and transcription configuration
type VoiceConfig struct {
	Enabled           bool    `toml:"enabled"`            // Enable the microphone listener
	WakeWord          string  `toml:"wake_word"`          // Wake phrase that prefixes commands (default: "hey slate")
	SampleRate        int     `toml:"sample_rate"`        // Capture sample rate in Hz (default: 16000)
	SilenceThreshold  float64 `toml:"silence_threshold"`  // RMS energy below which a frame counts as silence
	SilenceCutoff     string  `toml:"silence_cutoff"`     // Trailing silence that ends an utterance (default: "1.5s")
	MaxUtterance      string  `toml:"max_utterance"`      // Hard cap on utterance length (default: "30s")
	WhisperEndpoint   string  `toml:"whisper_endpoint"`   // HTTP transcription endpoint (OpenAI-compatible)
	WhisperModel      string  `toml:"whisper_model"`      // Transcription model name
	TTSEndpoint       string  `toml:"tts_endpoint"`       // HTTP speech synthesis endpoint
	TTSVoice          string  `toml:"tts_voice"`          // Synthesis voice name
	SpokenFeedback    bool    `toml:"spoken_feedback"`    // Speak state-change confirmations back to the operator
	TranscribeTimeout string  `toml:"transcribe_timeout"` // Timeout for transcription requests (default: "30s")
}

// CRMConfig contains enrollment CRM browser automation configuration
type CRMConfig struct {
	BaseURL         string `toml:"base_url"`         // CRM base URL (e.g., "https://apply.example.edu")
	Headless        bool   `toml:"headless"`         // Run Chrome headless (default: true)
	PoolSize        int    `toml:"pool_size"`        // Maximum concurrent browser contexts (default: 2)
	NavTimeout      string `toml:"nav_timeout"`      // Per-navigation timeout (default: "30s")
	ActionRateLimit string `toml:"action_rate_limit"` // Minimum interval between page actions (default: "500ms")
	InboxPath       string `toml:"inbox_path"`       // Path to the CRM inbox page (default: "/manage/inbox")
}

// IMAPConfig contains the fallback mailbox fetch configuration.
// Host and credentials normally come from the KV store; these are defaults.
type IMAPConfig struct {
	Server   string `toml:"server"`   // IMAP server host:port
	Username string `toml:"username"` // Mailbox username
	Password string `toml:"password"` // Mailbox password
	Folder   string `toml:"folder"`   // Folder to fetch from (default: "INBOX")
	UseTLS   bool   `toml:"use_tls"`  // Use implicit TLS (default: true)
}

// SMTPConfig contains the outbound mail fallback configuration
type SMTPConfig struct {
	Server   string `toml:"server"`   // SMTP server host:port
	Username string `toml:"username"` // SMTP username
	Password string `toml:"password"` // SMTP password
	From     string `toml:"from"`     // From address for outbound mail
	UseTLS   bool   `toml:"use_tls"`  // Use implicit TLS (port 465 style)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for drafting operations (default: "gemini-2.0-flash")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.4)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for drafting operations (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.4)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "claude" or "gemini" (default: "claude")
}

// KnowledgeConfig contains FAQ corpus configuration
type KnowledgeConfig struct {
	Dir           string `toml:"dir"`            // Directory containing knowledge article files (TOML)
	SearchLimit   int    `toml:"search_limit"`   // Default number of articles returned per search (default: 3)
	LoadOnStartup bool   `toml:"load_on_startup"` // Load articles from Dir at startup (default: true)
}

// WorkflowConfig contains workflow session behavior configuration
type WorkflowConfig struct {
	StaleAfter     string `toml:"stale_after"`     // Inactive session age before the sweep ends it (default: "2h")
	MaxEvents      int    `toml:"max_events"`      // Hard cap on events retained per session (default: 500)
	RequireReview  bool   `toml:"require_review"`  // Require the reviewing state before submit (default: true)
	PersistOnEvent bool   `toml:"persist_on_event"` // Save session to storage on every event (default: true)
}

// SchedulerConfig contains background job schedules (6-field cron with seconds)
type SchedulerConfig struct {
	Enabled       bool   `toml:"enabled"`
	InboxSync     string `toml:"inbox_sync"`     // Inbox refresh schedule (default: "0 */10 * * * *")
	StaleSweep    string `toml:"stale_sweep"`    // Stale session sweep schedule (default: "0 */30 * * * *")
	StatusLog     string `toml:"status_log"`     // Service status logging schedule (default: "0 */5 * * * *")
	DailyDigest   string `toml:"daily_digest"`   // Daily digest report schedule (default: "0 0 7 * * *")
}

// ReportConfig contains digest report configuration
type ReportConfig struct {
	Enabled    bool   `toml:"enabled"`
	Recipient  string `toml:"recipient"`   // Email address the digest is sent to
	Title      string `toml:"title"`       // Report title (default: "Enrollment Assistant Daily Digest")
	OutputDir  string `toml:"output_dir"`  // Directory for generated PDFs (default: "./data/reports")
	KeepDays   int    `toml:"keep_days"`   // Days of generated reports to retain (default: 14)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in audiens.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:       "./data",
				GCInterval: "10m",
			},
			Filesystem: FilesystemConfig{
				Attachments: "./data/attachments",
				Reports:     "./data/reports",
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			TimeFormat:    "15:04:05.000",
			MinEventLevel: "info",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"voice_command": "500ms",
			},
		},
		Voice: VoiceConfig{
			Enabled:           false, // Opt-in: requires a microphone and a transcription endpoint
			WakeWord:          "hey slate",
			SampleRate:        16000,
			SilenceThreshold:  0.01,
			SilenceCutoff:     "1.5s",
			MaxUtterance:      "30s",
			WhisperEndpoint:   "http://localhost:8000/v1/audio/transcriptions",
			WhisperModel:      "whisper-1",
			TTSEndpoint:       "",
			TTSVoice:          "alloy",
			SpokenFeedback:    false,
			TranscribeTimeout: "30s",
		},
		CRM: CRMConfig{
			BaseURL:         "",
			Headless:        true,
			PoolSize:        2,
			NavTimeout:      "30s",
			ActionRateLimit: "500ms",
			InboxPath:       "/manage/inbox",
		},
		IMAP: IMAPConfig{
			Folder: "INBOX",
			UseTLS: true,
		},
		SMTP: SMTPConfig{
			UseTLS: false,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.0-flash",
			Timeout:     "2m",
			Temperature: 0.4,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.4,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Knowledge: KnowledgeConfig{
			Dir:           "./knowledge",
			SearchLimit:   3,
			LoadOnStartup: true,
		},
		Workflow: WorkflowConfig{
			StaleAfter:     "2h",
			MaxEvents:      500,
			RequireReview:  true,
			PersistOnEvent: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			InboxSync:   "0 */10 * * * *",
			StaleSweep:  "0 */30 * * * *",
			StatusLog:   "0 */5 * * * *",
			DailyDigest: "0 0 7 * * *",
		},
		Report: ReportConfig{
			Enabled:   false, // Requires SMTP and a recipient
			Recipient: "",
			Title:     "Enrollment Assistant Daily Digest",
			OutputDir: "./data/reports",
			KeepDays:  14,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files. Priority: CLI flags > environment variables > last config
// file > ... > first config file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: AUDIENS_ENV, fallback: GO_ENV)
	if env := os.Getenv("AUDIENS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("AUDIENS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("AUDIENS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("AUDIENS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if gcInterval := os.Getenv("AUDIENS_BADGER_GC_INTERVAL"); gcInterval != "" {
		if _, err := time.ParseDuration(gcInterval); err == nil {
			config.Storage.Badger.GCInterval = gcInterval
		}
	}

	// Logging configuration
	if level := os.Getenv("AUDIENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("AUDIENS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("AUDIENS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("AUDIENS_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// WebSocket configuration
	if minLevel := os.Getenv("AUDIENS_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if allowedEvents := os.Getenv("AUDIENS_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		events := []string{}
		for _, e := range strings.Split(allowedEvents, ",") {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				events = append(events, trimmed)
			}
		}
		if len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}

	// Voice configuration
	if enabled := os.Getenv("AUDIENS_VOICE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Voice.Enabled = e
		}
	}
	if wakeWord := os.Getenv("AUDIENS_VOICE_WAKE_WORD"); wakeWord != "" {
		config.Voice.WakeWord = wakeWord
	}
	if endpoint := os.Getenv("AUDIENS_VOICE_WHISPER_ENDPOINT"); endpoint != "" {
		config.Voice.WhisperEndpoint = endpoint
	}
	if model := os.Getenv("AUDIENS_VOICE_WHISPER_MODEL"); model != "" {
		config.Voice.WhisperModel = model
	}
	if endpoint := os.Getenv("AUDIENS_VOICE_TTS_ENDPOINT"); endpoint != "" {
		config.Voice.TTSEndpoint = endpoint
	}

	// CRM configuration
	if baseURL := os.Getenv("AUDIENS_CRM_BASE_URL"); baseURL != "" {
		config.CRM.BaseURL = baseURL
	}
	if headless := os.Getenv("AUDIENS_CRM_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.CRM.Headless = h
		}
	}
	if poolSize := os.Getenv("AUDIENS_CRM_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil && ps > 0 {
			config.CRM.PoolSize = ps
		}
	}

	// IMAP configuration
	if server := os.Getenv("AUDIENS_IMAP_SERVER"); server != "" {
		config.IMAP.Server = server
	}
	if username := os.Getenv("AUDIENS_IMAP_USERNAME"); username != "" {
		config.IMAP.Username = username
	}
	if password := os.Getenv("AUDIENS_IMAP_PASSWORD"); password != "" {
		config.IMAP.Password = password
	}

	// SMTP configuration
	if server := os.Getenv("AUDIENS_SMTP_SERVER"); server != "" {
		config.SMTP.Server = server
	}
	if username := os.Getenv("AUDIENS_SMTP_USERNAME"); username != "" {
		config.SMTP.Username = username
	}
	if password := os.Getenv("AUDIENS_SMTP_PASSWORD"); password != "" {
		config.SMTP.Password = password
	}
	if from := os.Getenv("AUDIENS_SMTP_FROM"); from != "" {
		config.SMTP.From = from
	}

	// Gemini configuration
	if apiKey := os.Getenv("AUDIENS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("AUDIENS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("AUDIENS_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("AUDIENS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // AUDIENS_ prefix takes priority
	}
	if model := os.Getenv("AUDIENS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("AUDIENS_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("AUDIENS_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("AUDIENS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Knowledge configuration
	if dir := os.Getenv("AUDIENS_KNOWLEDGE_DIR"); dir != "" {
		config.Knowledge.Dir = dir
	}

	// Workflow configuration
	if staleAfter := os.Getenv("AUDIENS_WORKFLOW_STALE_AFTER"); staleAfter != "" {
		if _, err := time.ParseDuration(staleAfter); err == nil {
			config.Workflow.StaleAfter = staleAfter
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("AUDIENS_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}

	// Report configuration
	if recipient := os.Getenv("AUDIENS_REPORT_RECIPIENT"); recipient != "" {
		config.Report.Recipient = recipient
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"AUDIENS_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"AUDIENS_CLAUDE_API_KEY"},
		"claude_api_key":    {"AUDIENS_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// KV store holds file-loaded variables (medium priority)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a 6-field cron schedule expression (with seconds)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 6 {
		return fmt.Errorf("invalid cron format: expected 6 fields, got %d", len(parts))
	}

	// Every-second schedules hammer the CRM and the mailbox
	if parts[0] == "*" {
		return fmt.Errorf("schedule must not fire every second")
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string, returning fallback on empty or invalid input
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
