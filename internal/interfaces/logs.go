package interfaces

// LogEntry is one log line streamed to dashboard clients
type LogEntry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}
