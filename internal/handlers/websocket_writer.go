package handlers

import (
	"strings"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor/levels"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

const websocketLogBufferSize = 1000

var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
	"Publishing event",
}

// WebSocketWriter is an arbor writer that forwards log lines to the
// dashboard through the WebSocket handler
type WebSocketWriter struct {
	handler         *WebSocketHandler
	writer          writers.IChannelWriter
	minLevel        levels.LogLevel
	excludePatterns []string
}

// NewWebSocketWriter creates the writer on arbor's channel writer so
// broadcasting never blocks the logging call site
func NewWebSocketWriter(handler *WebSocketHandler, config models.WriterConfiguration, wsConfig *common.WebSocketConfig) (*WebSocketWriter, error) {
	minLevel := levels.InfoLevel
	excludePatterns := defaultExcludePatterns

	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	w := &WebSocketWriter{
		handler:         handler,
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
	}

	processor := func(entry models.LogEvent) error {
		level := plogToArborLevel(entry.Level)
		if level < w.minLevel {
			return nil
		}
		for _, pattern := range w.excludePatterns {
			if strings.Contains(entry.Message, pattern) {
				return nil
			}
		}

		w.handler.BroadcastLog(interfaces.LogEntry{
			Timestamp: entry.Timestamp.Format("15:04:05"),
			Level:     levelName(level),
			Message:   entry.Message,
		})
		return nil
	}

	cw, err := writers.NewChannelWriter(config, websocketLogBufferSize, processor)
	if err != nil {
		return nil, err
	}
	cw.Start()
	w.writer = cw

	return w, nil
}

// Write implements the arbor IWriter interface
func (w *WebSocketWriter) Write(data []byte) (int, error) {
	return w.writer.Write(data)
}

// WithLevel updates the minimum broadcast level and returns self
func (w *WebSocketWriter) WithLevel(level plog.Level) writers.IWriter {
	w.minLevel = plogToArborLevel(level)
	return w
}

// GetFilePath returns empty string, this writer is not file-based
func (w *WebSocketWriter) GetFilePath() string {
	return ""
}

// Close drains the channel buffer and stops the writer
func (w *WebSocketWriter) Close() error {
	return w.writer.Close()
}

func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

func levelName(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
