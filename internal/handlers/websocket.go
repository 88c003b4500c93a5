// -----------------------------------------------------------------------
// WebSocket Handler - streams workflow state changes, draft events, and
// log lines to the counselor dashboard
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local dashboard only
	},
}

// WSMessage is the envelope for every outbound WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// workflowEvents are forwarded to dashboard clients as they happen
var workflowEvents = []interfaces.EventType{
	interfaces.EventWorkflowStateChanged,
	interfaces.EventSessionCreated,
	interfaces.EventSessionEnded,
	interfaces.EventDraftStaged,
	interfaces.EventDraftSubmitted,
	interfaces.EventWakeWordDetected,
	interfaces.EventVoiceCommand,
	interfaces.EventInboxSynced,
}

type WebSocketHandler struct {
	logger           arbor.ILogger
	events           interfaces.EventService
	serverInstanceID string

	mu          sync.RWMutex
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex

	allowedEvents map[string]bool
	throttlers    map[string]*rate.Limiter

	logMu      sync.Mutex
	recentLogs []interfaces.LogEntry
}

// NewWebSocketHandler creates the handler and subscribes it to workflow
// events. The server instance ID lets clients detect a restart and
// clear stale state.
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		events:           events,
		serverInstanceID: uuid.New().String(),
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		allowedEvents:    make(map[string]bool),
		throttlers:       make(map[string]*rate.Limiter),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().Err(err).Str("event_type", eventType).Msg("Invalid throttle interval, throttling disabled for event")
				continue
			}
			h.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
		}
	}

	if events != nil {
		h.subscribeToEvents()
	}

	return h
}

// subscribeToEvents forwards workflow events to connected clients
func (h *WebSocketHandler) subscribeToEvents() {
	for _, eventType := range workflowEvents {
		et := eventType
		h.events.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
			h.broadcastEvent(string(et), event.Payload)
			return nil
		})
	}
}

// HandleWebSocket upgrades the connection and keeps it open until the
// client disconnects
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendToConn(conn, WSMessage{
		Type: "hello",
		Payload: map[string]interface{}{
			"server_instance_id": h.serverInstanceID,
			"timestamp":          time.Now().Format(time.RFC3339),
		},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// broadcastEvent sends one workflow event to all clients, honoring the
// whitelist and per-event throttles
func (h *WebSocketHandler) broadcastEvent(eventType string, payload interface{}) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[eventType] {
		return
	}
	if throttler, ok := h.throttlers[eventType]; ok && !throttler.Allow() {
		return
	}

	h.broadcast(WSMessage{Type: eventType, Payload: payload})
}

// BroadcastLog streams one log line to all clients and retains it for
// the recent-logs endpoint
func (h *WebSocketHandler) BroadcastLog(entry interfaces.LogEntry) {
	h.logMu.Lock()
	entry.Index = len(h.recentLogs)
	h.recentLogs = append(h.recentLogs, entry)
	if len(h.recentLogs) > 500 {
		h.recentLogs = h.recentLogs[len(h.recentLogs)-500:]
	}
	h.logMu.Unlock()

	h.broadcast(WSMessage{Type: "log_entry", Payload: entry})
}

// GetRecentLogsHandler returns buffered log lines as JSON
func (h *WebSocketHandler) GetRecentLogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	h.logMu.Lock()
	logs := make([]interfaces.LogEntry, len(h.recentLogs))
	copy(logs, h.recentLogs)
	h.logMu.Unlock()

	// Drop handler chatter that would just echo the dashboard's own
	// activity back at it
	filtered := logs[:0]
	for _, entry := range logs {
		if strings.Contains(entry.Message, "WebSocket client connected") ||
			strings.Contains(entry.Message, "WebSocket client disconnected") ||
			strings.Contains(entry.Message, "HTTP request") ||
			strings.Contains(entry.Message, "HTTP response") {
			continue
		}
		filtered = append(filtered, entry)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Index < filtered[j].Index
	})

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  filtered,
		"count": len(filtered),
	})
}

// ClientCount returns the number of connected dashboard clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends a message to every connected client
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write to WebSocket client")
		}
	}
}

func (h *WebSocketHandler) sendToConn(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	mutex, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write to WebSocket client")
	}
}
