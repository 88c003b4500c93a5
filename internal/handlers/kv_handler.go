package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
)

// Keys whose values are masked in list responses. API keys and
// passwords land here via the settings page.
var sensitiveKeyMarkers = []string{"key", "password", "secret", "token"}

// KVHandler manages stored settings (IMAP/SMTP credentials, API keys,
// voice endpoints)
type KVHandler struct {
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

func NewKVHandler(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kvStorage: kvStorage,
		logger:    logger,
	}
}

// ListKVHandler handles GET /api/kv with sensitive values masked
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	pairs, err := h.kvStorage.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		WriteError(w, http.StatusInternalServerError, "Failed to list key/value pairs")
		return
	}

	sanitized := make([]map[string]interface{}, len(pairs))
	for i, pair := range pairs {
		value := pair.Value
		if isSensitiveKey(pair.Key) {
			value = maskValue(value)
		}
		sanitized[i] = map[string]interface{}{
			"key":         pair.Key,
			"value":       value,
			"description": pair.Description,
			"updated_at":  pair.UpdatedAt,
		}
	}

	WriteJSON(w, http.StatusOK, sanitized)
}

// PairHandler handles GET, PUT and DELETE for /api/kv/{key}. GET returns
// the full value so the settings page can edit it.
func (h *KVHandler) PairHandler(w http.ResponseWriter, r *http.Request) {
	encodedKey := strings.TrimPrefix(r.URL.Path, "/api/kv/")
	key, err := url.QueryUnescape(encodedKey)
	if err != nil || key == "" {
		WriteError(w, http.StatusBadRequest, "Invalid or missing key")
		return
	}

	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    func(w http.ResponseWriter, r *http.Request) { h.getPair(w, r, key) },
		http.MethodPut:    func(w http.ResponseWriter, r *http.Request) { h.setPair(w, r, key) },
		http.MethodPost:   func(w http.ResponseWriter, r *http.Request) { h.setPair(w, r, key) },
		http.MethodDelete: func(w http.ResponseWriter, r *http.Request) { h.deletePair(w, r, key) },
	})
}

func (h *KVHandler) getPair(w http.ResponseWriter, r *http.Request, key string) {
	value, err := h.kvStorage.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve key")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

type kvRequest struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description"`
}

func (h *KVHandler) setPair(w http.ResponseWriter, r *http.Request, key string) {
	var req kvRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.kvStorage.Set(r.Context(), key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to store key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to store key")
		return
	}

	h.logger.Info().Str("key", key).Msg("Stored key/value pair")
	WriteSuccess(w, "Stored "+key)
}

func (h *KVHandler) deletePair(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.kvStorage.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	WriteSuccess(w, "Deleted "+key)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
