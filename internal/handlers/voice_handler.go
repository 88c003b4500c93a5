package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/services/voice"
	"github.com/ternarybob/audiens/internal/services/workflow"
)

// VoiceHandler exposes the voice pipeline for dashboards and for
// driving the workflow without a microphone
type VoiceHandler struct {
	config     *common.VoiceConfig
	voice      *voice.Service
	controller *workflow.Controller
	events     interfaces.EventService
	logger     arbor.ILogger
}

func NewVoiceHandler(config *common.VoiceConfig, voiceSvc *voice.Service, controller *workflow.Controller, events interfaces.EventService, logger arbor.ILogger) *VoiceHandler {
	return &VoiceHandler{
		config:     config,
		voice:      voiceSvc,
		controller: controller,
		events:     events,
		logger:     logger,
	}
}

type voiceCommandRequest struct {
	Transcript string `json:"transcript" validate:"required"`
	SessionID  string `json:"session_id"`
}

// ProcessHandler runs a transcript through the workflow as if it had
// been spoken after the wake word
func (h *VoiceHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req voiceCommandRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	var (
		result *workflow.CommandResult
		err    error
	)
	if req.SessionID != "" {
		result, err = h.controller.ProcessSessionCommand(r.Context(), req.SessionID, req.Transcript)
	} else {
		result, err = h.controller.ProcessCommand(r.Context(), req.Transcript)
	}
	if err != nil {
		if result != nil {
			WriteJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// WakeWordHandler simulates a wake word detection, opening a session
// when none is active
func (h *VoiceHandler) WakeWordHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.events.PublishSync(r.Context(), interfaces.Event{
		Type:    interfaces.EventWakeWordDetected,
		Payload: map[string]interface{}{"source": "api"},
	}); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "Wake word signalled")
}

// StatusHandler reports listener state and configuration
func (h *VoiceHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":         h.config.Enabled,
		"listening":       h.voice.IsRunning(),
		"wake_word":       h.config.WakeWord,
		"spoken_feedback": h.config.SpokenFeedback,
	})
}

type speakRequest struct {
	Text string `json:"text" validate:"required"`
}

// SpeakHandler speaks a phrase through the configured TTS backend
func (h *VoiceHandler) SpeakHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req speakRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	h.voice.Speak(r.Context(), req.Text)
	WriteSuccess(w, "Speaking")
}
