package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireMethod(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/test", nil)

	if RequireMethod(w, r, http.MethodPost) != true {
		t.Error("Expected matching method to pass")
	}

	w = httptest.NewRecorder()
	if RequireMethod(w, r, http.MethodGet) != false {
		t.Error("Expected mismatched method to fail")
	}
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteJSON(w, http.StatusCreated, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var decoded map[string]string
	if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if decoded["key"] != "value" {
		t.Errorf("Expected value, got %s", decoded["key"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "session not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	var decoded map[string]string
	json.NewDecoder(w.Body).Decode(&decoded)
	if decoded["status"] != "error" || decoded["error"] != "session not found" {
		t.Errorf("Unexpected error body: %v", decoded)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Command string `json:"command" validate:"required"`
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{"command":"login"}`))
	var p payload
	if !DecodeAndValidate(w, r, &p) {
		t.Error("Expected valid payload to pass")
	}
	if p.Command != "login" {
		t.Errorf("Expected command decoded, got %q", p.Command)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{}`))
	var empty payload
	if DecodeAndValidate(w, r, &empty) {
		t.Error("Expected missing required field to fail validation")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`not json`))
	var bad payload
	if DecodeAndValidate(w, r, &bad) {
		t.Error("Expected malformed JSON to fail")
	}
}
