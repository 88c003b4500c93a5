package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouteByMethod(t *testing.T) {
	called := ""
	routes := MethodRouter{
		http.MethodGet:  func(w http.ResponseWriter, r *http.Request) { called = "get" },
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) { called = "post" },
	}

	w := httptest.NewRecorder()
	RouteByMethod(w, httptest.NewRequest(http.MethodPost, "/x", nil), routes)
	if called != "post" {
		t.Errorf("expected post handler, got %q", called)
	}

	w = httptest.NewRecorder()
	RouteByMethod(w, httptest.NewRequest(http.MethodDelete, "/x", nil), routes)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for unregistered method, got %d", w.Code)
	}
}

func TestRouteCRUDSkipsNilHandlers(t *testing.T) {
	w := httptest.NewRecorder()
	RouteCRUD(w, httptest.NewRequest(http.MethodPut, "/x", nil), func(http.ResponseWriter, *http.Request) {}, nil, nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for nil PUT handler, got %d", w.Code)
	}
}
