package handlers

import (
	"net/http"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]RouteHandler

// RouteByMethod routes requests based on HTTP method
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	handler, ok := routes[r.Method]
	if !ok {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	handler(w, r)
}

// RouteCRUD is a convenience wrapper for GET/POST/PUT/DELETE routing.
// Nil handlers are not registered and fall through to 405.
func RouteCRUD(w http.ResponseWriter, r *http.Request, get, post, put, delete RouteHandler) {
	routes := make(MethodRouter)
	if get != nil {
		routes[http.MethodGet] = get
	}
	if post != nil {
		routes[http.MethodPost] = post
	}
	if put != nil {
		routes[http.MethodPut] = put
	}
	if delete != nil {
		routes[http.MethodDelete] = delete
	}
	RouteByMethod(w, r, routes)
}
