// Package httpapi exposes the REST API for products and orders.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dshills/ordermgr/internal/service"
)

// jsonError represents a JSON error payload
type jsonError struct {
	Error string `json:"error"`
}

// message is the body of write endpoints that return no entity
type message struct {
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes {"error": msg} with the given status code
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// statusFor maps a service error kind onto the API's response codes:
// validation, conflict and state errors are all 400.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput, service.KindConflict, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error and logs storage failures
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	WriteJSONError(w, status, err.Error())
}
