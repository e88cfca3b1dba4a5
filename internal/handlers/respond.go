package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"eventtree/internal/middleware"
	"eventtree/internal/store"
)

// writeJSON sends data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps err onto a status code by its store kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFrom(r.Context()),
			"error", err,
		)
	}

	// Driver errors stay in the log.
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		msg = "temporarily unavailable, retry the request"
	}
	writeJSON(w, status, errorBody{Error: strings.TrimPrefix(msg, "store: "), Kind: kind})
}

func classify(err error) (int, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "validation"
	}
	switch store.KindOf(err) {
	case store.ErrValidation:
		return http.StatusBadRequest, "validation"
	case store.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case store.ErrInvariant:
		return http.StatusConflict, "invariant"
	}
	if store.IsRetryable(err) {
		return http.StatusServiceUnavailable, "backend"
	}
	return http.StatusInternalServerError, "backend"
}
