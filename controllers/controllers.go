package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nearby_server/services"
)

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Nearby. Share a signal, then discover who is around."})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindAuth:
		return http.StatusUnauthorized
	case services.KindPermission:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	case services.KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends only the public message of err. The internal cause goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		slog.Error("unclassified error", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "something went wrong"})
		return
	}

	status := StatusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "kind", e.Kind, "message", e.Msg)
	}
	if e.Kind == services.KindRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, errorResponse{Error: string(e.Kind), Message: e.Msg, Retryable: e.Kind.Retryable()})
}
