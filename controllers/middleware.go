package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"nearby_server/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// UserIDHeader carries the authenticated user id, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

// Authenticator resolves the calling user. Session handling lives outside this service.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts a header set by an authenticating gateway in front of the service.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	header := a.Header
	if header == "" {
		header = UserIDHeader
	}
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		return "", services.AuthError("missing user identity")
	}
	return id, nil
}

// RequireUser rejects requests the authenticator cannot resolve and stores the user id in the context.
func RequireUser(auth Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.Authenticate(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func RequestLogger(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		slog.Info("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr,
			"user_agent", r.UserAgent(), "request_id", RequestIDFromContext(r.Context()))
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
