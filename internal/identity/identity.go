// Package identity extracts the conversation session and client identity
// from incoming requests.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// SessionHeaderName carries the conversation session id.
	SessionHeaderName = "X-CARE-Session-ID"
	// SessionQueryParam is the fallback for clients that cannot set headers.
	SessionQueryParam = "session_id"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	clientKeyKey
)

// SessionIDFromContext returns the session id set by Middleware, or "" when
// the request did not carry a valid one.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ClientKeyFromContext returns the key used to throttle the caller.
func ClientKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKeyKey).(string); ok {
		return v
	}
	return ""
}

// SanitizeSessionID returns id in canonical form, or "" if it is not a UUID.
func SanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ""
	}
	return parsed.String()
}

// SessionIDFromRequest reads the session id from the header, then the query.
func SessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return SanitizeSessionID(sid)
}

// Middleware injects the session id and client key into the request context.
// Throttling is keyed by client address so rotating session ids does not
// bypass it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), sessionIDKey, SessionIDFromRequest(r))
		ctx = context.WithValue(ctx, clientKeyKey, IPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
