// Package identity provides anonymous per-browser viewer ids and per-tab
// session ids for dashboard connections.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ViewerCookieName      = "fte_viewer_id"
	SessionHeaderName     = "X-FTE-Session-ID"
	DefaultSessionIDValue = "default"
	viewerCookieMaxAge    = 30 * 24 * time.Hour
	viewerIDPrefix        = "viewer_"
)

type contextKey int

const (
	viewerIDKey contextKey = iota
	sessionIDKey
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ViewerIDFromContext extracts the viewer ID from the request context.
func ViewerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(viewerIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// WithViewer returns ctx carrying the given viewer and session ids.
func WithViewer(ctx context.Context, viewerID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, viewerIDKey, viewerID)
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(sessionID))
}

func generateViewerID() string {
	return viewerIDPrefix + uuid.NewString()
}

func isValidViewerID(id string) bool {
	rest, ok := strings.CutPrefix(id, viewerIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func getOrCreateViewerID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	var id string
	if c, err := r.Cookie(ViewerCookieName); err == nil && isValidViewerID(c.Value) {
		id = c.Value
	} else {
		id = generateViewerID()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ViewerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(viewerCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(viewerCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects the anonymous viewer id and the per-request session id.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID := getOrCreateViewerID(w, r, isDev)
			ctx := WithViewer(r.Context(), viewerID, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
