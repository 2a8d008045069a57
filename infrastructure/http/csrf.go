package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	sessioncookie "wms/infrastructure/session"
)

const csrfCookieName = sessioncookie.CSRFCookieName

// csrfExempt lists prefixes that never see the session cookie: the bearer
// API, the probe and static files.
var csrfExempt = []string{"/api/", "/health", "/assets/"}

// CSRFMiddleware applies double-submit checks to unsafe requests of the
// cookie-authenticated UI.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range csrfExempt {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		expected := ""
		if c, err := r.Cookie(csrfCookieName); err == nil {
			expected = strings.TrimSpace(c.Value)
		}
		if expected == "" {
			expected = sessioncookie.NewToken()
			http.SetCookie(w, sessioncookie.CSRFCookie(expected, r.TLS != nil))
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		provided := strings.TrimSpace(r.Header.Get(csrfCookieName))
		if provided == "" {
			provided = strings.TrimSpace(r.FormValue("_csrf"))
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			slog.Warn("csrf check failed", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
