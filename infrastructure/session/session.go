// Package session holds the admin UI cookie helpers.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

const CookieName = "X-Session-Token"

// DefaultTTL is used when no explicit lifetime is configured.
const DefaultTTL = 12 * time.Hour

func SessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	}
}

// ClearCookie expires the session cookie in the browser.
func ClearCookie() *http.Cookie {
	return SessionCookie("", -1)
}

// Expiry returns when a session created now with ttl ends. A non-positive
// ttl falls back to DefaultTTL.
func Expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return time.Now().Add(ttl)
}

// NewToken returns a random hex session id.
func NewToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// CSRFCookieName is readable by page scripts, which copy it into the _csrf
// form field.
const CSRFCookieName = "X-CSRF-Token"

// CSRFCookie carries the double-submit token for the admin UI.
func CSRFCookie(value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}
