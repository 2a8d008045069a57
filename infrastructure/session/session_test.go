package session

import (
	"testing"
	"time"
)

func TestNewTokenIsUnique(t *testing.T) {
	a, b := NewToken(), NewToken()
	if len(a) != 48 || a == b {
		t.Fatalf("unexpected tokens %q %q", a, b)
	}
}

func TestExpiryFallsBackToDefault(t *testing.T) {
	got := time.Until(Expiry(0))
	if got < DefaultTTL-time.Minute || got > DefaultTTL {
		t.Fatalf("unexpected default expiry %v", got)
	}
	if got := time.Until(Expiry(time.Hour)); got > time.Hour {
		t.Fatalf("unexpected expiry %v", got)
	}
}

func TestClearCookie(t *testing.T) {
	c := ClearCookie()
	if c.Name != CookieName || c.MaxAge != -1 || c.Value != "" {
		t.Fatalf("unexpected cookie %+v", c)
	}
}

func TestCSRFCookieIsScriptReadable(t *testing.T) {
	c := CSRFCookie("abc", true)
	if c.HttpOnly || !c.Secure || c.Name != CSRFCookieName || c.Path != "/" {
		t.Fatalf("unexpected csrf cookie: %+v", c)
	}
}
