package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	raw, expires, err := iss.Issue(5, "worker", "worker", 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) > time.Hour {
		t.Fatalf("unexpected expiry %v", expires)
	}
	claims, err := iss.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 5 || claims.Role != "worker" || claims.WarehouseID != 2 {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	raw, _, err := iss.Issue(5, "worker", "worker", 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewIssuer("other-secret", time.Hour)
	if _, err := other.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	expired := NewIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(5, "worker", "worker", 2)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	if _, err := iss.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry failure, got %v", err)
	}

	if _, err := iss.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected malformed failure, got %v", err)
	}
}

func TestFromHeader(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for in, want := range cases {
		got, ok := FromHeader(in)
		if got != want || ok != (want != "") {
			t.Fatalf("FromHeader(%q) = %q, %v", in, got, ok)
		}
	}
}
