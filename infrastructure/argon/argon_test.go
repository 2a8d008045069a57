package argon

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateHashAndVerify(t *testing.T) {
	hash, err := CreateHash("secret-pass", DefaultParams)
	if err != nil {
		t.Fatalf("create hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=2,p=1$") {
		t.Fatalf("unexpected encoding: %s", hash)
	}
	if !Verify("secret-pass", hash) {
		t.Fatalf("expected password to match")
	}
	if Verify("wrong", hash) {
		t.Fatalf("expected password mismatch")
	}
	if _, err := CreateHash("   ", nil); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestMalformedHashes(t *testing.T) {
	for _, h := range []string{
		"garbage",
		"$argon2i$v=19$m=65536,t=2,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=65536,t=2,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=2,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=2,p=1$!!$a2V5",
	} {
		if Verify("secret-pass", h) {
			t.Fatalf("%q must not verify", h)
		}
		if !NeedsRehash(h, nil) {
			t.Fatalf("%q should need rehash", h)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := &Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := CreateHash("secret-pass", weak)
	if err != nil {
		t.Fatalf("create hash: %v", err)
	}
	if !Verify("secret-pass", hash) {
		t.Fatalf("weak hash should still verify")
	}
	if !NeedsRehash(hash, DefaultParams) {
		t.Fatalf("weak hash should need rehash")
	}
	strong, err := CreateHash("secret-pass", nil)
	if err != nil {
		t.Fatalf("create strong hash: %v", err)
	}
	if NeedsRehash(strong, DefaultParams) {
		t.Fatalf("default hash should not need rehash")
	}
}
