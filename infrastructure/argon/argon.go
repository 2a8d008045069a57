// Package argon hashes user passwords with argon2id in the PHC string format.
package argon

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrEmptyPassword = errors.New("password is required")
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Params controls argon2id hashing behavior.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = &Params{
	Memory:      64 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// weakerThan reports whether any cost parameter is below other's.
func (p Params) weakerThan(other Params) bool {
	return p.Memory < other.Memory ||
		p.Iterations < other.Iterations ||
		p.Parallelism < other.Parallelism ||
		p.KeyLength < other.KeyLength
}

var b64 = base64.RawStdEncoding

type phc struct {
	params Params
	salt   []byte
	key    []byte
}

// CreateHash returns $argon2id$v=19$m=..,t=..,p=..$salt$key.
func CreateHash(password string, p *Params) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}
	if p == nil {
		p = DefaultParams
	}
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encodedHash. A malformed hash
// never matches.
func Verify(password, encodedHash string) bool {
	h, err := parse(encodedHash)
	if err != nil {
		return false
	}
	p := h.params
	key := argon2.IDKey([]byte(password), h.salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(h.key, key) == 1
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than p, or cannot be read at all.
func NeedsRehash(encodedHash string, p *Params) bool {
	if p == nil {
		p = DefaultParams
	}
	h, err := parse(encodedHash)
	return err != nil || h.params.weakerThan(*p)
}

func parse(encoded string) (phc, error) {
	var h phc
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return h, ErrMalformedHash
	}
	var err error
	if h.salt, err = b64.DecodeString(parts[4]); err != nil {
		return h, ErrMalformedHash
	}
	if h.key, err = b64.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return h, ErrMalformedHash
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}
