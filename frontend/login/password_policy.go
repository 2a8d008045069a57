package login

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 10
	maxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 10 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 128 characters")
	ErrPasswordTooWeak  = errors.New("password must include a letter and a digit")
	ErrPasswordSpaces   = errors.New("password must not start or end with a space")
)

// ValidatePasswordPolicy requires a letter and a digit within the length
// bounds. Scanner terminals type these by hand, so symbols are optional.
func ValidatePasswordPolicy(password string) error {
	if strings.TrimSpace(password) != password {
		return ErrPasswordSpaces
	}
	switch n := utf8.RuneCountInString(password); {
	case n < minPasswordLength:
		return ErrPasswordTooShort
	case n > maxPasswordLength:
		return ErrPasswordTooLong
	}
	if strings.IndexFunc(password, unicode.IsLetter) < 0 || strings.IndexFunc(password, unicode.IsDigit) < 0 {
		return ErrPasswordTooWeak
	}
	return nil
}
