package middleware

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Request limits shared by the chat handlers.
const (
	MaxBodyBytes    = 64 * 1024
	MaxMessageRunes = 4000
	MaxIDLength     = 128
)

// ValidateMessage validates the text of a chat turn.
func ValidateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return errors.New("message exceeds maximum length")
	}
	return nil
}

// ValidateSessionID validates a client-supplied session id. Ids are opaque
// but must be short and free of whitespace and control characters.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if len(id) > MaxIDLength {
		return errors.New("session ID exceeds maximum length")
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.New("invalid session ID format")
		}
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	if len(id) == 0 {
		return errors.New("tenant ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("tenant ID exceeds maximum length")
	}
	return nil
}
