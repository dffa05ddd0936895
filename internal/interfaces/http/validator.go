package http

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation constants
const (
	MaxMessageLength = 10000
	MaxPhoneLength   = 20
)

// ValidFlowID checks that a flow identifier is a well-formed UUID before it
// reaches the store.
func ValidFlowID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizePhone strips everything but digits from a caller-supplied
// address ("+54 9 11 2233-4455" → "5491122334455"). Returns "" when the
// result is empty or implausibly long.
func NormalizePhone(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	phone := sb.String()
	if phone == "" || len(phone) > MaxPhoneLength {
		return ""
	}
	return phone
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
