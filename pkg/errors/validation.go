package errors

import (
	"strings"
	"unicode"
)

// ValidateSessionID validates a client-supplied session identifier.
// Session IDs appear in URLs, log lines, and cache keys, so the rules are
// intentionally conservative:
//   - No empty IDs
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "session id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "session id contains control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "session id contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateFeatureID validates a feature identifier. Feature IDs key the
// spatial index and the placement map; the same conservative rules apply as
// for session IDs, with a longer length budget for tile-prefixed IDs.
func ValidateFeatureID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "feature id cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "feature id too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "feature id contains control characters")
		}
	}
	if strings.Contains(id, "\x00") {
		return New(ErrCodeInvalidInput, "feature id contains a null byte")
	}

	return nil
}
