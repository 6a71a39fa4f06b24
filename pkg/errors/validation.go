package errors

import (
	"strings"
	"unicode"
)

// ValidateNodeID validates a node identifier for safety and correctness.
// Node IDs appear in URLs, cache keys, and DOT output, so the rules are
// intentionally conservative:
//   - No empty IDs
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "node ID cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "node ID too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node ID contains invalid control characters")
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
			return New(ErrCodeInvalidInput, "node ID contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateBlueprintFilename validates a blueprint filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateBlueprintFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidBlueprint, "blueprint filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidBlueprint, "blueprint filename must not contain path separators")
	}

	if strings.Contains(filename, "..") {
		return New(ErrCodeInvalidBlueprint, "blueprint filename must not contain path traversal")
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidBlueprint, "blueprint filename contains invalid control characters")
		}
	}

	return nil
}
