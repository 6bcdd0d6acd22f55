package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// unsafePathChars matches runs of characters that are invalid in file names
// on at least one common filesystem.
var unsafePathChars = regexp.MustCompile(`[\\/:"*?<>|]+`)

// SanitizePathComponent makes a single path element safe to create on disk.
// Runs of \ / : " * ? < > | collapse to one dash, the result is NFC
// normalized, and surrounding whitespace and trailing dots are trimmed.
// An empty result becomes "unknown".
func SanitizePathComponent(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = unsafePathChars.ReplaceAllString(name, "-")
	name = strings.TrimRight(strings.TrimSpace(name), ". ")
	if name == "" {
		return "unknown"
	}
	return name
}
