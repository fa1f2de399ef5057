package textutil

import (
	"regexp"
	"strings"
)

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

const maxFileNameRunes = 120

// SanitizeFileName converts an arbitrary string into a safe filename segment.
// Unsafe characters are dropped, whitespace collapses to single underscores,
// and the result is truncated to a filesystem-friendly length.
func SanitizeFileName(name string) string {
	cleaned := unsafeFileChars.ReplaceAllString(name, "")
	cleaned = whitespaceRuns.ReplaceAllString(strings.TrimSpace(cleaned), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "untitled"
	}
	runes := []rune(cleaned)
	if len(runes) > maxFileNameRunes {
		cleaned = string(runes[:maxFileNameRunes])
	}
	return cleaned
}
