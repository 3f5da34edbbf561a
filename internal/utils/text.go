// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns the canonical form of s for comparisons: line
// endings are folded to "\n", the text is put in Unicode NFC form and
// surrounding whitespace is trimmed. Callers that store or forward text keep
// the original.
//
// Example:
//
//	utils.NormalizeText("  Café\r\n") // "Café"
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(norm.NFC.String(s))
}

// ChunkText splits s into consecutive pieces of at most max runes each.
// Concatenating the pieces yields s. An empty s yields no chunks; a
// non-positive max returns s as a single chunk.
func ChunkText(s string, max int) []string {
	if s == "" {
		return nil
	}
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	out := make([]string, 0, utf8.RuneCountInString(s)/max+1)
	start, n := 0, 0
	for i := range s {
		if n == max {
			out = append(out, s[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, s[start:])
}

// ParseUserID parses a decimal user identity. It rejects empty input and
// values that do not fit an int64.
func ParseUserID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
