// Package utils provides shared text and logging helpers.
package utils

import "unicode/utf8"

// Truncate returns s cut to at most maxLen bytes, with "..." appended if it was cut.
// The cut never splits a UTF-8 sequence. A non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
