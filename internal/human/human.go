// Package human contains types that parse and format configuration values
// in representations meant to be read and written by humans.
package human

import (
	"strings"
	"unicode"
)

// parseUnit splits s into its numeric part and its unit, ignoring the spaces
// around and between them.
func parseUnit(s string) (value, unit string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-' && r != '+'
	})
	if i < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
}
