package report

import (
	"strings"
	"unicode"
)

// sanitizeFilename turns a server name into a safe file name component
func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return r
		}
		return '_'
	}, s)
}
