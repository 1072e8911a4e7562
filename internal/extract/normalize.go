package extract

import (
	"strings"
	"unicode"
)

// Normalize collapses whitespace runs into single spaces (preserving paragraph
// breaks as single newlines), strips control characters, and trims the result.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var (
		pendingSpace   bool
		pendingNewline bool
		wrote          bool
	)

	for _, r := range s {
		switch {
		case r == '\n':
			pendingNewline = true
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r) || r == '�':
			// Drop control characters and replacement runes entirely.
		default:
			if wrote {
				if pendingNewline {
					b.WriteByte('\n')
				} else if pendingSpace {
					b.WriteByte(' ')
				}
			}
			pendingSpace = false
			pendingNewline = false
			b.WriteRune(r)
			wrote = true
		}
	}

	return b.String()
}
