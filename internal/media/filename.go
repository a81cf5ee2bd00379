package media

import (
	"strings"
	"unicode"
)

// fallbackName substitutes titles that sanitize down to nothing.
const fallbackName = "media"

// SanitizeFilename derives a safe download filename from a title: ASCII
// letters, digits, underscore, and hyphen pass through, any whitespace rune
// becomes a plain space, and every other rune is dropped. The result trims to
// the fallback token when empty and carries the kind's extension. Keeping the
// output ASCII-only makes it safe to place verbatim in a Content-Disposition
// header.
func SanitizeFilename(title string, kind OutputKind) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteByte(byte(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		name = fallbackName
	}
	return name + kind.Ext()
}
