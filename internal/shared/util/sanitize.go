package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeLine drops terminal escape sequences and control characters
// (progress bars, colors) from a line of process output. Tabs are kept.
func SanitizeLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); {
		if line[i] == 0x1b {
			i = skipEscape(line, i)
			continue
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		i += size
		if r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// skipEscape returns the index after the escape sequence starting at i.
// Only CSI sequences (ESC [ ... final byte) are parsed; any other escape
// drops the ESC and the byte after it.
func skipEscape(s string, i int) int {
	i++
	if i >= len(s) {
		return i
	}
	if s[i] != '[' {
		return i + 1
	}
	for i++; i < len(s); i++ {
		if s[i] >= 0x40 && s[i] <= 0x7e {
			return i + 1
		}
	}
	return i
}
