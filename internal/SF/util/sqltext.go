package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TrimSQL canonicalises an SQL source fragment: leading and trailing
// whitespace is removed and every run of whitespace outside a quoted
// substring collapses to a single space. Quoted substrings ('..', "..")
// are copied verbatim, including doubled quote escapes.
func TrimSQL(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	var quote byte
	pendingSpace := false
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			sb.WriteByte(ch)
			if ch == quote {
				if i+1 < len(src) && src[i+1] == quote {
					sb.WriteByte(src[i+1])
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		if isSpace(ch) {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		if ch == '\'' || ch == '"' {
			quote = ch
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

// IsPrintable reports whether s is valid UTF-8 made only of printable
// characters.
func IsPrintable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
