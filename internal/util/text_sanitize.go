package util

import "strings"

// SanitizeText strips characters that Postgres text columns reject. PDF
// extraction in particular leaks NUL bytes and stray C0 controls into chunk
// content; both chunk storage and chat persistence run through this before
// any insert.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == 0:
			// NUL is invalid in PostgreSQL text values.
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20:
			// Other non-printing controls carry no document content.
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
