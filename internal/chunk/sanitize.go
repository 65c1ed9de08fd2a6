package chunk

import (
	"strings"
	"unicode/utf8"
)

// SanitizeContent replaces invalid UTF-8 byte sequences with the
// replacement character U+FFFD before the content is hashed or embedded
// (spec §4.3, testable property 8).
//
// Content arriving from crawled pages or other external sources can carry
// malformed byte sequences (e.g. a lone UTF-16 surrogate half re-encoded as
// WTF-8/CESU-8). Those bytes must be caught here by scanning raw bytes with
// utf8.DecodeRuneInString: a (RuneError, size==1) result is the decoder's
// signal for "these bytes aren't valid UTF-8", distinct from a rune that
// legitimately decoded to U+FFFD. Operating on []rune(s) instead would be a
// no-op, since Go's string/[]rune conversion already replaces invalid bytes
// with U+FFFD before any rune-range loop ever sees them — by then there's
// nothing left to sanitize. Postgres rejects invalid UTF-8 outright, so this
// has to run before content is hashed or upserted.
func SanitizeContent(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}
