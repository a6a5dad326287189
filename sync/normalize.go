// ABOUTME: Text, phone, and URL normalization for duplicate matching
// ABOUTME: Strips accents, punctuation, and URL decoration so fuzzy keys compare equal
package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD, drops combining marks, and recomposes.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips accents, and trims whitespace.
func NormalizeText(value string) string {
	out, _, err := transform.String(stripAccents, value)
	if err != nil {
		out = value
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// NormalizePhone reduces a phone number to a canonical digit string. The
// same line shows up with and without the 55 country code and with and
// without the extra mobile nine, so both decorations are dropped before
// comparison.
func NormalizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	if len(digits) == 11 && digits[2] == '9' {
		digits = digits[:2] + digits[3:]
	}
	return digits
}

// NormalizeURL drops the protocol, a leading www., and trailing slashes, and
// lowercases the rest, so the same site compares equal however it was pasted.
func NormalizeURL(value string) string {
	out := strings.TrimSpace(strings.ToLower(value))
	out = strings.TrimPrefix(out, "https://")
	out = strings.TrimPrefix(out, "http://")
	out = strings.TrimPrefix(out, "www.")
	out = strings.TrimRight(out, "/")
	return strings.TrimSpace(out)
}
