// Package area resolves a comuna name to an authoritative boundary,
// walking official sources before falling back to OSM geocoding.
package area

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a comuna name for comparison: diacritics
// stripped, non-printable-ASCII dropped, uppercased, whitespace
// collapsed. "San Joaquín", "san joaquin" and " SAN  JOAQUIN " all
// normalize to "SAN JOAQUIN".
func Normalize(name string) string {
	out, _, err := transform.String(stripMarks, name)
	if err != nil {
		out = name
	}

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(strings.ToUpper(b.String())), " ")
}

// SameName reports whether two comuna names are equal after normalization.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
