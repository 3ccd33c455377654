// Package taxon provides scientific-name handling and the taxonomic
// category matcher used to filter observations by high-level plant groups.
package taxon

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownGenus is the sentinel returned when a genus cannot be derived.
const UnknownGenus = "unknown"

var titleCaser = cases.Title(language.Und)

// ExtractGenus derives the genus from a scientific name: the first
// whitespace-delimited token, title-cased. Returns UnknownGenus when no
// token can be extracted.
func ExtractGenus(scientificName string) string {
	fields := strings.Fields(scientificName)
	if len(fields) == 0 {
		return UnknownGenus
	}
	return titleCaser.String(strings.ToLower(fields[0]))
}

// IsValidScientificName reports whether the name is a usable two-part
// (or longer) scientific name. Single-token names are genus-only or
// placeholder entries and are dropped at the adapter boundary.
func IsValidScientificName(scientificName string) bool {
	return len(strings.Fields(scientificName)) >= 2
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics removes combining marks, so "líquen" becomes "liquen".
func stripDiacritics(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeCategory canonicalizes a user-supplied category name: diacritics
// stripped, lower-cased, surrounding space trimmed, and a trailing plural
// "s" removed ("Angiospermas" -> "angiosperma").
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(stripDiacritics(category)))
	if len(c) > 1 && strings.HasSuffix(c, "s") {
		c = strings.TrimSuffix(c, "s")
	}
	return c
}
