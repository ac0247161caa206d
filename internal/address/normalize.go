// Package address canonicalizes free-text Brazilian addresses for comparison,
// detects block-and-lot shorthand and handles operator-entered coordinates.
package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// s/n, s/nº, s.n., sn: "sem número" markers carry no location information.
	noNumberRe = regexp.MustCompile(`\bs\s*/\s*n(o)?\b\.?|\bs\.n\b\.?|\bsn\b`)

	// "al" needs its period: bare AL is the Alagoas state code.
	abbreviationRe = regexp.MustCompile(`\b(av|r|rod|tv|trav|pc|pca|lg|q|qd|lt)\b\.?|\bal\.`)

	disallowedRe = regexp.MustCompile(`[^a-z0-9 ,.\-]+`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// abbreviations maps street-type shorthand to its full form.
var abbreviations = map[string]string{
	"av":   "avenida",
	"r":    "rua",
	"rod":  "rodovia",
	"tv":   "travessa",
	"trav": "travessa",
	"al":   "alameda",
	"pc":   "praca",
	"pca":  "praca",
	"lg":   "largo",
	"q":    "quadra",
	"qd":   "quadra",
	"lt":   "lote",
}

// foldDiacritics removes combining marks after canonical decomposition.
func foldDiacritics(s string) string {
	out, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		return s
	}
	return out
}

// Normalize returns the comparison form of a free-text address fragment:
// diacritics folded, lowercased, street-type abbreviations expanded, no-number
// markers removed, characters outside [a-z0-9 ,.-] dropped and whitespace
// collapsed. The result is never shown to users. Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(foldDiacritics(s))
	s = noNumberRe.ReplaceAllString(s, " ")
	s = disallowedRe.ReplaceAllString(s, " ")
	s = abbreviationRe.ReplaceAllStringFunc(s, func(m string) string {
		return abbreviations[strings.TrimSuffix(m, ".")] + " "
	})
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
