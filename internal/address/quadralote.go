package address

import "regexp"

// quadraLoteRe matches "block N [e] lot M" shorthand on normalized text. The
// normalizer already folds q/qd into "quadra" and lt into "lote"; the short
// forms stay in the pattern so the bare "l" spelling is still recognized.
var quadraLoteRe = regexp.MustCompile(
	`\b(quadra|qd|q)\b\s*[.\-]?\s*\d+\s*,?\s*(e\s+)?\b(lote|lt|l)\b\s*[.\-]?\s*\d+`,
)

// IsQuadraLote reports whether raw uses block-and-lot shorthand ("QD 12 LT 34").
// Such addresses name unnamed-street lots that public geocoders cannot place.
func IsQuadraLote(raw string) bool {
	if raw == "" {
		return false
	}
	return quadraLoteRe.MatchString(Normalize(raw))
}
