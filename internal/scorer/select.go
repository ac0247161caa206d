package scorer

import "github.com/sells-group/route-geocoder/pkg/geocode"

// DefaultMinScore is the acceptance floor; a best score equal to it is rejected.
const DefaultMinScore = 0.3

// Match is a selected candidate and its confidence.
type Match struct {
	Candidate geocode.Candidate
	Score     float64
}

// Selector picks the best candidate from a provider's result set.
type Selector struct {
	MinScore float64
	// Score rates one candidate. Nil means Confidence.
	Score func(geocode.Components, Expected) float64
}

// NewSelector returns a Selector using Confidence with the given floor.
func NewSelector(minScore float64) Selector {
	return Selector{MinScore: minScore, Score: Confidence}
}

// Best returns the strictly highest-scoring candidate; the first one wins
// ties. ok is false when there are no candidates or the best score does not
// exceed MinScore.
func (s Selector) Best(cands []geocode.Candidate, exp Expected) (Match, bool) {
	score := s.Score
	if score == nil {
		score = Confidence
	}

	var best Match
	found := false
	for _, c := range cands {
		v := score(c.Components, exp)
		if !found || v > best.Score {
			best = Match{Candidate: c, Score: v}
			found = true
		}
	}
	if !found || best.Score <= s.MinScore {
		return Match{}, false
	}
	return best, true
}
