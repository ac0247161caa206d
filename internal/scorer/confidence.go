// Package scorer rates how well a geocoded candidate agrees with the
// structured fields of the row it was searched for, and picks the best one.
package scorer

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

// Weights in hundredths so boundary scores compare exactly.
const (
	weightCity        = 30
	weightState       = 20
	weightSuburb      = 20
	weightStreet      = 20
	weightRoad        = 15
	weightStreetNum   = 5
	weightHouseNumber = 10
)

// Expected holds the fields of the original row a candidate is judged against.
type Expected struct {
	RawAddress string
	Bairro     string
	Cidade     string
	Estado     string
}

// Confidence returns achieved/possible over the fields present in exp.
// Fields missing from exp contribute to neither side, so sparse rows are not
// penalized. Returns 0 when nothing can be compared.
func Confidence(c geocode.Components, exp Expected) float64 {
	raw := address.Normalize(exp.RawAddress)
	city := address.Normalize(c.City)
	if city == "" {
		city = address.Normalize(c.County)
	}
	road := address.Normalize(c.Road)
	houseNumber := address.Normalize(c.HouseNumber)

	var achieved, possible int

	if want := address.Normalize(exp.Cidade); want != "" {
		possible += weightCity
		if overlaps(city, want) {
			achieved += weightCity
		}
	}

	if want := address.Normalize(exp.Estado); want != "" {
		possible += weightState
		if stateMatches(address.Normalize(c.State), want) {
			achieved += weightState
		}
	}

	if want := address.Normalize(exp.Bairro); want != "" {
		possible += weightSuburb
		if overlaps(address.Normalize(c.Suburb), want) {
			achieved += weightSuburb
		}
	}

	if raw != "" {
		possible += weightStreet
		if road != "" && strings.Contains(raw, road) {
			achieved += weightRoad
		}
		if houseNumber != "" && strings.Contains(raw, houseNumber) {
			achieved += weightStreetNum
		}
	}

	if houseNumber != "" {
		possible += weightHouseNumber
		if strings.IndexFunc(raw, unicode.IsDigit) >= 0 {
			achieved += weightHouseNumber
		}
	}

	if possible == 0 {
		return 0
	}
	return float64(achieved) / float64(possible)
}

// Percent renders a score as a whole percentage for notes.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

// overlaps reports a substring match in either direction between non-empty values.
func overlaps(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// stateMatches compares states, also accepting a two-letter UF code on the
// row against the full state name providers return.
func stateMatches(got, want string) bool {
	if overlaps(got, want) {
		return true
	}
	if name, ok := ufNames[want]; ok {
		return overlaps(got, name)
	}
	return false
}

// ufNames maps normalized UF codes to normalized state names.
var ufNames = map[string]string{
	"ac": "acre",
	"al": "alagoas",
	"ap": "amapa",
	"am": "amazonas",
	"ba": "bahia",
	"ce": "ceara",
	"df": "distrito federal",
	"es": "espirito santo",
	"go": "goias",
	"ma": "maranhao",
	"mt": "mato grosso",
	"ms": "mato grosso do sul",
	"mg": "minas gerais",
	"pa": "para",
	"pb": "paraiba",
	"pr": "parana",
	"pe": "pernambuco",
	"pi": "piaui",
	"rj": "rio de janeiro",
	"rn": "rio grande do norte",
	"rs": "rio grande do sul",
	"ro": "rondonia",
	"rr": "roraima",
	"sc": "santa catarina",
	"sp": "sao paulo",
	"se": "sergipe",
	"to": "tocantins",
}
