package address

import (
	"strings"

	"github.com/sells-group/route-geocoder/internal/model"
)

// LearningKey returns the normalized address signature that learned
// coordinates are stored under.
func LearningKey(in model.AddressInput) string {
	return strings.Join([]string{
		Normalize(in.RawAddress),
		Normalize(in.Bairro),
		Normalize(in.Cidade),
		Normalize(in.Estado),
	}, "|")
}
