// Package store persists learned coordinates in SQLite or Postgres.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
)

// ErrNotFound is returned when no learned location exists for a key.
var ErrNotFound = eris.New("store: learned location not found")

// Store defines the persistence interface for learned coordinates.
type Store interface {
	// GetLocation returns the location stored under key, or ErrNotFound.
	GetLocation(ctx context.Context, key string) (*model.LearnedLocation, error)
	// PutLocation inserts or replaces the coordinate for loc.Key and returns
	// the stored record.
	PutLocation(ctx context.Context, loc model.LearnedLocation) (*model.LearnedLocation, error)
	// PutLocations bulk-upserts locations, last one wins per key.
	PutLocations(ctx context.Context, locs []model.LearnedLocation) (int64, error)
	// ListLocations returns the most recently updated locations first.
	ListLocations(ctx context.Context, limit int) ([]model.LearnedLocation, error)

	Migrate(ctx context.Context) error
	Close() error
}

// NewLocation builds the record that teaches coordinate c for in.
func NewLocation(in model.AddressInput, c address.Coordinate) model.LearnedLocation {
	return model.LearnedLocation{
		Key:        address.LearningKey(in),
		RawAddress: in.RawAddress,
		Bairro:     in.Bairro,
		Cidade:     in.Cidade,
		Estado:     in.Estado,
		Latitude:   c.Lat,
		Longitude:  c.Lon,
	}
}

// dedupe keeps the last location per key, in first-seen key order.
func dedupe(locs []model.LearnedLocation) []model.LearnedLocation {
	idx := make(map[string]int, len(locs))
	out := make([]model.LearnedLocation, 0, len(locs))
	for _, l := range locs {
		if i, ok := idx[l.Key]; ok {
			out[i] = l
			continue
		}
		idx[l.Key] = len(out)
		out = append(out, l)
	}
	return out
}

// Lookup adapts a Store to the engine's learned-coordinate source.
type Lookup struct {
	Store Store
}

// Lookup returns the stored coordinate for key. A missing key is not an error.
func (l Lookup) Lookup(ctx context.Context, key string) (address.Coordinate, bool, error) {
	loc, err := l.Store.GetLocation(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return address.Coordinate{}, false, nil
	}
	if err != nil {
		return address.Coordinate{}, false, err
	}
	return address.Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}, true, nil
}
