package reconcile

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/scorer"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

// fakeGeocoder answers every forward query with the same candidates unless
// byQuery has an entry for it.
type fakeGeocoder struct {
	mu           sync.Mutex
	forward      []geocode.Candidate
	byQuery      map[string][]geocode.Candidate
	reverse      *geocode.Candidate
	onForward    func(query string)
	delay        func(query string) time.Duration
	forwardCalls int
	reverseCalls int
	queries      []string
}

func (f *fakeGeocoder) Forward(_ context.Context, query string) []geocode.Candidate {
	f.mu.Lock()
	f.forwardCalls++
	f.queries = append(f.queries, query)
	hook, delay := f.onForward, f.delay
	f.mu.Unlock()

	if hook != nil {
		hook(query)
	}
	if delay != nil {
		time.Sleep(delay(query))
	}
	if c, ok := f.byQuery[query]; ok {
		return c
	}
	return f.forward
}

func (f *fakeGeocoder) Reverse(context.Context, float64, float64) *geocode.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseCalls++
	return f.reverse
}

func (f *fakeGeocoder) calls() (forward, reverse int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forwardCalls, f.reverseCalls
}

// scoredCandidate encodes a fixed confidence in the road name so tests can
// drive the policy tables with exact scores.
func scoredCandidate(score, lat, lon float64, displayName, source string) geocode.Candidate {
	return geocode.Candidate{
		Lat:         lat,
		Lon:         lon,
		DisplayName: displayName,
		Source:      source,
		Components:  geocode.Components{Road: strconv.FormatFloat(score, 'f', -1, 64)},
	}
}

func roadScore(c geocode.Components, _ scorer.Expected) float64 {
	v, _ := strconv.ParseFloat(c.Road, 64)
	return v
}

func fixedScoreSelector() scorer.Selector {
	return scorer.Selector{MinScore: scorer.DefaultMinScore, Score: roadScore}
}

type fakeLearned struct {
	coords map[string]address.Coordinate
	err    error
	keys   []string
}

func (f *fakeLearned) Lookup(_ context.Context, key string) (address.Coordinate, bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return address.Coordinate{}, false, f.err
	}
	c, ok := f.coords[key]
	return c, ok, nil
}
