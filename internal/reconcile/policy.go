package reconcile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/scorer"
)

// rowState carries one row through the three policy stages.
type rowState struct {
	in          model.AddressInput
	raw         string
	operator    address.Coordinate
	hasOperator bool
	learned     bool
	query       string
	notes       model.Notes

	accepted    *address.Coordinate
	displayName string
	provider    string
}

func newRowState(in model.AddressInput) *rowState {
	s := &rowState{
		in:      in,
		raw:     strings.TrimSpace(in.RawAddress),
		learned: in.Learned,
	}
	s.operator, s.hasOperator = address.ParseCoordinate(string(in.Latitude), string(in.Longitude))
	return s
}

func (s *rowState) expected() scorer.Expected {
	return scorer.Expected{
		RawAddress: s.in.RawAddress,
		Bairro:     s.in.Bairro,
		Cidade:     s.in.Cidade,
		Estado:     s.in.Estado,
	}
}

// result builds the row's single output record.
func (s *rowState) result(status model.Status, coord *address.Coordinate, corrected string) model.AddressResult {
	r := model.AddressResult{
		OriginalAddress:  s.in.RawAddress,
		CorrectedAddress: corrected,
		Status:           status,
		Note:             s.notes.String(),
		DisplayName:      s.displayName,
		Learned:          s.learned,
		Bairro:           s.in.Bairro,
		Cidade:           s.in.Cidade,
		Estado:           s.in.Estado,
	}
	if s.query != "" {
		r.SearchUsed = "geocode:" + s.query
	}
	if coord != nil {
		r.Latitude = address.FormatDegrees(coord.Lat)
		r.Longitude = address.FormatDegrees(coord.Lon)
	}
	return r
}

// buildQuery joins the non-empty address parts the way providers expect.
func buildQuery(in model.AddressInput) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{in.RawAddress, in.Bairro, in.Cidade, in.Estado} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Stage A: rows decided without calling any provider.

type shortCircuit struct {
	name string
	when func(*rowState) bool
	emit func(*rowState) model.AddressResult
}

var shortCircuits = []shortCircuit{
	{
		name: "learned-bypass",
		when: func(s *rowState) bool { return s.learned && s.hasOperator },
		emit: func(s *rowState) model.AddressResult {
			s.notes.Append(NoteLearnedUsed)
			return s.result(model.StatusUpdated, &s.operator, s.in.RawAddress)
		},
	},
	{
		name: "quadra-lote",
		when: func(s *rowState) bool { return address.IsQuadraLote(s.raw) },
		emit: func(s *rowState) model.AddressResult {
			s.notes.Append(NoteQuadraLote)
			return s.result(model.StatusPending, nil, s.in.RawAddress)
		},
	},
}

// Stage B: gather geocoding evidence and decide which coordinate it supports.

type acceptance int

const (
	acceptNone acceptance = iota
	acceptGeocode
	acceptOperator
)

// crossRule applies when the operator coordinate could be reverse geocoded.
type crossRule struct {
	forwardHigh bool
	reverseHigh bool
	accept      acceptance
	note        func(f, r int) string
}

var crossValidation = []crossRule{
	{true, true, acceptGeocode, func(f, r int) string { return tag(noteHighBoth, f, r) }},
	{false, true, acceptOperator, func(_, r int) string { return tag(noteOperatorValidated, r) }},
	{true, false, acceptGeocode, func(f, _ int) string { return tag(noteGeocodeCorrected, f) }},
	{false, false, acceptGeocode, func(f, r int) string { return tag(noteMediumReview, max(f, r)) }},
}

// singleRule applies when the forward score is the only evidence.
type singleRule struct {
	withOperator bool
	acceptable   bool
	accept       acceptance
	format       string
}

var singleEvidence = []singleRule{
	{true, true, acceptGeocode, noteGeocoded},
	{true, false, acceptNone, noteLowReviewRequired},
	{false, true, acceptGeocode, noteGeocoded},
	// Without an operator coordinate a weak match is still the best evidence.
	{false, false, acceptGeocode, noteLowOnlyEvidence},
}

func (e *Engine) gatherEvidence(ctx context.Context, s *rowState) {
	s.query = buildQuery(s.in)

	cands := e.geocoder.Forward(ctx, s.query)
	if len(cands) == 0 {
		s.notes.Append(NoteNotFound)
		return
	}

	exp := s.expected()
	match, ok := e.selector.Best(cands, exp)
	if !ok {
		s.notes.Append(NoteNoCompatibleResult)
		return
	}
	forward := match.Score
	geocoded := address.Coordinate{Lat: match.Candidate.Lat, Lon: match.Candidate.Lon}

	accept := func(a acceptance) {
		switch a {
		case acceptGeocode:
			s.accepted = &geocoded
			s.displayName = match.Candidate.DisplayName
			s.provider = match.Candidate.Source
		case acceptOperator:
			op := s.operator
			s.accepted = &op
			s.displayName = match.Candidate.DisplayName
		}
	}

	if s.hasOperator {
		if rev := e.geocoder.Reverse(ctx, s.operator.Lat, s.operator.Lon); rev != nil {
			reverse := e.score(rev.Components, exp)
			for _, r := range crossValidation {
				if r.forwardHigh == (forward >= e.thresholds.HighScore) && r.reverseHigh == (reverse >= e.thresholds.HighScore) {
					s.notes.Append(r.note(scorer.Percent(forward), scorer.Percent(reverse)))
					accept(r.accept)
					return
				}
			}
		}
	}

	for _, r := range singleEvidence {
		if r.withOperator == s.hasOperator && r.acceptable == (forward >= e.thresholds.AcceptScore) {
			s.notes.Append(tag(r.format, scorer.Percent(forward)))
			accept(r.accept)
			return
		}
	}
}

// Stage C: final status from the accepted coordinate and the operator's.

type proximity int

const (
	anyDistance proximity = iota
	near
	far
)

type coordSource int

const (
	noCoord coordSource = iota
	operatorCoord
	geocodedCoord
)

type finalRule struct {
	geocoded bool
	operator bool
	distance proximity
	status   model.Status
	coord    coordSource
	note     func(*rowState) string
}

var finalDecisions = []finalRule{
	{true, true, far, model.StatusPending, operatorCoord, constNote(NoteDistanceConflict)},
	{true, true, near, model.StatusValid, operatorCoord, constNote(NoteOperatorConfirmed)},
	{true, false, anyDistance, model.StatusValid, geocodedCoord, func(s *rowState) string { return tag(noteGeocodedBy, s.provider) }},
	{false, true, anyDistance, model.StatusValid, operatorCoord, constNote(NoteOperatorFallback)},
	{false, false, anyDistance, model.StatusPending, noCoord, constNote(NoteNoCoordinates)},
}

func constNote(n string) func(*rowState) string {
	return func(*rowState) string { return n }
}

func (e *Engine) decide(s *rowState) model.AddressResult {
	geocoded := s.accepted != nil && s.accepted.Valid()
	dist := anyDistance
	if geocoded && s.hasOperator {
		meters := address.DistanceMeters(s.operator, *s.accepted)
		dist = near
		if meters > e.thresholds.DistanceMeters {
			dist = far
		}
		zap.L().Debug("reconcile: operator distance",
			zap.String("address", s.in.RawAddress),
			zap.Float64("meters", meters),
		)
	}

	for _, r := range finalDecisions {
		if r.geocoded != geocoded || r.operator != s.hasOperator {
			continue
		}
		if r.distance != anyDistance && r.distance != dist {
			continue
		}
		s.notes.Append(r.note(s))
		switch r.coord {
		case geocodedCoord:
			corrected := s.displayName
			if corrected == "" {
				corrected = s.in.RawAddress
			}
			return s.result(r.status, s.accepted, corrected)
		case operatorCoord:
			return s.result(r.status, &s.operator, s.in.RawAddress)
		default:
			return s.result(r.status, nil, s.in.RawAddress)
		}
	}

	// The table covers every combination of its two boolean columns.
	s.notes.Append(NoteNoCoordinates)
	return s.result(model.StatusPending, nil, s.in.RawAddress)
}
