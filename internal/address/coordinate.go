package address

import (
	"math"
	"strconv"
	"strings"
)

// earthRadiusMeters is the mean Earth radius used by DistanceMeters.
const earthRadiusMeters = 6371e3

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// ParseDegrees parses an operator-entered coordinate component. A comma is
// accepted as the decimal separator. Returns false for empty, non-numeric or
// non-finite input.
func ParseDegrees(text string) (float64, bool) {
	s := strings.TrimSpace(strings.Replace(text, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseCoordinate parses a latitude/longitude text pair and reports whether
// the result is a valid coordinate.
func ParseCoordinate(lat, lon string) (Coordinate, bool) {
	la, okLat := ParseDegrees(lat)
	lo, okLon := ParseDegrees(lon)
	if !okLat || !okLon {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: la, Lon: lo}
	return c, c.Valid()
}

// Valid reports whether c is inside the WGS84 range and is not the (0,0)
// placeholder that spreadsheets emit for missing data.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return c.Lat != 0 || c.Lon != 0
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDegrees renders a coordinate component with six fraction digits
// (about 11 cm of precision).
func FormatDegrees(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
