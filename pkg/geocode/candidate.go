package geocode

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Components are the structured address fields of a candidate.
type Components struct {
	Road        string `json:"road,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	City        string `json:"city,omitempty"`
	County      string `json:"county,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Candidate is one provider result.
type Candidate struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Components  Components
	Source      string // provider name
}

// place is the OSM-style JSON object returned by both LocationIQ and Nominatim.
type place struct {
	Lat         string     `json:"lat"`
	Lon         string     `json:"lon"`
	DisplayName string     `json:"display_name"`
	Address     osmAddress `json:"address"`
	Error       string     `json:"error"`
}

type osmAddress struct {
	Road          string `json:"road"`
	HouseNumber   string `json:"house_number"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
}

func (a osmAddress) components() Components {
	c := Components{
		Road:        a.Road,
		HouseNumber: a.HouseNumber,
		Suburb:      a.Suburb,
		City:        a.City,
		County:      a.County,
		State:       a.State,
		Postcode:    a.Postcode,
		Country:     a.Country,
	}
	if c.City == "" {
		c.City = a.Town
	}
	if c.City == "" {
		c.City = a.Village
	}
	if c.Suburb == "" {
		c.Suburb = a.Neighbourhood
	}
	return c
}

// candidate converts p; ok is false when the coordinates do not parse.
func (p place) candidate(source string) (Candidate, bool) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Candidate{}, false
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Candidate{}, false
	}
	return Candidate{
		Lat:         lat,
		Lon:         lon,
		DisplayName: p.DisplayName,
		Components:  p.Address.components(),
		Source:      source,
	}, true
}

// decodeSearch parses a search response body. Providers answer "nothing found"
// with an object carrying an error message instead of an empty array.
func decodeSearch(body []byte, source string) ([]Candidate, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var p place
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, eris.Wrapf(err, "geocode: %s parse search response", source)
		}
		if p.Error != "" {
			return nil, nil
		}
		return nil, eris.Errorf("geocode: %s search returned an object", source)
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s parse search response", source)
	}
	out := make([]Candidate, 0, len(places))
	for _, p := range places {
		if c, ok := p.candidate(source); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// decodeReverse parses a reverse response body. A payload with an error
// field means no address exists at the point.
func decodeReverse(body []byte, source string) (*Candidate, error) {
	var p place
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s parse reverse response", source)
	}
	if p.Error != "" {
		return nil, nil
	}
	c, ok := p.candidate(source)
	if !ok {
		return nil, nil
	}
	return &c, nil
}
