package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Status is the confidence classification attached to every result row.
type Status string

const (
	// StatusValid means the emitted coordinate was confirmed or is the best evidence available.
	StatusValid Status = "valid"
	// StatusPending means a human must place the pin on the map.
	StatusPending Status = "pending"
	// StatusUpdated means a coordinate taught by a user was reused.
	StatusUpdated Status = "atualizado"
)

// CoordText is an operator-entered coordinate component. Spreadsheets export
// latitude/longitude either as JSON numbers or as strings (often with a comma
// decimal separator), so both forms are accepted and kept as text.
type CoordText string

// UnmarshalJSON accepts a JSON string, number or null.
func (c *CoordText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode coordinate string")
		}
		*c = CoordText(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode coordinate number")
	}
	*c = CoordText(n.String())
	return nil
}

// FromFloat formats a float coordinate component as CoordText.
func FromFloat(f float64) CoordText {
	return CoordText(strconv.FormatFloat(f, 'f', -1, 64))
}

// AddressInput is one row submitted for geocoding. The engine never mutates it.
type AddressInput struct {
	RawAddress string    `json:"rawAddress"`
	Bairro     string    `json:"bairro,omitempty"`
	Cidade     string    `json:"cidade,omitempty"`
	Estado     string    `json:"estado,omitempty"`
	Latitude   CoordText `json:"latitude,omitempty"`
	Longitude  CoordText `json:"longitude,omitempty"`
	Learned    bool      `json:"learned,omitempty"`
}

// AddressResult is the single output row produced for an AddressInput.
type AddressResult struct {
	OriginalAddress  string `json:"originalAddress"`
	CorrectedAddress string `json:"correctedAddress"`
	Latitude         string `json:"latitude,omitempty"`
	Longitude        string `json:"longitude,omitempty"`
	Status           Status `json:"status"`
	Note             string `json:"note"`
	SearchUsed       string `json:"searchUsed"`
	DisplayName      string `json:"display_name,omitempty"`
	Learned          bool   `json:"learned"`

	// Passed through from the input so the map editor can regroup rows.
	Bairro string `json:"bairro,omitempty"`
	Cidade string `json:"cidade,omitempty"`
	Estado string `json:"estado,omitempty"`
}

// HasCoordinate reports whether the result carries a coordinate pair.
func (r AddressResult) HasCoordinate() bool {
	return r.Latitude != "" && r.Longitude != ""
}
