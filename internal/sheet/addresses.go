package sheet

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
)

// Column headers recognized in an address spreadsheet, keyed by the header
// after normalization with spaces removed.
var headerFields = map[string]string{
	"endereco":           "rawAddress",
	"enderecocompleto":   "rawAddress",
	"logradouro":         "rawAddress",
	"address":            "rawAddress",
	"rawaddress":         "rawAddress",
	"destinationaddress": "rawAddress",
	"bairro":             "bairro",
	"neighborhood":       "bairro",
	"cidade":             "cidade",
	"municipio":          "cidade",
	"city":               "cidade",
	"estado":             "estado",
	"uf":                 "estado",
	"state":              "estado",
	"latitude":           "latitude",
	"lat":                "latitude",
	"longitude":          "longitude",
	"lon":                "longitude",
	"lng":                "longitude",
	"learned":            "learned",
	"aprendido":          "learned",
}

// ReadAddresses loads a batch from an .xlsx, .csv or .json file.
func ReadAddresses(path string, opts XLSXOptions) ([]model.AddressInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, opts)
		if err != nil {
			return nil, err
		}
		return ParseRows(rows)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "sheet: open csv")
		}
		defer f.Close() //nolint:errcheck
		rows, err := ReadCSV(f)
		if err != nil {
			return nil, err
		}
		return ParseRows(rows)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "sheet: read json")
		}
		return DecodeJSON(data)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseRows maps a header row plus data rows to address inputs. Rows with an
// empty address cell are skipped.
func ParseRows(rows [][]string) ([]model.AddressInput, error) {
	if len(rows) == 0 {
		return nil, eris.New("sheet: no header row")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ReplaceAll(address.Normalize(h), " ", "")
		if field, ok := headerFields[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["rawAddress"]; !ok {
		return nil, eris.Errorf("sheet: no address column in header %q", rows[0])
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]model.AddressInput, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := cell(row, "rawAddress")
		if raw == "" {
			continue
		}
		out = append(out, model.AddressInput{
			RawAddress: raw,
			Bairro:     cell(row, "bairro"),
			Cidade:     cell(row, "cidade"),
			Estado:     cell(row, "estado"),
			Latitude:   model.CoordText(cell(row, "latitude")),
			Longitude:  model.CoordText(cell(row, "longitude")),
			Learned:    parseBool(cell(row, "learned")),
		})
	}
	return out, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "sim", "s", "x", "yes":
		return true
	}
	return false
}

// DecodeJSON accepts either a bare array of inputs or an object with an
// "addresses" array.
func DecodeJSON(data []byte) ([]model.AddressInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Addresses json.RawMessage `json:"addresses"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, eris.Wrap(err, "sheet: decode json")
		}
		data = bytes.TrimSpace(wrapper.Addresses)
	}
	if len(data) == 0 || data[0] != '[' {
		return nil, eris.New("sheet: input must be an array of addresses")
	}
	var inputs []model.AddressInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, eris.Wrap(err, "sheet: decode addresses")
	}
	return inputs, nil
}
