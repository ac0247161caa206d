package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/route-geocoder/internal/export"
	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/sheet"
)

const (
	formatJSON    = "json"
	formatXLSX    = "xlsx"
	formatGeoJSON = "geojson"
)

// resolveFormat picks the output format from the flag, then the output file
// extension, defaulting to JSON.
func resolveFormat(out, format string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".xlsx":
			format = formatXLSX
		case ".geojson":
			format = formatGeoJSON
		default:
			format = formatJSON
		}
	}
	switch format {
	case formatJSON, formatGeoJSON:
		return format, nil
	case formatXLSX:
		if out == "" {
			return "", eris.New("xlsx output requires --out")
		}
		return format, nil
	default:
		return "", eris.Errorf("unknown output format %q (json, xlsx, geojson)", format)
	}
}

// writeOutput writes results to out, or to stdout when out is empty.
func writeOutput(stdout io.Writer, out, format string, results []model.AddressResult) error {
	if format == formatXLSX {
		return sheet.WriteResults(out, results)
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == formatGeoJSON {
		return export.WriteGeoJSON(w, results)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(results), "encode results")
}
