// Package export renders reconciliation results as GeoJSON for map editors.
package export

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
)

// FeatureCollection builds one Point feature per result that carries a
// coordinate. Feature IDs are the result's index in the batch so rows
// without a pin can still be matched back by the editor.
func FeatureCollection(results []model.AddressResult) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(results))}
	for i, r := range results {
		if !r.HasCoordinate() {
			continue
		}
		c, ok := address.ParseCoordinate(r.Latitude, r.Longitude)
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}),
			Properties: properties(i, r),
		})
	}
	return fc
}

func properties(i int, r model.AddressResult) map[string]any {
	props := map[string]any{
		"index":            i,
		"originalAddress":  r.OriginalAddress,
		"correctedAddress": r.CorrectedAddress,
		"status":           string(r.Status),
		"note":             r.Note,
		"learned":          r.Learned,
	}
	if r.DisplayName != "" {
		props["display_name"] = r.DisplayName
	}
	for k, v := range map[string]string{"bairro": r.Bairro, "cidade": r.Cidade, "estado": r.Estado} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// WriteGeoJSON encodes the FeatureCollection for results to w.
func WriteGeoJSON(w io.Writer, results []model.AddressResult) error {
	data, err := json.Marshal(FeatureCollection(results))
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
