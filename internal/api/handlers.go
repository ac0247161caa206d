package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/export"
	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/reconcile"
	"github.com/sells-group/route-geocoder/internal/store"
)

const (
	msgNotArray       = "Input must be an array of addresses."
	msgInvalidBody    = "Invalid request body."
	msgCoordsRequired = "Latitude (lat) and Longitude (lon) are required."
	msgNoAddress      = "No address found for the coordinates."
	msgNoLearned      = "No learned location for this address."
)

// maxBodyBytes caps request bodies; a large route batch is a few MB.
const maxBodyBytes = 32 << 20

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Addresses json.RawMessage `json:"addresses"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	raw := bytes.TrimSpace(req.Addresses)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(w, http.StatusBadRequest, msgNotArray)
		return
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if s.maxBatch > 0 && len(rows) > s.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "Batch exceeds "+strconv.Itoa(s.maxBatch)+" addresses.")
		return
	}

	id := RequestID(r.Context())
	inputs, rejected := decodeRows(rows)
	zap.L().Info("api: batch received",
		zap.String("request_id", id),
		zap.Int("rows", len(rows)),
		zap.Int("invalid", len(rejected)),
	)

	results, err := s.engine.Run(r.Context(), inputs)
	if err != nil {
		zap.L().Error("api: batch failed", zap.String("request_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results = mergeRows(len(rows), results, rejected)
	zap.L().Info("api: batch done", zap.String("request_id", id), zap.String("summary", reconcile.Summary(results)))

	if r.URL.Query().Get("format") == "geojson" {
		writeJSON(w, http.StatusOK, export.FeatureCollection(results))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// decodeRows decodes each address on its own. Rows that do not fit
// AddressInput are returned as pending results keyed by their position.
func decodeRows(rows []json.RawMessage) ([]model.AddressInput, map[int]model.AddressResult) {
	inputs := make([]model.AddressInput, 0, len(rows))
	rejected := make(map[int]model.AddressResult)
	for i, row := range rows {
		var in model.AddressInput
		if err := json.Unmarshal(row, &in); err != nil {
			zap.L().Warn("api: invalid address row", zap.Int("row", i), zap.Error(err))
			rejected[i] = reconcile.InvalidInput(rawAddressText(row))
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, rejected
}

// rawAddressText recovers the submitted address text from a row that failed
// to decode, whatever JSON type it was sent as.
func rawAddressText(row json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return ""
	}
	v := bytes.TrimSpace(fields["rawAddress"])
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		return str
	}
	return string(v)
}

// mergeRows puts rejected rows back at their positions around the engine results.
func mergeRows(total int, results []model.AddressResult, rejected map[int]model.AddressResult) []model.AddressResult {
	if len(rejected) == 0 {
		return results
	}
	out := make([]model.AddressResult, 0, total)
	next := 0
	for i := range total {
		if r, ok := rejected[i]; ok {
			out = append(out, r)
			continue
		}
		if next < len(results) {
			out = append(out, results[next])
			next++
		}
	}
	return out
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, msgCoordsRequired)
		return
	}
	if !(address.Coordinate{Lat: *req.Lat, Lon: *req.Lon}).Valid() {
		writeError(w, http.StatusBadRequest, "Invalid coordinates.")
		return
	}

	c := s.engine.Reverse(r.Context(), *req.Lat, *req.Lon)
	if c == nil || c.DisplayName == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgNoAddress})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"display_name": c.DisplayName,
		"address":      c.Components,
	})
}

func (s *Server) handlePutLearned(w http.ResponseWriter, r *http.Request) {
	var in model.AddressInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if in.RawAddress == "" {
		writeError(w, http.StatusBadRequest, "rawAddress is required.")
		return
	}
	c, ok := address.ParseCoordinate(string(in.Latitude), string(in.Longitude))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid coordinates.")
		return
	}

	stored, err := s.store.PutLocation(r.Context(), store.NewLocation(in, c))
	if err != nil {
		zap.L().Error("api: save learned location", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not save the location.")
		return
	}
	zap.L().Info("api: learned location saved", zap.String("key", stored.Key))
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetLearned(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("rawAddress") == "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		locs, err := s.store.ListLocations(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not list learned locations.")
			return
		}
		if locs == nil {
			locs = []model.LearnedLocation{}
		}
		writeJSON(w, http.StatusOK, locs)
		return
	}

	key := address.LearningKey(model.AddressInput{
		RawAddress: q.Get("rawAddress"),
		Bairro:     q.Get("bairro"),
		Cidade:     q.Get("cidade"),
		Estado:     q.Get("estado"),
	})
	loc, err := s.store.GetLocation(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgNoLearned})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not read the learned location.")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
