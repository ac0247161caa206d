package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/reconcile"
	"github.com/sells-group/route-geocoder/internal/store"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

type fakeEngine struct {
	inputs  []model.AddressInput
	results []model.AddressResult
	err     error
	reverse *geocode.Candidate
}

func (f *fakeEngine) Run(_ context.Context, inputs []model.AddressInput) ([]model.AddressResult, error) {
	f.inputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]model.AddressResult, len(inputs))
	for i, in := range inputs {
		out[i] = model.AddressResult{OriginalAddress: in.RawAddress, CorrectedAddress: in.RawAddress, Status: model.StatusPending}
	}
	return out, nil
}

func (f *fakeEngine) Reverse(_ context.Context, _, _ float64) *geocode.Candidate {
	return f.reverse
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "learned.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealth(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestBatch_OK(t *testing.T) {
	eng := &fakeEngine{}
	h := NewServer(eng).Routes()

	rec := do(t, h, http.MethodPost, "/batch-geocode",
		`{"addresses":[{"rawAddress":"Rua A","latitude":-8.05,"longitude":"-34,9"},{"rawAddress":"Rua B"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var results []model.AddressResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "Rua B", results[1].OriginalAddress)
	assert.Equal(t, model.CoordText("-8.05"), eng.inputs[0].Latitude)
	assert.Equal(t, model.CoordText("-34,9"), eng.inputs[0].Longitude)
}

func TestBatch_InvalidRowsKeepTheirPlace(t *testing.T) {
	tests := []struct {
		name string
		bad  string
		want string
	}{
		{"learned as string", `{"rawAddress":"Rua B, 2","learned":"true"}`, "Rua B, 2"},
		{"latitude as bool", `{"rawAddress":"Rua B, 2","latitude":true}`, "Rua B, 2"},
		{"rawAddress as number", `{"rawAddress":12345}`, "12345"},
		{"not an object", `"Rua B, 2"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			h := NewServer(eng).Routes()

			body := `{"addresses":[{"rawAddress":"Rua A, 1"},` + tt.bad + `,{"rawAddress":"Rua C, 3"}]}`
			rec := do(t, h, http.MethodPost, "/batch-geocode", body)
			require.Equal(t, http.StatusOK, rec.Code)

			var results []model.AddressResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
			require.Len(t, results, 3)
			assert.Equal(t, "Rua A, 1", results[0].OriginalAddress)
			assert.Equal(t, "Rua C, 3", results[2].OriginalAddress)

			assert.Equal(t, model.StatusPending, results[1].Status)
			assert.Equal(t, reconcile.NoteInvalidInput, results[1].Note)
			assert.Equal(t, tt.want, results[1].CorrectedAddress)

			require.Len(t, eng.inputs, 2, "valid rows still reach the engine")
		})
	}
}

func TestMergeRows(t *testing.T) {
	results := []model.AddressResult{{OriginalAddress: "a"}, {OriginalAddress: "c"}}
	rejected := map[int]model.AddressResult{
		1: {OriginalAddress: "b"},
		3: {OriginalAddress: "d"},
	}
	got := mergeRows(4, results, rejected)
	require.Len(t, got, 4)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, want, got[i].OriginalAddress)
	}
	assert.Equal(t, results, mergeRows(2, results, nil))
}

func TestBatch_RejectsNonArray(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	for _, body := range []string{`{}`, `{"addresses":{"rawAddress":"x"}}`, `{"addresses":"Rua A"}`, `{"addresses":null}`} {
		rec := do(t, h, http.MethodPost, "/batch-geocode", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msgNotArray, decodeMap(t, rec)["error"], body)
	}
}

func TestBatch_MalformedJSON(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	rec := do(t, h, http.MethodPost, "/batch-geocode", `{"addresses":[`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatch_EngineError(t *testing.T) {
	h := NewServer(&fakeEngine{err: errors.New("boom")}).Routes()
	rec := do(t, h, http.MethodPost, "/batch-geocode", `{"addresses":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", decodeMap(t, rec)["error"])
}

func TestBatch_MaxBatch(t *testing.T) {
	h := NewServer(&fakeEngine{}, WithMaxBatch(1)).Routes()
	rec := do(t, h, http.MethodPost, "/batch-geocode", `{"addresses":[{"rawAddress":"a"},{"rawAddress":"b"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBatch_GeoJSON(t *testing.T) {
	eng := &fakeEngine{results: []model.AddressResult{
		{OriginalAddress: "Rua A", Latitude: "-8.050000", Longitude: "-34.900000", Status: model.StatusValid},
		{OriginalAddress: "Rua B", Status: model.StatusPending},
	}}
	h := NewServer(eng).Routes()

	rec := do(t, h, http.MethodPost, "/batch-geocode?format=geojson", `{"addresses":[{"rawAddress":"Rua A"},{"rawAddress":"Rua B"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeMap(t, rec)
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Len(t, doc["features"], 1)
}

func TestReverse(t *testing.T) {
	eng := &fakeEngine{reverse: &geocode.Candidate{
		DisplayName: "Rua das Flores, Centro, Curitiba",
		Components:  geocode.Components{Road: "Rua das Flores", City: "Curitiba"},
	}}
	h := NewServer(eng).Routes()

	rec := do(t, h, http.MethodPost, "/reverse-geocode", `{"lat":-25.4284,"lon":-49.2733}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"display_name":"Rua das Flores, Centro, Curitiba","address":{"road":"Rua das Flores","city":"Curitiba"}}`, rec.Body.String())
}

func TestReverse_Errors(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()

	rec := do(t, h, http.MethodPost, "/reverse-geocode", `{"lat":-25.4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgCoordsRequired, decodeMap(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/reverse-geocode", `{"lat":120,"lon":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/reverse-geocode", `{"lat":-25.4,"lon":-49.2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"No address found for the coordinates."}`, rec.Body.String())
}

func TestLearned_NoStore(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	rec := do(t, h, http.MethodGet, "/learned-locations?rawAddress=Rua+A", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLearned_PutAndGet(t *testing.T) {
	h := NewServer(&fakeEngine{}, WithStore(newTestStore(t))).Routes()

	rec := do(t, h, http.MethodPost, "/learned-locations",
		`{"rawAddress":"Rua das Flores, 12","bairro":"Centro","cidade":"Curitiba","estado":"PR","latitude":"-25,4284","longitude":-49.2733}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var stored model.LearnedLocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.InDelta(t, -25.4284, stored.Latitude, 1e-9)

	rec = do(t, h, http.MethodGet, "/learned-locations?rawAddress=RUA+DAS+FLORES,+12&bairro=centro&cidade=Curitiba&estado=PR", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.LearnedLocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.ID)

	rec = do(t, h, http.MethodGet, "/learned-locations?rawAddress=Rua+Inexistente", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/learned-locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.LearnedLocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestLearned_PutInvalid(t *testing.T) {
	h := NewServer(&fakeEngine{}, WithStore(newTestStore(t))).Routes()

	rec := do(t, h, http.MethodPost, "/learned-locations", `{"rawAddress":"Rua A","latitude":"abc","longitude":"-49"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/learned-locations", `{"latitude":"-25","longitude":"-49"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	req := httptest.NewRequest(http.MethodOptions, "/batch-geocode", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "apikey, content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestID_Propagated(t *testing.T) {
	h := NewServer(&fakeEngine{}).Routes()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
