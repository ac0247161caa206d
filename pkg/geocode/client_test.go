package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paulistaJSON = `[
	{
		"lat": "-23.5613", "lon": "-46.6565",
		"display_name": "Avenida Paulista, 1000, Bela Vista, São Paulo, SP, Brasil",
		"address": {"road": "Avenida Paulista", "house_number": "1000", "suburb": "Bela Vista",
			"city": "São Paulo", "state": "São Paulo", "postcode": "01310-100", "country": "Brasil"}
	},
	{
		"lat": "-23.5600", "lon": "-46.6500",
		"display_name": "Paulista, São Paulo",
		"address": {"town": "Paulista", "neighbourhood": "Centro", "state": "Pernambuco"}
	}
]`

func jsonHandler(calls *atomic.Int32, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestForward_PrimarySucceeds_NoFallbackCall(t *testing.T) {
	var nomCalls atomic.Int32
	var gotQuery map[string]string
	var gotUA string

	liq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.php", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"key": q.Get("key"), "q": q.Get("q"), "limit": q.Get("limit"),
			"countrycodes": q.Get("countrycodes"), "format": q.Get("format"),
			"addressdetails": q.Get("addressdetails"),
		}
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, paulistaJSON)
	}))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(&nomCalls, http.StatusOK, `[]`))
	defer nom.Close()

	c := newTestClient("test-key", liq.URL, nom.URL)
	cands := c.Forward(context.Background(), "Av. Paulista, 1000, Bela Vista, São Paulo, SP")

	require.Len(t, cands, 2)
	assert.Equal(t, "locationiq", cands[0].Source)
	assert.InDelta(t, -23.5613, cands[0].Lat, 1e-9)
	assert.InDelta(t, -46.6565, cands[0].Lon, 1e-9)
	assert.Equal(t, "Avenida Paulista", cands[0].Components.Road)
	assert.Equal(t, "1000", cands[0].Components.HouseNumber)
	assert.Equal(t, "Paulista", cands[1].Components.City, "town used when city is missing")
	assert.Equal(t, "Centro", cands[1].Components.Suburb, "neighbourhood used when suburb is missing")

	assert.Equal(t, map[string]string{
		"key": "test-key", "q": "Av. Paulista, 1000, Bela Vista, São Paulo, SP", "limit": "3",
		"countrycodes": "br", "format": "json", "addressdetails": "1",
	}, gotQuery)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, int32(0), nomCalls.Load())
}

func TestForward_PrimaryFails_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"empty result", http.StatusOK, `[]`},
		{"not found object", http.StatusNotFound, `{"error":"Unable to geocode"}`},
		{"malformed json", http.StatusOK, `[{"lat":`},
		{"throttled", http.StatusTooManyRequests, `{"error":"Rate Limited"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			liq := httptest.NewServer(jsonHandler(nil, tt.status, tt.body))
			defer liq.Close()
			nom := httptest.NewServer(jsonHandler(nil, http.StatusOK, paulistaJSON))
			defer nom.Close()

			c := newTestClient("test-key", liq.URL, nom.URL)
			cands := c.Forward(context.Background(), "Avenida Paulista 1000")
			require.NotEmpty(t, cands)
			assert.Equal(t, "nominatim", cands[0].Source)
		})
	}
}

func TestForward_MissingKey_OnlyNominatim(t *testing.T) {
	var liqCalls, nomCalls atomic.Int32
	liq := httptest.NewServer(jsonHandler(&liqCalls, http.StatusOK, paulistaJSON))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(&nomCalls, http.StatusOK, paulistaJSON))
	defer nom.Close()

	c := newTestClient("", liq.URL, nom.URL)
	assert.Equal(t, []string{"nominatim"}, c.Available())

	cands := c.Forward(context.Background(), "Avenida Paulista 1000")
	require.NotEmpty(t, cands)
	assert.Equal(t, "nominatim", cands[0].Source)
	assert.Equal(t, int32(0), liqCalls.Load())
	assert.Equal(t, int32(1), nomCalls.Load())
}

func TestForward_AllProvidersEmpty(t *testing.T) {
	liq := httptest.NewServer(jsonHandler(nil, http.StatusOK, `[]`))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(nil, http.StatusBadGateway, ``))
	defer nom.Close()

	c := newTestClient("k", liq.URL, nom.URL)
	assert.Nil(t, c.Forward(context.Background(), "Rua Inexistente 999"))
	assert.Nil(t, c.Forward(context.Background(), ""))
}

func TestForward_SkipsUnparseableCoordinates(t *testing.T) {
	liq := httptest.NewServer(jsonHandler(nil, http.StatusOK,
		`[{"lat":"x","lon":"-46.6"},{"lat":"-23.5","lon":"-46.6","display_name":"ok"}]`))
	defer liq.Close()

	c := newTestClient("k", liq.URL, liq.URL)
	cands := c.Forward(context.Background(), "q")
	require.Len(t, cands, 1)
	assert.Equal(t, "ok", cands[0].DisplayName)
}

func TestForward_TimeoutFallsBack(t *testing.T) {
	liq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, paulistaJSON)
	}))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(nil, http.StatusOK, paulistaJSON))
	defer nom.Close()

	c := newTestClient("k", liq.URL, nom.URL, WithTimeout(50*time.Millisecond))
	cands := c.Forward(context.Background(), "Avenida Paulista 1000")
	require.NotEmpty(t, cands)
	assert.Equal(t, "nominatim", cands[0].Source)
}

func TestForward_BreakerSkipsFailingProvider(t *testing.T) {
	var liqCalls atomic.Int32
	liq := httptest.NewServer(jsonHandler(&liqCalls, http.StatusServiceUnavailable, ``))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(nil, http.StatusOK, paulistaJSON))
	defer nom.Close()

	c := newTestClient("k", liq.URL, nom.URL, WithBreakers(2, time.Hour))
	for range 4 {
		require.NotEmpty(t, c.Forward(context.Background(), "Avenida Paulista 1000"))
	}
	assert.Equal(t, int32(2), liqCalls.Load(), "breaker opens after two failures")
}

func TestForward_PausesWithProviderPace(t *testing.T) {
	liq := httptest.NewServer(jsonHandler(nil, http.StatusOK, `[]`))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(nil, http.StatusOK, paulistaJSON))
	defer nom.Close()

	var mu sync.Mutex
	var pauses []time.Duration
	c := newTestClient("k", liq.URL, nom.URL, WithPause(func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		pauses = append(pauses, d)
		return nil
	}))
	require.NotEmpty(t, c.Forward(context.Background(), "Avenida Paulista 1000"))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, pauses)
}

func TestForward_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(jsonHandler(&calls, http.StatusOK, paulistaJSON))
	defer srv.Close()

	hc := newRewriteClient(map[string]string{nominatimPrefix: srv.URL})
	c := NewClient([]Provider{NewNominatim(WithHTTPClient(hc))}, WithPause(noPause))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, c.Forward(ctx, "Avenida Paulista 1000"))
	assert.Equal(t, int32(0), calls.Load())
}

func TestReverse_Fallback(t *testing.T) {
	var gotLat, gotLon string
	liq := httptest.NewServer(jsonHandler(nil, http.StatusNotFound, `{"error":"Unable to geocode"}`))
	defer liq.Close()
	nom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		gotLat, gotLon = r.URL.Query().Get("lat"), r.URL.Query().Get("lon")
		_, _ = io.WriteString(w, `{"lat":"-23.5505","lon":"-46.6333","display_name":"Praça da Sé, São Paulo",
			"address":{"road":"Praça da Sé","suburb":"Sé","city":"São Paulo","state":"São Paulo"}}`)
	}))
	defer nom.Close()

	c := newTestClient("k", liq.URL, nom.URL)
	cand := c.Reverse(context.Background(), -23.5505, -46.6333)
	require.NotNil(t, cand)
	assert.Equal(t, "nominatim", cand.Source)
	assert.Equal(t, "Praça da Sé, São Paulo", cand.DisplayName)
	assert.Equal(t, "Sé", cand.Components.Suburb)
	assert.Equal(t, "-23.5505", gotLat)
	assert.Equal(t, "-46.6333", gotLon)
}

func TestReverse_NoAddress(t *testing.T) {
	liq := httptest.NewServer(jsonHandler(nil, http.StatusOK, `{"error":"Unable to geocode"}`))
	defer liq.Close()
	nom := httptest.NewServer(jsonHandler(nil, http.StatusOK, `{"error":"Unable to geocode"}`))
	defer nom.Close()

	c := newTestClient("k", liq.URL, nom.URL)
	assert.Nil(t, c.Reverse(context.Background(), 0.5, 0.5))
}

func TestProviderOptions(t *testing.T) {
	p := NewNominatim(
		WithEndpoints("http://osm.local/search", "http://osm.local/reverse"),
		WithUserAgent("custom/2.0"),
		WithCountryCodes(""),
		WithPace(0),
	)
	assert.Equal(t, "nominatim", p.Name())
	assert.True(t, p.Available())
	assert.Equal(t, time.Duration(0), p.Pace())
	assert.Equal(t, "http://osm.local/search", p.searchURL)
	assert.Equal(t, "custom/2.0", p.userAgent)
	assert.Empty(t, p.countryCodes)

	liq := NewLocationIQ("")
	assert.False(t, liq.Available())
	assert.Equal(t, 500*time.Millisecond, liq.Pace())
}
