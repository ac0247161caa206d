package geocode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/route-geocoder/internal/resilience"
)

const (
	locationIQSearchURL  = "https://us1.locationiq.com/v1/search.php"
	locationIQReverseURL = "https://us1.locationiq.com/v1/reverse.php"
	nominatimSearchURL   = "https://nominatim.openstreetmap.org/search"
	nominatimReverseURL  = "https://nominatim.openstreetmap.org/reverse"

	// DefaultUserAgent identifies the application to provider operators.
	// Nominatim's usage policy rejects anonymous clients.
	DefaultUserAgent = "route-geocoder/1.0"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Available() bool
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
	Reverse(ctx context.Context, lat, lon float64) (*Candidate, error)
	// Pace is the minimum delay the provider's usage policy asks for between calls.
	Pace() time.Duration
}

// HTTPProvider talks to an OSM-style geocoding API. LocationIQ and Nominatim
// share the same request and response shapes and differ only in endpoints,
// the API key and the required pacing.
type HTTPProvider struct {
	name         string
	searchURL    string
	reverseURL   string
	key          string
	requiresKey  bool
	pace         time.Duration
	httpClient   *http.Client
	userAgent    string
	countryCodes string
	language     string
}

// ProviderOption configures an HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ProviderOption {
	return func(p *HTTPProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithCountryCodes restricts searches to a comma-separated list of ISO
// 3166-1 alpha-2 codes. An empty value searches worldwide.
func WithCountryCodes(codes string) ProviderOption {
	return func(p *HTTPProvider) {
		p.countryCodes = codes
	}
}

// WithEndpoints overrides the search and reverse URLs, e.g. for a
// self-hosted Nominatim.
func WithEndpoints(searchURL, reverseURL string) ProviderOption {
	return func(p *HTTPProvider) {
		if searchURL != "" {
			p.searchURL = searchURL
		}
		if reverseURL != "" {
			p.reverseURL = reverseURL
		}
	}
}

// WithPace overrides the provider's post-call delay.
func WithPace(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		if d >= 0 {
			p.pace = d
		}
	}
}

// NewLocationIQ creates the keyed primary provider. It reports unavailable
// when key is empty.
func NewLocationIQ(key string, opts ...ProviderOption) *HTTPProvider {
	p := newHTTPProvider("locationiq", locationIQSearchURL, locationIQReverseURL, key, 500*time.Millisecond, opts)
	p.requiresKey = true
	return p
}

// NewNominatim creates the free OpenStreetMap fallback provider.
func NewNominatim(opts ...ProviderOption) *HTTPProvider {
	return newHTTPProvider("nominatim", nominatimSearchURL, nominatimReverseURL, "", time.Second, opts)
}

func newHTTPProvider(name, searchURL, reverseURL, key string, pace time.Duration, opts []ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		name:         name,
		searchURL:    searchURL,
		reverseURL:   reverseURL,
		key:          key,
		pace:         pace,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    DefaultUserAgent,
		countryCodes: "br",
		language:     "pt-BR",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return p.name }

// Available implements Provider.
func (p *HTTPProvider) Available() bool {
	return !p.requiresKey || p.key != ""
}

// Pace implements Provider.
func (p *HTTPProvider) Pace() time.Duration { return p.pace }

// Search implements Provider.
func (p *HTTPProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := p.params()
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	body, err := p.get(ctx, p.searchURL, params)
	if err != nil {
		return nil, err
	}
	return decodeSearch(body, p.name)
}

// Reverse implements Provider.
func (p *HTTPProvider) Reverse(ctx context.Context, lat, lon float64) (*Candidate, error) {
	params := p.params()
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	body, err := p.get(ctx, p.reverseURL, params)
	if err != nil {
		return nil, err
	}
	return decodeReverse(body, p.name)
}

func (p *HTTPProvider) params() url.Values {
	v := url.Values{
		"format":         {"json"},
		"addressdetails": {"1"},
	}
	if p.key != "" {
		v.Set("key", p.key)
	}
	return v
}

func (p *HTTPProvider) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s build request", p.name)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	if p.language != "" {
		req.Header.Set("Accept-Language", p.language)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s request", p.name)
	}
	defer resp.Body.Close() //nolint:errcheck

	// LocationIQ answers "Unable to geocode" with a 404 and a JSON error body;
	// the decoders turn that into an empty result.
	if (resp.StatusCode < 200 || resp.StatusCode > 299) && resp.StatusCode != http.StatusNotFound {
		return nil, resilience.NewStatusError(p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s read body", p.name)
	}
	return body, nil
}
