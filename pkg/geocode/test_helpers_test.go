package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func noPause(context.Context, time.Duration) error { return nil }

// newRewriteClient creates an HTTP client that sends every request whose URL
// starts with a key of routes to the mapped test server.
func newRewriteClient(routes map[string]string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, routes: routes},
	}
}

type rewriteTransport struct {
	base   http.RoundTripper
	routes map[string]string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, target := range t.routes {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		parsed, err := req.URL.Parse(target + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq := req.Clone(req.Context())
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

const (
	locationIQPrefix = "https://us1.locationiq.com/v1"
	nominatimPrefix  = "https://nominatim.openstreetmap.org"
)

// newTestClient wires both providers to test servers with limiting and pacing disabled.
func newTestClient(key, liqURL, nomURL string, opts ...Option) *Client {
	hc := newRewriteClient(map[string]string{
		locationIQPrefix: liqURL,
		nominatimPrefix:  nomURL,
	})
	providers := []Provider{
		NewLocationIQ(key, WithHTTPClient(hc)),
		NewNominatim(WithHTTPClient(hc)),
	}
	base := []Option{
		WithPause(noPause),
		WithRateLimiter("locationiq", newTestLimiter()),
		WithRateLimiter("nominatim", newTestLimiter()),
	}
	return NewClient(providers, append(base, opts...)...)
}
