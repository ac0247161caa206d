// Package geocode provides forward and reverse geocoding of Brazilian
// addresses via LocationIQ (primary) and Nominatim (fallback).
package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/route-geocoder/internal/resilience"
)

// Option configures the Client.
type Option func(*Client)

// WithLimit sets the maximum number of candidates requested per search.
func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPause replaces the post-call delay. Tests pass a no-op.
func WithPause(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.pause = fn
		}
	}
}

// WithRateLimiter overrides the limiter for the named provider.
func WithRateLimiter(provider string, l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiters[provider] = l
	}
}

// WithBreakers configures per-provider breakers. A threshold of zero
// disables them.
func WithBreakers(threshold int, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breakerThreshold = threshold
		c.breakerCooldown = cooldown
	}
}

// Client cascades forward and reverse lookups across providers in order.
// Provider failures are logged and absorbed; an empty answer is the only
// failure signal callers see.
type Client struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	breakers  map[string]*resilience.Breaker
	limit     int
	timeout   time.Duration
	pause     func(ctx context.Context, d time.Duration) error

	breakerThreshold int
	breakerCooldown  time.Duration
}

// NewClient creates a Client over providers, tried in the given order.
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{
		providers:        providers,
		limiters:         make(map[string]*rate.Limiter),
		breakers:         make(map[string]*resilience.Breaker),
		limit:            3,
		timeout:          10 * time.Second,
		pause:            sleep,
		breakerThreshold: 5,
		breakerCooldown:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range providers {
		// One token per pace interval keeps call spacing when rows run in parallel.
		if _, ok := c.limiters[p.Name()]; !ok {
			limit := rate.Inf
			if p.Pace() > 0 {
				limit = rate.Every(p.Pace())
			}
			c.limiters[p.Name()] = rate.NewLimiter(limit, 1)
		}
		if c.breakerThreshold > 0 {
			c.breakers[p.Name()] = resilience.NewBreaker(p.Name(), c.breakerThreshold, c.breakerCooldown)
		}
	}
	return c
}

// Available returns the names of providers that can be called.
func (c *Client) Available() []string {
	var names []string
	for _, p := range c.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Forward searches for query and returns the first non-empty candidate set.
func (c *Client) Forward(ctx context.Context, query string) []Candidate {
	if query == "" {
		return nil
	}
	for _, p := range c.providers {
		cands, ok := call(ctx, c, p, "search", func(ctx context.Context) ([]Candidate, error) {
			return p.Search(ctx, query, c.limit)
		})
		if ok && len(cands) > 0 {
			return cands
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// Reverse returns the address at a coordinate from the first provider that
// knows one.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) *Candidate {
	for _, p := range c.providers {
		cand, ok := call(ctx, c, p, "reverse", func(ctx context.Context) (*Candidate, error) {
			return p.Reverse(ctx, lat, lon)
		})
		if ok && cand != nil {
			return cand
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// call runs one provider attempt under its breaker, limiter and timeout, then
// honors the provider's pace. ok is false when the attempt was skipped or failed.
func call[T any](ctx context.Context, c *Client, p Provider, op string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	if !p.Available() {
		return zero, false
	}

	log := zap.L().With(zap.String("provider", p.Name()), zap.String("op", op))

	if lim := c.limiters[p.Name()]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			log.Debug("geocode: rate limit wait aborted", zap.Error(err))
			return zero, false
		}
	}

	// Checked after the wait so an admitted half-open probe always reports back.
	breaker := c.breakers[p.Name()]
	if breaker != nil {
		if err := breaker.Check(); err != nil {
			log.Debug("geocode: provider skipped", zap.Error(err))
			return zero, false
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	v, err := fn(callCtx)
	cancel()

	if breaker != nil {
		breaker.Record(err)
	}
	if err != nil {
		log.Warn("geocode: provider call failed, trying next", zap.Error(err))
		return zero, false
	}

	if err := c.pause(ctx, p.Pace()); err != nil {
		return zero, false
	}
	return v, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
