// Package resilience tracks the health of external geocoding providers so a
// failing provider is skipped instead of slowing down every row of a batch.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State represents the state of a breaker.
type State int

const (
	// Closed is the normal operating state; calls flow through.
	Closed State = iota
	// Open means the provider failed too often; calls are skipped.
	Open
	// HalfOpen lets a single probe call through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Check when the breaker is open.
var ErrOpen = eris.New("resilience: provider breaker is open")

// Breaker opens after Threshold consecutive trip-worthy failures and stays open
// for Cooldown before allowing one probe.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a breaker for the named provider. Non-positive arguments
// fall back to 5 failures and 30 seconds.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// Check returns ErrOpen when calls to the provider should be skipped.
func (b *Breaker) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.nowFunc().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.transition(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of a call back into the breaker. Only errors that
// IsTransient accepts count as failures; a bad request is the caller's fault
// and says nothing about provider health. A call canceled by the caller leaves
// the state unchanged and frees the half-open probe slot.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		b.probing = false
		return
	}

	if err == nil || !IsTransient(err) {
		if b.state == HalfOpen {
			b.transition(Closed)
		}
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	switch b.state {
	case Closed:
		if b.failures >= b.threshold {
			b.openedAt = b.nowFunc()
			b.transition(Open)
		}
	case HalfOpen:
		b.openedAt = b.nowFunc()
		b.probing = false
		b.transition(Open)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.nowFunc().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	zap.L().Info("resilience: provider breaker state change",
		zap.String("provider", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
