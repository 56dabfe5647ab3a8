// Package resilience protects the synthesis endpoint from cascading
// failures. A clip-cache miss storm against a dead endpoint would otherwise
// hammer the network on every play request; the [Breaker] rejects calls fast
// once the endpoint has proven unhealthy and probes it again after a
// cooldown.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrUnavailable is returned by [Breaker.Do] while the breaker is open and
// the cooldown has not elapsed.
var ErrUnavailable = errors.New("resilience: endpoint unavailable, breaker open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrUnavailable] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerProbing allows a limited number of probe calls through to
	// decide whether the endpoint has recovered.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero values pick the defaults noted on
// each field.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// Trip is the number of consecutive failures that open the breaker.
	// Default 5.
	Trip int

	// Cooldown is how long the breaker stays open before probing again.
	// Default 30s.
	Cooldown time.Duration

	// Probes is how many successful probe calls close the breaker again.
	// Default 3.
	Probes int
}

// Breaker is a three-state circuit breaker (closed, open, probing). Safe for
// concurrent use.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probes   int

	mu         sync.Mutex
	state      BreakerState
	failures   int
	lastFail   time.Time
	probeCalls int
	probeFails int
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	return &Breaker{
		name:     cfg.Name,
		trip:     cfg.Trip,
		cooldown: cfg.Cooldown,
		probes:   cfg.Probes,
	}
}

// Do runs fn if the breaker allows it. While open it returns
// [ErrUnavailable] without calling fn; once the cooldown has elapsed a
// limited number of probe calls pass through.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFail) < b.cooldown {
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.state = BreakerProbing
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("breaker probing endpoint after cooldown", "name", b.name)

	case BreakerProbing:
		if b.probeCalls >= b.probes {
			b.mu.Unlock()
			return ErrUnavailable
		}
	}
	probing := b.state == BreakerProbing
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
	} else {
		b.succeed(probing)
	}
	return err
}

// fail updates state after a failed call. Caller holds b.mu.
func (b *Breaker) fail(probing bool) {
	b.lastFail = time.Now()

	if probing {
		b.probeFails++
		b.state = BreakerOpen
		b.failures = b.trip
		slog.Warn("breaker re-opened, probe failed", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.trip {
		b.state = BreakerOpen
		slog.Warn("breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures,
		)
	}
}

// succeed updates state after a successful call. Caller holds b.mu.
func (b *Breaker) succeed(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = BreakerClosed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("breaker closed, endpoint recovered", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports [BreakerProbing]; the transition itself happens on the
// next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.lastFail) >= b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probeCalls = 0
	b.probeFails = 0
	slog.Info("breaker manually reset", "name", b.name)
}
