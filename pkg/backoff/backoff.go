// Package backoff provides exponential backoff with jitter for retry
// loops: panel reconnection attempts and vendor API retries.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Default backoff parameters used for panel reconnection.
const (
	// DefaultInitial is the initial retry delay.
	DefaultInitial = 1 * time.Second

	// DefaultMax is the maximum retry delay.
	DefaultMax = 60 * time.Second

	// DefaultMultiplier is the factor by which the delay increases.
	DefaultMultiplier = 2.0

	// DefaultJitter is the maximum jitter as a fraction of the base delay.
	DefaultJitter = 0.25
)

// Backoff calculates exponential backoff delays with jitter.
// The zero value is not usable; construct with New or NewWithConfig.
type Backoff struct {
	mu sync.Mutex

	// Current base delay (before jitter)
	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	// Random source for jitter
	rng *rand.Rand
}

// New creates a backoff calculator with default settings.
func New() *Backoff {
	return NewWithConfig(Config{})
}

// Config allows customizing backoff parameters.
// Zero fields fall back to the package defaults.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter is the maximum jitter as a fraction of the base delay.
	// Zero falls back to DefaultJitter; a negative value disables
	// jitter entirely.
	Jitter float64
}

// NewWithConfig creates a backoff calculator with custom settings.
func NewWithConfig(cfg Config) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = DefaultJitter
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Peek returns the current delay without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset restores the initial delay.
// Call this after a successful attempt.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of Next calls since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	jitterAmount := time.Duration(float64(d) * b.jitter * b.rng.Float64())
	return d + jitterAmount
}
