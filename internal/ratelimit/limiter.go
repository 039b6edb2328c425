// Package ratelimit issues upstream request permits at a fixed average
// rate per routing location. The limiter is burst-free: permits are
// spaced evenly on a single monotonic timeline, and concurrent callers
// are serialized into distinct scheduled slots.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Spec names one limiter: a routing location with its sustained
// calls/period window.
type Spec struct {
	Location string
	Calls    int
	Period   time.Duration
}

// Interval is the minimum spacing between two permits.
func (s Spec) Interval() time.Duration {
	return s.Period / time.Duration(s.Calls)
}

func (s Spec) validate() error {
	if s.Calls <= 0 {
		return fmt.Errorf("ratelimit: calls must be > 0, got %d", s.Calls)
	}
	if s.Period <= 0 {
		return fmt.Errorf("ratelimit: period must be > 0, got %s", s.Period)
	}
	return nil
}

// Limiter schedules permits on a single timeline. Each caller is
// assigned scheduled = max(now, nextAt) under a short critical
// section; the wait happens outside the lock so the critical section
// never blocks.
type Limiter struct {
	interval time.Duration

	mu     sync.Mutex
	nextAt time.Time // zero until first acquire
}

// NewLimiter builds a limiter for spec.
func NewLimiter(spec Spec) (*Limiter, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &Limiter{interval: spec.Interval()}, nil
}

// Acquire blocks until a permit is issued or ctx is done. The limiter
// never rejects; the only error is ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) error {
	now := time.Now()

	l.mu.Lock()
	scheduled := l.nextAt
	if scheduled.Before(now) {
		scheduled = now
	}
	l.nextAt = scheduled.Add(l.interval)
	l.mu.Unlock()

	delay := scheduled.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExportFunc receives the observed permit rate for a location.
type ExportFunc func(location string, ratePerSec float64)

// TelemetryLimiter wraps a Limiter and reports the observed permit
// rate over a sliding window of one period.
type TelemetryLimiter struct {
	inner    *Limiter
	location string
	period   time.Duration
	export   ExportFunc

	mu    sync.Mutex
	times []time.Time
}

// NewTelemetryLimiter wraps inner with rate telemetry for location.
func NewTelemetryLimiter(inner *Limiter, location string, period time.Duration, export ExportFunc) *TelemetryLimiter {
	return &TelemetryLimiter{
		inner:    inner,
		location: location,
		period:   period,
		export:   export,
	}
}

// Acquire issues a permit through the wrapped limiter, then records it
// in the sliding window and exports the current rate.
func (t *TelemetryLimiter) Acquire(ctx context.Context) error {
	if err := t.inner.Acquire(ctx); err != nil {
		return err
	}

	now := time.Now()
	cutoff := now.Add(-t.period)

	t.mu.Lock()
	t.times = append(t.times, now)
	trim := 0
	for trim < len(t.times) && !t.times[trim].After(cutoff) {
		trim++
	}
	t.times = t.times[trim:]
	rate := float64(len(t.times)) / t.period.Seconds()
	t.mu.Unlock()

	if t.export != nil {
		t.export(t.location, rate)
	}
	return nil
}

// WindowLen returns the number of permits inside the current window.
func (t *TelemetryLimiter) WindowLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.times)
}

// Registry memoizes one telemetry-wrapped limiter per distinct
// (location, calls, period) spec. It is owned by whoever constructs
// it, typically the fetch client, never a package global.
type Registry struct {
	export ExportFunc

	mu       sync.Mutex
	limiters map[Spec]*TelemetryLimiter
}

// NewRegistry builds an empty registry; export may be nil.
func NewRegistry(export ExportFunc) *Registry {
	return &Registry{
		export:   export,
		limiters: make(map[Spec]*TelemetryLimiter),
	}
}

// For returns the limiter for spec, creating it on first use. The
// registry is never evicted; the limiter set is small and bounded by
// the shard count.
func (r *Registry) For(spec Spec) (*TelemetryLimiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters[spec]; ok {
		return lim, nil
	}

	core, err := NewLimiter(spec)
	if err != nil {
		return nil, err
	}
	lim := NewTelemetryLimiter(core, spec.Location, spec.Period, r.export)
	r.limiters[spec] = lim
	return lim, nil
}
