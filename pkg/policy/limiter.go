// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/switchyard-io/switchyard/pkg/core"
	"github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/registry"
)

const (
	// retention is how long admitted timestamps are kept; it doubles as the
	// hourly window.
	retention = time.Hour

	// minuteWindow is the trailing interval counted against PerMinute.
	minuteWindow = time.Minute

	// cleanupEvery bounds how often a key's timestamps are pruned.
	cleanupEvery = 5 * time.Minute
)

// window holds one adapter key's admitted timestamps. All access goes through
// the window's own mutex, so contention stays scoped per key.
type window struct {
	mu          sync.Mutex
	stamps      []time.Time
	lastCleanup time.Time
}

// Limiter is a sliding-window rate limiter keyed per adapter. Reservation is
// atomic per key: concurrent calls on one adapter never over-admit past the
// configured ceiling.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// LimiterOption customizes a Limiter.
type LimiterOption func(*Limiter)

// WithClock injects a time source, for deterministic tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates an empty limiter.
func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) window(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		w = &window{lastCleanup: l.now()}
		l.windows[key] = w
	}
	return w
}

// Reserve admits one attempt for key under rl, recording its timestamp, or
// fails with RATE_LIMITED without recording anything. A nil rl always admits
// and records nothing.
func (l *Limiter) Reserve(key string, rl *registry.RateLimit) error {
	if rl == nil {
		return nil
	}

	w := l.window(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now)

	if rl.PerMinute > 0 && w.countSince(now.Add(-minuteWindow)) >= rl.PerMinute {
		return rateLimitedErr(key, "per-minute", rl.PerMinute)
	}
	if rl.PerHour > 0 && len(w.stamps) >= rl.PerHour {
		return rateLimitedErr(key, "per-hour", rl.PerHour)
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// Peek reports whether a reservation would currently succeed, without
// recording anything and without mutating the window. Health checks use this
// so that observation never consumes a slot.
func (l *Limiter) Peek(key string, rl *registry.RateLimit) core.RateLimitState {
	if rl == nil {
		return core.RateLimitOK
	}

	w := l.window(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	if rl.PerMinute > 0 && w.countSince(now.Add(-minuteWindow)) >= rl.PerMinute {
		return core.RateLimitExceeded
	}
	if rl.PerHour > 0 && w.countSince(now.Add(-retention)) >= rl.PerHour {
		return core.RateLimitExceeded
	}
	return core.RateLimitOK
}

// Reset drops all recorded timestamps for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// prune drops timestamps older than the retention horizon, at most once per
// cleanupEvery. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	if now.Sub(w.lastCleanup) < cleanupEvery {
		return
	}
	horizon := now.Add(-retention)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(horizon) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept
	w.lastCleanup = now
}

// countSince counts timestamps after cutoff. Caller holds w.mu.
func (w *window) countSince(cutoff time.Time) int {
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func rateLimitedErr(key, which string, ceiling int) error {
	return errors.New(errors.CodeRateLimited,
		fmt.Sprintf("adapter %q %s rate limit reached (%d)", key, which, ceiling), nil).
		WithContext("adapter", key).
		WithContext("ceiling", ceiling)
}
