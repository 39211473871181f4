// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package stats tracks per-adapter usage counters. The store is injected into
// the engine: in-memory by default, SQLite-backed when usage must survive a
// restart. Counters are monotonically non-decreasing except on explicit
// reset, and every execute call records exactly once.
package stats

import (
	"sync"
	"time"
)

const (
	dayFormat   = "2006-01-02"
	monthFormat = "2006-01"
)

// Usage holds one adapter's counters. AverageExecutionTime is a running
// average in milliseconds over all recorded calls.
type Usage struct {
	TotalRequests        int64            `json:"total_requests"`
	SuccessfulRequests   int64            `json:"successful_requests"`
	FailedRequests       int64            `json:"failed_requests"`
	AverageExecutionTime float64          `json:"average_execution_time_ms"`
	LastUsedAt           time.Time        `json:"last_used_at,omitzero"`
	DailyUsage           map[string]int64 `json:"daily_usage,omitempty"`
	MonthlyUsage         map[string]int64 `json:"monthly_usage,omitempty"`
}

func (u Usage) clone() Usage {
	out := u
	out.DailyUsage = make(map[string]int64, len(u.DailyUsage))
	for k, v := range u.DailyUsage {
		out.DailyUsage[k] = v
	}
	out.MonthlyUsage = make(map[string]int64, len(u.MonthlyUsage))
	for k, v := range u.MonthlyUsage {
		out.MonthlyUsage[k] = v
	}
	return out
}

// apply folds one completed call into the counters.
func (u *Usage) apply(success bool, duration time.Duration, now time.Time) {
	u.TotalRequests++
	if success {
		u.SuccessfulRequests++
	} else {
		u.FailedRequests++
	}
	ms := float64(duration) / float64(time.Millisecond)
	u.AverageExecutionTime += (ms - u.AverageExecutionTime) / float64(u.TotalRequests)
	u.LastUsedAt = now
	if u.DailyUsage == nil {
		u.DailyUsage = make(map[string]int64)
	}
	if u.MonthlyUsage == nil {
		u.MonthlyUsage = make(map[string]int64)
	}
	u.DailyUsage[now.Format(dayFormat)]++
	u.MonthlyUsage[now.Format(monthFormat)]++
}

// Store is the injected usage store.
type Store interface {
	// Record folds one completed call into the adapter's counters and
	// returns the updated snapshot.
	Record(adapterID string, success bool, duration time.Duration) Usage

	// Get returns the adapter's counters, and whether any exist.
	Get(adapterID string) (Usage, bool)

	// All returns a snapshot of every adapter's counters.
	All() map[string]Usage

	// Reset zeroes one adapter's counters; ResetAll zeroes every adapter.
	Reset(adapterID string)
	ResetAll()
}

// Memory is the default in-process Store. State is scoped per adapter key;
// concurrent recording on different adapters never contends.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu    sync.Mutex
	usage Usage
}

// MemoryOption customizes a Memory store.
type MemoryOption func(*Memory)

// WithClock injects a time source, for deterministic tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) entry(adapterID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[adapterID]
	if !ok {
		e = &entry{}
		m.entries[adapterID] = e
	}
	return e
}

// Record implements Store.
func (m *Memory) Record(adapterID string, success bool, duration time.Duration) Usage {
	e := m.entry(adapterID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usage.apply(success, duration, m.now().UTC())
	return e.usage.clone()
}

// Get implements Store.
func (m *Memory) Get(adapterID string) (Usage, bool) {
	m.mu.Lock()
	e, ok := m.entries[adapterID]
	m.mu.Unlock()
	if !ok {
		return Usage{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage.clone(), true
}

// All implements Store.
func (m *Memory) All() map[string]Usage {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	entries := make([]*entry, 0, len(m.entries))
	for k, e := range m.entries {
		keys = append(keys, k)
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make(map[string]Usage, len(keys))
	for i, e := range entries {
		e.mu.Lock()
		out[keys[i]] = e.usage.clone()
		e.mu.Unlock()
	}
	return out
}

// Reset implements Store.
func (m *Memory) Reset(adapterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, adapterID)
}

// ResetAll implements Store.
func (m *Memory) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}
