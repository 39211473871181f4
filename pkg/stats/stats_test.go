// SPDX-License-Identifier: Apache-2.0
package stats

import (
	"sync"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestRecordCounters(t *testing.T) {
	m := NewMemory(WithClock(fixedClock()))

	m.Record("github", true, 100*time.Millisecond)
	m.Record("github", true, 200*time.Millisecond)
	m.Record("github", false, 300*time.Millisecond)

	u, ok := m.Get("github")
	if !ok {
		t.Fatalf("expected usage for github")
	}
	if u.TotalRequests != 3 || u.SuccessfulRequests != 2 || u.FailedRequests != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/2/1",
			u.TotalRequests, u.SuccessfulRequests, u.FailedRequests)
	}
	if u.AverageExecutionTime != 200 {
		t.Errorf("average = %v ms, want 200", u.AverageExecutionTime)
	}
	if u.DailyUsage["2026-03-15"] != 3 {
		t.Errorf("daily bucket = %d, want 3", u.DailyUsage["2026-03-15"])
	}
	if u.MonthlyUsage["2026-03"] != 3 {
		t.Errorf("monthly bucket = %d, want 3", u.MonthlyUsage["2026-03"])
	}
	if u.LastUsedAt.IsZero() {
		t.Errorf("last used not set")
	}
}

func TestResetZeroesCounters(t *testing.T) {
	m := NewMemory(WithClock(fixedClock()))
	m.Record("github", true, time.Millisecond)
	m.Record("slack", false, time.Millisecond)

	m.Reset("github")
	if _, ok := m.Get("github"); ok {
		t.Errorf("expected github counters gone after reset")
	}
	if _, ok := m.Get("slack"); !ok {
		t.Errorf("reset of one adapter must not touch others")
	}

	m.ResetAll()
	if len(m.All()) != 0 {
		t.Errorf("expected empty store after ResetAll")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewMemory(WithClock(fixedClock()))
	m.Record("github", true, time.Millisecond)

	u, _ := m.Get("github")
	u.DailyUsage["2026-03-15"] = 999

	fresh, _ := m.Get("github")
	if fresh.DailyUsage["2026-03-15"] != 1 {
		t.Errorf("Get must return a deep copy")
	}
}

func TestConcurrentRecord(t *testing.T) {
	m := NewMemory()

	const workers = 50
	const perWorker = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Record("github", n%2 == 0, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	u, _ := m.Get("github")
	if u.TotalRequests != workers*perWorker {
		t.Errorf("total = %d, want %d", u.TotalRequests, workers*perWorker)
	}
	if u.SuccessfulRequests+u.FailedRequests != u.TotalRequests {
		t.Errorf("success+failed must equal total")
	}
}

func TestRecordReturnsSnapshot(t *testing.T) {
	m := NewMemory(WithClock(fixedClock()))

	u := m.Record("github", true, time.Millisecond)
	if u.TotalRequests != 1 {
		t.Errorf("snapshot total = %d, want 1", u.TotalRequests)
	}
	u = m.Record("github", false, time.Millisecond)
	if u.TotalRequests != 2 || u.FailedRequests != 1 {
		t.Errorf("snapshot = %+v", u)
	}
}
