// SPDX-License-Identifier: Apache-2.0
package stats

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteRecordAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite store in short mode")
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := NewSQLite(db, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()

	s.Record("github", true, 50*time.Millisecond)
	s.Record("github", false, 150*time.Millisecond)

	u, ok := s.Get("github")
	if !ok {
		t.Fatalf("expected usage")
	}
	if u.TotalRequests != 2 || u.SuccessfulRequests != 1 || u.FailedRequests != 1 {
		t.Errorf("counters = %+v", u)
	}
	if u.AverageExecutionTime != 100 {
		t.Errorf("average = %v, want 100", u.AverageExecutionTime)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite store in short mode")
	}
	path := filepath.Join(t.TempDir(), "usage.db")

	s, err := OpenSQLite(path, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s.Record("github", true, 100*time.Millisecond)
	s.Record("slack", false, 100*time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	u, ok := reopened.Get("github")
	if !ok || u.TotalRequests != 1 || u.SuccessfulRequests != 1 {
		t.Errorf("persisted usage = %+v, ok=%v", u, ok)
	}
	if u.DailyUsage["2026-03-15"] != 1 {
		t.Errorf("daily bucket not persisted: %+v", u.DailyUsage)
	}
	if len(reopened.All()) != 2 {
		t.Errorf("expected 2 adapters after reload")
	}
}

func TestSQLiteReset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite store in short mode")
	}
	path := filepath.Join(t.TempDir(), "usage.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s.Record("github", true, time.Millisecond)
	s.Reset("github")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok := reopened.Get("github"); ok {
		t.Errorf("reset must also clear the persisted row")
	}
}
