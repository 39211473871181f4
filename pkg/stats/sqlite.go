// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const usageTable = "adapter_usage"

// SQLite is a Store that persists counters so usage accounting survives a
// process restart. Aggregation happens in memory; every Record flushes the
// adapter's row.
type SQLite struct {
	db  *sql.DB
	mem *Memory
}

// OpenSQLite opens (or creates) the database at path and loads any persisted
// counters. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string, opts ...MemoryOption) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	s, err := NewSQLite(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite creates a SQLite-backed store over db and ensures schema.
func NewSQLite(db *sql.DB, opts ...MemoryOption) (*SQLite, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	s := &SQLite{db: db, mem: NewMemory(opts...)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func ensureSchema(db *sql.DB) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		adapter_id TEXT PRIMARY KEY,
		total INTEGER NOT NULL,
		success INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		avg_ms REAL NOT NULL,
		last_used INTEGER NOT NULL,
		daily_json BLOB NOT NULL,
		monthly_json BLOB NOT NULL
	);`, usageTable)
	_, err := db.Exec(stmt)
	return err
}

func (s *SQLite) load() error {
	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT adapter_id, total, success, failed, avg_ms, last_used, daily_json, monthly_json FROM %s", usageTable))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var u Usage
		var lastUsed int64
		var dailyJSON, monthJSON []byte
		if err := rows.Scan(&id, &u.TotalRequests, &u.SuccessfulRequests, &u.FailedRequests,
			&u.AverageExecutionTime, &lastUsed, &dailyJSON, &monthJSON); err != nil {
			return err
		}
		if lastUsed > 0 {
			u.LastUsedAt = time.Unix(lastUsed, 0).UTC()
		}
		if err := json.Unmarshal(dailyJSON, &u.DailyUsage); err != nil {
			return fmt.Errorf("adapter %s daily usage: %w", id, err)
		}
		if err := json.Unmarshal(monthJSON, &u.MonthlyUsage); err != nil {
			return fmt.Errorf("adapter %s monthly usage: %w", id, err)
		}

		e := s.mem.entry(id)
		e.mu.Lock()
		e.usage = u
		e.mu.Unlock()
	}
	return rows.Err()
}

// Record implements Store.
func (s *SQLite) Record(adapterID string, success bool, duration time.Duration) Usage {
	u := s.mem.Record(adapterID, success, duration)
	// Flush failures leave the in-memory counters authoritative for this
	// process; the next successful flush catches up.
	_ = s.flush(adapterID, u)
	return u
}

func (s *SQLite) flush(adapterID string, u Usage) error {
	dailyJSON, err := json.Marshal(u.DailyUsage)
	if err != nil {
		return err
	}
	monthJSON, err := json.Marshal(u.MonthlyUsage)
	if err != nil {
		return err
	}
	var lastUsed int64
	if !u.LastUsedAt.IsZero() {
		lastUsed = u.LastUsedAt.Unix()
	}
	_, err = s.db.Exec(fmt.Sprintf(`INSERT INTO %s
		(adapter_id, total, success, failed, avg_ms, last_used, daily_json, monthly_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(adapter_id) DO UPDATE SET
			total = excluded.total,
			success = excluded.success,
			failed = excluded.failed,
			avg_ms = excluded.avg_ms,
			last_used = excluded.last_used,
			daily_json = excluded.daily_json,
			monthly_json = excluded.monthly_json`, usageTable),
		adapterID, u.TotalRequests, u.SuccessfulRequests, u.FailedRequests,
		u.AverageExecutionTime, lastUsed, dailyJSON, monthJSON)
	return err
}

// Get implements Store.
func (s *SQLite) Get(adapterID string) (Usage, bool) {
	return s.mem.Get(adapterID)
}

// All implements Store.
func (s *SQLite) All() map[string]Usage {
	return s.mem.All()
}

// Reset implements Store.
func (s *SQLite) Reset(adapterID string) {
	s.mem.Reset(adapterID)
	_, _ = s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE adapter_id = ?", usageTable), adapterID)
}

// ResetAll implements Store.
func (s *SQLite) ResetAll() {
	s.mem.ResetAll()
	_, _ = s.db.Exec(fmt.Sprintf("DELETE FROM %s", usageTable))
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
