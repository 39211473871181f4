// SPDX-License-Identifier: Apache-2.0
// Package core holds the shared types that cross Switchyard package
// boundaries: orchestration events and health snapshots.
package core

import "time"

// RateLimitState reports the observational rate-limit status of one adapter.
type RateLimitState string

const (
	RateLimitOK       RateLimitState = "ok"
	RateLimitExceeded RateLimitState = "exceeded"
)

// AdapterHealth is one adapter's entry in a health snapshot. Computing it must
// not mutate any state: the rate check peeks without reserving a slot.
type AdapterHealth struct {
	AdapterID     string         `json:"adapter_id"`
	Available     bool           `json:"available"`
	Authenticated bool           `json:"authenticated"`
	LastUsedAt    time.Time      `json:"last_used_at,omitzero"`
	RateLimit     RateLimitState `json:"rate_limit_status"`
}
