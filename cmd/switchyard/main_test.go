// SPDX-License-Identifier: Apache-2.0
package main

import (
	"reflect"
	"testing"
	"time"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--json", "--config", "/tmp/config.yaml", "--timeout=5s", "adapters", "list",
	})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	if !flags.JSON || flags.ConfigPath != "/tmp/config.yaml" || flags.Timeout != 5*time.Second {
		t.Errorf("flags = %+v", flags)
	}
	if !reflect.DeepEqual(rest, []string{"adapters", "list"}) {
		t.Errorf("rest = %v", rest)
	}
}

func TestParseGlobalFlagsUnknown(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--bogus"}); err == nil {
		t.Fatal("unknown flag must fail")
	}
}

func TestParseCallSpec(t *testing.T) {
	tests := []struct {
		spec   string
		wantID string
		wantOK bool
		params map[string]any
	}{
		{spec: "github:create_issue", wantID: "github", wantOK: true},
		{spec: `weather:forecast:{"city":"Valencia"}`, wantID: "weather", wantOK: true,
			params: map[string]any{"city": "Valencia"}},
		{spec: "missing-tool", wantOK: false},
		{spec: ":tool", wantOK: false},
		{spec: "adapter:tool:{not json", wantOK: false},
	}

	for _, tc := range tests {
		call, err := parseCallSpec(tc.spec)
		if tc.wantOK != (err == nil) {
			t.Errorf("parseCallSpec(%q) err = %v", tc.spec, err)
			continue
		}
		if err != nil {
			continue
		}
		if call.AdapterID != tc.wantID {
			t.Errorf("parseCallSpec(%q) adapter = %s", tc.spec, call.AdapterID)
		}
		if tc.params != nil && !reflect.DeepEqual(call.Parameters, tc.params) {
			t.Errorf("parseCallSpec(%q) params = %v", tc.spec, call.Parameters)
		}
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", 10); got != "short" {
		t.Errorf("truncateMessage = %q", got)
	}
	if got := truncateMessage("a very long description here", 10); got != "a very ..." {
		t.Errorf("truncateMessage = %q", got)
	}
	if got := truncateMessage("  spaced   out  ", 50); got != "spaced out" {
		t.Errorf("truncateMessage = %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Errorf("zero time = %q", got)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := formatTime(ts); got != "2026-03-01T12:00:00Z" {
		t.Errorf("formatTime = %q", got)
	}
}
