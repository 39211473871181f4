// SPDX-License-Identifier: Apache-2.0
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, path, "log:\n  level: \"debug\"\n")

	w, err := NewWatcher([]string{path})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if w.Config().Log.Level != "debug" {
		t.Errorf("initial log level = %s, want debug", w.Config().Log.Level)
	}
}

func TestWatcherDetectsCatalogChange(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, path, "adapters:\n  - id: \"one\"\n    location: \"static:one\"\n")

	w, err := NewWatcher([]string{path}, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if len(w.Config().Adapters) != 1 {
		t.Fatalf("initial adapters = %d, want 1", len(w.Config().Adapters))
	}

	changed := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Mod times have second granularity on some filesystems; force a
	// future timestamp so the poll sees the change.
	writeConfig(t, path, "adapters:\n  - id: \"one\"\n    location: \"static:one\"\n  - id: \"two\"\n    location: \"static:two\"\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	select {
	case cfg := <-changed:
		if len(cfg.Adapters) != 2 {
			t.Errorf("reloaded adapters = %d, want 2", len(cfg.Adapters))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never observed the catalog change")
	}
}

func TestReloadableConfigUpdate(t *testing.T) {
	rc := NewReloadableConfig(&Config{Log: LogConfig{Level: "info"}})
	if rc.Log().Level != "info" {
		t.Fatalf("initial level = %s", rc.Log().Level)
	}

	rc.Update(&Config{
		Log:      LogConfig{Level: "warn"},
		Defaults: DefaultsConfig{MaxRetries: 5},
	})

	if rc.Log().Level != "warn" {
		t.Errorf("updated level = %s, want warn", rc.Log().Level)
	}
	if rc.Defaults().MaxRetries != 5 {
		t.Errorf("updated retries = %d, want 5", rc.Defaults().MaxRetries)
	}
}
