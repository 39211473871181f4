// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Switchyard configuration from YAML files and the
// SWITCHYARD_ environment, including the adapter catalog and credential
// resolution.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/telemetry"
)

type Config struct {
	Log       LogConfig             `koanf:"log"`
	Telemetry telemetry.Config      `koanf:"telemetry"`
	Defaults  DefaultsConfig        `koanf:"defaults"`
	Stats     StatsConfig           `koanf:"stats"`
	Adapters  []registry.Descriptor `koanf:"adapters"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// DefaultsConfig holds per-call defaults applied when a descriptor or
// caller does not override them.
type DefaultsConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// StatsConfig selects the usage stats backend.
type StatsConfig struct {
	Store string `koanf:"store"` // memory, sqlite
	Path  string `koanf:"path"`
}

func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile loads the base config file, then overlays the profile
// variant (config.yaml + "dev" -> config.dev.yaml) when it exists.
// Environment variables still win over both layers.
func LoadWithProfile(path, profile string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("defaults.timeout", "30s")
	k.Set("defaults.max_retries", 3)
	k.Set("stats.store", "memory")

	// 1. Load from file, then the profile overlay
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}
	if pp := profileConfigPath(path, profile); pp != "" {
		if err := k.Load(file.Provider(pp), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (SWITCHYARD_LOG_LEVEL -> log.level)
	if err := k.Load(env.Provider("SWITCHYARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SWITCHYARD_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// profileConfigPath returns the profile variant of base when the file
// exists, or "" when there is nothing to overlay.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	pp := filepath.Join(dir, name+"."+profile+ext)
	if _, err := os.Stat(pp); err != nil {
		return ""
	}
	return pp
}

// EnvCredentials resolves credential sources against the process
// environment. An empty or whitespace-only value counts as missing.
type EnvCredentials struct{}

func (EnvCredentials) Lookup(source string) (string, bool) {
	v, ok := os.LookupEnv(source)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
