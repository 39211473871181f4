// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the static adapter descriptor table. The table is
// built once at process start and is immutable afterwards; lookups never
// touch the network.
package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/switchyard-io/switchyard/pkg/errors"
)

// CredentialKind identifies how a credential is presented to the adapter.
type CredentialKind string

const (
	CredentialBearer CredentialKind = "bearer"
	CredentialAPIKey CredentialKind = "api_key"
	CredentialOAuth  CredentialKind = "oauth"
)

// AuthConfig describes an adapter's credential requirement. Sources name the
// configuration variables the credential values are read from; the values
// themselves never pass through the registry.
type AuthConfig struct {
	Kind      CredentialKind `koanf:"kind" yaml:"kind"`
	Sources   []string       `koanf:"sources" yaml:"sources"`
	Mandatory bool           `koanf:"mandatory" yaml:"mandatory"`
}

// RateLimit is the sliding-window ceiling for one adapter. A nil RateLimit on
// a descriptor means the adapter is never rate limited.
type RateLimit struct {
	PerMinute int `koanf:"per_minute" yaml:"per_minute"`
	PerHour   int `koanf:"per_hour" yaml:"per_hour"`
}

// Descriptor identifies one adapter and its policy. Location is an opaque
// locator consumed only by the loader (e.g. "stdio:npx -y some-server",
// "https://host/mcp", "grpc://host:port", "static:name").
type Descriptor struct {
	ID       string `koanf:"id" yaml:"id"`
	Category string `koanf:"category" yaml:"category"`
	Location string `koanf:"location" yaml:"location"`

	// Probe optionally overrides the liveness locator ("tcp://host:port",
	// "grpc://host:port"). When empty the probe is derived from Location.
	Probe     string        `koanf:"probe" yaml:"probe"`
	Auth      *AuthConfig   `koanf:"auth" yaml:"auth"`
	RateLimit *RateLimit    `koanf:"rate_limit" yaml:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
}

// AuthRequired reports whether the descriptor declares an auth requirement.
func (d Descriptor) AuthRequired() bool {
	return d.Auth != nil
}

// Registry is the immutable adapter table.
type Registry struct {
	byID       map[string]Descriptor
	ordered    []Descriptor
	categories []string
}

// New builds a registry from descriptors. Duplicate or empty identities are a
// startup-time configuration error.
func New(descriptors []Descriptor) (*Registry, error) {
	byID := make(map[string]Descriptor, len(descriptors))
	ordered := make([]Descriptor, 0, len(descriptors))
	catSet := make(map[string]struct{})

	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("adapter descriptor with empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate adapter id %q", d.ID)
		}
		if d.Location == "" {
			return nil, fmt.Errorf("adapter %q has no location", d.ID)
		}
		byID[d.ID] = d
		ordered = append(ordered, d)
		if d.Category != "" {
			catSet[d.Category] = struct{}{}
		}
	}

	categories := make([]string, 0, len(catSet))
	for c := range catSet {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &Registry{byID: byID, ordered: ordered, categories: categories}, nil
}

// Resolve returns the descriptor for id, or a NOT_FOUND error. This is the
// only lookup path; an unknown identity fails before any network activity.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, errors.New(errors.CodeNotFound,
			fmt.Sprintf("unknown adapter %q", id), nil).
			WithContext("adapter", id)
	}
	return d, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ListByCategory returns the identities of adapters tagged with category, in
// registration order.
func (r *Registry) ListByCategory(category string) []string {
	var ids []string
	for _, d := range r.ordered {
		if d.Category == category {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Categories returns the sorted distinct category set.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.byID)
}
