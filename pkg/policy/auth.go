// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the admission gate that precedes every adapter
// invocation: a credential presence check and a per-adapter sliding-window
// rate limiter. Policy failures are terminal for a call; the engine never
// retries them.
package policy

import (
	"fmt"
	"strings"

	"github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/registry"
)

// CredentialStore resolves credential sources to values. Implementations read
// process-wide configuration; the gate only checks presence and never logs or
// returns the values.
type CredentialStore interface {
	Lookup(source string) (string, bool)
}

// MapCredentials is a CredentialStore backed by a plain map, used in tests
// and for statically provisioned deployments.
type MapCredentials map[string]string

// Lookup implements CredentialStore.
func (m MapCredentials) Lookup(source string) (string, bool) {
	v, ok := m[source]
	return v, ok && v != ""
}

// Gate combines the authentication check and the rate limiter into one
// admission decision.
type Gate struct {
	creds   CredentialStore
	limiter *Limiter
}

// NewGate builds a gate over the given credential store. A nil limiter gets a
// default one.
func NewGate(creds CredentialStore, limiter *Limiter) *Gate {
	if limiter == nil {
		limiter = NewLimiter()
	}
	return &Gate{creds: creds, limiter: limiter}
}

// Limiter exposes the gate's rate limiter for observational checks.
func (g *Gate) Limiter() *Limiter {
	return g.limiter
}

// Missing returns the credential sources of d that cannot be resolved.
func (g *Gate) Missing(d registry.Descriptor) []string {
	if d.Auth == nil {
		return nil
	}
	var missing []string
	for _, source := range d.Auth.Sources {
		if _, ok := g.creds.Lookup(source); !ok {
			missing = append(missing, source)
		}
	}
	return missing
}

// Authenticate fails with AUTH_MISSING when a mandatory credential is absent,
// naming the missing sources. Adapters without an auth requirement always
// pass.
func (g *Gate) Authenticate(d registry.Descriptor) error {
	if d.Auth == nil || !d.Auth.Mandatory {
		return nil
	}
	missing := g.Missing(d)
	if len(missing) == 0 {
		return nil
	}
	return errors.New(errors.CodeAuthMissing,
		fmt.Sprintf("adapter %q missing credentials: %s", d.ID, strings.Join(missing, ", ")), nil).
		WithContext("adapter", d.ID).
		WithContext("missing_sources", missing)
}

// Admit runs the full admission decision: authentication always, the rate
// check unless skipRate is set. A successful admission reserves exactly one
// rate-limit slot; a rejection reserves none.
func (g *Gate) Admit(d registry.Descriptor, skipRate bool) error {
	if err := g.Authenticate(d); err != nil {
		return err
	}
	if skipRate {
		return nil
	}
	return g.limiter.Reserve(d.ID, d.RateLimit)
}
