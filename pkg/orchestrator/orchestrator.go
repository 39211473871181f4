// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator is the public façade over the adapter core. It owns
// the wiring between the registry, the policy gate, the loader, the engine,
// and the composer, and exposes the operations a host application calls:
// catalog queries, credential checks, execution, usage stats, and health.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"

	"github.com/switchyard-io/switchyard/pkg/compose"
	"github.com/switchyard-io/switchyard/pkg/core"
	"github.com/switchyard-io/switchyard/pkg/engine"
	"github.com/switchyard-io/switchyard/pkg/loader"
	"github.com/switchyard-io/switchyard/pkg/policy"
	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/stats"
)

// AdapterInfo pairs a catalog descriptor with its probed availability.
type AdapterInfo struct {
	registry.Descriptor
	Available bool `json:"available"`
}

// AuthStatus reports one adapter's credential state without exposing values.
type AuthStatus struct {
	AdapterID      string   `json:"adapter_id"`
	Authenticated  bool     `json:"authenticated"`
	Required       bool     `json:"required"`
	MissingSources []string `json:"missing_sources,omitempty"`
}

// Orchestrator is the façade. All methods are safe for concurrent use.
type Orchestrator struct {
	registry *registry.Registry
	gate     *policy.Gate
	loader   loader.Loader
	store    stats.Store
	engine   *engine.Engine
	composer *compose.Composer
	logger   *slog.Logger
}

// Option customizes orchestrator construction.
type Option func(*settings)

type settings struct {
	engineOpts  []engine.Option
	composeOpts []compose.Option
	logger      *slog.Logger
}

// WithEngineOptions forwards options to the embedded engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *settings) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithComposeOptions forwards options to the embedded composer.
func WithComposeOptions(opts ...compose.Option) Option {
	return func(s *settings) { s.composeOpts = append(s.composeOpts, opts...) }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wires the façade over its collaborators. A nil store gets an in-memory
// one; a nil gate gets one with no credentials and default limits.
func New(reg *registry.Registry, gate *policy.Gate, ld loader.Loader, store stats.Store, opts ...Option) *Orchestrator {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if gate == nil {
		gate = policy.NewGate(policy.MapCredentials{}, nil)
	}
	if store == nil {
		store = stats.NewMemory()
	}

	eng := engine.New(reg, gate, ld, store, s.engineOpts...)
	return &Orchestrator{
		registry: reg,
		gate:     gate,
		loader:   ld,
		store:    store,
		engine:   eng,
		composer: compose.New(eng, s.composeOpts...),
		logger:   s.logger,
	}
}

// Engine exposes the single-call engine for callers that need it directly.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}

// ListAdapters returns every registered adapter with its probed availability,
// sorted by ID. Probing is observational; no policy slots are consumed.
func (o *Orchestrator) ListAdapters(ctx context.Context) []AdapterInfo {
	descriptors := o.registry.List()
	infos := make([]AdapterInfo, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, AdapterInfo{
			Descriptor: d,
			Available:  o.loader.Probe(ctx, d),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ListCategories returns the distinct category names in the catalog, sorted.
func (o *Orchestrator) ListCategories() []string {
	return o.registry.Categories()
}

// ListAdaptersByCategory returns the adapter IDs in the given category.
func (o *Orchestrator) ListAdaptersByCategory(category string) []string {
	return o.registry.ListByCategory(category)
}

// CheckAuthentication reports an adapter's credential status. It fails only
// when the adapter is unknown; missing credentials are data, not an error.
func (o *Orchestrator) CheckAuthentication(adapterID string) (AuthStatus, error) {
	d, err := o.registry.Resolve(adapterID)
	if err != nil {
		return AuthStatus{}, err
	}
	missing := o.gate.Missing(d)
	return AuthStatus{
		AdapterID:      adapterID,
		Authenticated:  len(missing) == 0,
		Required:       d.AuthRequired(),
		MissingSources: missing,
	}, nil
}

// LoadTools resolves an adapter's current tool set. Listing tools is free:
// it consumes no rate-limit slots and records no usage.
func (o *Orchestrator) LoadTools(ctx context.Context, adapterID string) ([]loader.Tool, error) {
	d, err := o.registry.Resolve(adapterID)
	if err != nil {
		return nil, err
	}
	return o.loader.LoadTools(ctx, d)
}

// Execute runs one adapter call through the engine.
func (o *Orchestrator) Execute(ctx context.Context, adapterID, tool string, params map[string]any, opts *engine.Options) engine.Result {
	return o.engine.Execute(ctx, adapterID, tool, params, opts)
}

// ExecuteParallel fans out independent calls; results come back in input order.
func (o *Orchestrator) ExecuteParallel(ctx context.Context, calls []compose.Call) []engine.Result {
	return o.composer.Parallel(ctx, calls)
}

// ExecuteSequence runs a dependency-chained pipeline, stopping at the first
// failure.
func (o *Orchestrator) ExecuteSequence(ctx context.Context, steps []compose.Step) []engine.Result {
	return o.composer.Sequence(ctx, steps)
}

// UsageStats returns one adapter's counters. The zero Usage with found=false
// means the adapter has never been called.
func (o *Orchestrator) UsageStats(adapterID string) (stats.Usage, bool) {
	return o.store.Get(adapterID)
}

// AllUsageStats snapshots every adapter's counters.
func (o *Orchestrator) AllUsageStats() map[string]stats.Usage {
	return o.store.All()
}

// ResetUsageStats zeroes one adapter's counters.
func (o *Orchestrator) ResetUsageStats(adapterID string) {
	o.store.Reset(adapterID)
}

// ResetAllUsageStats zeroes every adapter's counters.
func (o *Orchestrator) ResetAllUsageStats() {
	o.store.ResetAll()
}

// HealthCheck snapshots every adapter's liveness, credential state, last use,
// and rate-limit headroom, sorted by ID. The snapshot is purely
// observational: running it twice in a row yields the same rate-limit state.
func (o *Orchestrator) HealthCheck(ctx context.Context) []core.AdapterHealth {
	descriptors := o.registry.List()
	limiter := o.gate.Limiter()

	out := make([]core.AdapterHealth, 0, len(descriptors))
	for _, d := range descriptors {
		h := core.AdapterHealth{
			AdapterID:     d.ID,
			Available:     o.loader.Probe(ctx, d),
			Authenticated: len(o.gate.Missing(d)) == 0,
			RateLimit:     limiter.Peek(d.ID, d.RateLimit),
		}
		if usage, ok := o.store.Get(d.ID); ok {
			h.LastUsedAt = usage.LastUsedAt
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdapterID < out[j].AdapterID })
	return out
}

// Close releases loader resources when the loader holds any.
func (o *Orchestrator) Close() error {
	if c, ok := o.loader.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
