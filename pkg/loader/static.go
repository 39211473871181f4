// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"strings"
	"sync"

	"github.com/switchyard-io/switchyard/pkg/registry"
)

// Adapter is the capability handle produced by a static factory: a tool
// lister whose tools carry their own invocation closures.
type Adapter interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context) ([]Tool, error)

// Tools implements Adapter.
func (f AdapterFunc) Tools(ctx context.Context) ([]Tool, error) {
	return f(ctx)
}

// Factory produces an adapter handle on demand.
type Factory func() (Adapter, error)

// Static resolves "static:<name>" locations against an in-process factory
// table built at startup. It is the loader for statically linked adapters and
// the seam the test suite plugs fakes into.
type Static struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewStatic creates an empty static loader.
func NewStatic() *Static {
	return &Static{factories: make(map[string]Factory)}
}

// Register installs a factory under name, replacing any previous one.
func (s *Static) Register(name string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[name] = f
}

// RegisterAdapter installs an already-built adapter handle under name.
func (s *Static) RegisterAdapter(name string, a Adapter) {
	s.Register(name, func() (Adapter, error) { return a, nil })
}

// LoadTools implements Loader.
func (s *Static) LoadTools(ctx context.Context, d registry.Descriptor) ([]Tool, error) {
	name := staticName(d.Location)

	s.mu.RLock()
	factory, ok := s.factories[name]
	s.mu.RUnlock()
	if !ok {
		return nil, unavailable(d, nil)
	}

	adapter, err := factory()
	if err != nil {
		return nil, unavailable(d, err)
	}
	tools, err := adapter.Tools(ctx)
	if err != nil {
		return nil, unavailable(d, err)
	}
	if len(tools) == 0 {
		return nil, emptyToolSet(d)
	}
	return tools, nil
}

// Probe implements Loader: a static adapter is available when its factory is
// registered.
func (s *Static) Probe(_ context.Context, d registry.Descriptor) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[staticName(d.Location)]
	return ok
}

func staticName(location string) string {
	return strings.TrimPrefix(location, "static:")
}
