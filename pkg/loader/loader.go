// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package loader resolves adapter locations to their current tool sets. The
// execution engine only ever sees opaque invocable handles; how an adapter is
// reached (subprocess, network channel, in-process factory) is decided here
// by the location scheme.
package loader

import (
	"context"

	"github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/registry"
)

// InvokeFunc is the opaque callable handle for one tool.
type InvokeFunc func(ctx context.Context, params map[string]any) (any, error)

// Tool describes one named operation offered by an adapter, together with the
// handle that invokes it. Tool sets are resolved lazily per call and are not
// permanently cached; adapters may change their surface between calls.
type Tool struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	Invoke       InvokeFunc     `json:"-"`
}

// Loader resolves a descriptor's tool set and probes its availability.
type Loader interface {
	// LoadTools resolves the adapter's current tools. It fails with
	// ADAPTER_UNAVAILABLE when the location cannot be resolved and with
	// EMPTY_TOOLSET when resolution succeeds with zero tools.
	LoadTools(ctx context.Context, d registry.Descriptor) ([]Tool, error)

	// Probe reports whether the adapter currently looks reachable. It must
	// be cheap and side-effect free; it never consumes policy slots.
	Probe(ctx context.Context, d registry.Descriptor) bool
}

// FindTool locates name within tools, or fails with NOT_FOUND. Tool misses
// are never retried by the engine.
func FindTool(tools []Tool, adapterID, name string) (Tool, error) {
	for _, t := range tools {
		if t.Name == name {
			return t, nil
		}
	}
	return Tool{}, errors.New(errors.CodeNotFound,
		"tool "+name+" not found on adapter "+adapterID, nil).
		WithContext("adapter", adapterID).
		WithContext("tool", name)
}

func unavailable(d registry.Descriptor, cause error) error {
	return errors.New(errors.CodeAdapterUnavailable,
		"adapter "+d.ID+" unavailable", cause).
		WithContext("adapter", d.ID).
		WithContext("location", d.Location)
}

func emptyToolSet(d registry.Descriptor) error {
	return errors.New(errors.CodeEmptyToolSet,
		"adapter "+d.ID+" resolved with zero tools", nil).
		WithContext("adapter", d.ID)
}
