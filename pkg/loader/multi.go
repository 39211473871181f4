// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"strings"

	"github.com/switchyard-io/switchyard/pkg/registry"
)

// Multi dispatches on the location scheme: "static:" locations go to the
// in-process loader, everything else to the MCP loader. It is the Loader the
// orchestrator is normally wired with.
type Multi struct {
	static *Static
	mcp    *MCP
}

// NewMulti builds the default loader stack. Nil components get fresh ones.
func NewMulti(static *Static, mcp *MCP) *Multi {
	if static == nil {
		static = NewStatic()
	}
	if mcp == nil {
		mcp = NewMCP()
	}
	return &Multi{static: static, mcp: mcp}
}

// Static exposes the in-process loader for adapter registration.
func (m *Multi) Static() *Static {
	return m.static
}

// LoadTools implements Loader.
func (m *Multi) LoadTools(ctx context.Context, d registry.Descriptor) ([]Tool, error) {
	if strings.HasPrefix(d.Location, "static:") {
		return m.static.LoadTools(ctx, d)
	}
	return m.mcp.LoadTools(ctx, d)
}

// Probe implements Loader.
func (m *Multi) Probe(ctx context.Context, d registry.Descriptor) bool {
	if strings.HasPrefix(d.Location, "static:") {
		return m.static.Probe(ctx, d)
	}
	return m.mcp.Probe(ctx, d)
}

// Close releases any open adapter connections.
func (m *Multi) Close() error {
	return m.mcp.Close()
}
