// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/switchyard-io/switchyard/pkg/registry"
)

const defaultInitTimeout = 10 * time.Second

// MCP resolves adapters that speak the Model Context Protocol. Two location
// schemes are supported: "stdio:<command> [args...]" spawns a subprocess and
// "http(s)://..." opens a streamable HTTP channel. Connections are kept open
// across calls so invocation handles stay valid; the tool list itself is
// re-fetched on every LoadTools.
type MCP struct {
	mu      sync.Mutex
	clients map[string]*mcpclient.Client

	initTimeout   time.Duration
	clientName    string
	clientVersion string
}

// MCPOption customizes the MCP loader.
type MCPOption func(*MCP)

// WithInitTimeout bounds connection initialization.
func WithInitTimeout(d time.Duration) MCPOption {
	return func(m *MCP) {
		if d > 0 {
			m.initTimeout = d
		}
	}
}

// WithClientInfo sets the client identity announced during the MCP handshake.
func WithClientInfo(name, version string) MCPOption {
	return func(m *MCP) {
		m.clientName = name
		m.clientVersion = version
	}
}

// NewMCP creates an MCP loader with no open connections.
func NewMCP(opts ...MCPOption) *MCP {
	m := &MCP{
		clients:       make(map[string]*mcpclient.Client),
		initTimeout:   defaultInitTimeout,
		clientName:    "switchyard",
		clientVersion: "0.1.0",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadTools implements Loader.
func (m *MCP) LoadTools(ctx context.Context, d registry.Descriptor) ([]Tool, error) {
	c, err := m.connection(ctx, d)
	if err != nil {
		return nil, unavailable(d, err)
	}

	resp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		// The channel may have gone stale; drop it so the next attempt
		// reconnects.
		m.drop(d.ID)
		return nil, unavailable(d, err)
	}
	if len(resp.Tools) == 0 {
		return nil, emptyToolSet(d)
	}

	tools := make([]Tool, 0, len(resp.Tools))
	for _, mt := range resp.Tools {
		tools = append(tools, Tool{
			Name:        mt.Name,
			Description: mt.Description,
			InputSchema: schemaToMap(mt),
			Invoke:      m.invoker(d, mt.Name),
		})
	}
	return tools, nil
}

// Probe implements Loader via the shared location probes.
func (m *MCP) Probe(ctx context.Context, d registry.Descriptor) bool {
	return ProbeLocation(ctx, d)
}

// Close shuts down every open adapter connection.
func (m *MCP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []string
	for id, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", id, err))
		}
		delete(m.clients, id)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing mcp clients: %s", strings.Join(errs, "; "))
	}
	return nil
}

// invoker returns the opaque callable handle for one tool. The handle calls
// through the cached connection; transport failures surface as plain errors
// that the engine classifies as invocation failures.
func (m *MCP) invoker(d registry.Descriptor, tool string) InvokeFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		c, err := m.connection(ctx, d)
		if err != nil {
			return nil, err
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = params

		result, err := c.CallTool(ctx, req)
		if err != nil {
			m.drop(d.ID)
			return nil, err
		}
		return resultToOutput(result)
	}
}

func (m *MCP) connection(ctx context.Context, d registry.Descriptor) (*mcpclient.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[d.ID]; ok {
		return c, nil
	}

	c, err := m.dial(ctx, d.Location)
	if err != nil {
		return nil, err
	}
	m.clients[d.ID] = c
	return c, nil
}

func (m *MCP) dial(ctx context.Context, location string) (*mcpclient.Client, error) {
	var (
		c   *mcpclient.Client
		err error
	)
	switch {
	case strings.HasPrefix(location, "stdio:"):
		command, args := splitCommand(strings.TrimPrefix(location, "stdio:"))
		if command == "" {
			return nil, fmt.Errorf("empty stdio command")
		}
		c, err = mcpclient.NewStdioMCPClient(command, nil, args...)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		c, err = mcpclient.NewStreamableHttpClient(location)
	default:
		return nil, fmt.Errorf("unsupported mcp location %q", location)
	}
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, m.initTimeout)
	defer cancel()

	if err := c.Start(initCtx); err != nil {
		_ = c.Close()
		return nil, err
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    m.clientName,
		Version: m.clientVersion,
	}
	if _, err := c.Initialize(initCtx, initRequest); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (m *MCP) drop(adapterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[adapterID]; ok {
		_ = c.Close()
		delete(m.clients, adapterID)
	}
}

func splitCommand(s string) (string, []string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// schemaToMap flattens the mcp tool input schema into a plain map.
func schemaToMap(t mcp.Tool) map[string]any {
	var raw []byte
	if t.RawInputSchema != nil {
		raw = t.RawInputSchema
	} else {
		encoded, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// resultToOutput unwraps an MCP call result: structured content when present,
// joined text otherwise. A result flagged IsError becomes a plain error.
func resultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, fmt.Errorf("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}
	return result, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
