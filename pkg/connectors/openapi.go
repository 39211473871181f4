// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectors turns declarative external surfaces into adapter tool
// sets: an OpenAPI document or a SQL schema becomes a loader.Adapter whose
// tools invoke the underlying API or database. Connectors register with the
// static loader under a "static:<name>" location.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/switchyard-io/switchyard/pkg/loader"
)

// OpenAPISpec is a parsed OpenAPI 3.x document, reduced to what tool
// generation needs.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo         `json:"info" yaml:"info"`
	Servers []OpenAPIServer     `json:"servers" yaml:"servers"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`
}

type OpenAPIInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
}

type OpenAPIServer struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// PathItem holds the operations on one path.
type PathItem struct {
	Get    *Operation `json:"get" yaml:"get"`
	Post   *Operation `json:"post" yaml:"post"`
	Put    *Operation `json:"put" yaml:"put"`
	Delete *Operation `json:"delete" yaml:"delete"`
	Patch  *Operation `json:"patch" yaml:"patch"`
}

// Operation is one API operation.
type Operation struct {
	OperationID string       `json:"operationId" yaml:"operationId"`
	Summary     string       `json:"summary" yaml:"summary"`
	Description string       `json:"description" yaml:"description"`
	Parameters  []Parameter  `json:"parameters" yaml:"parameters"`
	RequestBody *RequestBody `json:"requestBody" yaml:"requestBody"`
}

// Parameter is an operation parameter.
type Parameter struct {
	Name        string  `json:"name" yaml:"name"`
	In          string  `json:"in" yaml:"in"` // query, path, header
	Description string  `json:"description" yaml:"description"`
	Required    bool    `json:"required" yaml:"required"`
	Schema      *Schema `json:"schema" yaml:"schema"`
}

// RequestBody describes an operation's body.
type RequestBody struct {
	Description string               `json:"description" yaml:"description"`
	Required    bool                 `json:"required" yaml:"required"`
	Content     map[string]MediaType `json:"content" yaml:"content"`
}

type MediaType struct {
	Schema *Schema `json:"schema" yaml:"schema"`
}

// Schema is the subset of JSON Schema the generator propagates.
type Schema struct {
	Type        string             `json:"type" yaml:"type"`
	Description string             `json:"description" yaml:"description"`
	Properties  map[string]*Schema `json:"properties" yaml:"properties"`
	Items       *Schema            `json:"items" yaml:"items"`
	Required    []string           `json:"required" yaml:"required"`
	Enum        []any              `json:"enum" yaml:"enum"`
	Default     any                `json:"default" yaml:"default"`
	Format      string             `json:"format" yaml:"format"`
}

// OpenAPI converts an OpenAPI document into an adapter tool set. It
// implements loader.Adapter.
type OpenAPI struct {
	spec    *OpenAPISpec
	baseURL string
	auth    httpAuth
	client  *http.Client
	tools   []loader.Tool
}

type httpAuthKind int

const (
	authNone httpAuthKind = iota
	authAPIKey
	authBearer
	authBasic
)

type httpAuth struct {
	kind   httpAuthKind
	apiKey string
	header string
	token  string
	user   string
	pass   string
}

// OpenAPIOption configures the connector.
type OpenAPIOption func(*OpenAPI)

// WithBaseURL overrides the base URL from the spec's servers list.
func WithBaseURL(base string) OpenAPIOption {
	return func(c *OpenAPI) { c.baseURL = base }
}

// WithAPIKey sets API key authentication on the given header.
func WithAPIKey(key, header string) OpenAPIOption {
	return func(c *OpenAPI) {
		c.auth = httpAuth{kind: authAPIKey, apiKey: key, header: header}
	}
}

// WithBearerToken sets Bearer token authentication.
func WithBearerToken(token string) OpenAPIOption {
	return func(c *OpenAPI) {
		c.auth = httpAuth{kind: authBearer, token: token}
	}
}

// WithBasicAuth sets Basic authentication.
func WithBasicAuth(user, pass string) OpenAPIOption {
	return func(c *OpenAPI) {
		c.auth = httpAuth{kind: authBasic, user: user, pass: pass}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAPIOption {
	return func(c *OpenAPI) {
		if client != nil {
			c.client = client
		}
	}
}

// NewOpenAPIFromFile builds the connector from a spec file on disk.
func NewOpenAPIFromFile(path string, opts ...OpenAPIOption) (*OpenAPI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return NewOpenAPI(data, opts...)
}

// NewOpenAPI builds the connector from raw spec bytes, JSON or YAML.
func NewOpenAPI(data []byte, opts ...OpenAPIOption) (*OpenAPI, error) {
	var spec OpenAPISpec
	if err := json.Unmarshal(data, &spec); err != nil {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse spec (tried JSON and YAML): %w", err)
		}
	}

	c := &OpenAPI{
		spec:   &spec,
		client: http.DefaultClient,
	}
	if len(spec.Servers) > 0 {
		c.baseURL = spec.Servers[0].URL
	}
	for _, opt := range opts {
		opt(c)
	}

	c.generateTools()
	return c, nil
}

// Tools implements loader.Adapter. The tool set is fixed at construction.
func (c *OpenAPI) Tools(_ context.Context) ([]loader.Tool, error) {
	return c.tools, nil
}

func (c *OpenAPI) generateTools() {
	for path, item := range c.spec.Paths {
		for method, op := range map[string]*Operation{
			"GET": item.Get, "POST": item.Post, "PUT": item.Put,
			"DELETE": item.Delete, "PATCH": item.Patch,
		} {
			if op != nil {
				c.tools = append(c.tools, c.operationTool(path, method, op))
			}
		}
	}
}

// operationTool turns one operation into a tool whose invoke closure issues
// the HTTP request.
func (c *OpenAPI) operationTool(path, method string, op *Operation) loader.Tool {
	name := op.OperationID
	if name == "" {
		name = strings.Trim(fmt.Sprintf("%s_%s",
			strings.ToLower(method), strings.ReplaceAll(path, "/", "_")), "_")
	}

	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	if desc == "" {
		desc = fmt.Sprintf("%s %s", method, path)
	}

	properties := make(map[string]any)
	var required []string
	for _, param := range op.Parameters {
		properties[param.Name] = paramSchema(param)
		if param.Required {
			required = append(required, param.Name)
		}
	}

	if op.RequestBody != nil {
		if content, ok := op.RequestBody.Content["application/json"]; ok && content.Schema != nil {
			if content.Schema.Properties != nil {
				for propName, prop := range content.Schema.Properties {
					properties[propName] = schemaMap(prop)
				}
				required = append(required, content.Schema.Required...)
			} else {
				properties["body"] = schemaMap(content.Schema)
				if op.RequestBody.Required {
					required = append(required, "body")
				}
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return loader.Tool{
		Name:        name,
		Description: desc,
		InputSchema: schema,
		Invoke:      c.requestFunc(path, method, op),
	}
}

func paramSchema(param Parameter) map[string]any {
	schema := map[string]any{
		"type":        "string",
		"description": param.Description,
	}
	if param.Schema != nil {
		if param.Schema.Type != "" {
			schema["type"] = param.Schema.Type
		}
		if len(param.Schema.Enum) > 0 {
			schema["enum"] = param.Schema.Enum
		}
		if param.Schema.Default != nil {
			schema["default"] = param.Schema.Default
		}
	}
	return schema
}

func schemaMap(schema *Schema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "string"}
	}

	result := map[string]any{}
	if schema.Type != "" {
		result["type"] = schema.Type
	}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	if schema.Default != nil {
		result["default"] = schema.Default
	}
	if schema.Properties != nil {
		props := make(map[string]any)
		for name, prop := range schema.Properties {
			props[name] = schemaMap(prop)
		}
		result["properties"] = props
	}
	if schema.Items != nil {
		result["items"] = schemaMap(schema.Items)
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	return result
}

// requestFunc builds the invoke closure for one operation. Parameters are
// routed by their declared location; leftover arguments become the JSON body
// when the operation takes one.
func (c *OpenAPI) requestFunc(path, method string, op *Operation) loader.InvokeFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		finalPath := path
		query := url.Values{}
		headers := http.Header{}
		var bodyData []byte

		for _, param := range op.Parameters {
			value, ok := args[param.Name]
			if !ok {
				continue
			}
			str := fmt.Sprintf("%v", value)
			switch param.In {
			case "path":
				finalPath = strings.ReplaceAll(finalPath, "{"+param.Name+"}", str)
			case "query":
				query.Set(param.Name, str)
			case "header":
				headers.Set(param.Name, str)
			}
		}

		if op.RequestBody != nil {
			if body, ok := args["body"]; ok {
				bodyData, _ = json.Marshal(body)
			} else if fields := bodyFields(args, op.Parameters); len(fields) > 0 {
				bodyData, _ = json.Marshal(fields)
			}
		}

		finalURL := c.baseURL + finalPath
		if len(query) > 0 {
			finalURL += "?" + query.Encode()
		}

		var bodyReader io.Reader
		if bodyData != nil {
			bodyReader = strings.NewReader(string(bodyData))
		}
		req, err := http.NewRequestWithContext(ctx, method, finalURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		if bodyData != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.auth.apply(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		// Structured output when the API returns JSON, raw text otherwise.
		var decoded any
		if json.Unmarshal(respBody, &decoded) == nil {
			return decoded, nil
		}
		return string(respBody), nil
	}
}

// bodyFields returns the arguments that are not declared parameters.
func bodyFields(args map[string]any, params []Parameter) map[string]any {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	fields := make(map[string]any)
	for key, value := range args {
		if !declared[key] {
			fields[key] = value
		}
	}
	return fields
}

func (a httpAuth) apply(req *http.Request) {
	switch a.kind {
	case authAPIKey:
		header := a.header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, a.apiKey)
	case authBearer:
		req.Header.Set("Authorization", "Bearer "+a.token)
	case authBasic:
		req.SetBasicAuth(a.user, a.pass)
	}
}
