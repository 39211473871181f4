// SPDX-License-Identifier: Apache-2.0
package loader

import (
	"context"
	stderrors "errors"
	"testing"

	serrors "github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/registry"
)

func echoAdapter() Adapter {
	return AdapterFunc(func(_ context.Context) ([]Tool, error) {
		return []Tool{{
			Name:        "echo",
			Description: "returns its input",
			Invoke: func(_ context.Context, params map[string]any) (any, error) {
				return params["message"], nil
			},
		}}, nil
	})
}

func staticDescriptor(name string) registry.Descriptor {
	return registry.Descriptor{ID: name, Location: "static:" + name}
}

func codeOf(t *testing.T, err error) serrors.ErrorCode {
	t.Helper()
	var se *serrors.Error
	if !stderrors.As(err, &se) {
		t.Fatalf("expected typed error, got %v", err)
	}
	return se.Code
}

func TestStaticLoadTools(t *testing.T) {
	s := NewStatic()
	s.RegisterAdapter("echo", echoAdapter())

	tools, err := s.LoadTools(context.Background(), staticDescriptor("echo"))
	if err != nil {
		t.Fatalf("LoadTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}

	out, err := tools[0].Invoke(context.Background(), map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "hi" {
		t.Errorf("Invoke = %v, want hi", out)
	}
}

func TestStaticUnregistered(t *testing.T) {
	s := NewStatic()
	_, err := s.LoadTools(context.Background(), staticDescriptor("nope"))
	if codeOf(t, err) != serrors.CodeAdapterUnavailable {
		t.Errorf("expected ADAPTER_UNAVAILABLE, got %v", err)
	}
	if s.Probe(context.Background(), staticDescriptor("nope")) {
		t.Errorf("probe must fail for unregistered adapter")
	}
}

func TestStaticEmptyToolSet(t *testing.T) {
	s := NewStatic()
	s.RegisterAdapter("hollow", AdapterFunc(func(_ context.Context) ([]Tool, error) {
		return nil, nil
	}))

	_, err := s.LoadTools(context.Background(), staticDescriptor("hollow"))
	if codeOf(t, err) != serrors.CodeEmptyToolSet {
		t.Errorf("expected EMPTY_TOOLSET, got %v", err)
	}
	// Empty tool sets still probe as available: resolution succeeded.
	if !s.Probe(context.Background(), staticDescriptor("hollow")) {
		t.Errorf("registered adapter must probe available")
	}
}

func TestStaticFactoryError(t *testing.T) {
	s := NewStatic()
	s.Register("broken", func() (Adapter, error) {
		return nil, stderrors.New("factory exploded")
	})

	_, err := s.LoadTools(context.Background(), staticDescriptor("broken"))
	if codeOf(t, err) != serrors.CodeAdapterUnavailable {
		t.Errorf("expected ADAPTER_UNAVAILABLE, got %v", err)
	}
}

func TestFindTool(t *testing.T) {
	tools := []Tool{{Name: "a"}, {Name: "b"}}

	if _, err := FindTool(tools, "x", "b"); err != nil {
		t.Fatalf("FindTool: %v", err)
	}
	_, err := FindTool(tools, "x", "c")
	if codeOf(t, err) != serrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
