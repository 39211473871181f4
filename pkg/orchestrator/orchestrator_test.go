// SPDX-License-Identifier: Apache-2.0
package orchestrator

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/switchyard-io/switchyard/pkg/compose"
	"github.com/switchyard-io/switchyard/pkg/core"
	"github.com/switchyard-io/switchyard/pkg/engine"
	serrors "github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/loader"
	"github.com/switchyard-io/switchyard/pkg/policy"
	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/stats"
)

type fixture struct {
	orch   *Orchestrator
	static *loader.Static
}

func newFixture(t *testing.T, creds policy.MapCredentials, descriptors ...registry.Descriptor) *fixture {
	t.Helper()
	reg, err := registry.New(descriptors)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	static := loader.NewStatic()
	orch := New(reg, policy.NewGate(creds, nil), static, stats.NewMemory(),
		WithEngineOptions(engine.WithBackoffBase(time.Millisecond)))
	return &fixture{orch: orch, static: static}
}

func registerTool(static *loader.Static, adapter, tool string, fn loader.InvokeFunc) {
	static.RegisterAdapter(adapter, loader.AdapterFunc(func(_ context.Context) ([]loader.Tool, error) {
		return []loader.Tool{{Name: tool, Description: tool + " tool", Invoke: fn}}, nil
	}))
}

func echo(_ context.Context, params map[string]any) (any, error) {
	return params["msg"], nil
}

func TestListAdaptersReportsAvailability(t *testing.T) {
	f := newFixture(t, nil,
		registry.Descriptor{ID: "alive", Category: "data", Location: "static:alive"},
		registry.Descriptor{ID: "dead", Category: "data", Location: "static:dead"},
	)
	registerTool(f.static, "alive", "echo", echo)

	infos := f.orch.ListAdapters(context.Background())
	if len(infos) != 2 {
		t.Fatalf("adapters = %d, want 2", len(infos))
	}
	// Sorted by ID: alive before dead.
	if infos[0].ID != "alive" || !infos[0].Available {
		t.Errorf("alive = %+v", infos[0])
	}
	if infos[1].ID != "dead" || infos[1].Available {
		t.Errorf("dead = %+v", infos[1])
	}
}

func TestCategoryQueries(t *testing.T) {
	f := newFixture(t, nil,
		registry.Descriptor{ID: "gh", Category: "development", Location: "static:gh"},
		registry.Descriptor{ID: "jira", Category: "development", Location: "static:jira"},
		registry.Descriptor{ID: "s3", Category: "storage", Location: "static:s3"},
	)

	cats := f.orch.ListCategories()
	if !reflect.DeepEqual(cats, []string{"development", "storage"}) {
		t.Errorf("categories = %v", cats)
	}
	dev := f.orch.ListAdaptersByCategory("development")
	if !reflect.DeepEqual(dev, []string{"gh", "jira"}) {
		t.Errorf("development adapters = %v", dev)
	}
	if got := f.orch.ListAdaptersByCategory("nonexistent"); len(got) != 0 {
		t.Errorf("unknown category = %v", got)
	}
}

func TestCheckAuthentication(t *testing.T) {
	f := newFixture(t, policy.MapCredentials{"TOKEN_A": "set"},
		registry.Descriptor{
			ID: "partial", Location: "static:partial",
			Auth: &registry.AuthConfig{Kind: registry.CredentialBearer, Sources: []string{"TOKEN_A", "TOKEN_B"}, Mandatory: true},
		},
		registry.Descriptor{ID: "open", Location: "static:open"},
	)

	status, err := f.orch.CheckAuthentication("partial")
	if err != nil {
		t.Fatalf("CheckAuthentication: %v", err)
	}
	if status.Authenticated || !status.Required {
		t.Errorf("status = %+v", status)
	}
	if !reflect.DeepEqual(status.MissingSources, []string{"TOKEN_B"}) {
		t.Errorf("missing = %v, want [TOKEN_B]", status.MissingSources)
	}

	status, err = f.orch.CheckAuthentication("open")
	if err != nil {
		t.Fatalf("CheckAuthentication: %v", err)
	}
	if !status.Authenticated || status.Required {
		t.Errorf("open status = %+v", status)
	}

	if _, err := f.orch.CheckAuthentication("ghost"); err == nil {
		t.Fatal("unknown adapter must fail")
	} else {
		var e *serrors.Error
		if !stderrors.As(err, &e) || e.Code != serrors.CodeNotFound {
			t.Errorf("error = %v, want NOT_FOUND", err)
		}
	}
}

func TestLoadToolsDoesNotConsumeRateSlots(t *testing.T) {
	f := newFixture(t, nil, registry.Descriptor{
		ID: "tight", Location: "static:tight",
		RateLimit: &registry.RateLimit{PerMinute: 1},
	})
	registerTool(f.static, "tight", "echo", echo)

	for i := 0; i < 5; i++ {
		tools, err := f.orch.LoadTools(context.Background(), "tight")
		if err != nil {
			t.Fatalf("LoadTools #%d: %v", i, err)
		}
		if len(tools) != 1 || tools[0].Name != "echo" {
			t.Fatalf("tools = %+v", tools)
		}
	}

	// The single slot is still free for a real call.
	res := f.orch.Execute(context.Background(), "tight", "echo", map[string]any{"msg": "hi"}, nil)
	if !res.Success {
		t.Fatalf("execute after listing failed: %+v", res.Err)
	}
}

func TestExecuteAndUsageStats(t *testing.T) {
	f := newFixture(t, nil, registry.Descriptor{ID: "svc", Location: "static:svc"})
	registerTool(f.static, "svc", "echo", echo)

	res := f.orch.Execute(context.Background(), "svc", "echo", map[string]any{"msg": "hello"}, nil)
	if !res.Success || res.Data != "hello" {
		t.Fatalf("result = %+v", res)
	}

	usage, ok := f.orch.UsageStats("svc")
	if !ok || usage.TotalRequests != 1 || usage.SuccessfulRequests != 1 {
		t.Errorf("usage = %+v, ok=%v", usage, ok)
	}
	if _, ok := f.orch.UsageStats("never-called"); ok {
		t.Errorf("uncalled adapter must have no stats")
	}

	f.orch.ResetUsageStats("svc")
	if _, ok := f.orch.UsageStats("svc"); ok {
		t.Errorf("stats must be gone after reset")
	}
}

func TestResetAllUsageStats(t *testing.T) {
	f := newFixture(t, nil,
		registry.Descriptor{ID: "a", Location: "static:a"},
		registry.Descriptor{ID: "b", Location: "static:b"},
	)
	registerTool(f.static, "a", "echo", echo)
	registerTool(f.static, "b", "echo", echo)

	f.orch.Execute(context.Background(), "a", "echo", nil, nil)
	f.orch.Execute(context.Background(), "b", "echo", nil, nil)
	if len(f.orch.AllUsageStats()) != 2 {
		t.Fatalf("stats = %v", f.orch.AllUsageStats())
	}

	f.orch.ResetAllUsageStats()
	if len(f.orch.AllUsageStats()) != 0 {
		t.Errorf("stats must be empty after reset all")
	}
}

func TestExecuteParallelThroughFacade(t *testing.T) {
	f := newFixture(t, nil,
		registry.Descriptor{ID: "x", Location: "static:x"},
		registry.Descriptor{ID: "y", Location: "static:y"},
	)
	registerTool(f.static, "x", "echo", echo)
	registerTool(f.static, "y", "echo", echo)

	results := f.orch.ExecuteParallel(context.Background(), []compose.Call{
		{AdapterID: "x", Tool: "echo", Parameters: map[string]any{"msg": "first"}},
		{AdapterID: "y", Tool: "echo", Parameters: map[string]any{"msg": "second"}},
	})
	if len(results) != 2 || results[0].Data != "first" || results[1].Data != "second" {
		t.Fatalf("results = %+v", results)
	}
}

func TestExecuteSequenceThroughFacade(t *testing.T) {
	f := newFixture(t, nil,
		registry.Descriptor{ID: "x", Location: "static:x"},
		registry.Descriptor{ID: "y", Location: "static:y"},
	)
	registerTool(f.static, "x", "echo", echo)
	registerTool(f.static, "y", "echo", echo)

	results := f.orch.ExecuteSequence(context.Background(), []compose.Step{
		{Call: compose.Call{AdapterID: "x", Tool: "echo", Parameters: map[string]any{"msg": "seed"}}},
		{
			Call: compose.Call{AdapterID: "y", Tool: "echo"},
			Build: func(prior []engine.Result) map[string]any {
				return map[string]any{"msg": prior[0].Data}
			},
		},
	})
	if len(results) != 2 || results[1].Data != "seed" {
		t.Fatalf("results = %+v", results)
	}
}

func TestHealthCheckSnapshot(t *testing.T) {
	f := newFixture(t, policy.MapCredentials{},
		registry.Descriptor{
			ID: "locked", Location: "static:locked",
			Auth:      &registry.AuthConfig{Kind: registry.CredentialAPIKey, Sources: []string{"LOCKED_KEY"}, Mandatory: true},
			RateLimit: &registry.RateLimit{PerMinute: 1},
		},
		registry.Descriptor{ID: "open", Location: "static:open"},
	)
	registerTool(f.static, "open", "echo", echo)

	f.orch.Execute(context.Background(), "open", "echo", nil, nil)

	health := f.orch.HealthCheck(context.Background())
	if len(health) != 2 {
		t.Fatalf("entries = %d, want 2", len(health))
	}
	locked, open := health[0], health[1]
	if locked.AdapterID != "locked" || open.AdapterID != "open" {
		t.Fatalf("order = %s, %s", locked.AdapterID, open.AdapterID)
	}

	if locked.Available || locked.Authenticated {
		t.Errorf("locked = %+v", locked)
	}
	if !locked.LastUsedAt.IsZero() {
		t.Errorf("locked was never used, got %v", locked.LastUsedAt)
	}
	if !open.Available || !open.Authenticated || open.LastUsedAt.IsZero() {
		t.Errorf("open = %+v", open)
	}
	if open.RateLimit != core.RateLimitOK {
		t.Errorf("open rate state = %s", open.RateLimit)
	}
}

func TestHealthCheckIsObservational(t *testing.T) {
	f := newFixture(t, nil, registry.Descriptor{
		ID: "tight", Location: "static:tight",
		RateLimit: &registry.RateLimit{PerMinute: 1},
	})
	registerTool(f.static, "tight", "echo", echo)

	// Exhaust the single slot.
	if res := f.orch.Execute(context.Background(), "tight", "echo", nil, nil); !res.Success {
		t.Fatalf("first call failed: %+v", res.Err)
	}

	first := f.orch.HealthCheck(context.Background())
	second := f.orch.HealthCheck(context.Background())
	if first[0].RateLimit != core.RateLimitExceeded {
		t.Fatalf("rate state = %s, want exceeded", first[0].RateLimit)
	}
	if second[0].RateLimit != first[0].RateLimit {
		t.Errorf("health check mutated rate-limit state: %s then %s",
			first[0].RateLimit, second[0].RateLimit)
	}
}

func TestCloseReleasesLoader(t *testing.T) {
	f := newFixture(t, nil, registry.Descriptor{ID: "a", Location: "static:a"})
	if err := f.orch.Close(); err != nil {
		t.Errorf("Close on static loader = %v", err)
	}
}
