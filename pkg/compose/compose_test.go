// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	serrors "github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/engine"
	"github.com/switchyard-io/switchyard/pkg/loader"
	"github.com/switchyard-io/switchyard/pkg/policy"
	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/stats"
)

func newComposer(t *testing.T, static *loader.Static, ids ...string) *Composer {
	t.Helper()
	descriptors := make([]registry.Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptors = append(descriptors, registry.Descriptor{ID: id, Location: "static:" + id})
	}
	reg, err := registry.New(descriptors)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	eng := engine.New(reg, policy.NewGate(policy.MapCredentials{}, nil), static, stats.NewMemory(),
		engine.WithBackoffBase(time.Millisecond))
	return New(eng)
}

func registerTool(static *loader.Static, adapter, tool string, fn loader.InvokeFunc) {
	static.RegisterAdapter(adapter, loader.AdapterFunc(func(_ context.Context) ([]loader.Tool, error) {
		return []loader.Tool{{Name: tool, Invoke: fn}}, nil
	}))
}

func TestParallelPreservesOrder(t *testing.T) {
	static := loader.NewStatic()
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("adapter-%d", i)
		delay := time.Duration(8-i) * time.Millisecond
		registerTool(static, id, "work", func(_ context.Context, _ map[string]any) (any, error) {
			// Later calls finish first to shake out ordering bugs.
			time.Sleep(delay)
			return id, nil
		})
	}
	c := newComposer(t, static,
		"adapter-0", "adapter-1", "adapter-2", "adapter-3",
		"adapter-4", "adapter-5", "adapter-6", "adapter-7")

	calls := make([]Call, 8)
	for i := range calls {
		calls[i] = Call{AdapterID: fmt.Sprintf("adapter-%d", i), Tool: "work"}
	}

	results := c.Parallel(context.Background(), calls)
	if len(results) != 8 {
		t.Fatalf("results = %d, want 8", len(results))
	}
	for i, res := range results {
		want := fmt.Sprintf("adapter-%d", i)
		if res.Data != want {
			t.Errorf("slot %d = %v, want %v", i, res.Data, want)
		}
	}
}

func TestParallelFailureDoesNotCancelSiblings(t *testing.T) {
	static := loader.NewStatic()
	var slowFinished atomic.Bool
	registerTool(static, "failing", "work", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, stderrors.New("immediate failure")
	})
	registerTool(static, "slow", "work", func(ctx context.Context, _ map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			slowFinished.Store(true)
			return "finished", nil
		}
	})
	c := newComposer(t, static, "failing", "slow")

	results := c.Parallel(context.Background(), []Call{
		{AdapterID: "failing", Tool: "work", Options: &engine.Options{MaxRetries: 0}},
		{AdapterID: "slow", Tool: "work"},
	})

	if results[0].Success {
		t.Errorf("slot 0 should have failed")
	}
	if !results[1].Success || !slowFinished.Load() {
		t.Errorf("sibling must run to completion despite the failure")
	}
}

func TestParallelRespectsLimit(t *testing.T) {
	static := loader.NewStatic()
	var mu sync.Mutex
	inFlight, peak := 0, 0
	registerTool(static, "counted", "work", func(_ context.Context, _ map[string]any) (any, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	})
	c := newComposer(t, static, "counted")
	c.limit = 2

	calls := make([]Call, 10)
	for i := range calls {
		calls[i] = Call{AdapterID: "counted", Tool: "work"}
	}
	c.Parallel(context.Background(), calls)

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestSequenceShortCircuits(t *testing.T) {
	static := loader.NewStatic()
	var invoked []string
	reg := func(id string, fail bool) {
		registerTool(static, id, "work", func(_ context.Context, _ map[string]any) (any, error) {
			invoked = append(invoked, id)
			if fail {
				return nil, stderrors.New(id + " failed")
			}
			return id + ":ok", nil
		})
	}
	reg("a", false)
	reg("b", true)
	reg("c", false)
	c := newComposer(t, static, "a", "b", "c")

	results := c.Sequence(context.Background(), []Step{
		{Call: Call{AdapterID: "a", Tool: "work"}},
		{Call: Call{AdapterID: "b", Tool: "work", Options: &engine.Options{MaxRetries: 0}}},
		{Call: Call{AdapterID: "c", Tool: "work"}},
	})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (a success, b failure)", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("outcomes = %v/%v, want success then failure", results[0].Success, results[1].Success)
	}
	if results[1].ErrorCode() != serrors.CodeInvocationFailed {
		t.Errorf("failure code = %s", results[1].ErrorCode())
	}
	for _, id := range invoked {
		if id == "c" {
			t.Errorf("step c must never be attempted after b fails")
		}
	}
}

func TestSequenceChainsResults(t *testing.T) {
	static := loader.NewStatic()
	registerTool(static, "fetch", "get", func(_ context.Context, _ map[string]any) (any, error) {
		return "record-42", nil
	})
	var received map[string]any
	registerTool(static, "store", "put", func(_ context.Context, params map[string]any) (any, error) {
		received = params
		return "stored", nil
	})
	c := newComposer(t, static, "fetch", "store")

	results := c.Sequence(context.Background(), []Step{
		{Call: Call{AdapterID: "fetch", Tool: "get"}},
		{
			Call: Call{AdapterID: "store", Tool: "put"},
			Build: func(prior []engine.Result) map[string]any {
				return map[string]any{"record": prior[0].Data}
			},
		},
	})

	if len(results) != 2 || !results[1].Success {
		t.Fatalf("pipeline failed: %+v", results)
	}
	if received["record"] != "record-42" {
		t.Errorf("chained parameter = %v, want record-42", received["record"])
	}
}

func TestSequenceEmptyAndParallelEmpty(t *testing.T) {
	c := newComposer(t, loader.NewStatic())
	if got := c.Sequence(context.Background(), nil); len(got) != 0 {
		t.Errorf("empty sequence = %v", got)
	}
	if got := c.Parallel(context.Background(), nil); len(got) != 0 {
		t.Errorf("empty parallel = %v", got)
	}
}
