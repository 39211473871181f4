// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package compose provides batch execution modes over the single-call
// engine: independent parallel fan-out and dependency-chained sequential
// pipelines.
package compose

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/switchyard-io/switchyard/pkg/engine"
)

const defaultParallelLimit = 16

// Call identifies one adapter invocation in a batch.
type Call struct {
	AdapterID  string          `json:"adapter_id"`
	Tool       string          `json:"tool_name"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Options    *engine.Options `json:"options,omitempty"`
}

// Step is one stage of a sequential pipeline. When Build is set it derives
// the step's parameters from the results gathered so far, replacing
// Parameters; it must be a pure function of its argument.
type Step struct {
	Call
	Build func(prior []engine.Result) map[string]any
}

// Composer runs batches over an engine.
type Composer struct {
	engine *engine.Engine
	limit  int
}

// Option customizes a Composer.
type Option func(*Composer)

// WithParallelLimit bounds how many calls of one parallel batch run at once.
func WithParallelLimit(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.limit = n
		}
	}
}

// New builds a composer over eng.
func New(eng *engine.Engine, opts ...Option) *Composer {
	c := &Composer{engine: eng, limit: defaultParallelLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parallel invokes every call concurrently and returns results in input
// order once all calls have settled. One call's failure never cancels its
// siblings; each slot holds that call's own outcome.
func (c *Composer) Parallel(ctx context.Context, calls []Call) []engine.Result {
	results := make([]engine.Result, len(calls))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = c.engine.Execute(ctx, call.AdapterID, call.Tool, call.Parameters, call.Options)
			return nil
		})
	}
	// Workers never return errors; failures live in their result slots.
	_ = g.Wait()
	return results
}

// Sequence invokes steps one at a time in list order. Each step sees a copy
// of the prior results, so a pipeline can thread one adapter's output into
// the next call's parameters. The pipeline stops at the first failure and
// returns everything gathered so far, including the failing result; later
// steps are never attempted.
func (c *Composer) Sequence(ctx context.Context, steps []Step) []engine.Result {
	results := make([]engine.Result, 0, len(steps))
	for _, step := range steps {
		params := step.Parameters
		if step.Build != nil {
			prior := make([]engine.Result, len(results))
			copy(prior, results)
			params = step.Build(prior)
		}

		res := c.engine.Execute(ctx, step.AdapterID, step.Tool, params, step.Options)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}
