// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine executes single adapter calls: it resolves the descriptor,
// runs the policy gate, invokes the tool handle under a deadline with
// bounded, classified retries, and records telemetry. Every call yields a
// Result; the engine never lets a failure escape as a raw error.
package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchyard-io/switchyard/pkg/core"
	"github.com/switchyard-io/switchyard/pkg/errors"
	"github.com/switchyard-io/switchyard/pkg/loader"
	"github.com/switchyard-io/switchyard/pkg/policy"
	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/stats"
)

const (
	// DefaultTimeout bounds an attempt when neither the call options nor the
	// descriptor set one.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget when the options leave it unset.
	DefaultMaxRetries = 3

	defaultBackoffBase = 1 * time.Second
)

// Options tune a single execute call.
type Options struct {
	// Timeout overrides the descriptor and global defaults when positive.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Negative
	// means use DefaultMaxRetries; zero means a single attempt.
	MaxRetries int

	// SkipRateLimit bypasses the rate check. Authentication always runs.
	SkipRateLimit bool
}

// DefaultOptions returns the options execute uses when passed nil.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries}
}

// MetricsRecorder receives one observation per completed execute call.
type MetricsRecorder interface {
	RecordInvocation(ctx context.Context, adapterID, tool string, success bool, code errors.ErrorCode, duration time.Duration)
}

// Engine is the single-call execution core.
type Engine struct {
	registry *registry.Registry
	gate     *policy.Gate
	loader   loader.Loader
	store    stats.Store
	emitter  core.EventEmitter
	metrics  MetricsRecorder
	logger   *slog.Logger
	tracer   trace.Tracer

	defaultTimeout time.Duration
	backoffBase    time.Duration
	now            func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEmitter subscribes an event emitter to completion notifications.
func WithEmitter(e core.EventEmitter) Option {
	return func(eng *Engine) {
		if e != nil {
			eng.emitter = e
		}
	}
}

// WithMetrics wires an invocation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(eng *Engine) { eng.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) {
		if l != nil {
			eng.logger = l
		}
	}
}

// WithDefaultTimeout overrides the global per-attempt deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(eng *Engine) {
		if d > 0 {
			eng.defaultTimeout = d
		}
	}
}

// WithBackoffBase sets the unit for exponential backoff (base << attempt).
// Tests shrink it to keep retry suites fast.
func WithBackoffBase(d time.Duration) Option {
	return func(eng *Engine) {
		if d > 0 {
			eng.backoffBase = d
		}
	}
}

// WithClock injects a time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) {
		if now != nil {
			eng.now = now
		}
	}
}

// New builds an engine over its collaborators.
func New(reg *registry.Registry, gate *policy.Gate, ld loader.Loader, store stats.Store, opts ...Option) *Engine {
	eng := &Engine{
		registry:       reg,
		gate:           gate,
		loader:         ld,
		store:          store,
		emitter:        core.NoopEventEmitter{},
		logger:         slog.Default(),
		tracer:         otel.Tracer("switchyard/engine"),
		defaultTimeout: DefaultTimeout,
		backoffBase:    defaultBackoffBase,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Execute runs one adapter call to completion. The returned Result is final:
// retries, classification, and telemetry have all been applied.
func (eng *Engine) Execute(ctx context.Context, adapterID, toolName string, params map[string]any, opts *Options) Result {
	options := DefaultOptions()
	if opts != nil {
		options = *opts
		if options.MaxRetries < 0 {
			options.MaxRetries = DefaultMaxRetries
		}
	}

	started := eng.now()
	res := Result{
		AdapterID: adapterID,
		Tool:      toolName,
		RequestID: uuid.NewString(),
		Timestamp: started.UTC(),
	}

	ctx, span := eng.tracer.Start(ctx, "engine.execute", trace.WithAttributes(
		attribute.String("adapter.id", adapterID),
		attribute.String("tool.name", toolName),
	))
	defer span.End()

	desc, err := eng.registry.Resolve(adapterID)
	if err != nil {
		return eng.finish(ctx, res, nil, errors.AsError(err), started)
	}

	if err := eng.gate.Admit(desc, options.SkipRateLimit); err != nil {
		// Policy failures are terminal: no attempts, no backoff.
		return eng.finish(ctx, res, &desc, errors.AsError(err), started)
	}

	timeout := eng.timeoutFor(desc, options)
	var lastErr *errors.Error
	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := eng.backoff(ctx, attempt-1); err != nil {
				lastErr = errors.New(errors.CodeInternal, "canceled while waiting to retry", err).
					WithContext("attempt", attempt)
				break
			}
		}
		res.Attempts = attempt + 1

		data, err := eng.attempt(ctx, desc, toolName, params, timeout)
		if err == nil {
			res.Success = true
			res.Data = data
			return eng.finish(ctx, res, &desc, nil, started)
		}

		lastErr = errors.AsError(err)
		if !lastErr.Recoverable {
			break
		}
		eng.logger.DebugContext(ctx, "adapter call attempt failed",
			"adapter", adapterID, "tool", toolName,
			"attempt", attempt+1, "code", string(lastErr.Code))
	}

	return eng.finish(ctx, res, &desc, lastErr, started)
}

// attempt performs one tool resolution and invocation under the deadline.
func (eng *Engine) attempt(ctx context.Context, desc registry.Descriptor, toolName string, params map[string]any, timeout time.Duration) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tools, err := eng.loader.LoadTools(attemptCtx, desc)
	if err != nil {
		return nil, eng.classify(attemptCtx, err)
	}
	tool, err := loader.FindTool(tools, desc.ID, toolName)
	if err != nil {
		return nil, err
	}

	data, err := tool.Invoke(attemptCtx, params)
	if err != nil {
		return nil, eng.classify(attemptCtx, err)
	}
	return data, nil
}

// classify maps a raw failure onto the taxonomy. A breached deadline is a
// TIMEOUT regardless of how the transport surfaced it.
func (eng *Engine) classify(attemptCtx context.Context, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "adapter call exceeded deadline", err)
	}
	return errors.AsError(err)
}

func (eng *Engine) timeoutFor(desc registry.Descriptor, options Options) time.Duration {
	switch {
	case options.Timeout > 0:
		return options.Timeout
	case desc.Timeout > 0:
		return desc.Timeout
	default:
		return eng.defaultTimeout
	}
}

// backoff waits backoffBase << attempt, honoring cancellation.
func (eng *Engine) backoff(ctx context.Context, attempt int) error {
	wait := eng.backoffBase << attempt
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish seals the result: usage stats are recorded exactly once per call
// (only for resolved adapters), and exactly one completion event is emitted.
func (eng *Engine) finish(ctx context.Context, res Result, desc *registry.Descriptor, failure *errors.Error, started time.Time) Result {
	if failure != nil {
		res.Success = false
		res.Err = failure
		res.Data = nil
	}
	duration := eng.now().Sub(started)
	res.ExecutionTimeMs = duration.Milliseconds()

	if desc != nil {
		usage := eng.store.Record(desc.ID, res.Success, duration)
		res.RequestCount = usage.TotalRequests
	}
	if eng.metrics != nil {
		eng.metrics.RecordInvocation(ctx, res.AdapterID, res.Tool, res.Success, res.ErrorCode(), duration)
	}

	payload := map[string]any{
		"success":     res.Success,
		"attempts":    res.Attempts,
		"duration_ms": res.ExecutionTimeMs,
	}
	if res.Err != nil {
		payload["code"] = string(res.Err.Code)
	}
	eng.emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, res.AdapterID, res.Tool, res.RequestID, payload))

	if res.Success {
		eng.logger.DebugContext(ctx, "adapter call completed",
			"adapter", res.AdapterID, "tool", res.Tool, "duration_ms", res.ExecutionTimeMs)
	} else {
		eng.logger.WarnContext(ctx, "adapter call failed",
			"adapter", res.AdapterID, "tool", res.Tool,
			"code", string(res.ErrorCode()), "attempts", res.Attempts)
	}
	return res
}
