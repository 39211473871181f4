// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/switchyard-io/switchyard/pkg/errors"
)

// Semantic attribute keys for adapter invocation telemetry.
const (
	AttrAdapterID   = "switchyard.adapter.id"
	AttrToolName    = "switchyard.tool.name"
	AttrErrorCode   = "switchyard.error.code"
	AttrSuccess     = "switchyard.call.success"
	AttrRecoverable = "switchyard.error.recoverable"
)

// InvocationMetrics tracks adapter call volume, latency, and failure codes.
// It satisfies the engine's MetricsRecorder.
type InvocationMetrics struct {
	callCounter  metric.Int64Counter
	errorCounter metric.Int64Counter
	callDuration metric.Float64Histogram
	rateGauge    metric.Int64Gauge
}

// NewInvocationMetrics creates the invocation instruments on the global meter.
func NewInvocationMetrics() (*InvocationMetrics, error) {
	meter := otel.Meter("switchyard/engine")

	callCounter, err := meter.Int64Counter(
		"switchyard.calls.total",
		metric.WithDescription("Adapter invocations by adapter, tool, and outcome"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"switchyard.calls.errors",
		metric.WithDescription("Failed adapter invocations by error code"),
	)
	if err != nil {
		return nil, err
	}

	callDuration, err := meter.Float64Histogram(
		"switchyard.calls.duration_ms",
		metric.WithDescription("Adapter invocation wall time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rateGauge, err := meter.Int64Gauge(
		"switchyard.ratelimit.exceeded",
		metric.WithDescription("1 when the adapter's sliding window is at its ceiling"),
	)
	if err != nil {
		return nil, err
	}

	return &InvocationMetrics{
		callCounter:  callCounter,
		errorCounter: errorCounter,
		callDuration: callDuration,
		rateGauge:    rateGauge,
	}, nil
}

// RecordInvocation records one completed execute call.
func (im *InvocationMetrics) RecordInvocation(ctx context.Context, adapterID, tool string, success bool, code errors.ErrorCode, duration time.Duration) {
	if im == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrAdapterID, adapterID),
		attribute.String(AttrToolName, tool),
		attribute.Bool(AttrSuccess, success),
	}
	im.callCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	im.callDuration.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(attrs...))

	if !success {
		im.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrAdapterID, adapterID),
			attribute.String(AttrErrorCode, string(code)),
		))
	}
}

// RecordRateLimitState records whether an adapter's window is at its ceiling,
// from health snapshots.
func (im *InvocationMetrics) RecordRateLimitState(ctx context.Context, adapterID string, exceeded bool) {
	if im == nil {
		return
	}
	var v int64
	if exceeded {
		v = 1
	}
	im.rateGauge.Record(ctx, v, metric.WithAttributes(
		attribute.String(AttrAdapterID, adapterID),
	))
}
