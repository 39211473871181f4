// SPDX-License-Identifier: Apache-2.0
package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the execution engine.
type EventType string

const (
	EventCallStarted   EventType = "adapter.call.started"
	EventCallCompleted EventType = "adapter.call.completed"
	EventRateLimited   EventType = "adapter.call.ratelimited"
)

// Event captures a semantic orchestration event. The engine publishes exactly
// one EventCallCompleted per execute call, regardless of retry count.
type Event struct {
	Type      EventType
	AdapterID string
	Tool      string
	RequestID string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events. Implementations must be safe for
// concurrent use.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// MultiEmitter fans an event out to every registered emitter, in order.
type MultiEmitter []EventEmitter

// Emit implements EventEmitter.
func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		e.Emit(ctx, event)
	}
}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, adapterID, tool, requestID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		AdapterID: adapterID,
		Tool:      tool,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
