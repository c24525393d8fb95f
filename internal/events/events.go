// Package events carries status-changed notifications out of the workflow
// engine. Emission is fire-and-forget: the engine never blocks on or retries
// delivery, and sink failures never fail a transition.
package events

import (
	"context"
	"sync"
	"time"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
)

// StatusChanged describes one committed workflow transition.
type StatusChanged struct {
	RecordID   id.RecordID   `json:"record_id"`
	OldStatus  models.Status `json:"old_status"`
	NewStatus  models.Status `json:"new_status"`
	Action     models.Action `json:"action"`
	ActorID    id.UserID     `json:"actor_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Sink consumes status-changed events. Implementations must not block for
// long and must swallow their own delivery errors.
type Sink interface {
	Emit(ctx context.Context, event StatusChanged)
}

// MemorySink buffers events in memory. Used by tests and as the fan-in for
// in-process consumers like the statistics cache invalidator.
type MemorySink struct {
	mu        sync.Mutex
	events    []StatusChanged
	listeners []func(StatusChanged)
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Subscribe registers a callback invoked synchronously for every event.
func (s *MemorySink) Subscribe(fn func(StatusChanged)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *MemorySink) Emit(_ context.Context, event StatusChanged) {
	s.mu.Lock()
	s.events = append(s.events, event)
	listeners := append([]func(StatusChanged){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}

// Events returns a copy of everything emitted so far.
func (s *MemorySink) Events() []StatusChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatusChanged(nil), s.events...)
}

// Fanout emits to several sinks in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, event StatusChanged) {
	for _, sink := range f {
		sink.Emit(ctx, event)
	}
}
