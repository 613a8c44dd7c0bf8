// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Sink accepts notifications. Resolver and recovery code depend only on
// this interface.
type Sink interface {
	Emit(ctx context.Context, eventType Type, data any)
}

// Handler processes one event. It runs on the emitting goroutine.
type Handler func(event *Event)

// Filter narrows a subscription beyond its types.
type Filter func(event *Event) bool

type subscriber struct {
	id      string
	types   map[Type]struct{}
	filter  Filter
	handler Handler
}

func (s *subscriber) wants(ev *Event) bool {
	if s.types != nil {
		if _, ok := s.types[ev.Type]; !ok {
			return false
		}
	}
	return s.filter == nil || s.filter(ev)
}

// Emitter delivers each event to its subscribers synchronously, in
// subscription order, and keeps the most recent events in a ring.
//
// Thread Safety: Safe for concurrent use. Handlers must not subscribe
// or unsubscribe on the emitter that is calling them.
type Emitter struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*subscriber // replaced, never mutated in place
	nextID int
	runID  string
	ring   []Event
	head   int
	filled bool
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize keeps the last size events; 0 keeps none.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) { e.ring = make([]Event, max(size, 0)) }
}

// WithRunID stamps every event with id until SetRunID changes it.
func WithRunID(id string) EmitterOption {
	return func(e *Emitter) { e.runID = id }
}

// WithLogger reports panicking handlers to l.
func WithLogger(l *slog.Logger) EmitterOption {
	return func(e *Emitter) { e.logger = l }
}

// NewEmitter creates an emitter that remembers the last 256 events.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{logger: slog.Default(), ring: make([]Event, 256)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers handler for types, or for every type when none are
// given, and returns an ID for Unsubscribe.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	return e.SubscribeWithFilter(handler, nil, types...)
}

// SubscribeWithFilter is Subscribe with an extra predicate.
func (e *Emitter) SubscribeWithFilter(handler Handler, filter Filter, types ...Type) string {
	s := &subscriber{handler: handler, filter: filter}
	if len(types) > 0 {
		s.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	s.id = "sub-" + strconv.Itoa(e.nextID)
	e.subs = append(e.subs[:len(e.subs):len(e.subs)], s)
	return s.id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id != id {
			continue
		}
		kept := make([]*subscriber, 0, len(e.subs)-1)
		kept = append(kept, e.subs[:i]...)
		e.subs = append(kept, e.subs[i+1:]...)
		return true
	}
	return false
}

// SubscriptionCount returns the number of live subscriptions.
func (e *Emitter) SubscriptionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// SetRunID changes the run ID stamped on later events.
func (e *Emitter) SetRunID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runID = id
}

// Emit implements Sink. A panicking handler is logged and the remaining
// handlers still run.
func (e *Emitter) Emit(ctx context.Context, eventType Type, data any) {
	ev := stamp(ctx, eventType, data)

	e.mu.Lock()
	ev.RunID = e.runID
	if len(e.ring) > 0 {
		e.ring[e.head] = ev
		e.head = (e.head + 1) % len(e.ring)
		e.filled = e.filled || e.head == 0
	}
	subs := e.subs
	e.mu.Unlock()

	for _, s := range subs {
		if s.wants(&ev) {
			e.deliver(s, &ev)
		}
	}
}

func (e *Emitter) deliver(s *subscriber, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				slog.String("subscription", s.id),
				slog.String("event_type", string(ev.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	s.handler(ev)
}

// Buffer returns the remembered events, oldest first.
func (e *Emitter) Buffer() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.filled {
		return append([]Event(nil), e.ring[:e.head]...)
	}
	out := make([]Event, 0, len(e.ring))
	out = append(out, e.ring[e.head:]...)
	return append(out, e.ring[:e.head]...)
}

// BufferByType returns the remembered events of one type, oldest first.
func (e *Emitter) BufferByType(eventType Type) []Event {
	var out []Event
	for _, ev := range e.Buffer() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// ClearBuffer forgets the remembered events.
func (e *Emitter) ClearBuffer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.ring)
	e.head, e.filled = 0, false
}

// stamp builds an event with a fresh ID and the span of ctx, if any.
func stamp(ctx context.Context, eventType Type, data any) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	if ctx == nil {
		return ev
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID, ev.SpanID = sc.TraceID().String(), sc.SpanID().String()
	}
	return ev
}
