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
	"slices"
	"sync"
)

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Type, any) {}

// MockEmitter keeps every event it is given, for assertions in tests.
type MockEmitter struct {
	mu     sync.Mutex
	events []Event
}

func NewMockEmitter() *MockEmitter { return &MockEmitter{} }

func (m *MockEmitter) Emit(ctx context.Context, eventType Type, data any) {
	ev := stamp(ctx, eventType, data)
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// Events returns what was emitted, in order.
func (m *MockEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Types returns the type of each emitted event, in order.
func (m *MockEmitter) Types() []Type {
	evs := m.Events()
	out := make([]Type, len(evs))
	for i := range evs {
		out[i] = evs[i].Type
	}
	return out
}

// Count returns how many events of eventType were emitted.
func (m *MockEmitter) Count(eventType Type) int {
	n := 0
	for _, t := range m.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func (m *MockEmitter) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

var (
	_ Sink = (*Emitter)(nil)
	_ Sink = (*MockEmitter)(nil)
	_ Sink = Discard{}
)
