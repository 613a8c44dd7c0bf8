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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_SubscribeByType(t *testing.T) {
	e := NewEmitter(WithRunID("run-1"))
	ctx := context.Background()

	var limits, all []*Event
	e.Subscribe(func(ev *Event) { limits = append(limits, ev) }, TypeLimit)
	e.Subscribe(func(ev *Event) { all = append(all, ev) })

	e.Emit(ctx, TypeLimit, LimitData{LimitNumber: "10"})
	e.Emit(ctx, TypeOffset, OffsetData{OffsetNumber: "5"})

	require.Len(t, limits, 1)
	assert.Len(t, all, 2)
	assert.Equal(t, "run-1", limits[0].RunID)
	assert.NotEmpty(t, limits[0].ID)
	assert.Positive(t, limits[0].Timestamp)
	assert.Equal(t, LimitData{LimitNumber: "10"}, limits[0].Data)
}

func TestEmitter_FilterAndUnsubscribe(t *testing.T) {
	e := NewEmitter()
	ctx := context.Background()

	count := 0
	id := e.SubscribeWithFilter(func(*Event) { count++ }, func(ev *Event) bool {
		d, ok := ev.Data.(GroupByData)
		return ok && d.Action == GroupByCount
	})
	e.Emit(ctx, TypeGroupByAction, GroupByData{Action: GroupByCount})
	e.Emit(ctx, TypeGroupByAction, GroupByData{Action: "sum"})
	assert.Equal(t, 1, count)

	assert.True(t, e.Unsubscribe(id))
	assert.False(t, e.Unsubscribe(id))
	e.Emit(ctx, TypeGroupByAction, GroupByData{Action: GroupByCount})
	assert.Equal(t, 1, count)
	assert.Zero(t, e.SubscriptionCount())
}

func TestEmitter_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	e := NewEmitter()
	delivered := false
	e.Subscribe(func(*Event) { panic("boom") })
	e.Subscribe(func(*Event) { delivered = true })

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), TypeOrderDate, OrderDateData{Order: "ASC"})
	})
	assert.True(t, delivered)
}

func TestEmitter_BufferBounded(t *testing.T) {
	e := NewEmitter(WithBufferSize(2))
	ctx := context.Background()
	e.Emit(ctx, TypeLimit, LimitData{LimitNumber: "1"})
	e.Emit(ctx, TypeLimit, LimitData{LimitNumber: "2"})
	e.Emit(ctx, TypeOffset, OffsetData{OffsetNumber: "3"})

	buf := e.Buffer()
	require.Len(t, buf, 2)
	assert.Equal(t, TypeLimit, buf[0].Type)
	assert.Len(t, e.BufferByType(TypeOffset), 1)

	e.ClearBuffer()
	assert.Empty(t, e.Buffer())
}

func TestRecorder_AccumulatesAlterations(t *testing.T) {
	e := NewEmitter()
	r := NewRecorder(e)
	defer r.Close()
	ctx := context.Background()

	assert.True(t, r.Alterations().IsZero())

	e.Emit(ctx, TypeLimit, LimitData{LimitNumber: "10"})
	e.Emit(ctx, TypeLimit, LimitData{LimitNumber: "20"})
	e.Emit(ctx, TypeOffset, OffsetData{OffsetNumber: "5"})
	e.Emit(ctx, TypeGroupByAction, GroupByData{Action: GroupByCount})
	e.Emit(ctx, TypeOrderDate, OrderDateData{Order: "DESC"})
	e.Emit(ctx, TypeFilter, FilterData{Keywords: []string{"french", "film"}})
	e.Emit(ctx, TypeTermCmdBackup, TermBackupData{Message: "retrying as match"})

	alt := r.Alterations()
	assert.Equal(t, "20", alt.Limit)
	assert.Equal(t, "5", alt.Offset)
	assert.Equal(t, GroupByCount, alt.GroupByAction)
	assert.True(t, alt.OrderByDate)
	assert.Equal(t, []string{"french", "film"}, alt.Filters)
	assert.Equal(t, []string{"retrying as match"}, alt.Backups)

	r.Reset()
	assert.True(t, r.Alterations().IsZero())
}

func TestRecorder_CloseStopsRecording(t *testing.T) {
	e := NewEmitter()
	r := NewRecorder(e)
	r.Close()

	e.Emit(context.Background(), TypeLimit, LimitData{LimitNumber: "3"})
	assert.Empty(t, r.Alterations().Limit)
}

func TestMockEmitter(t *testing.T) {
	m := NewMockEmitter()
	ctx := context.Background()
	m.Emit(ctx, TypeLimit, LimitData{LimitNumber: "1"})
	m.Emit(ctx, TypeTermCmdBackup, TermBackupData{Message: "x"})

	assert.Equal(t, []Type{TypeLimit, TypeTermCmdBackup}, m.Types())
	assert.Equal(t, 1, m.Count(TypeLimit))
	require.Len(t, m.Events(), 2)

	m.Reset()
	assert.Empty(t, m.Events())
}

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter(WithBufferSize(0))
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		e.Subscribe(func(*Event) { order = append(order, name) })
	}
	e.Emit(context.Background(), TypeFilter, FilterData{Keywords: []string{"x"}})
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Empty(t, e.Buffer())
}

func TestEmitter_RingWrapsOldestFirst(t *testing.T) {
	e := NewEmitter(WithBufferSize(3))
	ctx := context.Background()
	for _, n := range []string{"1", "2", "3", "4", "5"} {
		e.Emit(ctx, TypeLimit, LimitData{LimitNumber: n})
	}
	var got []string
	for _, ev := range e.Buffer() {
		got = append(got, ev.Data.(LimitData).LimitNumber)
	}
	assert.Equal(t, []string{"3", "4", "5"}, got)
}
