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

import "sync"

// QueryAlterations are the query rewrites requested during a run. The
// last limit, offset and groupBy action win.
type QueryAlterations struct {
	Limit         string   `json:"limit,omitempty"`
	Offset        string   `json:"offset,omitempty"`
	GroupByAction string   `json:"groupby_action,omitempty"`
	OrderByDate   bool     `json:"order_by_date,omitempty"`
	Filters       []string `json:"filters,omitempty"`
	Backups       []string `json:"backups,omitempty"`
}

// IsZero reports whether nothing was requested.
func (q QueryAlterations) IsZero() bool {
	return q.Limit == "" && q.Offset == "" && q.GroupByAction == "" &&
		!q.OrderByDate && len(q.Filters) == 0 && len(q.Backups) == 0
}

// Recorder subscribes to an Emitter and accumulates QueryAlterations.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	alt     QueryAlterations
	emitter *Emitter
	subID   string
}

// NewRecorder subscribes a recorder to emitter.
func NewRecorder(emitter *Emitter) *Recorder {
	r := &Recorder{emitter: emitter}
	r.subID = emitter.Subscribe(r.handle, AllTypes...)
	return r
}

func (r *Recorder) handle(ev *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch d := ev.Data.(type) {
	case LimitData:
		r.alt.Limit = d.LimitNumber
	case OffsetData:
		r.alt.Offset = d.OffsetNumber
	case GroupByData:
		r.alt.GroupByAction = d.Action
	case OrderDateData:
		r.alt.OrderByDate = true
	case FilterData:
		r.alt.Filters = append(r.alt.Filters, d.Keywords...)
	case TermBackupData:
		r.alt.Backups = append(r.alt.Backups, d.Message)
	default:
		if ev.Type == TypeOrderDate {
			r.alt.OrderByDate = true
		}
	}
}

// Alterations returns a snapshot of what was recorded.
func (r *Recorder) Alterations() QueryAlterations {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.alt
	out.Filters = append([]string(nil), r.alt.Filters...)
	out.Backups = append([]string(nil), r.alt.Backups...)
	return out
}

// Reset clears what was recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alt = QueryAlterations{}
}

// Close unsubscribes the recorder.
func (r *Recorder) Close() {
	r.emitter.Unsubscribe(r.subID)
}
