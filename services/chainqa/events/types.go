// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events carries the out-of-band notifications raised while a
// chain resolves.
//
// Steps such as limit, offset and groupBy do not change the navigation
// place. They are announced here instead, and a collaborator rewrites the
// retrieved query text after the chain has resolved. The Recorder
// subscriber folds those notifications into a QueryAlterations value.
package events

// Type identifies a notification.
type Type string

const (
	// TypeLimit asks for a LIMIT clause.
	TypeLimit Type = "limit"

	// TypeOffset asks for an OFFSET clause.
	TypeOffset Type = "offset"

	// TypeGroupByAction asks for a GROUP BY with an aggregation action.
	TypeGroupByAction Type = "groupby_action"

	// TypeOrderDate reports that ordering applies to a date column.
	TypeOrderDate Type = "order_date"

	// TypeFilter reports a keyword filter on the displayed suggestions.
	TypeFilter Type = "filter"

	// TypeTermCmdBackup reports that an entity lookup was retried as a
	// keyword match.
	TypeTermCmdBackup Type = "term_cmd_backup"
)

// AllTypes lists every notification type.
var AllTypes = []Type{
	TypeLimit,
	TypeOffset,
	TypeGroupByAction,
	TypeOrderDate,
	TypeFilter,
	TypeTermCmdBackup,
}

// Event is one notification.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the notification type.
	Type Type `json:"type"`

	// RunID is the resolution run that raised the event.
	RunID string `json:"run_id,omitempty"`

	// Timestamp is Unix milliseconds UTC.
	Timestamp int64 `json:"timestamp"`

	// Data is one of the typed payloads below.
	Data any `json:"data,omitempty"`

	// TraceID and SpanID link the event to the active span, if any.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// LimitData is the payload of TypeLimit.
type LimitData struct {
	LimitNumber string `json:"limit_number"`
}

// OffsetData is the payload of TypeOffset.
type OffsetData struct {
	OffsetNumber string `json:"offset_number"`
}

// GroupByData is the payload of TypeGroupByAction.
type GroupByData struct {
	Action string `json:"action"`
}

// OrderDateData is the payload of TypeOrderDate.
type OrderDateData struct {
	Order string `json:"order"`
}

// FilterData is the payload of TypeFilter.
type FilterData struct {
	Keywords []string `json:"keywords"`
}

// TermBackupData is the payload of TypeTermCmdBackup.
type TermBackupData struct {
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
}

// Supported groupBy actions. Unknown actions fall back to GroupByCount.
const GroupByCount = "count"

// GroupByActions is the set of recognised groupBy actions.
var GroupByActions = map[string]bool{
	GroupByCount: true,
}
