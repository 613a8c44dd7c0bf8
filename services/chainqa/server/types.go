// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
)

// ParseRequest is the body of POST /v1/chains/parse.
type ParseRequest struct {
	Chain string `json:"chain"`
}

// StepView is one parsed step as returned by the API.
type StepView struct {
	Kind string   `json:"kind"`
	Raw  string   `json:"raw"`
	Args []string `json:"args,omitempty"`
}

// ParseResponse lists the steps of a chain.
type ParseResponse struct {
	Chain string     `json:"chain"`
	Steps []StepView `json:"steps"`
}

// ResolveRequest is the body of POST /v1/chains/resolve. Zero search
// fields fall back to the configured defaults.
type ResolveRequest struct {
	Chain     string `json:"chain" binding:"required"`
	Strategy  string `json:"strategy,omitempty"`
	TopK      int    `json:"top_k,omitempty" binding:"gte=0,lte=50"`
	BeamWidth int    `json:"beam_width,omitempty" binding:"gte=0,lte=1000"`
	MaxStates int    `json:"max_states,omitempty" binding:"gte=0"`

	// IncludeTree adds the explored state tree to the response.
	IncludeTree bool `json:"include_tree,omitempty"`

	// Reset starts from the engine's root place instead of the current one.
	Reset bool `json:"reset,omitempty"`
}

func (r ResolveRequest) options() search.Options {
	return search.Options{
		Strategy:  search.Strategy(r.Strategy),
		TopK:      r.TopK,
		BeamWidth: r.BeamWidth,
		MaxStates: r.MaxStates,
	}
}

// FailureView describes where a sequential run stopped.
type FailureView struct {
	Step      string   `json:"step"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Remaining []string `json:"remaining"`
	Reason    string   `json:"reason"`
}

// ResolveResponse is the outcome of one resolution.
type ResolveResponse struct {
	RunID       string                  `json:"run_id"`
	Strategy    string                  `json:"strategy"`
	Complete    bool                    `json:"complete"`
	Score       float64                 `json:"score"`
	SPARQL      string                  `json:"sparql"`
	Permalink   string                  `json:"permalink"`
	Remaining   []string                `json:"remaining"`
	Alterations events.QueryAlterations `json:"alterations"`
	Stats       search.Stats            `json:"stats"`
	Recoveries  []recovery.Action       `json:"recoveries,omitempty"`
	Failure     *FailureView            `json:"failure,omitempty"`
	Tree        *search.State           `json:"tree,omitempty"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Busy     bool   `json:"busy"`
	Strategy string `json:"strategy"`

	// SPARQLCircuit is the breaker state of the count endpoint, if any.
	SPARQLCircuit string `json:"sparql_circuit,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func stepViews(chain command.Chain) []StepView {
	out := make([]StepView, len(chain))
	for i, s := range chain {
		out[i] = StepView{Kind: s.Kind.String(), Raw: s.Raw, Args: s.Args}
	}
	return out
}

func commands(chain command.Chain) []string {
	if chain == nil {
		return []string{}
	}
	return chain.Commands()
}
