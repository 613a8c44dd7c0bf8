// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: strategy, status (ok, failed, busy)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainqa",
		Subsystem: "search",
		Name:      "runs_total",
		Help:      "Total chain resolutions by strategy and status",
	}, []string{"strategy", "status"})

	// Labels: strategy
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainqa",
		Subsystem: "search",
		Name:      "run_duration_seconds",
		Help:      "Chain resolution latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"strategy"})

	// Labels: strategy
	statesCreated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainqa",
		Subsystem: "search",
		Name:      "states_created",
		Help:      "Search states created per run",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"strategy"})

	// Labels: step_kind, result (resolved, failed)
	rankAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainqa",
		Subsystem: "search",
		Name:      "rank_attempts_total",
		Help:      "Step resolutions attempted during expansion",
	}, []string{"step_kind", "result"})

	budgetExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainqa",
		Subsystem: "search",
		Name:      "budget_exhausted_total",
		Help:      "Runs stopped by the state budget",
	})
)

func recordRun(strategy Strategy, status string, res *Result) {
	runsTotal.WithLabelValues(string(strategy), status).Inc()
	if res == nil {
		return
	}
	runDuration.WithLabelValues(string(strategy)).Observe(res.Stats.Elapsed.Seconds())
	statesCreated.WithLabelValues(string(strategy)).Observe(float64(res.Stats.StatesCreated))
	if res.Stats.BudgetExhausted {
		budgetExhausted.Inc()
	}
}

func recordRank(kind string, err error) {
	result := "resolved"
	if err != nil {
		result = "failed"
	}
	rankAttempts.WithLabelValues(kind, result).Inc()
}
