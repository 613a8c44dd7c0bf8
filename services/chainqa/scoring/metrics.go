// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("chainqa.scoring")

var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	lookupDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"refcount_cache_hits_total",
			metric.WithDescription("Reference counts served from cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"refcount_cache_misses_total",
			metric.WithDescription("Reference counts that required queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lookupDuration, err = meter.Float64Histogram(
			"refcount_lookup_duration_seconds",
			metric.WithDescription("Duration of reference count lookups"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCacheHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordCacheMiss(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordLookup(ctx context.Context, elapsed time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	lookupDuration.Record(ctx, elapsed.Seconds())
}
