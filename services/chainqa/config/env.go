// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/chainqa/pkg/logging"
)

// envVar binds one environment variable to a config field.
type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func envString(set func(*Config, string)) func(*Config, string) error {
	return func(c *Config, v string) error {
		set(c, v)
		return nil
	}
}

func envInt(set func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(c, i)
		return nil
	}
}

func envFloat(set func(*Config, float64)) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		set(c, f)
		return nil
	}
}

func envBool(set func(*Config, bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(c, b)
		return nil
	}
}

func envDuration(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		set(c, d)
		return nil
	}
}

// envVars lists every supported variable.
var envVars = []envVar{
	{"CHAINQA_STRATEGY", envString(func(c *Config, v string) { c.Search.Strategy = v })},
	{"CHAINQA_TOP_K", envInt(func(c *Config, v int) { c.Search.TopK = v })},
	{"CHAINQA_BEAM_WIDTH", envInt(func(c *Config, v int) { c.Search.BeamWidth = v })},
	{"CHAINQA_MAX_STATES", envInt(func(c *Config, v int) { c.Search.MaxStates = v })},
	{"CHAINQA_TRACING_ENABLED", envBool(func(c *Config, v bool) { c.Search.TracingEnabled = v })},

	{"CHAINQA_SCORING_POLICY", envString(func(c *Config, v string) { c.Scoring.Policy = v })},
	{"CHAINQA_SCORING_MAX_CONCURRENCY", envInt(func(c *Config, v int) { c.Scoring.MaxConcurrency = v })},

	{"CHAINQA_SPARQL_ENDPOINT", envString(func(c *Config, v string) { c.SPARQL.Endpoint = v })},
	{"CHAINQA_SPARQL_TIMEOUT", envDuration(func(c *Config, v time.Duration) { c.SPARQL.Timeout = v })},
	{"CHAINQA_SPARQL_RATE_LIMIT", envFloat(func(c *Config, v float64) { c.SPARQL.RateLimit = v })},
	{"CHAINQA_SPARQL_BURST", envInt(func(c *Config, v int) { c.SPARQL.Burst = v })},

	{"CHAINQA_CACHE_BACKEND", envString(func(c *Config, v string) { c.Cache.Backend = v })},
	{"CHAINQA_CACHE_TTL", envDuration(func(c *Config, v time.Duration) { c.Cache.TTL = v })},
	{"CHAINQA_CACHE_PATH", envString(func(c *Config, v string) { c.Cache.Badger.Path = v })},

	{"CHAINQA_FIXTURE", envString(func(c *Config, v string) { c.Fixture.Path = v })},

	{"CHAINQA_ADDR", envString(func(c *Config, v string) { c.Server.Addr = v })},
	{"CHAINQA_GIN_MODE", envString(func(c *Config, v string) { c.Server.Mode = v })},
	{"CHAINQA_RESOLVE_TIMEOUT", envDuration(func(c *Config, v time.Duration) { c.Server.ResolveTimeout = v })},

	{"CHAINQA_LOG_LEVEL", func(c *Config, v string) error {
		lv, err := logging.ParseLevel(v)
		if err != nil {
			return err
		}
		c.Log.Level = lv
		return nil
	}},
	{"CHAINQA_LOG_DIR", envString(func(c *Config, v string) { c.Log.LogDir = v })},
	{"CHAINQA_LOG_JSON", envBool(func(c *Config, v bool) { c.Log.JSON = v })},
}

// EnvVars returns the names of the supported variables.
func EnvVars() []string {
	out := make([]string, len(envVars))
	for i, e := range envVars {
		out[i] = e.name
	}
	return out
}

// applyEnv overrides cfg from set variables. A malformed value is an
// error rather than being ignored.
func applyEnv(cfg *Config) error {
	for _, e := range envVars {
		v, ok := os.LookupEnv(e.name)
		if !ok || v == "" {
			continue
		}
		if err := e.apply(cfg, v); err != nil {
			return fmt.Errorf("%s=%q: %w", e.name, v, err)
		}
	}
	return nil
}
