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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainqa/pkg/logging"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, search.DefaultOptions(), cfg.Search.Options())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "chainqa.yaml", `
search:
  strategy: dfs
  top_k: 5
  max_states: 200
scoring:
  policy: plain
cache:
  backend: none
sparql:
  endpoint: http://localhost:7200/repositories/films
  timeout: 5s
log:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dfs", cfg.Search.Strategy)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, search.DefaultBeamWidth, cfg.Search.BeamWidth, "unset fields keep defaults")
	assert.Equal(t, 200, cfg.Search.MaxStates)
	assert.Equal(t, "plain", cfg.Scoring.Policy)
	assert.Equal(t, 5*time.Second, cfg.SPARQL.Timeout)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "chainqa.json", `{"search": {"strategy": "sequential", "top_k": 1}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sequential", cfg.Search.Strategy)
	assert.Equal(t, 1, cfg.Search.TopK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "chainqa.yaml", "search:\n  strategy: dfs\n  top_k: 5\n")
	t.Setenv("CHAINQA_STRATEGY", "beam")
	t.Setenv("CHAINQA_BEAM_WIDTH", "7")
	t.Setenv("CHAINQA_CACHE_TTL", "1h")
	t.Setenv("CHAINQA_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "beam", cfg.Search.Strategy)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 7, cfg.Search.BeamWidth)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, logging.LevelError, cfg.Log.Level)
}

func TestLoad_MalformedEnv(t *testing.T) {
	t.Setenv("CHAINQA_TOP_K", "three")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAINQA_TOP_K")
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, "broken.yaml", "search: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Search.Strategy = "mcts" }},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }},
		{"zero beam width", func(c *Config) { c.Search.BeamWidth = 0 }},
		{"negative budget", func(c *Config) { c.Search.MaxStates = -1 }},
		{"unknown policy", func(c *Config) { c.Scoring.Policy = "random" }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "redis" }},
		{"bad endpoint", func(c *Config) { c.SPARQL.Endpoint = "not a url" }},
		{"badger without path", func(c *Config) {
			c.Cache.Backend = CacheBadger
			c.Cache.Badger.Path = ""
		}},
		{"badger with plain policy", func(c *Config) {
			c.Cache.Backend = CacheBadger
			c.Scoring.Policy = "plain"
		}},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown gin mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"discard ratio", func(c *Config) { c.Cache.Badger.GCDiscardRatio = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvVars(t *testing.T) {
	names := EnvVars()
	assert.Contains(t, names, "CHAINQA_STRATEGY")
	assert.Contains(t, names, "CHAINQA_SPARQL_ENDPOINT")
	for _, n := range names {
		assert.Regexp(t, `^CHAINQA_[A-Z_]+$`, n)
	}
}
