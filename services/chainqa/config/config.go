// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the chainqa configuration.
//
// Priority: environment > file > defaults. The file may be YAML or JSON.
// Every CHAINQA_* variable is listed in the env table of this package.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/chainqa/pkg/logging"
	bstore "github.com/AleutianAI/chainqa/services/chainqa/storage/badger"
	"github.com/AleutianAI/chainqa/services/chainqa/scoring"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
	"github.com/AleutianAI/chainqa/services/chainqa/sparql"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheBadger = "badger"
)

// Config is the complete configuration.
//
// Thread Safety: Safe to read concurrently once loaded.
type Config struct {
	Search    SearchConfig     `json:"search" yaml:"search"`
	Scoring   ScoringConfig    `json:"scoring" yaml:"scoring"`
	SPARQL    sparql.Config    `json:"sparql" yaml:"sparql"`
	Cache     CacheConfig      `json:"cache" yaml:"cache"`
	Fixture   FixtureConfig    `json:"fixture" yaml:"fixture"`
	Server    ServerConfig     `json:"server" yaml:"server"`
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`
	Log       logging.Config   `json:"log" yaml:"log"`
}

// SearchConfig holds the search defaults.
type SearchConfig struct {
	Strategy       string `json:"strategy" yaml:"strategy" validate:"oneof=sequential dfs beam"`
	TopK           int    `json:"top_k" yaml:"top_k" validate:"gte=1,lte=50"`
	BeamWidth      int    `json:"beam_width" yaml:"beam_width" validate:"gte=1,lte=1000"`
	MaxStates      int    `json:"max_states" yaml:"max_states" validate:"gte=0"`
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
}

// Options converts the section to search options.
func (s SearchConfig) Options() search.Options {
	return search.Options{
		Strategy:  search.Strategy(s.Strategy),
		TopK:      s.TopK,
		BeamWidth: s.BeamWidth,
		MaxStates: s.MaxStates,
	}
}

// ScoringConfig selects the ranking policy.
type ScoringConfig struct {
	Policy         string `json:"policy" yaml:"policy" validate:"oneof=plain refcount"`
	MaxConcurrency int    `json:"max_concurrency" yaml:"max_concurrency" validate:"gte=1,lte=64"`
}

// CacheConfig configures the reference-count cache.
type CacheConfig struct {
	Backend string        `json:"backend" yaml:"backend" validate:"oneof=none memory badger"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`
	Badger  bstore.Config `json:"badger" yaml:"badger"`
}

// FixtureConfig points at a YAML knowledge-graph fixture.
type FixtureConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"required"`
	Mode         string        `json:"mode" yaml:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`

	// ResolveTimeout bounds one resolution; 0 leaves it to the client.
	ResolveTimeout time.Duration `json:"resolve_timeout" yaml:"resolve_timeout" validate:"gte=0"`
}

// Default returns the default configuration.
func Default() Config {
	badgerCfg := bstore.DefaultConfig()
	badgerCfg.Path = "~/.chainqa/refcount"
	return Config{
		Search: SearchConfig{
			Strategy:  string(search.StrategyBeam),
			TopK:      search.DefaultTopK,
			BeamWidth: search.DefaultBeamWidth,
		},
		Scoring: ScoringConfig{
			Policy:         scoring.PolicyRefCount,
			MaxConcurrency: 8,
		},
		SPARQL: sparql.DefaultConfig(),
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     24 * time.Hour,
			Badger:  badgerCfg,
		},
		Server: ServerConfig{
			Addr:           ":8085",
			Mode:           "release",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   2 * time.Minute,
			ResolveTimeout: time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
		Log: logging.Config{
			Level:   logging.LevelInfo,
			Service: "chainqa",
		},
	}
}

// Load builds the configuration from defaults, the file at path and the
// environment, then validates it.
//
// Inputs:
//
//	path - YAML or JSON file; empty or missing means defaults only.
//
// Outputs:
//
//	Config - The merged configuration, returned even when invalid.
//	error - Non-nil for an unreadable or invalid file, or a failed
//	  validation.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("load config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Cache.Backend == CacheBadger && !c.Cache.Badger.InMemory && c.Cache.Badger.Path == "" {
		return fmt.Errorf("cache.badger.path is required for the badger backend")
	}
	if c.Scoring.Policy == scoring.PolicyPlain && c.Cache.Backend == CacheBadger {
		return fmt.Errorf("cache.backend badger is only used by the refcount policy")
	}
	return nil
}
