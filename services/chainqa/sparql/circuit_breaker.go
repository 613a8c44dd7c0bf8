// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparql

import (
	"sync"
	"time"

	"github.com/AleutianAI/chainqa/services/chainqa"
)

// CircuitState is the breaker state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = [...]string{"closed", "open", "half-open"}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

// Verdict classifies how the endpoint handled one guarded request.
type Verdict int

const (
	// VerdictHealthy means the endpoint answered, even if it refused the
	// query with a 4xx.
	VerdictHealthy Verdict = iota

	// VerdictUnhealthy means a transport error, timeout or 5xx.
	VerdictUnhealthy
)

// CircuitBreakerConfig configures the breaker guarding the endpoint.
type CircuitBreakerConfig struct {
	// TripAfter consecutive unhealthy requests open the breaker.
	TripAfter int `json:"trip_after" yaml:"trip_after" validate:"gte=1"`

	// Cooldown is how long an open breaker rejects before probing.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown" validate:"gt=0"`

	// CloseAfter healthy probes close a half-open breaker.
	CloseAfter int `json:"close_after" yaml:"close_after" validate:"gte=1"`
}

// DefaultCircuitBreakerConfig returns the breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		TripAfter:  5,
		Cooldown:   30 * time.Second,
		CloseAfter: 2,
	}
}

// BreakerSnapshot is a point-in-time view for health reporting.
type BreakerSnapshot struct {
	State      string    `json:"state"`
	Calls      int64     `json:"calls"`
	Unhealthy  int64     `json:"unhealthy"`
	Rejections int64     `json:"rejections"`
	Since      time.Time `json:"since"`
}

// CircuitBreaker stops sending count queries to an endpoint that keeps
// failing, so ranking degrades to zero reference counts instead of
// waiting on timeouts for every candidate.
//
// While half-open exactly one probe request is in flight at a time.
//
// Thread Safety: Safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	since    time.Time
	streak   int
	probing  bool
	counters BreakerSnapshot
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{cfg: cfg, now: time.Now}
	cb.since = cb.now()
	return cb
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the counters and state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.counters
	s.State = cb.state.String()
	s.Since = cb.since
	return s
}

// Do runs request if the breaker admits it and feeds the verdict back.
// A rejected call returns chainqa.ErrCircuitOpen without running request.
func (cb *CircuitBreaker) Do(request func() (Verdict, error)) error {
	probe, ok := cb.admit()
	if !ok {
		return chainqa.ErrCircuitOpen
	}
	verdict, err := request()
	cb.settle(probe, verdict)
	return err
}

func (cb *CircuitBreaker) admit() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.counters.Calls++

	if cb.state == CircuitOpen && cb.now().Sub(cb.since) >= cb.cfg.Cooldown {
		cb.move(CircuitHalfOpen)
	}
	switch {
	case cb.state == CircuitClosed:
		return false, true
	case cb.state == CircuitHalfOpen && !cb.probing:
		cb.probing = true
		return true, true
	default:
		cb.counters.Rejections++
		return false, false
	}
}

func (cb *CircuitBreaker) settle(probe bool, v Verdict) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}

	if v == VerdictUnhealthy {
		cb.counters.Unhealthy++
		switch {
		case cb.state == CircuitHalfOpen:
			cb.move(CircuitOpen)
		case cb.state == CircuitClosed:
			cb.streak++
			if cb.streak >= cb.cfg.TripAfter {
				cb.move(CircuitOpen)
			}
		}
		return
	}

	switch cb.state {
	case CircuitClosed:
		cb.streak = 0
	case CircuitHalfOpen:
		cb.streak++
		if cb.streak >= cb.cfg.CloseAfter {
			cb.move(CircuitClosed)
		}
	}
}

// move must be called with mu held. streak counts failures while closed
// and healthy probes while half-open, so it restarts on every move.
func (cb *CircuitBreaker) move(s CircuitState) {
	cb.state = s
	cb.since = cb.now()
	cb.streak = 0
}
