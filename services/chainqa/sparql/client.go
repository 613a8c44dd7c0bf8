// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sparql is a SPARQL 1.1 protocol client for the raw count queries
// issued while ranking suggestions.
//
// Requests are rate limited, guarded by a circuit breaker, traced, and
// carry the caller's trace context to the endpoint.
package sparql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

const (
	resultsMediaType = "application/sparql-results+json"
	maxResponseBytes = 8 << 20
)

// ErrStatus is wrapped by errors for non-2xx endpoint responses.
var ErrStatus = errors.New("sparql endpoint returned an error status")

// Config configures a Client.
type Config struct {
	// Endpoint is the SPARQL query endpoint URL.
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"omitempty,url"`

	// Timeout bounds each request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// RateLimit is the sustained request rate per second; 0 disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`

	// Burst is the limiter bucket size.
	Burst int `json:"burst" yaml:"burst" validate:"gte=0"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// CircuitBreaker configures the breaker.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// DefaultConfig returns client defaults without an endpoint.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		RateLimit:      10,
		Burst:          10,
		UserAgent:      "chainqa/0.1",
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// Client evaluates queries against a remote endpoint.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sparql: endpoint is required")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("sparql: invalid endpoint: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// EvalSPARQL runs query and decodes the JSON result set.
//
// Description:
//
//	Waits for the rate limiter, asks the circuit breaker for permission,
//	POSTs the query as a form and decodes the SPARQL JSON results. Network
//	errors and 5xx responses count as breaker failures; 4xx responses are
//	returned as errors without tripping the breaker.
//
// Inputs:
//
//	ctx - Context for cancellation and trace propagation.
//	query - SPARQL query text.
//
// Outputs:
//
//	engine.Results - Rows in head variable order.
//	error - chainqa.ErrCircuitOpen when rejected, ErrStatus for bad statuses.
func (c *Client) EvalSPARQL(ctx context.Context, query string) (engine.Results, error) {
	ctx, span := telemetry.StartSpan(ctx, "chainqa.sparql", "Client.EvalSPARQL",
		trace.WithAttributes(attribute.String("sparql.endpoint", c.cfg.Endpoint)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		telemetry.RecordError(span, err)
		return engine.Results{}, fmt.Errorf("sparql rate limit: %w", err)
	}

	var (
		res     engine.Results
		elapsed time.Duration
	)
	err := c.breaker.Do(func() (Verdict, error) {
		start := time.Now()
		r, retryable, err := c.do(ctx, query)
		elapsed = time.Since(start)
		res = r
		switch {
		case err == nil:
			recordRequest(ctx, "ok", elapsed)
		case retryable:
			recordRequest(ctx, "error", elapsed)
			return VerdictUnhealthy, err
		default:
			recordRequest(ctx, "rejected", elapsed)
		}
		return VerdictHealthy, err
	})
	if errors.Is(err, chainqa.ErrCircuitOpen) {
		recordRejection(ctx)
		telemetry.RecordError(span, err)
		return engine.Results{}, err
	}
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WarnContext(ctx, "sparql request failed",
			slog.String("endpoint", c.cfg.Endpoint),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return engine.Results{}, err
	}
	span.SetAttributes(attribute.Int("sparql.rows", res.Len()))
	return res, nil
}

// do performs one request. The bool reports whether the failure should
// count against the endpoint's health.
func (c *Client) do(ctx context.Context, query string) (engine.Results, bool, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequest(http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return engine.Results{}, false, fmt.Errorf("build sparql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", resultsMediaType)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req = telemetry.PropagateToRequest(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return engine.Results{}, true, fmt.Errorf("sparql request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return engine.Results{}, true, fmt.Errorf("read sparql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return engine.Results{}, resp.StatusCode >= 500,
			fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	res, err := DecodeResults(body)
	if err != nil {
		return engine.Results{}, false, err
	}
	return res, false, nil
}

type resultsDoc struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

type binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
}

// DecodeResults parses a SPARQL 1.1 JSON result set. Unbound variables
// become empty cells so every row has one cell per head variable.
func DecodeResults(data []byte) (engine.Results, error) {
	var doc resultsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return engine.Results{}, fmt.Errorf("decode sparql results: %w", err)
	}
	res := engine.Results{Columns: doc.Head.Vars}
	for _, b := range doc.Results.Bindings {
		row := make([]engine.Cell, len(doc.Head.Vars))
		for i, v := range doc.Head.Vars {
			row[i] = engine.Cell{Name: v}
			if val, ok := b[v]; ok {
				row[i].Value = val.Value
				row[i].Datatype = val.Datatype
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

var _ engine.QueryEvaluator = (*Client)(nil)
