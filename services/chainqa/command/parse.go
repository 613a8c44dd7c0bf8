// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package command

import (
	"regexp"
	"strings"
	"time"
)

var (
	quoteRun   = regexp.MustCompile(`['"]+`)
	todayWord  = regexp.MustCompile(`\btoday\b`)
	stepSplit  = regexp.MustCompile(`\s*;\s*`)
	defaultPsr = NewParser()
)

// Parser normalizes and splits command chains.
type Parser struct {
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used to expand the word "today".
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// NewParser creates a parser using the wall clock unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalize repairs generator noise in a raw chain.
//
// Description:
//
//	Trims surrounding whitespace, deletes every quote character and
//	replaces the whole word "today" with the current UTC date in
//	xsd:date form.
//
// Inputs:
//
//	raw - The chain as produced upstream.
//
// Outputs:
//
//	string - The normalized chain.
func (p *Parser) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = quoteRun.ReplaceAllString(s, "")
	today := p.now().UTC().Format("2006-01-02")
	return todayWord.ReplaceAllString(s, today)
}

// Split normalizes raw and returns its non-empty commands in order.
func (p *Parser) Split(raw string) []string {
	norm := p.Normalize(raw)
	if norm == "" {
		return nil
	}
	parts := stepSplit.Split(norm, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Parse normalizes, splits and classifies raw. An empty result is not an
// error; it means there is nothing left to resolve.
func (p *Parser) Parse(raw string) Chain {
	frags := p.Split(raw)
	chain := make(Chain, 0, len(frags))
	for _, f := range frags {
		chain = append(chain, Classify(f))
	}
	return chain
}

// Parse parses raw with a wall-clock parser.
func Parse(raw string) Chain {
	return defaultPsr.Parse(raw)
}

// FromCommands classifies already-split commands without normalizing them.
func FromCommands(cmds []string) Chain {
	chain := make(Chain, 0, len(cmds))
	for _, c := range cmds {
		if c = strings.TrimSpace(c); c != "" {
			chain = append(chain, Classify(c))
		}
	}
	return chain
}
