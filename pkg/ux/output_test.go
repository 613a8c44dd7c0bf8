// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMode_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ModePlain, DetectMode(&buf))
	assert.Equal(t, ModePlain, NewPrinter(&buf).Mode())
}

func TestDetectMode_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ModePlain, DetectMode(nil))
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModePlain)

	p.Title("Resolved")
	p.KeyValue("score", "32.000")
	p.Success("complete")
	p.Error("no suggestion")
	p.Muted("3 states")

	assert.Equal(t, "Resolved\nscore: 32.000\n✓ complete\n✗ no suggestion\n3 states\n", buf.String())
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModeMachine)

	p.Title("Resolved")
	p.KeyValue("run id", "abc")
	p.Warning("budget exhausted")
	p.Muted("ignored")
	p.Box("sparql", "SELECT")

	assert.Equal(t, "RUN_ID\tabc\nWARN: budget exhausted\nsparql: SELECT\n", buf.String())
}

func TestPrinter_RichBox(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterMode(&buf, ModeRich).Box("sparql", "SELECT ?x")
	assert.Contains(t, buf.String(), "SELECT ?x")
	assert.Contains(t, buf.String(), "╭")
}
