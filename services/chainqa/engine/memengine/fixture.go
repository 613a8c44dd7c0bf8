// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memengine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EntityKind classifies a fixture entity.
type EntityKind string

const (
	KindClass    EntityKind = "class"
	KindProperty EntityKind = "property"
	KindTerm     EntityKind = "term"
	KindLiteral  EntityKind = "literal"
)

// Entity is one node or relation of the fixture graph.
type Entity struct {
	URI       string     `yaml:"uri" json:"uri"`
	Label     string     `yaml:"label" json:"label"`
	Kind      EntityKind `yaml:"kind" json:"kind"`
	Frequency float64    `yaml:"frequency" json:"frequency"`

	// Orientation applies to properties: "fwd" (default), "bwd" or "both".
	Orientation string `yaml:"orientation,omitempty" json:"orientation,omitempty"`

	// Datatype is reported for the last column once the entity is applied.
	Datatype string `yaml:"datatype,omitempty" json:"datatype,omitempty"`

	// Empty makes every place using the entity evaluate to zero rows.
	Empty bool `yaml:"empty,omitempty" json:"empty,omitempty"`

	// Fail makes every place using the entity fail evaluation.
	Fail bool `yaml:"fail,omitempty" json:"fail,omitempty"`

	// Subjects and Objects are the triple counts with the entity as
	// subject and as object.
	Subjects int64 `yaml:"subjects,omitempty" json:"subjects,omitempty"`
	Objects  int64 `yaml:"objects,omitempty" json:"objects,omitempty"`
}

// Fixture is a small knowledge graph description.
type Fixture struct {
	Name     string   `yaml:"name" json:"name"`
	Entities []Entity `yaml:"entities" json:"entities"`

	// Rows is the row count of a non-empty place (default 1).
	Rows int `yaml:"rows,omitempty" json:"rows,omitempty"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFixture reads and decodes a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

func (f *Fixture) validate() error {
	seen := make(map[string]bool, len(f.Entities))
	for i, e := range f.Entities {
		if e.URI == "" {
			return fmt.Errorf("fixture entity %d: uri is required", i)
		}
		if seen[e.URI] {
			return fmt.Errorf("fixture entity %d: duplicate uri %q", i, e.URI)
		}
		seen[e.URI] = true
		switch e.Kind {
		case KindClass, KindProperty, KindTerm, KindLiteral:
		default:
			return fmt.Errorf("fixture entity %q: unknown kind %q", e.URI, e.Kind)
		}
		switch e.Orientation {
		case "", "fwd", "bwd", "both":
		default:
			return fmt.Errorf("fixture entity %q: unknown orientation %q", e.URI, e.Orientation)
		}
	}
	if f.Rows < 0 {
		return fmt.Errorf("fixture rows must be >= 0")
	}
	return nil
}
