// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memengine implements the navigation engine over an in-memory
// fixture graph.
//
// Every concept request, term request, evaluation and raw query is
// counted so callers can observe exactly which engine calls a resolution
// made.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Places are immutable.
package memengine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
)

const xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"

var (
	countObjectRe  = regexp.MustCompile(`\?subject\s+\?predicate\s+<([^>]+)>`)
	countSubjectRe = regexp.MustCompile(`<([^>]+)>\s+\?predicate\s+\?object`)
)

// Calls is a snapshot of the engine call counters.
type Calls struct {
	ConceptRequests int64 `json:"concept_requests"`
	TermRequests    int64 `json:"term_requests"`
	Applications    int64 `json:"applications"`
	Evaluations     int64 `json:"evaluations"`
	Queries         int64 `json:"queries"`
}

// Engine is a fixture-backed navigation engine.
type Engine struct {
	fixture *Fixture
	byURI   map[string]*Entity

	classes    engine.MapLexicon
	properties engine.MapLexicon
	terms      engine.MapLexicon

	mu      sync.RWMutex
	current engine.Place
	filter  *engine.Constraint

	conceptRequests atomic.Int64
	termRequests    atomic.Int64
	applications    atomic.Int64
	evaluations     atomic.Int64
	queries         atomic.Int64
}

// New creates an engine positioned at the empty place.
func New(f *Fixture) *Engine {
	if f == nil {
		f = &Fixture{}
	}
	e := &Engine{
		fixture:    f,
		byURI:      make(map[string]*Entity, len(f.Entities)),
		classes:    engine.MapLexicon{},
		properties: engine.MapLexicon{},
		terms:      engine.MapLexicon{},
	}
	for i := range f.Entities {
		ent := &f.Entities[i]
		e.byURI[ent.URI] = ent
		entry := engine.Entry{Label: ent.Label, Frequency: ent.Frequency}
		switch ent.Kind {
		case KindClass:
			e.classes[ent.URI] = entry
		case KindProperty:
			e.properties[ent.URI] = entry
		case KindTerm, KindLiteral:
			e.terms[ent.URI] = entry
		}
	}
	e.current = e.Root()
	return e
}

// Root returns the empty place.
func (e *Engine) Root() engine.Place {
	return &Place{eng: e, path: engine.Path{}}
}

// CurrentPlace implements engine.Engine.
func (e *Engine) CurrentPlace() engine.Place {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// SetCurrentPlace implements engine.Engine.
func (e *Engine) SetCurrentPlace(p engine.Place) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = p
}

// ClassLabels implements engine.Engine.
func (e *Engine) ClassLabels() engine.Lexicon { return e.classes }

// PropertyLabels implements engine.Engine.
func (e *Engine) PropertyLabels() engine.Lexicon { return e.properties }

// TermLabels implements engine.Engine.
func (e *Engine) TermLabels() engine.Lexicon { return e.terms }

// SetFilterConstraint implements engine.Engine.
func (e *Engine) SetFilterConstraint(c engine.Constraint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = &c
}

// FilterConstraint returns the active filter, if any.
func (e *Engine) FilterConstraint() (engine.Constraint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.filter == nil {
		return engine.Constraint{}, false
	}
	return *e.filter, true
}

// Calls returns the current call counters.
func (e *Engine) Calls() Calls {
	return Calls{
		ConceptRequests: e.conceptRequests.Load(),
		TermRequests:    e.termRequests.Load(),
		Applications:    e.applications.Load(),
		Evaluations:     e.evaluations.Load(),
		Queries:         e.queries.Load(),
	}
}

// EvalSPARQL answers the subject and object reference-count queries.
func (e *Engine) EvalSPARQL(ctx context.Context, query string) (engine.Results, error) {
	if err := ctx.Err(); err != nil {
		return engine.Results{}, err
	}
	e.queries.Add(1)

	var n int64
	switch {
	case countObjectRe.MatchString(query):
		uri := countObjectRe.FindStringSubmatch(query)[1]
		if ent, ok := e.byURI[uri]; ok {
			n = ent.Objects
		}
	case countSubjectRe.MatchString(query):
		uri := countSubjectRe.FindStringSubmatch(query)[1]
		if ent, ok := e.byURI[uri]; ok {
			n = ent.Subjects
		}
	default:
		return engine.Results{}, fmt.Errorf("memengine: unsupported query")
	}
	return engine.Results{
		Columns: []string{"number"},
		Rows: [][]engine.Cell{{
			{Name: "number", Value: strconv.FormatInt(n, 10), Datatype: xsdInteger},
		}},
	}, nil
}

func (e *Engine) activeFilter() *engine.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

// Place is an immutable fixture place.
type Place struct {
	eng     *Engine
	applied []engine.Suggestion
	path    engine.Path
}

// FocusPath implements engine.Place.
func (p *Place) FocusPath() engine.Path {
	out := make(engine.Path, len(p.path))
	copy(out, p.path)
	return out
}

// FocusAtPath implements engine.Place.
func (p *Place) FocusAtPath(ctx context.Context, path engine.Path) (engine.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	np := make(engine.Path, len(path))
	copy(np, path)
	return &Place{eng: p.eng, applied: p.applied, path: np}, nil
}

// ApplySuggestion implements engine.Place. Relations move the focus down
// onto the related element.
func (p *Place) ApplySuggestion(ctx context.Context, s engine.Suggestion) (engine.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.eng.applications.Add(1)

	applied := make([]engine.Suggestion, len(p.applied), len(p.applied)+1)
	copy(applied, p.applied)
	applied = append(applied, s)

	path := p.FocusPath()
	if s.IsRelation() {
		path = path.MoveDown()
	}
	return &Place{eng: p.eng, applied: applied, path: path}, nil
}

// ConceptSuggestions implements engine.Place.
func (p *Place) ConceptSuggestions(ctx context.Context, _ bool, constr engine.Constraint) (engine.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.eng.conceptRequests.Add(1)
	filter := p.eng.activeFilter()

	var forest engine.Forest
	for _, ent := range p.eng.fixture.Entities {
		if !constr.Accepts(ent.Label) || filter != nil && !filter.Accepts(ent.Label) {
			continue
		}
		switch ent.Kind {
		case KindClass:
			forest = append(forest, engine.Item{
				Suggestion: engine.Suggestion{Kind: engine.IncrType, URI: ent.URI},
				Frequency:  ent.Frequency,
			})
		case KindProperty:
			if ent.Orientation != "bwd" {
				forest = append(forest, engine.Item{
					Suggestion: engine.Suggestion{Kind: engine.IncrRel, URI: ent.URI, Orientation: engine.Fwd},
					Frequency:  ent.Frequency,
				})
			}
			if ent.Orientation == "bwd" || ent.Orientation == "both" {
				forest = append(forest, engine.Item{
					Suggestion: engine.Suggestion{Kind: engine.IncrRel, URI: ent.URI, Orientation: engine.Bwd},
					Frequency:  ent.Frequency,
				})
			}
		}
	}
	return forest, nil
}

// TermSuggestions implements engine.Place.
func (p *Place) TermSuggestions(ctx context.Context, _ bool, constr engine.Constraint) (engine.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.eng.termRequests.Add(1)
	filter := p.eng.activeFilter()

	var forest engine.Forest
	for _, ent := range p.eng.fixture.Entities {
		if !constr.Accepts(ent.Label) || filter != nil && !filter.Accepts(ent.Label) {
			continue
		}
		switch ent.Kind {
		case KindTerm:
			forest = append(forest, engine.Item{
				Suggestion: engine.Suggestion{Kind: engine.IncrTerm, Term: &engine.Term{Kind: engine.TermURI, URI: ent.URI}},
				Frequency:  ent.Frequency,
			})
		case KindLiteral:
			forest = append(forest, engine.Item{
				Suggestion: engine.Suggestion{Kind: engine.IncrTerm, Term: &engine.Term{
					Kind: engine.TermLiteral, Value: ent.Label, Datatype: ent.Datatype,
				}},
				Frequency: ent.Frequency,
			})
		}
	}
	return forest, nil
}

// WaitEvaluated implements engine.Place.
func (p *Place) WaitEvaluated(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.eng.evaluations.Add(1)
	for _, s := range p.applied {
		if ref, ok := s.Ref(); ok {
			if ent, found := p.eng.byURI[ref]; found && ent.Fail {
				return fmt.Errorf("%w: %s", chainqa.ErrEvaluation, ref)
			}
		}
	}
	return nil
}

// Results implements engine.Place.
func (p *Place) Results() engine.Results {
	res := engine.Results{Columns: []string{"x"}}
	var last, datatype string
	for _, s := range p.applied {
		if ref, ok := s.Ref(); ok {
			ent := p.eng.byURI[ref]
			if ent != nil && ent.Empty {
				return res
			}
			last = ref
			if ent != nil && ent.Datatype != "" {
				datatype = ent.Datatype
			}
		}
		if s.Kind == engine.IncrConstr && s.Constr != nil && s.Constr.Kind == engine.ConstrMatchesAll {
			if !p.eng.anyTermAccepts(*s.Constr) {
				return res
			}
		}
	}
	rows := p.eng.fixture.Rows
	if rows == 0 {
		rows = 1
	}
	for i := 0; i < rows; i++ {
		res.Rows = append(res.Rows, []engine.Cell{{Name: "x", Value: last, Datatype: datatype}})
	}
	return res
}

// SPARQL implements engine.Place. The text is a readable rendering of the
// applied suggestions, not an executable query.
func (p *Place) SPARQL() string {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?x WHERE {")
	for _, s := range p.applied {
		b.WriteString(" ")
		b.WriteString(s.String())
		b.WriteString(" .")
	}
	b.WriteString(" }")
	return b.String()
}

// Permalink implements engine.Place.
func (p *Place) Permalink() string {
	parts := make([]string, len(p.applied))
	for i, s := range p.applied {
		parts[i] = s.String()
	}
	return "mem:" + strings.Join(parts, "|") + "@" + strings.Join(p.path, "/")
}

func (e *Engine) anyTermAccepts(c engine.Constraint) bool {
	for _, ent := range e.fixture.Entities {
		if (ent.Kind == KindTerm || ent.Kind == KindLiteral) && c.Accepts(ent.Label) {
			return true
		}
	}
	return false
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Place  = (*Place)(nil)
)
