// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package store

import "fmt"

// ErrMissing is returned when a handle has no entry in the table its
// sort names.
type ErrMissing struct{ Handle fmt.Stringer }

func (e *ErrMissing) Error() string { return fmt.Sprintf("store: no entry for %s", e.Handle) }

// ErrWrongKind is returned when a handle resolves to a record, but not
// of the kind the caller asked for — an implementation fault per §4.3.
type ErrWrongKind struct {
	Handle fmt.Stringer
	Want   string
	Got    string
}

func (e *ErrWrongKind) Error() string {
	return fmt.Sprintf("store: %s: wanted %s, got %s", e.Handle, e.Want, e.Got)
}

// RawIdent is the loader's raw identifier record (§4.4): the literal
// source string for an identifier, index-interned by that string.
type RawIdent struct{ Name string }

// RawLit is the loader's raw literal-string record: the literal source
// token, index-interned by that string.
type RawLit struct{ Text string }

// RawSpan is an opaque source-location record minted by the loader;
// the core treats it as a handle with no further structure.
type RawSpan struct {
	File      string
	Line, Col int
}

// Tables holds the per-sort interning tables of §4.3: handle -> tabled
// record, partitioned by handle.Sort. Every handle allocated by this
// engine appears in exactly one of these maps (invariant I1 of §3).
type Tables struct {
	spans  map[uint32]RawSpan
	codes  map[uint32]any // ModCode | StmCode | TermCode
	idents map[uint32]RawIdent
	cells  map[uint32]Cell
	lits   map[uint32]RawLit
	terms  map[uint32]any // IdentTerm | QualIdentTerm | LitTerm | TupleTerm | NEqualTerm
	vals   map[uint32]Literal
}

// Spans exposes the span table for read-only iteration (flatten).
func (t *Tables) Spans() map[uint32]RawSpan { return t.spans }

// Codes exposes the code table for read-only iteration (flatten).
func (t *Tables) Codes() map[uint32]any { return t.codes }

// Idents exposes the ident table for read-only iteration (flatten).
func (t *Tables) Idents() map[uint32]RawIdent { return t.idents }

// Terms exposes the term table for read-only iteration (flatten).
func (t *Tables) Terms() map[uint32]any { return t.terms }

// NewTables constructs empty interning tables.
func NewTables() *Tables {
	return &Tables{
		spans:  make(map[uint32]RawSpan),
		codes:  make(map[uint32]any),
		idents: make(map[uint32]RawIdent),
		cells:  make(map[uint32]Cell),
		lits:   make(map[uint32]RawLit),
		terms:  make(map[uint32]any),
		vals:   make(map[uint32]Literal),
	}
}
