// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package store

import (
	"fmt"

	"github.com/tanglelang/tangle/handle"
)

// --- Span ---

func (t *Tables) PutSpan(h handle.H, s RawSpan) { t.spans[h.Key()] = s }

func (t *Tables) GetSpan(h handle.H) (RawSpan, error) {
	v, ok := t.spans[h.Key()]
	if !ok {
		return RawSpan{}, &ErrMissing{Handle: h}
	}
	return v, nil
}

// --- Ident (raw) ---

func (t *Tables) PutIdent(h handle.H, r RawIdent) { t.idents[h.Key()] = r }

func (t *Tables) GetIdent(h handle.H) (RawIdent, error) {
	v, ok := t.idents[h.Key()]
	if !ok {
		return RawIdent{}, &ErrMissing{Handle: h}
	}
	return v, nil
}

func (t *Tables) DeleteIdent(h handle.H) { delete(t.idents, h.Key()) }

// --- LitStr (raw) ---

func (t *Tables) PutLitStr(h handle.H, r RawLit) { t.lits[h.Key()] = r }

func (t *Tables) GetLitStr(h handle.H) (RawLit, error) {
	v, ok := t.lits[h.Key()]
	if !ok {
		return RawLit{}, &ErrMissing{Handle: h}
	}
	return v, nil
}

func (t *Tables) DeleteLitStr(h handle.H) { delete(t.lits, h.Key()) }

// --- Cell ---

func (t *Tables) PutCell(h handle.H, c Cell) { t.cells[h.Key()] = c }

func (t *Tables) GetCell(h handle.H) (Cell, error) {
	v, ok := t.cells[h.Key()]
	if !ok {
		return Cell{}, &ErrMissing{Handle: h}
	}
	return v, nil
}

func (t *Tables) DeleteCell(h handle.H) { delete(t.cells, h.Key()) }

// SetNext mutates a cell's Next pointer in place (§3 "mutable
// next/prev").
func (t *Tables) SetNext(h, next handle.H) {
	c := t.cells[h.Key()]
	c.Next = next
	t.cells[h.Key()] = c
}

// SetPrev mutates a cell's Prev pointer in place.
func (t *Tables) SetPrev(h, prev handle.H) {
	c := t.cells[h.Key()]
	c.Prev = prev
	t.cells[h.Key()] = c
}

// --- Code ---

func (t *Tables) PutCode(h handle.H, rec any) { t.codes[h.Key()] = rec }

func (t *Tables) GetCode(h handle.H) (any, error) {
	v, ok := t.codes[h.Key()]
	if !ok {
		return nil, &ErrMissing{Handle: h}
	}
	return v, nil
}

// DeleteCode removes a code-table entry, used by undo to unwind a
// PutCode this log entry recorded.
func (t *Tables) DeleteCode(h handle.H) { delete(t.codes, h.Key()) }

// GetStmCode resolves h as a StmCode, failing with ErrWrongKind on a
// sort/kind mismatch rather than silently misinterpreting the record.
func (t *Tables) GetStmCode(h handle.H) (StmCode, error) {
	rec, err := t.GetCode(h)
	if err != nil {
		return StmCode{}, err
	}
	sc, ok := rec.(StmCode)
	if !ok {
		return StmCode{}, &ErrWrongKind{Handle: h, Want: "StmCode", Got: fmt.Sprintf("%T", rec)}
	}
	return sc, nil
}

// GetTermCode resolves h as a TermCode.
func (t *Tables) GetTermCode(h handle.H) (TermCode, error) {
	rec, err := t.GetCode(h)
	if err != nil {
		return TermCode{}, err
	}
	tc, ok := rec.(TermCode)
	if !ok {
		return TermCode{}, &ErrWrongKind{Handle: h, Want: "TermCode", Got: fmt.Sprintf("%T", rec)}
	}
	return tc, nil
}

// GetModCode resolves h as a ModCode.
func (t *Tables) GetModCode(h handle.H) (ModCode, error) {
	rec, err := t.GetCode(h)
	if err != nil {
		return ModCode{}, err
	}
	mc, ok := rec.(ModCode)
	if !ok {
		return ModCode{}, &ErrWrongKind{Handle: h, Want: "ModCode", Got: fmt.Sprintf("%T", rec)}
	}
	return mc, nil
}

// --- Term ---

func (t *Tables) PutTerm(h handle.H, rec any) { t.terms[h.Key()] = rec }

func (t *Tables) GetTerm(h handle.H) (any, error) {
	v, ok := t.terms[h.Key()]
	if !ok {
		return nil, &ErrMissing{Handle: h}
	}
	return v, nil
}

func (t *Tables) DeleteTerm(h handle.H) { delete(t.terms, h.Key()) }

// --- Val ---

func (t *Tables) PutVal(h handle.H, v Literal) { t.vals[h.Key()] = v }

func (t *Tables) GetVal(h handle.H) (Literal, error) {
	v, ok := t.vals[h.Key()]
	if !ok {
		return Literal{}, &ErrMissing{Handle: h}
	}
	return v, nil
}

func (t *Tables) DeleteVal(h handle.H) { delete(t.vals, h.Key()) }
