// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package loader translates parser-produced ast records into interned
// code records (§4.4): it allocates fresh handles, threads cells for
// every sequence or tuple, index-interns idents and literal strings,
// and logs an undo entry for each table write it performs except span
// records, which are written without an undo entry.
package loader

import (
	"github.com/tanglelang/tangle/ast"
	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/diag"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/store"
	"github.com/tanglelang/tangle/undo"
)

// Loader holds the mutable state a load pass threads through: the
// handle allocator, the undo log, and the environment (interning
// tables plus the index-intern and rule-index maps) being populated.
type Loader struct {
	Alloc *handle.Alloc
	Log   *undo.Log
	Env   *store.Env

	// Sink, if set, receives a trace line per statement and term this
	// pass interns, gated by the caller's parser-verbosity setting
	// (§6 "verbosity passed through to the parser/loader front end").
	// Left nil by New; callers that want loader tracing set it directly.
	Sink diag.Sink
}

// New constructs a Loader over the given allocator, log, and
// environment. None of the three are owned exclusively by Loader: the
// interpreter shares them with the evaluator.
func New(alloc *handle.Alloc, log *undo.Log, env *store.Env) *Loader {
	return &Loader{Alloc: alloc, Log: log, Env: env}
}

// trace emits a line through Sink, if one is installed.
func (l *Loader) trace(format string, args ...any) {
	if l.Sink != nil {
		l.Sink.Tracef(format, args...)
	}
}

// internIdent resolves name to its raw-ident handle, minting a fresh
// one on first occurrence (§4.4 "index-interned"). Re-interning the
// same string never appends to the log and never mints a handle, per
// S6.
func (l *Loader) internIdent(now clock.C, name string) handle.H {
	if h, ok := l.Env.RawIdentIndex[name]; ok {
		return h
	}
	h := l.Alloc.Fresh().AsSort(handle.Ident)
	l.Env.Tables.PutIdent(h, store.RawIdent{Name: name})
	l.Env.RawIdentIndex[name] = h
	l.Log.Push(now, undo.Entry{Kind: undo.KindLoadRaw, RawKey: name, RawSort: handle.Ident})
	return h
}

// internLit resolves text to its raw-literal handle, minting a fresh
// one on first occurrence.
func (l *Loader) internLit(now clock.C, text string) handle.H {
	if h, ok := l.Env.RawLitIndex[text]; ok {
		return h
	}
	h := l.Alloc.Fresh().AsSort(handle.LitStr)
	l.Env.Tables.PutLitStr(h, store.RawLit{Text: text})
	l.Env.RawLitIndex[text] = h
	l.Log.Push(now, undo.Entry{Kind: undo.KindLoadRaw, RawKey: text, RawSort: handle.LitStr})
	return h
}

func (l *Loader) internSpan(now clock.C, s ast.RawSpan) handle.H {
	h := l.Alloc.Fresh().AsSort(handle.Span)
	l.Env.Tables.PutSpan(h, store.RawSpan{File: s.File, Line: s.Line, Col: s.Col})
	return h
}

// chain allocates one Cell per item and links them head-to-tail,
// returning the head handle (handle.Nil for an empty slice). Each cell
// allocation and link mutation is logged so undo can unwind a partial
// module load (§4.6).
func (l *Loader) chain(now clock.C, items []handle.H) handle.H {
	if len(items) == 0 {
		return handle.Nil
	}
	cells := make([]handle.H, len(items))
	for i, it := range items {
		c := l.Alloc.Fresh().AsSort(handle.Cell)
		l.Env.Tables.PutCell(c, store.Cell{Dptr: it, Next: handle.Nil, Prev: handle.Nil})
		l.Log.Push(now, undo.Entry{Kind: undo.KindAllocCell, Cell: c})
		cells[i] = c
	}
	for i := 0; i < len(cells)-1; i++ {
		l.Env.Tables.SetNext(cells[i], cells[i+1])
		l.Env.Tables.SetPrev(cells[i+1], cells[i])
		l.Log.Push(now, undo.Entry{
			Kind:             undo.KindLinkCells,
			LinkedCell:       cells[i],
			PriorNext:        handle.Nil,
			LinkedIsNextEdge: true,
		})
	}
	return cells[0]
}

func (l *Loader) putTerm(now clock.C, rec any) handle.H {
	h := l.Alloc.Fresh().AsSort(handle.Term)
	l.Env.Tables.PutTerm(h, rec)
	l.Log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: h})
	return h
}

func (l *Loader) putCode(now clock.C, rec any) handle.H {
	h := l.Alloc.Fresh().AsSort(handle.Code)
	l.Env.Tables.PutCode(h, rec)
	l.Log.Push(now, undo.Entry{Kind: undo.KindPutCode, TermKey: h})
	return h
}

// LoadModule translates a parsed module into a ModCode record and
// returns its handle.
func (l *Loader) LoadModule(now clock.C, mod *ast.RawMod) (handle.H, error) {
	l.trace("loader: loading module with %d top-level statements", len(mod.Body))
	span := l.internSpan(now, mod.Span)
	body, err := l.loadStmSeq(now, mod.Body)
	if err != nil {
		return handle.Nil, err
	}
	return l.putCode(now, store.ModCode{Span: span, Stmp: body}), nil
}

func (l *Loader) loadStmSeq(now clock.C, stms []*ast.RawStm) (handle.H, error) {
	out := make([]handle.H, 0, len(stms))
	for _, s := range stms {
		h, err := l.loadStm(now, s)
		if err != nil {
			return handle.Nil, err
		}
		out = append(out, h)
	}
	return l.chain(now, out), nil
}

func (l *Loader) loadStm(now clock.C, s *ast.RawStm) (handle.H, error) {
	l.trace("loader: stm kind=%d span=%s:%d", s.Kind, s.Span.File, s.Span.Line)
	span := l.internSpan(now, s.Span)
	switch s.Kind {
	case ast.RawStmJust:
		term, err := l.loadTerm(now, s.Term)
		if err != nil {
			return handle.Nil, err
		}
		return l.putCode(now, store.StmCode{Kind: store.StmJust, Span: span, Term: term}), nil

	case ast.RawStmPass:
		return l.putCode(now, store.StmCode{Kind: store.StmPass, Span: span}), nil

	case ast.RawStmIf:
		cases := make([]store.IfCase, 0, len(s.Cases))
		for _, c := range s.Cases {
			cond, err := l.loadTerm(now, c.Cond)
			if err != nil {
				return handle.Nil, err
			}
			body, err := l.loadStmSeq(now, c.Body)
			if err != nil {
				return handle.Nil, err
			}
			cases = append(cases, store.IfCase{Cond: cond, Body: body})
		}
		var elseBody handle.H = handle.Nil
		if s.Else != nil {
			var err error
			elseBody, err = l.loadStmSeq(now, s.Else)
			if err != nil {
				return handle.Nil, err
			}
		}
		return l.putCode(now, store.StmCode{Kind: store.StmIf, Span: span, Cases: cases, Else: elseBody}), nil

	case ast.RawStmDefproc, ast.RawStmDefmatch:
		kind := store.StmDefproc
		if s.Kind == ast.RawStmDefmatch {
			kind = store.StmDefmatch
		}
		headIdent := l.internIdent(now, s.Head.Name)
		params := make([]handle.H, 0, len(s.Params))
		for _, p := range s.Params {
			params = append(params, l.internIdent(now, p.Name))
		}
		paramsHead := l.chain(now, params)
		body, err := l.loadStmSeq(now, s.Body)
		if err != nil {
			return handle.Nil, err
		}
		rec := store.StmCode{
			Kind:   kind,
			Span:   span,
			Prefix: s.Prefix,
			Head:   headIdent,
			Params: paramsHead,
			Body:   body,
		}
		h := l.putCode(now, rec)
		if s.Prefix == "rule" {
			l.Env.RuleIndex[s.Head.Name] = h
		}
		return h, nil

	case ast.RawStmQuote:
		return l.putCode(now, store.StmCode{Kind: store.StmQuote, Span: span}), nil

	default:
		return handle.Nil, &LoadError{Span: s.Span, Message: "unimpl: unknown statement kind"}
	}
}

func (l *Loader) loadTerm(now clock.C, t *ast.RawTerm) (handle.H, error) {
	if t == nil {
		return handle.Nil, nil
	}
	l.trace("loader: term kind=%d span=%s:%d", t.Kind, t.Span.File, t.Span.Line)
	span := l.internSpan(now, t.Span)

	switch t.Kind {
	case ast.RawTermIdent:
		ident := l.internIdent(now, t.Ident.Name)
		return l.putCode(now, store.TermCode{Kind: store.TermIdent, Span: span, Ident: ident}), nil

	case ast.RawTermQualIdent:
		ident := l.internIdent(now, t.Ident.Name)
		inner, err := l.loadTerm(now, t.Inner)
		if err != nil {
			return handle.Nil, err
		}
		return l.putCode(now, store.TermCode{Kind: store.TermQualIdent, Span: span, Ident: ident, Inner: inner}), nil

	case ast.RawTermAtomLit, ast.RawTermIntLit, ast.RawTermBoolLit, ast.RawTermNoneLit:
		raw := l.internLit(now, t.Lit.Text)
		kind := map[ast.RawTermKind]store.TermKind{
			ast.RawTermAtomLit: store.TermAtomLit,
			ast.RawTermIntLit:  store.TermIntLit,
			ast.RawTermBoolLit: store.TermBoolLit,
			ast.RawTermNoneLit: store.TermNoneLit,
		}[t.Kind]
		return l.putCode(now, store.TermCode{Kind: kind, Span: span, RawLitStr: raw}), nil

	case ast.RawTermListCon, ast.RawTermBunch:
		items := make([]handle.H, 0, len(t.Items))
		for _, it := range t.Items {
			h, err := l.loadTerm(now, it)
			if err != nil {
				return handle.Nil, err
			}
			items = append(items, h)
		}
		head := l.chain(now, items)
		kind := store.TermListCon
		if t.Kind == ast.RawTermBunch {
			kind = store.TermBunch
		}
		return l.putCode(now, store.TermCode{Kind: kind, Span: span, Head: head}), nil

	case ast.RawTermGroup:
		inner, err := l.loadTerm(now, t.Inner)
		if err != nil {
			return handle.Nil, err
		}
		return l.putCode(now, store.TermCode{Kind: store.TermGroup, Span: span, Inner: inner}), nil

	case ast.RawTermEqual, ast.RawTermNEqual, ast.RawTermQEqual,
		ast.RawTermBindL, ast.RawTermBindR, ast.RawTermSubst:
		left, err := l.loadTerm(now, t.Left)
		if err != nil {
			return handle.Nil, err
		}
		right, err := l.loadTerm(now, t.Right)
		if err != nil {
			return handle.Nil, err
		}
		kind := map[ast.RawTermKind]store.TermKind{
			ast.RawTermEqual:  store.TermEqual,
			ast.RawTermNEqual: store.TermNEqual,
			ast.RawTermQEqual: store.TermQEqual,
			ast.RawTermBindL:  store.TermBindL,
			ast.RawTermBindR:  store.TermBindR,
			ast.RawTermSubst:  store.TermSubst,
		}[t.Kind]
		return l.putCode(now, store.TermCode{Kind: kind, Span: span, Left: left, Right: right}), nil

	case ast.RawTermApply, ast.RawTermApplyBindL, ast.RawTermApplyBindR:
		tuple := make([]handle.H, 0, len(t.Tuple))
		for _, it := range t.Tuple {
			h, err := l.loadTerm(now, it)
			if err != nil {
				return handle.Nil, err
			}
			tuple = append(tuple, h)
		}
		tupleHead := l.chain(now, tuple)
		var bind handle.H
		if t.Bind != nil {
			var err error
			bind, err = l.loadTerm(now, t.Bind)
			if err != nil {
				return handle.Nil, err
			}
		}
		kind := map[ast.RawTermKind]store.TermKind{
			ast.RawTermApply:        store.TermApply,
			ast.RawTermApplyBindL:   store.TermApplyBindL,
			ast.RawTermApplyBindR:   store.TermApplyBindR,
		}[t.Kind]
		return l.putCode(now, store.TermCode{Kind: kind, Span: span, Tuple: tupleHead, Bind: bind}), nil

	case ast.RawTermEffect:
		left, err := l.loadTerm(now, t.EffectLeft)
		if err != nil {
			return handle.Nil, err
		}
		rightItems := make([]handle.H, 0, len(t.EffectRight))
		for _, it := range t.EffectRight {
			h, err := l.loadTerm(now, it)
			if err != nil {
				return handle.Nil, err
			}
			rightItems = append(rightItems, h)
		}
		right := l.chain(now, rightItems)
		return l.putCode(now, store.TermCode{Kind: store.TermEffect, Span: span, EffectLeft: left, EffectRight: right}), nil

	default:
		return handle.Nil, &LoadError{Span: t.Span, Message: "unimpl: unknown term kind"}
	}
}
