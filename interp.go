// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package tangle wires the handle, clock, store, unify, undo, choice,
// contin, loader and builtin packages into the trampolined evaluator
// of §4.8-§4.11: a single-threaded Step that never recurses into
// itself, driven by an outer Run loop that catches YieldFail and
// replays the undo log against the most recent live choice frame.
package tangle

import (
	"fmt"
	"io"
	"strconv"

	"github.com/tanglelang/tangle/ast"
	"github.com/tanglelang/tangle/builtin"
	"github.com/tanglelang/tangle/choice"
	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/contin"
	"github.com/tanglelang/tangle/diag"
	"github.com/tanglelang/tangle/flatten"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/loader"
	"github.com/tanglelang/tangle/store"
	"github.com/tanglelang/tangle/undo"
	"github.com/tanglelang/tangle/unify"
)

// Interp is one instance of the execution engine: its own handle
// allocator, clock, interning tables, unifier, undo log and choice
// trace (§5 "no global mutable state" — every field below lives on
// this struct, nothing package-level).
type Interp struct {
	alloc   handle.Alloc
	ctr     clock.Ctr
	invalid clock.InvalidSet
	env     *store.Env
	uni     *unify.Unifier
	log     undo.Log
	trace   choice.Trace
	reg     *builtin.Registry

	// builtinFns maps a minted function-handle's key to the builtin
	// name it was pre-bound to (§4.10 pre-init).
	builtinFns map[uint32]string

	port contin.Port
	cont *contin.Frame

	// resultReg/lastChildCode are the transient registers stepReturn
	// reads immediately after a child frame finishes (§4.9 "Return").
	resultReg     handle.H
	lastChildCode handle.H

	rstClk clock.C
	rstSet bool

	// sink is the interpreter-level diagnostic sink: opts.logger wrapped
	// in a diag.LevelSink at opts.verbosity (§6), computed once at
	// construction since neither operand changes afterward.
	sink diag.Sink

	opts *options
}

// New constructs an Interp with its builtins pre-registered and bound
// (§4.10 pre-init), ready to Load a module.
func New(opts ...Option) (*Interp, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	ip := &Interp{
		env:        store.NewEnv(),
		uni:        unify.New(),
		reg:        builtin.NewRegistry(),
		builtinFns: make(map[uint32]string),
		opts:       cfg,
		sink:       diag.NewLevelSink(diag.Level(cfg.verbosity), cfg.logger),
		port:       contin.PortQuiescent,
	}
	ip.reg.RegisterDefaults()
	ip.preInit()
	return ip, nil
}

// preInit interns every registered builtin's name, mints a dedicated
// function handle, binds the ident to it in the environment's
// IdentBinding map, and records the function-handle's key in
// builtinFns so Apply's callee resolution recognizes it (§4.10). This
// happens before any module is loaded and is never logged: a choice
// frame's Xlb watermark is always taken after preInit runs, so a
// rollback can never reach far enough back to undo it.
func (ip *Interp) preInit() {
	for _, name := range []string{"choice", "failure", "print", "eval"} {
		identH := ip.internIdentRaw(name)
		fnH := ip.alloc.Fresh().AsSort(handle.Term)
		ip.env.Tables.PutTerm(fnH, store.IdentTerm{RawIdent: identH})
		ip.env.IdentBinding[identH.Key()] = fnH
		ip.builtinFns[fnH.Key()] = name
	}
}

func (ip *Interp) internIdentRaw(name string) handle.H {
	if h, ok := ip.env.RawIdentIndex[name]; ok {
		return h
	}
	h := ip.alloc.Fresh().AsSort(handle.Ident)
	ip.env.Tables.PutIdent(h, store.RawIdent{Name: name})
	ip.env.RawIdentIndex[name] = h
	return h
}

// Load translates mod into code records (§4.4) and arms the
// continuation to evaluate it from the top.
func (ip *Interp) Load(mod *ast.RawMod) error {
	now := ip.ctr.Fresh()
	ld := loader.New(&ip.alloc, &ip.log, ip.env)
	ld.Sink = diag.NewLevelSink(diag.Level(ip.opts.parserVerbosity), ip.opts.logger)
	h, err := ld.LoadModule(now, mod)
	if err != nil {
		return err
	}
	ip.cont = contin.Push(nil, h)
	ip.port = contin.PortEnter
	return nil
}

// Oracle returns the approximate-oracle client installed via
// WithOracleClient, or nil if none was configured. The core never
// calls it (§1); this is purely a retrieval point for a caller wiring
// the full system around this engine.
func (ip *Interp) Oracle() OracleClient { return ip.opts.oracle }

// Journal returns the journal/storage-layer appender installed via
// WithJournal, or nil if none was configured. The core never calls it.
func (ip *Interp) Journal() JournalAppender { return ip.opts.journal }

// TAPWriter returns the writer installed via WithTAPWriter, or nil if
// none was configured. The TAP producer itself is out of scope (§1);
// this is purely a retrieval point for a caller layering TAP output on
// top of this engine.
func (ip *Interp) TAPWriter() io.Writer { return ip.opts.tapWriter }

// Flatten snapshots the interpreter's interning tables at the current
// clock (§4.12).
func (ip *Interp) Flatten() flatten.Snapshot {
	t := ip.env.Tables
	return flatten.Take(ip.ctr.Get(), t.Spans(), t.Codes(), t.Idents(), t.Terms())
}

// writeSnapshot flattens and writes the current state to the
// configured snapshot writer, if any (spec.md §6 "(b) On termination,
// flattened snapshot"). It is a no-op when WithSnapshotWriter was never
// called.
func (ip *Interp) writeSnapshot() {
	if ip.opts.snapshotWriter == nil {
		return
	}
	fmt.Fprintf(ip.opts.snapshotWriter, "%+v\n", ip.Flatten())
}

// --- builtin.Host ---

func (ip *Interp) Clock() clock.C             { return ip.ctr.Get() }
func (ip *Interp) Alloc() *handle.Alloc       { return &ip.alloc }
func (ip *Interp) Log() *undo.Log             { return &ip.log }
func (ip *Interp) Invalid() *clock.InvalidSet { return &ip.invalid }
func (ip *Interp) Unifier() *unify.Unifier    { return ip.uni }
func (ip *Interp) Tables() *store.Tables      { return ip.env.Tables }
func (ip *Interp) Choice() *choice.Trace      { return &ip.trace }
func (ip *Interp) Sink() diag.Sink            { return ip.sink }
func (ip *Interp) RstClk() (clock.C, bool)    { return ip.rstClk, ip.rstSet }
func (ip *Interp) Continuation() any          { return ip.cont }

// --- the trampoline (§4.9) ---

// Step performs exactly one port transition: Enter (evaluate or
// descend), Return (fold a child's result into its parent), or
// Quiescent (nothing left to do). It never calls itself; Run is the
// only thing that loops.
func (ip *Interp) Step() (contin.Yield, error) {
	switch ip.port {
	case contin.PortQuiescent:
		return contin.YieldQuiescent, nil
	case contin.PortReturn:
		return ip.stepReturn()
	default:
		return ip.stepEnter()
	}
}

func (ip *Interp) stepReturn() (contin.Yield, error) {
	fr := ip.cont
	if fr == nil {
		ip.port = contin.PortQuiescent
		return contin.YieldQuiescent, nil
	}
	nf := fr.WithResult(contin.ChildResult{Child: ip.lastChildCode, Result: ip.resultReg}).WithCursor(fr.Micro.Cursor + 1)
	ip.cont = nf
	ip.port = contin.PortEnter
	return contin.YieldNone, nil
}

func (ip *Interp) stepEnter() (contin.Yield, error) {
	fr := ip.cont
	if fr == nil {
		ip.port = contin.PortQuiescent
		return contin.YieldQuiescent, nil
	}
	rec, err := ip.env.Tables.GetCode(fr.Micro.Code)
	if err != nil {
		return contin.YieldNone, WrapFault(fr.Micro.Code, "enter: code lookup", err)
	}
	switch v := rec.(type) {
	case store.ModCode:
		return ip.enterModCode(fr, v)
	case store.StmCode:
		return ip.enterStmCode(fr, v)
	case store.TermCode:
		return ip.enterTermCode(fr, v)
	default:
		return contin.YieldNone, WrapFault(fr.Micro.Code, "enter: unrecognized code record", nil)
	}
}

// finish folds result into the parent frame (§4.9 "Fin"): it sets the
// transient registers stepReturn consumes, pops to the parent, and
// chooses the next port (Quiescent at the outermost frame, Return
// otherwise).
func (ip *Interp) finish(fr *contin.Frame, result handle.H) (contin.Yield, error) {
	ip.resultReg = result
	ip.lastChildCode = fr.Micro.Code
	ip.cont = fr.Parent
	if ip.cont == nil {
		ip.port = contin.PortQuiescent
		return contin.YieldQuiescent, nil
	}
	ip.port = contin.PortReturn
	return contin.YieldNone, nil
}

// pushChild descends into code, with fr (unchanged) as the parent to
// resume on Return.
func (ip *Interp) pushChild(fr *contin.Frame, code handle.H) (contin.Yield, error) {
	ip.cont = contin.Push(fr, code)
	ip.port = contin.PortEnter
	return contin.YieldNone, nil
}

// seqChild walks the cell chain rooted at head to its idx'th element,
// returning its Dptr and true, or false once the chain is exhausted
// (§4.8, sequence forms). O(n) in the index, acceptable at this
// scope since sequences are source-sized, not data-sized.
func (ip *Interp) seqChild(head handle.H, idx int) (handle.H, bool, error) {
	cur := head
	for i := 0; i < idx; i++ {
		if cur.IsNil() {
			return handle.Nil, false, nil
		}
		c, err := ip.env.Tables.GetCell(cur)
		if err != nil {
			return handle.Nil, false, err
		}
		cur = c.Next
	}
	if cur.IsNil() {
		return handle.Nil, false, nil
	}
	c, err := ip.env.Tables.GetCell(cur)
	if err != nil {
		return handle.Nil, false, err
	}
	return c.Dptr, true, nil
}

// seqStep drives one step of a chain-walk micro-state (§4.8, "no more
// children; assemble the result"): once fr's cursor reaches Fin, every
// item has been evaluated and the caller should assemble its result;
// until then, it either descends into the next child or advances the
// continuation's cursor to Fin once the chain is exhausted, routing the
// walk through the same sentinel every sequence form shares rather than
// a form-local "ok" flag.
func (ip *Interp) seqStep(fr *contin.Frame, head handle.H) (atFin bool, yield contin.Yield, err error) {
	if fr.AtFin() {
		return true, contin.YieldNone, nil
	}
	child, ok, err := ip.seqChild(head, fr.Micro.Cursor)
	if err != nil {
		return false, contin.YieldNone, err
	}
	if !ok {
		ip.cont = fr.WithCursor(contin.Fin)
		ip.port = contin.PortEnter
		return false, contin.YieldNone, nil
	}
	yield, err = ip.pushChild(fr, child)
	return false, yield, err
}

// runtimeChain mints a fresh cell chain over items, exactly as the
// loader does for source sequences, logging each write so a rolled
// back choice point unwinds it too (§4.6).
func (ip *Interp) runtimeChain(now clock.C, items []handle.H) handle.H {
	if len(items) == 0 {
		return handle.Nil
	}
	cells := make([]handle.H, len(items))
	for i, it := range items {
		c := ip.alloc.Fresh().AsSort(handle.Cell)
		ip.env.Tables.PutCell(c, store.Cell{Dptr: it, Next: handle.Nil, Prev: handle.Nil})
		ip.log.Push(now, undo.Entry{Kind: undo.KindAllocCell, Cell: c})
		cells[i] = c
	}
	for i := 0; i < len(cells)-1; i++ {
		ip.env.Tables.SetNext(cells[i], cells[i+1])
		ip.env.Tables.SetPrev(cells[i+1], cells[i])
		ip.log.Push(now, undo.Entry{Kind: undo.KindLinkCells, LinkedCell: cells[i], PriorNext: handle.Nil, LinkedIsNextEdge: true})
	}
	return cells[0]
}

// last1 returns the most recently accumulated child result.
func last1(fr *contin.Frame) handle.H {
	rs := fr.Micro.Results
	return rs[len(rs)-1].Result
}

// lastN returns the n most recently accumulated child results, oldest
// first.
func lastN(fr *contin.Frame, n int) []handle.H {
	rs := fr.Micro.Results
	out := make([]handle.H, n)
	for i := 0; i < n; i++ {
		out[i] = rs[len(rs)-n+i].Result
	}
	return out
}

// resolveLiteral finds the Literal value sharing term's equivalence
// class, by scanning the class for a member with a val-table entry
// (§4.8, "Literal": the term and its value share a class but live in
// separate tables).
func (ip *Interp) resolveLiteral(now clock.C, term handle.H) (store.Literal, error) {
	members, err := ip.uni.FindAll(&ip.invalid, now, term)
	if err != nil {
		return store.Literal{}, err
	}
	for _, m := range members {
		if v, err := ip.env.Tables.GetVal(m.Instance); err == nil {
			return v, nil
		}
	}
	return store.Literal{}, &InterpCheck{Location: term, Message: "class has no literal value"}
}

func (ip *Interp) unify(now clock.C, a, b handle.H) (handle.H, error) {
	root, undoE, err := ip.uni.Unify(&ip.invalid, now, a, b)
	if err != nil {
		return handle.Nil, WrapBot(handle.Nil, err)
	}
	if undoE != nil {
		ip.log.Push(now, undo.Entry{Kind: undo.KindUnify, UnifyUndo: undoE})
	}
	return root, nil
}

func (ip *Interp) writeBool(fr *contin.Frame, now clock.C, v bool) (contin.Yield, error) {
	kind := store.LitFalse
	if v {
		kind = store.LitTrue
	}
	term := ip.alloc.Fresh().AsSort(handle.Term)
	val := ip.alloc.Fresh().AsSort(handle.Val)
	ip.env.Tables.PutTerm(term, store.LitTerm{RawLitStr: handle.Nil})
	ip.env.Tables.PutVal(val, store.Literal{Kind: kind})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: term})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutVal, ValKey: val})
	if _, err := ip.unify(now, term, val); err != nil {
		return contin.YieldNone, err
	}
	return ip.finish(fr, term)
}

// --- ModCode (§4.8, the top level) ---

func (ip *Interp) enterModCode(fr *contin.Frame, m store.ModCode) (contin.Yield, error) {
	atFin, yield, err := ip.seqStep(fr, m.Stmp)
	if err != nil {
		return contin.YieldNone, err
	}
	if atFin {
		return ip.finish(fr, handle.Nil)
	}
	return yield, nil
}

// --- StmCode (§4.8, statements) ---

func (ip *Interp) enterStmCode(fr *contin.Frame, s store.StmCode) (contin.Yield, error) {
	switch s.Kind {
	case store.StmJust:
		if fr.Micro.Cursor == 0 {
			return ip.pushChild(fr, s.Term)
		}
		return ip.finish(fr, last1(fr))

	case store.StmPass, store.StmDefproc, store.StmDefmatch, store.StmQuote:
		// Defproc/Defmatch register into Env.RuleIndex at load time
		// (§4.4); evaluating the statement itself is a no-op until rule
		// matching is implemented (§9 open question).
		return ip.finish(fr, handle.Nil)

	case store.StmIf:
		return ip.enterIf(fr, s)

	default:
		return contin.YieldNone, Unimplemented(s.Span, "statement kind")
	}
}

func (ip *Interp) enterIf(fr *contin.Frame, s store.StmCode) (contin.Yield, error) {
	if fr.Micro.Phase == 1 {
		var head handle.H
		if fr.Micro.IfCase < len(s.Cases) {
			head = s.Cases[fr.Micro.IfCase].Body
		} else {
			head = s.Else
		}
		atFin, yield, err := ip.seqStep(fr, head)
		if err != nil {
			return contin.YieldNone, err
		}
		if atFin {
			return ip.finish(fr, handle.Nil)
		}
		return yield, nil
	}

	// Phase 0: testing cases in order until one matches, or falling
	// through to the else clause (§4.8 "If").
	if fr.Micro.IfCase >= len(s.Cases) {
		if s.Else.IsNil() {
			return ip.finish(fr, handle.Nil)
		}
		ip.cont = fr.WithPhase(1).WithCursor(0)
		ip.port = contin.PortEnter
		return contin.YieldNone, nil
	}

	if fr.Micro.Cursor == 0 {
		cond := s.Cases[fr.Micro.IfCase].Cond
		ip.cont = contin.Push(fr, cond).WithTermCtx(contin.CtxMatch)
		ip.port = contin.PortEnter
		return contin.YieldNone, nil
	}

	lit, err := ip.resolveLiteral(ip.ctr.Get(), last1(fr))
	if err != nil {
		return contin.YieldNone, WrapFault(s.Span, "if: condition result has no value", err)
	}
	if lit.Kind == store.LitTrue {
		ip.cont = fr.WithPhase(1).WithCursor(0)
	} else {
		ip.cont = fr.WithIfCase(fr.Micro.IfCase + 1).WithCursor(0)
	}
	ip.port = contin.PortEnter
	return contin.YieldNone, nil
}

// --- TermCode (§4.8, terms) ---

func (ip *Interp) enterTermCode(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	switch t.Kind {
	case store.TermIdent:
		return ip.finishIdent(fr, t)

	case store.TermQualIdent, store.TermGroup:
		if fr.Micro.Cursor == 0 {
			return ip.pushChild(fr, t.Inner)
		}
		return ip.finish(fr, last1(fr))

	case store.TermAtomLit, store.TermIntLit, store.TermBoolLit, store.TermNoneLit:
		return ip.finishLiteral(fr, t)

	case store.TermListCon, store.TermBunch:
		atFin, yield, err := ip.seqStep(fr, t.Head)
		if err != nil {
			return contin.YieldNone, err
		}
		if atFin {
			return ip.finishSequenceTuple(fr)
		}
		return yield, nil

	case store.TermEqual, store.TermNEqual, store.TermQEqual, store.TermBindL, store.TermBindR, store.TermSubst:
		return ip.enterBinary(fr, t)

	case store.TermApply, store.TermApplyBindL, store.TermApplyBindR:
		return ip.enterApply(fr, t)

	case store.TermEffect:
		return ip.enterEffect(fr, t)

	default:
		return contin.YieldNone, Unimplemented(t.Span, "term kind")
	}
}

// finishIdent resolves an identifier term (§4.8 "Ident"): on first
// evaluation it mints an IdentTerm and binds it, so every later
// occurrence of the same raw ident resolves to the same handle.
func (ip *Interp) finishIdent(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	if bound, ok := ip.env.IdentBinding[t.Ident.Key()]; ok {
		return ip.finish(fr, bound)
	}
	now := ip.ctr.Fresh()
	h := ip.alloc.Fresh().AsSort(handle.Term)
	ip.env.Tables.PutTerm(h, store.IdentTerm{RawIdent: t.Ident})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: h})
	ip.env.IdentBinding[t.Ident.Key()] = h
	ip.log.Push(now, undo.Entry{Kind: undo.KindBindIdent, BoundKey: t.Ident, HadPrior: false})
	return ip.finish(fr, h)
}

// finishLiteral resolves a literal term (§4.8 "Literal"): on first
// evaluation it mints a LitTerm/Literal pair, unifies them, and caches
// the term handle by the raw literal string so the same source token
// always resolves to the same class.
func (ip *Interp) finishLiteral(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	if cached, ok := ip.env.LitCache[t.RawLitStr.Key()]; ok {
		return ip.finish(fr, cached)
	}
	now := ip.ctr.Fresh()
	raw, err := ip.env.Tables.GetLitStr(t.RawLitStr)
	if err != nil {
		return contin.YieldNone, WrapFault(t.Span, "literal: raw lookup", err)
	}
	lit, err := parseLiteral(t.Kind, raw.Text)
	if err != nil {
		return contin.YieldNone, WrapFault(t.Span, "literal: parse", err)
	}

	term := ip.alloc.Fresh().AsSort(handle.Term)
	val := ip.alloc.Fresh().AsSort(handle.Val)
	ip.env.Tables.PutTerm(term, store.LitTerm{RawLitStr: t.RawLitStr})
	ip.env.Tables.PutVal(val, lit)
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: term})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutVal, ValKey: val})
	if _, err := ip.unify(now, term, val); err != nil {
		return contin.YieldNone, err
	}

	ip.env.LitCache[t.RawLitStr.Key()] = term
	ip.log.Push(now, undo.Entry{Kind: undo.KindBindLitStr, BoundKey: t.RawLitStr, HadPrior: false})
	return ip.finish(fr, term)
}

func parseLiteral(kind store.TermKind, text string) (store.Literal, error) {
	switch kind {
	case store.TermIntLit:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return store.Literal{}, err
		}
		return store.Literal{Kind: store.LitInt, Int: n}, nil
	case store.TermBoolLit:
		if text == "true" {
			return store.Literal{Kind: store.LitTrue}, nil
		}
		return store.Literal{Kind: store.LitFalse}, nil
	case store.TermNoneLit:
		return store.Literal{Kind: store.LitNone}, nil
	case store.TermAtomLit:
		return store.Literal{Kind: store.LitStr, Str: text}, nil
	default:
		return store.Literal{}, Unimplemented(handle.Nil, "literal kind")
	}
}

// finishSequenceTuple assembles a TupleTerm from every result
// accumulated so far (§4.8 "Bunch/ListCon may define a tuple term
// for consistency" — the resolution this engine makes of that open
// choice, so a ListCon/Bunch always produces an addressable value
// like Apply's tuple does).
func (ip *Interp) finishSequenceTuple(fr *contin.Frame) (contin.Yield, error) {
	now := ip.ctr.Fresh()
	items := make([]handle.H, len(fr.Micro.Results))
	for i, r := range fr.Micro.Results {
		items[i] = r.Result
	}
	head := ip.runtimeChain(now, items)
	h := ip.alloc.Fresh().AsSort(handle.Term)
	ip.env.Tables.PutTerm(h, store.TupleTerm{Head: head})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: h})
	return ip.finish(fr, h)
}

// enterBinary drives the two-named-child forms: Left then Right, then
// combine (§4.8 "Equal / NEqual / QEqual / BindL / BindR / Subst").
func (ip *Interp) enterBinary(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	switch fr.Micro.Cursor {
	case 0:
		return ip.pushChild(fr, t.Left)
	case 1:
		return ip.pushChild(fr, t.Right)
	default:
		pair := lastN(fr, 2)
		return ip.combineBinary(fr, t, pair[0], pair[1])
	}
}

func (ip *Interp) combineBinary(fr *contin.Frame, t store.TermCode, left, right handle.H) (contin.Yield, error) {
	now := ip.ctr.Fresh()
	switch t.Kind {
	case store.TermBindL, store.TermBindR, store.TermSubst:
		root, err := ip.unify(now, left, right)
		if err != nil {
			return contin.YieldNone, err
		}
		return ip.finish(fr, root)

	case store.TermEqual:
		if fr.Micro.TermCtx == contin.CtxMatch {
			eq, err := ip.classesEqual(now, left, right)
			if err != nil {
				return contin.YieldNone, err
			}
			return ip.writeBool(fr, now, eq)
		}
		root, err := ip.unify(now, left, right)
		if err != nil {
			return contin.YieldNone, err
		}
		return ip.finish(fr, root)

	case store.TermNEqual:
		if fr.Micro.TermCtx == contin.CtxMatch {
			eq, err := ip.classesEqual(now, left, right)
			if err != nil {
				return contin.YieldNone, err
			}
			return ip.writeBool(fr, now, !eq)
		}
		lc, err := ip.uni.Find(&ip.invalid, now, left)
		if err != nil {
			return contin.YieldNone, WrapBot(t.Span, err)
		}
		rc, err := ip.uni.Find(&ip.invalid, now, right)
		if err != nil {
			return contin.YieldNone, WrapBot(t.Span, err)
		}
		h := ip.alloc.Fresh().AsSort(handle.Term)
		ip.env.Tables.PutTerm(h, store.NEqualTerm{LeftClass: lc.Class, RightClass: rc.Class})
		ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: h})
		return ip.finish(fr, h)

	case store.TermQEqual:
		lv, lerr := ip.resolveLiteral(now, left)
		rv, rerr := ip.resolveLiteral(now, right)
		eq := lerr == nil && rerr == nil && lv.Equal(rv)
		return ip.writeBool(fr, now, eq)

	default:
		return contin.YieldNone, Unimplemented(t.Span, "binary term kind")
	}
}

func (ip *Interp) classesEqual(now clock.C, a, b handle.H) (bool, error) {
	lc, err := ip.uni.Find(&ip.invalid, now, a)
	if err != nil {
		return false, WrapBot(handle.Nil, err)
	}
	rc, err := ip.uni.Find(&ip.invalid, now, b)
	if err != nil {
		return false, WrapBot(handle.Nil, err)
	}
	return lc.Class.Equal(rc.Class), nil
}

// enterApply drives Apply/ApplyBindL/ApplyBindR (§4.8 "Apply"): phase
// 0 walks the tuple (callee first, then arguments); phase 1, only for
// the BindL/BindR variants, evaluates the Bind expression and unifies
// it with the phase-0 result.
func (ip *Interp) enterApply(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	if fr.Micro.Phase == 1 {
		if fr.Micro.Cursor == 0 {
			ip.cont = contin.Push(fr, t.Bind)
			ip.port = contin.PortEnter
			return contin.YieldNone, nil
		}
		now := ip.ctr.Fresh()
		bindResult := last1(fr)
		root, err := ip.unify(now, fr.Micro.RetSlot, bindResult)
		if err != nil {
			return contin.YieldNone, err
		}
		return ip.finish(fr, root)
	}

	atFin, seqYield, err := ip.seqStep(fr, t.Tuple)
	if err != nil {
		return contin.YieldNone, err
	}
	if !atFin {
		return seqYield, nil
	}

	v, yield, err := ip.computeApplyValue(fr, t)
	if err != nil {
		return contin.YieldNone, err
	}
	if yield != contin.YieldNone {
		return yield, nil
	}
	if t.Kind == store.TermApply {
		return ip.finish(fr, v)
	}
	ip.cont = fr.WithPhase(1).WithCursor(0).WithRetSlot(v)
	ip.port = contin.PortEnter
	return contin.YieldNone, nil
}

// computeApplyValue assembles the tuple of every evaluated cell
// (callee included) and, if the callee resolves to a registered
// builtin, dispatches Apply instead of returning the assembled tuple
// (§4.8 "Apply": "since f is unbound, apply builds a tuple term").
func (ip *Interp) computeApplyValue(fr *contin.Frame, t store.TermCode) (handle.H, contin.Yield, error) {
	now := ip.ctr.Fresh()
	items := make([]handle.H, len(fr.Micro.Results))
	for i, r := range fr.Micro.Results {
		items[i] = r.Result
	}
	head := ip.runtimeChain(now, items)
	tuple := ip.alloc.Fresh().AsSort(handle.Term)
	ip.env.Tables.PutTerm(tuple, store.TupleTerm{Head: head})
	ip.log.Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: tuple})

	if len(items) == 0 {
		return tuple, contin.YieldNone, nil
	}
	callee := items[0]
	name, ok := ip.builtinFns[callee.Key()]
	if !ok {
		return tuple, contin.YieldNone, nil
	}
	fn, _ := ip.reg.Lookup(name)
	argsHead := ip.runtimeChain(now, items[1:])
	var retSlot handle.H
	yield, err := fn.Apply(ip, t.Span, argsHead, &retSlot)
	if err != nil {
		return handle.Nil, contin.YieldNone, err
	}
	if yield != contin.YieldNone {
		return handle.Nil, yield, nil
	}
	return retSlot, contin.YieldNone, nil
}

// enterEffect drives Effect (§4.8 "Effect"): evaluate the left side,
// then the right sequence; the combined result is never defined by
// default, mirroring the spec leaving its combination open.
func (ip *Interp) enterEffect(fr *contin.Frame, t store.TermCode) (contin.Yield, error) {
	if fr.Micro.Phase == 0 {
		if fr.Micro.Cursor == 0 {
			return ip.pushChild(fr, t.EffectLeft)
		}
		ip.cont = fr.WithPhase(1).WithCursor(0)
		ip.port = contin.PortEnter
		return contin.YieldNone, nil
	}
	atFin, yield, err := ip.seqStep(fr, t.EffectRight)
	if err != nil {
		return contin.YieldNone, err
	}
	if atFin {
		return ip.finish(fr, handle.Nil)
	}
	return yield, nil
}

// --- the outer loop (§4.11) ---

// Run drives Step until it reaches a port or yield the caller must
// handle directly: Quiescent (done), Halt/Interrupt/Break/Raise
// (terminal yields with no backtracking), or the choice trace is
// exhausted on Fail. YieldFail is caught and retried internally,
// invisible to the caller unless no live choice frame remains.
func (ip *Interp) Run() (contin.Yield, error) {
	defer ip.writeSnapshot()
	for {
		yield, err := ip.Step()
		if err != nil {
			return yield, err
		}
		switch yield {
		case contin.YieldNone:
			continue
		case contin.YieldFail:
			resumed, err := ip.backtrack()
			if err != nil {
				return contin.YieldHalt, err
			}
			if !resumed {
				return contin.YieldHalt, nil
			}
			continue
		case contin.YieldEval:
			return yield, Unimplemented(handle.Nil, "eval")
		default:
			return yield, nil
		}
	}
}

// backtrack implements §4.11's failure handling: walk choice frames
// newest-to-oldest, replaying the undo log back to each frame's
// root clock and resetting the allocator to its Xlb, until one still
// has alternatives left (live) or the trace is exhausted.
func (ip *Interp) backtrack() (bool, error) {
	for {
		frame, ok := ip.trace.PopPos()
		if !ok {
			return false, nil
		}
		live := frame.Counter+1 < frame.Limit

		for ip.log.Len() > 0 && ip.log.PeekClock() >= clock.C(frame.RootClk) {
			e, _, ok := ip.log.Pop()
			if !ok {
				break
			}
			if err := ip.applyUndo(e); err != nil {
				return false, err
			}
		}

		ip.alloc.Reset(frame.Xlb)
		curClk := ip.ctr.Get()
		if err := ip.invalid.Insert(clock.C(frame.RootClk), curClk+1); err != nil {
			return false, WrapFault(handle.Nil, "backtrack: invalid-set insert", err)
		}

		if cont, ok := frame.Contin.(*contin.Frame); ok {
			ip.cont = cont
		} else {
			ip.cont = nil
		}
		ip.port = contin.PortEnter
		ip.rstClk, ip.rstSet = clock.C(frame.RootClk), true

		if live {
			return true, nil
		}
		// This frame is exhausted; its alternatives are gone. Keep
		// walking to the next older frame.
	}
}

// applyUndo inverts a single log entry (§4.6): the undo package is
// deliberately data-only, so the actual store/unify mutation lives
// here, the one package that imports both.
func (ip *Interp) applyUndo(e undo.Entry) error {
	switch e.Kind {
	case undo.KindUnify:
		u, ok := e.UnifyUndo.(*unify.UnifyUndo)
		if !ok {
			return &InterpCheck{Message: "undo: malformed unify entry"}
		}
		ip.uni.UndoUnify(u)
		return nil

	case undo.KindAllocCell:
		ip.env.Tables.DeleteCell(e.Cell)
		return nil

	case undo.KindLinkCells:
		if e.LinkedIsNextEdge {
			ip.env.Tables.SetNext(e.LinkedCell, e.PriorNext)
		} else {
			ip.env.Tables.SetPrev(e.LinkedCell, e.PriorPrev)
		}
		return nil

	case undo.KindBindIdent:
		if e.HadPrior {
			ip.env.IdentBinding[e.BoundKey.Key()] = e.PriorBinding
		} else {
			delete(ip.env.IdentBinding, e.BoundKey.Key())
		}
		return nil

	case undo.KindBindLitStr:
		if e.HadPrior {
			ip.env.LitCache[e.BoundKey.Key()] = e.PriorBinding
		} else {
			delete(ip.env.LitCache, e.BoundKey.Key())
		}
		return nil

	case undo.KindLoadRaw:
		switch e.RawSort {
		case handle.Ident:
			delete(ip.env.RawIdentIndex, e.RawKey)
		case handle.LitStr:
			delete(ip.env.RawLitIndex, e.RawKey)
		}
		return nil

	case undo.KindPutTerm:
		ip.env.Tables.DeleteTerm(e.TermKey)
		return nil

	case undo.KindPutVal:
		ip.env.Tables.DeleteVal(e.ValKey)
		return nil

	case undo.KindPutCode:
		ip.env.Tables.DeleteCode(e.TermKey)
		return nil

	default:
		return &InterpCheck{Message: "undo: unrecognized entry kind"}
	}
}
