// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package builtin implements the builtin functions of §4.10 (`choice`,
// `failure`, `print`, `eval`) and the per-instance registration surface
// Apply dispatches through. Builtins never touch interpreter internals
// directly: they operate through the Host interface, so this package
// has no dependency on the root package and the root package is free to
// satisfy Host however it likes.
package builtin

import (
	"math"

	"github.com/tanglelang/tangle/choice"
	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/contin"
	"github.com/tanglelang/tangle/diag"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/store"
	"github.com/tanglelang/tangle/undo"
	"github.com/tanglelang/tangle/unify"
)

// Host is the slice of interpreter state a builtin function needs
// (§5 "no reentrancy": builtins may read and mutate this state but
// never call back into the top-level step).
type Host interface {
	Clock() clock.C
	Alloc() *handle.Alloc
	Log() *undo.Log
	Invalid() *clock.InvalidSet
	Unifier() *unify.Unifier
	Tables() *store.Tables
	Choice() *choice.Trace
	Sink() diag.Sink

	// RstClk returns the current rst-clk register and whether it is
	// set (§4.10 "consults the current rst-clk register").
	RstClk() (clock.C, bool)

	// Continuation returns the live continuation (a *contin.Frame) at
	// the moment the builtin was invoked, for choice to snapshot into
	// a new trace frame (§4.7 "push(..., knt)").
	Continuation() any
}

// Function is the per-instance apply operation a registered builtin
// exposes (§4.8 "Apply").
type Function interface {
	Name() string
	// Apply evaluates a call to this function. args is the head of the
	// argument cell chain (the callee itself excluded). retSlot receives
	// the result handle when the function continues evaluation in
	// place (yield == contin.YieldNone).
	Apply(h Host, span handle.H, args handle.H, retSlot *handle.H) (yield contin.Yield, err error)
}

// Registry maps a builtin's registered name to its Function, the
// function-registration surface of §4.10. Registration happens once,
// per-instance, at pre-init (§9 "no global mutable state").
type Registry struct {
	byName map[string]Function
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Function)}
}

// Register adds fn under its own Name, overwriting any prior
// registration of the same name.
func (r *Registry) Register(fn Function) {
	r.byName[fn.Name()] = fn
}

// Lookup returns the Function registered under name, if any.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.byName[name]
	return fn, ok
}

// RegisterDefaults registers choice, failure, print, and eval under
// their spec names.
func (r *Registry) RegisterDefaults() {
	r.Register(ChoiceFunction{})
	r.Register(FailureFunction{})
	r.Register(PrintFunction{})
	r.Register(EvalFunction{})
}

// argsOf walks the cell chain rooted at head and returns the dptr
// handle of each cell in order.
func argsOf(h Host, head handle.H) ([]handle.H, error) {
	var out []handle.H
	cur := head
	for !cur.IsNil() {
		c, err := h.Tables().GetCell(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Dptr)
		cur = c.Next
	}
	return out, nil
}

// ChoiceFunction implements `choice(ub?)` (§4.10).
type ChoiceFunction struct{}

func (ChoiceFunction) Name() string { return "choice" }

func (ChoiceFunction) Apply(h Host, span handle.H, args handle.H, retSlot *handle.H) (contin.Yield, error) {
	argv, err := argsOf(h, args)
	if err != nil {
		return contin.YieldNone, err
	}

	limit := math.MaxInt32
	if len(argv) > 0 {
		// The argument is a term handle; its integer value lives on a
		// val-table member of the same class.
		members, err := h.Unifier().FindAll(h.Invalid(), h.Clock(), argv[0])
		if err != nil {
			return contin.YieldNone, err
		}
		for _, m := range members {
			if v, err := h.Tables().GetVal(m.Instance); err == nil && v.Kind == store.LitInt {
				limit = int(v.Int)
				break
			}
		}
	}

	now := h.Clock()

	var f *choice.Frame
	if rst, ok := h.RstClk(); ok {
		if found, ok := h.Choice().MaybeGetByRootClk(int64(rst)); ok {
			found.LastClk = int64(now)
			f = found
		}
	}
	if f == nil {
		h.Choice().Push(choice.Frame{
			Counter: 0,
			Limit:   limit,
			Xlb:     h.Alloc().Peek(),
			UndoLen: h.Log().Len(),
			RootClk: int64(now),
			LastClk: int64(now),
			Contin:  h.Continuation(),
		})
		f, _ = h.Choice().MaybeGet()
	}

	return writeChoiceResult(h, now, f.Counter, f.Limit, retSlot)
}

func writeChoiceResult(h Host, now clock.C, counter, limit int, retSlot *handle.H) (contin.Yield, error) {
	if counter >= limit {
		return contin.YieldFail, nil
	}
	term := h.Alloc().Fresh().AsSort(handle.Term)
	val := h.Alloc().Fresh().AsSort(handle.Val)
	// A synthesized counter value has no raw source token to cache
	// against, unlike an ordinary Literal term (§4.8 "Literal").
	h.Tables().PutTerm(term, store.LitTerm{RawLitStr: handle.Nil})
	h.Tables().PutVal(val, store.Literal{Kind: store.LitInt, Int: int64(counter)})
	h.Log().Push(now, undo.Entry{Kind: undo.KindPutTerm, TermKey: term})
	h.Log().Push(now, undo.Entry{Kind: undo.KindPutVal, ValKey: val})
	if _, _, err := h.Unifier().Unify(h.Invalid(), now, term, val); err != nil {
		return contin.YieldNone, err
	}
	*retSlot = term
	return contin.YieldNone, nil
}

// FailureFunction implements `failure()` (§4.10).
type FailureFunction struct{}

func (FailureFunction) Name() string { return "failure" }

func (FailureFunction) Apply(Host, handle.H, handle.H, *handle.H) (contin.Yield, error) {
	return contin.YieldFail, nil
}

// PrintFunction implements `print(x?)` (§4.10): prints the literal
// values found in x's equivalence class.
type PrintFunction struct{}

func (PrintFunction) Name() string { return "print" }

func (PrintFunction) Apply(h Host, span handle.H, args handle.H, retSlot *handle.H) (contin.Yield, error) {
	argv, err := argsOf(h, args)
	if err != nil {
		return contin.YieldNone, err
	}
	for _, a := range argv {
		members, err := h.Unifier().FindAll(h.Invalid(), h.Clock(), a)
		if err != nil {
			return contin.YieldNone, err
		}
		for _, m := range members {
			v, err := h.Tables().GetVal(m.Instance)
			if err != nil {
				continue
			}
			h.Sink().Debugf("print %v", v)
		}
	}
	return contin.YieldNone, nil
}

// EvalFunction implements `eval(x)` (§4.10): reserved, unimplemented
// in the source this is grounded on (§9 open question).
type EvalFunction struct{}

func (EvalFunction) Name() string { return "eval" }

func (EvalFunction) Apply(Host, handle.H, handle.H, *handle.H) (contin.Yield, error) {
	return contin.YieldEval, nil
}
