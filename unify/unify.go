// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package unify implements the versioned union-find of §4.5: union by
// least-handle-as-root, clock-stamped tree edges, a per-key memoized
// "ultimate root" cache that is invalidated against the engine's
// cumulative invalid clock set, and a next/prev cycle over each
// equivalence class for enumeration.
//
// The cache-invalidation discipline — drop a memoized shortcut rather
// than trust it once its stamp falls in an invalidated range, then
// recompute from the tree — is the same shape gokando's tabled
// evaluator uses to keep its subgoal cache honest (see
// other_examples/*gokando*slg_engine*): a lazily-discarded memo, never a
// structure that is itself rolled back.
package unify

import (
	"errors"

	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/handle"
)

// ErrBot is the unifier's sole error: a self-loop or other structural
// corruption discovered while walking the union-find tree.
var ErrBot = errors.New("unify: invariant violation (bot)")

// ENum is the {class, instance} pair §4.5 returns from Find: Class is
// the canonical root of the query's equivalence class, Instance is the
// handle that was actually queried.
type ENum struct {
	Class    handle.H
	Instance handle.H
}

type treeEdge struct {
	clk clock.C
	up  handle.H
}

// Unifier is the versioned union-find state of §3. All maps are keyed
// by handle.H.Key(), since a handle's sort tag is fixed at allocation
// and identity for union-find purposes is the key alone.
type Unifier struct {
	root  map[uint32]handle.H // canonical roots currently in play
	next  map[uint32]handle.H // per-class forward cycle link
	prev  map[uint32]handle.H // per-class backward cycle link
	tree  map[uint32]treeEdge // non-root key -> (clock, parent)
	cache map[uint32]treeEdge // memoized shortcut, invalidated lazily
}

// New constructs an empty Unifier.
func New() *Unifier {
	return &Unifier{
		root:  make(map[uint32]handle.H),
		next:  make(map[uint32]handle.H),
		prev:  make(map[uint32]handle.H),
		tree:  make(map[uint32]treeEdge),
		cache: make(map[uint32]treeEdge),
	}
}

// Next returns x's successor in its equivalence class's cycle, or x
// itself if it has none yet.
func (u *Unifier) Next(x handle.H) handle.H {
	if v, ok := u.next[x.Key()]; ok {
		return v
	}
	return x
}

// Prev returns x's predecessor in its equivalence class's cycle, or x
// itself if it has none yet.
func (u *Unifier) Prev(x handle.H) handle.H {
	if v, ok := u.prev[x.Key()]; ok {
		return v
	}
	return x
}

// Link sets l's successor to r and r's predecessor to l.
func (u *Unifier) Link(l, r handle.H) {
	u.next[l.Key()] = r
	u.prev[r.Key()] = l
}

// IsRoot reports whether x is currently serving as a canonical root.
func (u *Unifier) IsRoot(x handle.H) bool {
	_, ok := u.root[x.Key()]
	return ok
}

// Find walks cache then tree for query, dropping any cache entry whose
// stamped clock lies in inval, and opportunistically memoizing the
// shortcut for intermediate nodes along the way (§4.5).
func (u *Unifier) Find(inval *clock.InvalidSet, now clock.C, query handle.H) (ENum, error) {
	if u.IsRoot(query) {
		return ENum{Class: query, Instance: query}, nil
	}

	prevUpClk := now
	prevCursor := query
	cursor := query

	for {
		if e, ok := u.cache[cursor.Key()]; ok {
			if inval.Contains(e.clk) {
				delete(u.cache, cursor.Key())
			} else {
				if cursor.Equal(e.up) {
					return ENum{}, ErrBot
				}
				if !prevCursor.Equal(cursor) {
					stamp := e.clk
					if prevUpClk > stamp {
						stamp = prevUpClk
					}
					u.cache[prevCursor.Key()] = treeEdge{clk: stamp, up: e.up}
					prevUpClk = e.clk
					prevCursor = cursor
				}
				cursor = e.up
				continue
			}
		}

		e, ok := u.tree[cursor.Key()]
		if !ok {
			return ENum{Class: cursor, Instance: query}, nil
		}
		if cursor.Equal(e.up) {
			return ENum{}, ErrBot
		}
		prevUpClk = e.clk
		prevCursor = cursor
		cursor = e.up
	}
}

// FindAll returns every instance in query's equivalence class by
// walking the next-cycle from query itself until it returns to query
// (§4.5); a broken cycle fails with ErrBot.
func (u *Unifier) FindAll(inval *clock.InvalidSet, now clock.C, query handle.H) ([]ENum, error) {
	root, err := u.Find(inval, now, query)
	if err != nil {
		return nil, err
	}
	stop := root.Instance
	cursor := stop
	var out []ENum
	for {
		out = append(out, ENum{Class: root.Class, Instance: cursor})
		next, ok := u.next[cursor.Key()]
		if !ok {
			if !cursor.Equal(stop) {
				return nil, ErrBot
			}
			break
		}
		cursor = next
		if cursor.Equal(stop) {
			break
		}
	}
	return out, nil
}

// UnifyUndo captures everything needed to invert a Unify call (§3
// "Undo log entry").
type UnifyUndo struct {
	OldRoot, NewRoot handle.H
	OldNext, OldPrev handle.H // oldRoot's Next before merge; newRoot's Prev before merge
	HadTreeEntry     bool
	PriorTreeClk     clock.C
	PriorTreeUp      handle.H
}

// Unify merges the equivalence classes of a and b (§4.5). Of the two
// roots, the greater handle becomes the subordinate (its tree entry
// points at the survivor), so the surviving root is always the lesser
// handle — the deterministic root-selection rule of §3.
func (u *Unifier) Unify(inval *clock.InvalidSet, now clock.C, a, b handle.H) (handle.H, *UnifyUndo, error) {
	if a.Equal(b) {
		root, err := u.Find(inval, now, b)
		if err != nil {
			return handle.H{}, nil, err
		}
		return root.Class, nil, nil
	}

	lRoot, err := u.Find(inval, now, a)
	if err != nil {
		return handle.H{}, nil, err
	}
	rRoot, err := u.Find(inval, now, b)
	if err != nil {
		return handle.H{}, nil, err
	}
	if lRoot.Class.Equal(rRoot.Class) {
		return rRoot.Class, nil, nil
	}

	oroot, nroot := lRoot.Class, rRoot.Class
	if oroot.Compare(nroot) < 0 {
		oroot, nroot = nroot, oroot
	}

	onext := u.Next(oroot)
	nprev := u.Prev(nroot)
	u.Link(oroot, nroot)
	u.Link(nprev, onext)

	delete(u.root, oroot.Key())
	u.root[nroot.Key()] = nroot

	prior, hadPrior := u.tree[oroot.Key()]
	u.tree[oroot.Key()] = treeEdge{clk: now, up: nroot}
	u.cache[oroot.Key()] = treeEdge{clk: now, up: nroot}

	undoEntry := &UnifyUndo{
		OldRoot: oroot,
		NewRoot: nroot,
		OldNext: onext,
		OldPrev: nprev,
	}
	if hadPrior {
		undoEntry.HadTreeEntry = true
		undoEntry.PriorTreeClk = prior.clk
		undoEntry.PriorTreeUp = prior.up
	}
	return nroot, undoEntry, nil
}

// UndoUnify reverses a Unify call described by e, restoring the four
// neighbor links, the root set, and the tree/cache entries (§4.5, "Undo
// of Unify"). It is a strict inverse only when replayed against the
// exact state Unify produced, which the undo log guarantees by
// construction (§3 "LIFO replay").
func (u *Unifier) UndoUnify(e *UnifyUndo) {
	u.next[e.OldRoot.Key()] = e.OldNext
	u.prev[e.OldNext.Key()] = e.OldRoot
	u.next[e.OldPrev.Key()] = e.NewRoot
	u.prev[e.NewRoot.Key()] = e.OldPrev

	delete(u.root, e.NewRoot.Key())
	u.root[e.OldRoot.Key()] = e.OldRoot

	if e.HadTreeEntry {
		u.tree[e.OldRoot.Key()] = treeEdge{clk: e.PriorTreeClk, up: e.PriorTreeUp}
	} else {
		delete(u.tree, e.OldRoot.Key())
	}
	delete(u.cache, e.OldRoot.Key())
}

// Roots returns a snapshot of the handles currently serving as roots,
// for diagnostics and flattening. The order is unspecified; callers
// needing determinism sort the result themselves.
func (u *Unifier) Roots() []handle.H {
	out := make([]handle.H, 0, len(u.root))
	for _, h := range u.root {
		out = append(out, h)
	}
	return out
}
