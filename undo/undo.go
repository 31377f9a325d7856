// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package undo holds the append-only log of inverse operations that the
// engine replays in reverse when a choice point fails (§4.6). It is
// deliberately inert: an Entry only describes how to invert a mutation,
// the actual inversion is performed by whichever package owns the
// mutated state (store, unify) so this package never imports them.
package undo

import (
	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/handle"
)

// Kind discriminates the Entry variants of §4.6.
type Kind int

const (
	KindUnify Kind = iota
	KindAllocCell
	KindLinkCells
	KindBindIdent
	KindBindLitStr
	KindLoadRaw
	KindPutTerm
	KindPutVal
	KindPutCode
)

func (k Kind) String() string {
	switch k {
	case KindUnify:
		return "unify"
	case KindAllocCell:
		return "alloc-cell"
	case KindLinkCells:
		return "link-cells"
	case KindBindIdent:
		return "bind-ident"
	case KindBindLitStr:
		return "bind-lit-str"
	case KindLoadRaw:
		return "load-raw"
	case KindPutTerm:
		return "put-term"
	case KindPutVal:
		return "put-val"
	case KindPutCode:
		return "put-code"
	default:
		return "unknown"
	}
}

// Entry is one inverse-operation record. Exactly the fields relevant to
// Kind are populated; the rest are zero. A single concrete struct
// (rather than one type per kind) mirrors how the original's LogEntry_
// packs every variant into one tagged record, and keeps the log a flat
// slice with no interface-boxing per append.
type Entry struct {
	Kind Kind

	// KindUnify: the opaque record produced by unify.Unifier.Unify,
	// stored as `any` so this package need not import unify.
	UnifyUndo any

	// KindAllocCell: the cell handle that was minted, so undo can delete
	// its table entry.
	Cell handle.H

	// KindLinkCells: the cell whose Next/Prev pointers were overwritten,
	// and their prior values.
	LinkedCell       handle.H
	PriorNext        handle.H
	PriorPrev        handle.H
	LinkedIsNextEdge bool // true if Next was the pointer mutated, false for Prev

	// KindBindIdent / KindBindLitStr: the ident or literal-string handle
	// whose binding/cache entry was overwritten, its prior value, and
	// whether it previously had no entry at all (restore-by-delete vs
	// restore-by-value).
	BoundKey     handle.H
	PriorBinding handle.H
	HadPrior     bool

	// KindLoadRaw: an interned raw-ident/raw-lit entry that did not
	// exist before this load, to be deleted on undo.
	RawKey  string
	RawSort handle.Sort

	// KindPutTerm: a term-table entry that did not exist before, to be
	// deleted on undo (§3 "PutTerm/PutVal: delete-by-key").
	TermKey handle.H

	// KindPutVal: a val-table entry that did not exist before, to be
	// deleted on undo.
	ValKey handle.H
}

// Log is the append-only undo log of §4.6: entries are pushed as
// mutations occur and popped (LIFO) during backtracking, which replays
// every entry stamped at or after the restored frame's root clock.
type Log struct {
	entries []Entry
	clocks  []clock.C // the clock stamp in effect when each entry was pushed
}

// Push appends e to the log, stamped with the clock in effect.
func (l *Log) Push(now clock.C, e Entry) {
	l.entries = append(l.entries, e)
	l.clocks = append(l.clocks, now)
}

// Len returns the number of entries currently logged.
func (l *Log) Len() int { return len(l.entries) }

// Pop removes and returns the most recent entry, or false if the log is
// empty.
func (l *Log) Pop() (Entry, clock.C, bool) {
	n := len(l.entries)
	if n == 0 {
		return Entry{}, clock.Nil, false
	}
	e, c := l.entries[n-1], l.clocks[n-1]
	l.entries = l.entries[:n-1]
	l.clocks = l.clocks[:n-1]
	return e, c, true
}

// PeekClock returns the clock stamp of the most recent entry without
// popping it, or clock.Nil if the log is empty.
func (l *Log) PeekClock() clock.C {
	n := len(l.clocks)
	if n == 0 {
		return clock.Nil
	}
	return l.clocks[n-1]
}

// Truncate discards every entry beyond the first n, without replaying
// them.
func (l *Log) Truncate(n int) {
	l.entries = l.entries[:n]
	l.clocks = l.clocks[:n]
}
