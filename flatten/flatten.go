// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package flatten produces the deterministic snapshot of §4.12: an
// ordered record keyed by the interpreter's clock, whose env
// sub-sections (span, code, ident, term) are each sorted by primary
// key so two runs that reach the same logical state serialize
// byte-identically.
package flatten

import (
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/store"
)

// SpanEntry is one flattened span-table row.
type SpanEntry struct {
	Key  uint32
	Span store.RawSpan
}

// CodeEntry is one flattened code-table row. Record holds whatever
// concrete type (store.ModCode, store.StmCode, store.TermCode) was
// interned at Key.
type CodeEntry struct {
	Key    uint32
	Record any
}

// IdentEntry is one flattened ident-table row.
type IdentEntry struct {
	Key   uint32
	Ident store.RawIdent
}

// TermEntry is one flattened term-table row.
type TermEntry struct {
	Key    uint32
	Record any
}

// Env is the flattened sub-section of a Snapshot, each slice sorted by
// Key ascending.
type Env struct {
	Span  []SpanEntry
	Code  []CodeEntry
	Ident []IdentEntry
	Term  []TermEntry
}

// Snapshot is the top-level flattened record of §4.12. Per the spec's
// explicit note, the unifier's roots, the undo log, and the choice
// trace are omitted from this version.
type Snapshot struct {
	Clock clock.C
	Env   Env
}

// sortByKey sorts any slice of entries carrying a uint32 Key field,
// via the supplied key extractor — the generic, reusable half of
// "sorted by primary key" that every sub-section in §4.12 requires.
func sortByKey[T any, K constraints.Ordered](s []T, key func(T) K) {
	sort.Slice(s, func(i, j int) bool { return key(s[i]) < key(s[j]) })
}

// Take snapshots the given tables at the given clock. The caller
// supplies the raw map contents (rather than flatten reaching into
// store.Tables' unexported fields) as four map arguments, keeping
// flatten decoupled from store's internal representation.
func Take(now clock.C, spans map[uint32]store.RawSpan, codes map[uint32]any, idents map[uint32]store.RawIdent, terms map[uint32]any) Snapshot {
	env := Env{
		Span:  make([]SpanEntry, 0, len(spans)),
		Code:  make([]CodeEntry, 0, len(codes)),
		Ident: make([]IdentEntry, 0, len(idents)),
		Term:  make([]TermEntry, 0, len(terms)),
	}
	for k, v := range spans {
		env.Span = append(env.Span, SpanEntry{Key: k, Span: v})
	}
	for k, v := range codes {
		env.Code = append(env.Code, CodeEntry{Key: k, Record: v})
	}
	for k, v := range idents {
		env.Ident = append(env.Ident, IdentEntry{Key: k, Ident: v})
	}
	for k, v := range terms {
		env.Term = append(env.Term, TermEntry{Key: k, Record: v})
	}

	sortByKey(env.Span, func(e SpanEntry) uint32 { return e.Key })
	sortByKey(env.Code, func(e CodeEntry) uint32 { return e.Key })
	sortByKey(env.Ident, func(e IdentEntry) uint32 { return e.Key })
	sortByKey(env.Term, func(e TermEntry) uint32 { return e.Key })

	return Snapshot{Clock: now, Env: env}
}
