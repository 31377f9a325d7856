// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package store

import "github.com/tanglelang/tangle/handle"

// Env bundles the interning tables with the auxiliary indices the loader
// and evaluator maintain alongside them: the index-intern caches for raw
// idents and literal strings (§4.4), the ident-binding map an Ident term
// consults (§4.8), the literal-term cache (§4.8), and the rule index
// populated by `rule`-prefixed Defproc/Defmatch statements (§4.4).
//
// The loader and the root package log their writes to these (except
// RuleIndex, which is never logged), and the root package replays the
// log, since undo replay needs both Env and the unifier in scope; Env
// exposes raw setters/getters only.
type Env struct {
	Tables *Tables

	// RawIdentIndex/RawLitIndex implement index-interning: the same raw
	// source string always resolves to the same handle (§4.4).
	RawIdentIndex map[string]handle.H
	RawLitIndex   map[string]handle.H

	// IdentBinding maps a raw ident handle to the term handle it
	// currently resolves to (§4.8 "Ident"); builtins are registered here
	// too, by binding their name's ident handle to a function handle.
	IdentBinding map[uint32]handle.H

	// LitCache maps a raw literal-string handle to the cached LitTerm
	// handle sharing its equivalence class (§4.8 "Literal").
	LitCache map[uint32]handle.H

	// RuleIndex records `rule`-prefixed Defproc/Defmatch statements by
	// head identifier name, dormant until rule matching is implemented
	// (§4.4, §9).
	RuleIndex map[string]handle.H
}

// NewEnv constructs an Env around fresh interning tables.
func NewEnv() *Env {
	return &Env{
		Tables:        NewTables(),
		RawIdentIndex: make(map[string]handle.H),
		RawLitIndex:   make(map[string]handle.H),
		IdentBinding:  make(map[uint32]handle.H),
		LitCache:      make(map[uint32]handle.H),
		RuleIndex:     make(map[string]handle.H),
	}
}
