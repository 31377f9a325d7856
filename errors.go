// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tangle

import (
	"errors"
	"fmt"

	"github.com/tanglelang/tangle/handle"
)

// ErrUnimplemented marks a code path the engine recognizes but has not
// implemented (§7 "Unimplemented path"), such as the Eval yield (§9).
var ErrUnimplemented = errors.New("tangle: unimplemented")

// InterpCheck is the fatal invariant-failure value of §7: a wrong-sort
// lookup, a missing table entry, unifier cycle corruption, or an
// attempt to undo a non-existent binding. It carries enough context to
// report the location and mirrors the teacher's typed-error shape
// (Cause + Unwrap, so callers can errors.Is/errors.As through it).
type InterpCheck struct {
	Location handle.H // a Span handle, Nil if none is available
	Message  string
	Cause    error
}

func (e *InterpCheck) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tangle: %s (at %s): %v", e.Message, e.Location, e.Cause)
	}
	return fmt.Sprintf("tangle: %s (at %s)", e.Message, e.Location)
}

func (e *InterpCheck) Unwrap() error { return e.Cause }

// WrapBot wraps err (normally unify.ErrBot) into an InterpCheck at the
// interpreter boundary, following the teacher's WrapError(message,
// cause) convention.
func WrapBot(loc handle.H, err error) error {
	if err == nil {
		return nil
	}
	return &InterpCheck{Location: loc, Message: "bot: unifier invariant violation", Cause: err}
}

// WrapFault lifts any internal error (a missing-entry or wrong-kind
// lookup from store, for instance) into an InterpCheck.
func WrapFault(loc handle.H, message string, err error) error {
	return &InterpCheck{Location: loc, Message: message, Cause: err}
}

// Unimplemented returns an InterpCheck labeled "unimpl" for the given
// location and feature name (§7 "Unimplemented path").
func Unimplemented(loc handle.H, what string) error {
	return &InterpCheck{Location: loc, Message: fmt.Sprintf("unimpl: %s", what), Cause: ErrUnimplemented}
}
