// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package clock implements the interpreter's logical clock (§4.2): a
// monotonically increasing tick per step, plus the cumulative invalid
// set of rolled-back clock ranges used to invalidate unifier cache
// shortcuts (§3, invariant U3).
package clock

import "math"

// C is a logical clock stamp (LClk). The nil value is the minimum
// representable tick, so it never collides with a real stamp.
type C int64

// Nil is the nil clock stamp.
const Nil C = math.MinInt64

// IsNil reports whether c is the nil stamp.
func (c C) IsNil() bool { return c == Nil }

// Ctr is the monotonic tick counter of §4.2.
type Ctr struct {
	tick int64
}

// Fresh returns the current tick, then advances the counter.
func (c *Ctr) Fresh() C {
	next := c.tick
	c.tick++
	return C(next)
}

// Next returns tick+1 without mutating the counter.
func (c *Ctr) Next() C { return C(c.tick + 1) }

// Get returns the current tick without mutating the counter.
func (c *Ctr) Get() C { return C(c.tick) }
