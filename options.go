// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tangle

import (
	"io"

	"github.com/tanglelang/tangle/diag"
)

// OracleClient is the boundary to the (out-of-scope) approximate-oracle
// RPC collaborator named in spec.md §1; New never calls it, it is
// stored only so a caller wiring the full system can retrieve it
// through Interp.Oracle().
type OracleClient interface {
	Approximate(query string) (string, error)
}

// JournalAppender is the boundary to the (out-of-scope) journal/storage
// layer named in spec.md §1; New never calls it.
type JournalAppender interface {
	Append(line string) error
}

// options holds configuration for New.
type options struct {
	verbosity       int
	parserVerbosity int
	logger          diag.Sink
	tapWriter       io.Writer
	snapshotWriter  io.Writer
	oracle          OracleClient
	journal         JournalAppender
}

// Option configures an Interp instance.
type Option interface {
	applyInterp(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) applyInterp(opts *options) error {
	return o.applyFunc(opts)
}

// WithVerbosity sets the trace verbosity, -1 (errors only) through 7
// (full trace), per §6. Interp.Sink() wraps the installed logger in a
// diag.LevelSink at this level, so Debugf/Tracef calls below the
// threshold are dropped before they reach the logger.
func WithVerbosity(level int) Option {
	return &optionImpl{func(opts *options) error {
		opts.verbosity = level
		return nil
	}}
}

// WithParserVerbosity sets the verbosity of the loader's own trace
// lines (§6): Load wraps the installed logger in a diag.LevelSink at
// this level and installs it as the Loader's Sink, independent of
// WithVerbosity's interpreter-level threshold.
func WithParserVerbosity(level int) Option {
	return &optionImpl{func(opts *options) error {
		opts.parserVerbosity = level
		return nil
	}}
}

// WithLogger installs the diagnostic sink that receives `DEBUG:`-lines
// (§6). The default, if unset, discards every line.
func WithLogger(sink diag.Sink) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = sink
		return nil
	}}
}

// WithTAPWriter installs an optional TAP-format writer. The TAP
// producer itself is out of scope (§1); New only retains the writer,
// retrievable via Interp.TAPWriter(), for a caller layering TAP output
// on top of this engine.
func WithTAPWriter(w io.Writer) Option {
	return &optionImpl{func(opts *options) error {
		opts.tapWriter = w
		return nil
	}}
}

// WithSnapshotWriter installs an optional writer that Run writes the
// flattened snapshot (§4.12) to, as one `%+v` line, when it returns.
// The on-disk serializer itself is out of scope (§1).
func WithSnapshotWriter(w io.Writer) Option {
	return &optionImpl{func(opts *options) error {
		opts.snapshotWriter = w
		return nil
	}}
}

// WithOracleClient installs the approximate-oracle RPC client named in
// §1's collaborator list. The core never calls it (out of scope); it is
// exposed only so a full deployment can retrieve it alongside the
// interpreter instance.
func WithOracleClient(c OracleClient) Option {
	return &optionImpl{func(opts *options) error {
		opts.oracle = c
		return nil
	}}
}

// WithJournal installs the journal/storage-layer appender named in §1,
// retrievable via Interp.Journal(). Like WithOracleClient, the core
// never calls it.
func WithJournal(j JournalAppender) Option {
	return &optionImpl{func(opts *options) error {
		opts.journal = j
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		verbosity:       0,
		parserVerbosity: 0,
		logger:          diag.NoOp{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyInterp(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
