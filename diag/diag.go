// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package diag implements the interpreter's diagnostic sink (§6): an
// optional, purely informational trace of `DEBUG:`-prefixed lines,
// parameterized per instance rather than routed through any global
// logger, following the teacher's eventloop.Logger shape.
package diag

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Level is the verbosity scale of §6: -1 is errors only, 7 is full
// trace.
type Level int

const (
	LevelErrorsOnly Level = -1
	LevelMax        Level = 7
)

// Sink receives diagnostic lines from the interpreter. Implementations
// must be safe to call from a single goroutine only — the core never
// calls a sink concurrently (§5).
type Sink interface {
	Debugf(format string, args ...any)
	Tracef(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoOp discards every line; used when the caller configures no sink.
type NoOp struct{}

func (NoOp) Debugf(string, ...any) {}
func (NoOp) Tracef(string, ...any) {}
func (NoOp) Errorf(string, ...any) {}

// LevelSink wraps a Sink and filters calls below a configured
// verbosity, mirroring the teacher's Logger.IsEnabled gate.
type LevelSink struct {
	Level Level
	Sink  Sink
}

func (l LevelSink) Debugf(format string, args ...any) {
	if l.Level >= 1 {
		l.Sink.Debugf(format, args...)
	}
}

func (l LevelSink) Tracef(format string, args ...any) {
	if l.Level >= 7 {
		l.Sink.Tracef(format, args...)
	}
}

func (l LevelSink) Errorf(format string, args ...any) {
	if l.Level >= LevelErrorsOnly {
		l.Sink.Errorf(format, args...)
	}
}

// NewLevelSink returns a Sink that gates sink's calls by level, the
// constructor form of LevelSink matching NewWriterSink/NewZerologSink.
func NewLevelSink(level Level, sink Sink) Sink {
	return LevelSink{Level: level, Sink: sink}
}

type writerSink struct {
	w io.Writer
}

// NewWriterSink returns a Sink that writes `DEBUG:`-prefixed debug
// lines, `DEBUG: TRACE:`-prefixed trace lines and `ERROR:`-prefixed
// error lines to w, the dependency-free default analogous to the
// teacher's DefaultLogger.
func NewWriterSink(w io.Writer) Sink {
	return writerSink{w: w}
}

func (s writerSink) Debugf(format string, args ...any) {
	fmt.Fprintf(s.w, "DEBUG: %s\n", fmt.Sprintf(format, args...))
}

func (s writerSink) Tracef(format string, args ...any) {
	fmt.Fprintf(s.w, "DEBUG: TRACE: %s\n", fmt.Sprintf(format, args...))
}

func (s writerSink) Errorf(format string, args ...any) {
	fmt.Fprintf(s.w, "ERROR: %s\n", fmt.Sprintf(format, args...))
}

type zerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink returns a Sink backed by a zerolog.Logger. Every line
// becomes a structured event at the matching level instead of a plain
// string, so a caller that already aggregates zerolog output gets
// interpreter diagnostics for free.
func NewZerologSink(logger zerolog.Logger) Sink {
	return zerologSink{logger: logger}
}

func (s zerologSink) Debugf(format string, args ...any) {
	s.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

func (s zerologSink) Tracef(format string, args ...any) {
	s.logger.Trace().Msg(fmt.Sprintf(format, args...))
}

func (s zerologSink) Errorf(format string, args ...any) {
	s.logger.Error().Msg(fmt.Sprintf(format, args...))
}
