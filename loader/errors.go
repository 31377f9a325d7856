// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loader

import (
	"fmt"

	"github.com/tanglelang/tangle/ast"
)

// LoadError reports a parser-surfaced error while translating ast
// records into code records (§7 "Parser error").
type LoadError struct {
	Span    ast.RawSpan
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s:%d:%d: %s", e.Span.File, e.Span.Line, e.Span.Col, e.Message)
}
