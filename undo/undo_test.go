package undo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/undo"
)

func TestLogPushPopIsLIFO(t *testing.T) {
	var l undo.Log
	var a handle.Alloc
	h1 := a.Fresh().AsSort(handle.Cell)
	h2 := a.Fresh().AsSort(handle.Cell)

	l.Push(1, undo.Entry{Kind: undo.KindAllocCell, Cell: h1})
	l.Push(2, undo.Entry{Kind: undo.KindAllocCell, Cell: h2})
	require.Equal(t, 2, l.Len())

	e, c, ok := l.Pop()
	require.True(t, ok)
	assert.Equal(t, undo.KindAllocCell, e.Kind)
	assert.True(t, e.Cell.Equal(h2))
	assert.EqualValues(t, 2, c)

	e, c, ok = l.Pop()
	require.True(t, ok)
	assert.True(t, e.Cell.Equal(h1))
	assert.EqualValues(t, 1, c)

	_, _, ok = l.Pop()
	assert.False(t, ok)
}

func TestLogTruncateDropsTail(t *testing.T) {
	var l undo.Log
	l.Push(1, undo.Entry{Kind: undo.KindBindIdent})
	l.Push(2, undo.Entry{Kind: undo.KindBindIdent})
	l.Push(3, undo.Entry{Kind: undo.KindBindIdent})

	l.Truncate(1)
	assert.Equal(t, 1, l.Len())

	_, c, ok := l.Pop()
	require.True(t, ok)
	assert.EqualValues(t, 1, c)
}

func TestKindStringIsStable(t *testing.T) {
	assert.Equal(t, "unify", undo.KindUnify.String())
	assert.Equal(t, "put-val", undo.KindPutVal.String())
}
