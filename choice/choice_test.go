package choice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/choice"
)

func TestPopPosRetainsFrameUntilExhausted(t *testing.T) {
	var tr choice.Trace
	tr.Push(choice.Frame{Counter: 0, Limit: 3})
	require.Equal(t, 1, tr.Len())

	f, ok := tr.PopPos()
	require.True(t, ok)
	assert.Equal(t, 0, f.Counter)
	assert.Equal(t, 1, tr.Len(), "frame survives until counter reaches limit")

	f, ok = tr.PopPos()
	require.True(t, ok)
	assert.Equal(t, 1, f.Counter)
	assert.Equal(t, 1, tr.Len())

	f, ok = tr.PopPos()
	require.True(t, ok)
	assert.Equal(t, 2, f.Counter)
	assert.Equal(t, 0, tr.Len(), "frame is consumed once counter reaches limit")
}

func TestMaybeGetDoesNotMutate(t *testing.T) {
	var tr choice.Trace
	tr.Push(choice.Frame{Limit: 1})

	f1, ok := tr.MaybeGet()
	require.True(t, ok)
	f2, ok := tr.MaybeGet()
	require.True(t, ok)
	assert.Equal(t, f1.Counter, f2.Counter)
	assert.Equal(t, 1, tr.Len())
}

func TestTruncateDiscardsDeeperFrames(t *testing.T) {
	var tr choice.Trace
	tr.Push(choice.Frame{Limit: 2})
	tr.Push(choice.Frame{Limit: 2})
	tr.Push(choice.Frame{Limit: 2})

	tr.Truncate(1)
	assert.Equal(t, 1, tr.Len())
}

func TestPopOnEmptyTraceReturnsFalse(t *testing.T) {
	var tr choice.Trace
	_, ok := tr.Pop()
	assert.False(t, ok)
	_, ok = tr.PopPos()
	assert.False(t, ok)
}
