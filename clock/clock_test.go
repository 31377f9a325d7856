package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/clock"
)

func TestCtrMonotonic(t *testing.T) {
	var c clock.Ctr
	a := c.Fresh()
	b := c.Fresh()
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+2, c.Next())
	assert.Equal(t, b+1, c.Get())
}

func TestInvalidSetMergeAdjacentAndOverlapping(t *testing.T) {
	var s clock.InvalidSet
	require.NoError(t, s.Insert(10, 20))
	require.NoError(t, s.Insert(20, 30)) // adjacent, should merge

	r, ok := s.Find(15)
	require.True(t, ok)
	assert.Equal(t, clock.Range{Lo: 10, Hi: 30}, r)

	require.NoError(t, s.Insert(25, 35)) // overlapping tail
	r, ok = s.Find(32)
	require.True(t, ok)
	assert.Equal(t, clock.Range{Lo: 10, Hi: 35}, r)

	assert.False(t, s.Contains(9))
	assert.False(t, s.Contains(35))
	assert.True(t, s.Contains(34))
}

func TestInvalidSetDisjointRanges(t *testing.T) {
	var s clock.InvalidSet
	require.NoError(t, s.Insert(0, 5))
	require.NoError(t, s.Insert(100, 105))

	_, ok := s.Find(50)
	assert.False(t, ok)
	assert.True(t, s.Contains(2))
	assert.True(t, s.Contains(102))
}

func TestInvalidSetRejectsEmptyOrInverted(t *testing.T) {
	var s clock.InvalidSet
	assert.Error(t, s.Insert(5, 5))
	assert.Error(t, s.Insert(5, 4))
}

func TestInvalidSetBridgesGap(t *testing.T) {
	var s clock.InvalidSet
	require.NoError(t, s.Insert(0, 10))
	require.NoError(t, s.Insert(20, 30))
	require.NoError(t, s.Insert(10, 20)) // exactly bridges the two

	r, ok := s.Find(15)
	require.True(t, ok)
	assert.Equal(t, clock.Range{Lo: 0, Hi: 30}, r)
}
