package contin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tanglelang/tangle/contin"
	"github.com/tanglelang/tangle/handle"
)

func TestWithResultDoesNotMutateParentFrame(t *testing.T) {
	var a handle.Alloc
	code := a.Fresh().AsSort(handle.Code)
	child := a.Fresh().AsSort(handle.Code)
	result := a.Fresh().AsSort(handle.Term)

	base := contin.Push(nil, code)
	saved := base // simulate a choice frame holding this pointer

	advanced := base.WithResult(contin.ChildResult{Child: child, Result: result})

	assert.Empty(t, saved.Micro.Results, "saved frame must be unaffected by a later WithResult")
	assert.Len(t, advanced.Micro.Results, 1)

	r, ok := advanced.Result(child)
	assert.True(t, ok)
	assert.True(t, r.Equal(result))

	_, ok = saved.Result(child)
	assert.False(t, ok)
}

func TestWithCursorLeavesOriginalIntact(t *testing.T) {
	var a handle.Alloc
	code := a.Fresh().AsSort(handle.Code)
	f := contin.Push(nil, code)

	advanced := f.WithCursor(3)
	assert.Equal(t, 0, f.Micro.Cursor)
	assert.Equal(t, 3, advanced.Micro.Cursor)
}

func TestAtFin(t *testing.T) {
	var a handle.Alloc
	code := a.Fresh().AsSort(handle.Code)
	f := contin.Push(nil, code).WithCursor(contin.Fin)
	assert.True(t, f.AtFin())
}

func TestPortString(t *testing.T) {
	assert.Equal(t, "enter", contin.PortEnter.String())
	assert.Equal(t, "return", contin.PortReturn.String())
	assert.Equal(t, "quiescent", contin.PortQuiescent.String())
}
