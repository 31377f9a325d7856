package builtin_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/builtin"
	"github.com/tanglelang/tangle/choice"
	"github.com/tanglelang/tangle/clock"
	"github.com/tanglelang/tangle/contin"
	"github.com/tanglelang/tangle/diag"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/store"
	"github.com/tanglelang/tangle/undo"
	"github.com/tanglelang/tangle/unify"
)

type fakeHost struct {
	now     clock.C
	alloc   handle.Alloc
	log     undo.Log
	invalid clock.InvalidSet
	uni     *unify.Unifier
	tabs    *store.Tables
	ch      choice.Trace
	sink    diag.Sink
	rstClk  clock.C
	rstSet  bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		uni:  unify.New(),
		tabs: store.NewTables(),
		sink: diag.NoOp{},
	}
}

func (f *fakeHost) Clock() clock.C              { return f.now }
func (f *fakeHost) Alloc() *handle.Alloc        { return &f.alloc }
func (f *fakeHost) Log() *undo.Log              { return &f.log }
func (f *fakeHost) Invalid() *clock.InvalidSet  { return &f.invalid }
func (f *fakeHost) Unifier() *unify.Unifier     { return f.uni }
func (f *fakeHost) Tables() *store.Tables       { return f.tabs }
func (f *fakeHost) Choice() *choice.Trace       { return &f.ch }
func (f *fakeHost) Sink() diag.Sink             { return f.sink }
func (f *fakeHost) RstClk() (clock.C, bool)     { return f.rstClk, f.rstSet }
func (f *fakeHost) Continuation() any           { return nil }

func emptyArgs(h *fakeHost) handle.H { return handle.Nil }

func TestChoiceFirstCallWritesZeroAndPushesFrame(t *testing.T) {
	h := newFakeHost()
	fn := builtin.ChoiceFunction{}

	var result handle.H
	yield, err := fn.Apply(h, handle.Nil, emptyArgs(h), &result)
	require.NoError(t, err)
	assert.Equal(t, contin.YieldNone, yield)

	// result is a term handle; the counter value sits on a val handle
	// unified into the same class.
	members, err := h.Unifier().FindAll(h.Invalid(), h.Clock(), result)
	require.NoError(t, err)
	var ints []int64
	for _, m := range members {
		if v, err := h.Tables().GetVal(m.Instance); err == nil {
			ints = append(ints, v.Int)
		}
	}
	assert.Equal(t, []int64{0}, ints)

	assert.Equal(t, 1, h.Choice().Len())
}

func TestChoiceYieldsFailWhenLimitReached(t *testing.T) {
	h := newFakeHost()
	h.Choice().Push(choice.Frame{Counter: 2, Limit: 2, RootClk: 0})
	h.rstClk, h.rstSet = 0, true

	fn := builtin.ChoiceFunction{}
	var result handle.H
	yield, err := fn.Apply(h, handle.Nil, emptyArgs(h), &result)
	require.NoError(t, err)
	assert.Equal(t, contin.YieldFail, yield)
}

func TestFailureAlwaysYieldsFail(t *testing.T) {
	fn := builtin.FailureFunction{}
	var result handle.H
	yield, err := fn.Apply(newFakeHost(), handle.Nil, handle.Nil, &result)
	require.NoError(t, err)
	assert.Equal(t, contin.YieldFail, yield)
}

func TestEvalYieldsEval(t *testing.T) {
	fn := builtin.EvalFunction{}
	var result handle.H
	yield, err := fn.Apply(newFakeHost(), handle.Nil, handle.Nil, &result)
	require.NoError(t, err)
	assert.Equal(t, contin.YieldEval, yield)
}

func TestPrintEmitsClassMembers(t *testing.T) {
	h := newFakeHost()
	var buf bytes.Buffer
	h.sink = diag.NewWriterSink(&buf)

	val := h.Alloc().Fresh().AsSort(handle.Val)
	h.Tables().PutVal(val, store.Literal{Kind: store.LitInt, Int: 42})

	cell := h.Alloc().Fresh().AsSort(handle.Cell)
	h.Tables().PutCell(cell, store.Cell{Dptr: val})

	fn := builtin.PrintFunction{}
	var result handle.H
	yield, err := fn.Apply(h, handle.Nil, cell, &result)
	require.NoError(t, err)
	assert.Equal(t, contin.YieldNone, yield)
	assert.Contains(t, buf.String(), "42")
}

func TestRegistryRegisterDefaultsAndLookup(t *testing.T) {
	r := builtin.NewRegistry()
	r.RegisterDefaults()

	for _, name := range []string{"choice", "failure", "print", "eval"} {
		fn, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, fn.Name())
	}

	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}
