package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/store"
)

func TestCellLinking(t *testing.T) {
	tab := store.NewTables()
	var a handle.Alloc
	h1 := a.Fresh().AsSort(handle.Cell)
	h2 := a.Fresh().AsSort(handle.Cell)

	tab.PutCell(h1, store.Cell{Dptr: handle.Nil, Next: h2, Prev: handle.Nil})
	tab.PutCell(h2, store.Cell{Dptr: handle.Nil, Next: handle.Nil, Prev: h1})

	c1, err := tab.GetCell(h1)
	require.NoError(t, err)
	assert.True(t, c1.IsHead())
	assert.Equal(t, h2, c1.Next)

	tab.SetNext(h1, handle.Nil)
	c1, _ = tab.GetCell(h1)
	assert.True(t, c1.Next.IsNil())
}

func TestWrongKindLookupFails(t *testing.T) {
	tab := store.NewTables()
	var a handle.Alloc
	h := a.Fresh().AsSort(handle.Code)
	tab.PutCode(h, store.TermCode{Kind: store.TermIdent})

	_, err := tab.GetStmCode(h)
	var wk *store.ErrWrongKind
	assert.ErrorAs(t, err, &wk)
}

func TestMissingLookupFails(t *testing.T) {
	tab := store.NewTables()
	var a handle.Alloc
	h := a.Fresh().AsSort(handle.Term)
	_, err := tab.GetTerm(h)
	var missing *store.ErrMissing
	assert.ErrorAs(t, err, &missing)
}

func TestLiteralEquality(t *testing.T) {
	assert.True(t, store.Literal{Kind: store.LitInt, Int: 1}.Equal(store.Literal{Kind: store.LitInt, Int: 1}))
	assert.False(t, store.Literal{Kind: store.LitInt, Int: 1}.Equal(store.Literal{Kind: store.LitInt, Int: 2}))
	assert.True(t, store.Literal{Kind: store.LitNone}.Equal(store.Literal{Kind: store.LitNone}))
	assert.False(t, store.Literal{Kind: store.LitTrue}.Equal(store.Literal{Kind: store.LitFalse}))
}

func TestEnvIndexInterning(t *testing.T) {
	env := store.NewEnv()
	var a handle.Alloc

	name := "x"
	h, ok := env.RawIdentIndex[name]
	assert.False(t, ok)

	h = a.Fresh().AsSort(handle.Ident)
	env.Tables.PutIdent(h, store.RawIdent{Name: name})
	env.RawIdentIndex[name] = h

	again, ok := env.RawIdentIndex[name]
	require.True(t, ok)
	assert.Equal(t, h, again)
}
