package flatten_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/flatten"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/store"
)

func TestTakeIsSortedByKeyRegardlessOfInsertionOrder(t *testing.T) {
	tab := store.NewTables()
	var a handle.Alloc

	hs := make([]handle.H, 3)
	for i := range hs {
		hs[i] = a.Fresh().AsSort(handle.Ident)
	}
	// Insert out of key order.
	tab.PutIdent(hs[2], store.RawIdent{Name: "c"})
	tab.PutIdent(hs[0], store.RawIdent{Name: "a"})
	tab.PutIdent(hs[1], store.RawIdent{Name: "b"})

	snap := flatten.Take(5, tab.Spans(), tab.Codes(), tab.Idents(), tab.Terms())

	require.Len(t, snap.Env.Ident, 3)
	for i := 1; i < len(snap.Env.Ident); i++ {
		require.Less(t, snap.Env.Ident[i-1].Key, snap.Env.Ident[i].Key)
	}
	require.Equal(t, "a", snap.Env.Ident[0].Ident.Name)
	require.Equal(t, "c", snap.Env.Ident[2].Ident.Name)
}

func TestTakeIsDeterministicAcrossRuns(t *testing.T) {
	build := func() flatten.Snapshot {
		tab := store.NewTables()
		var a handle.Alloc
		h1 := a.Fresh().AsSort(handle.Span)
		h2 := a.Fresh().AsSort(handle.Span)
		tab.PutSpan(h2, store.RawSpan{File: "b.tgl", Line: 2})
		tab.PutSpan(h1, store.RawSpan{File: "a.tgl", Line: 1})
		return flatten.Take(9, tab.Spans(), tab.Codes(), tab.Idents(), tab.Terms())
	}

	s1 := build()
	s2 := build()
	if diff := cmp.Diff(s1, s2); diff != "" {
		t.Fatalf("two flattenings of equivalent state diverged (-got +want):\n%s", diff)
	}
}
