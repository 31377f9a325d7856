package loader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/ast"
	"github.com/tanglelang/tangle/handle"
	"github.com/tanglelang/tangle/loader"
	"github.com/tanglelang/tangle/store"
	"github.com/tanglelang/tangle/undo"
)

func newLoader() (*loader.Loader, *handle.Alloc, *undo.Log) {
	var alloc handle.Alloc
	var log undo.Log
	env := store.NewEnv()
	return loader.New(&alloc, &log, env), &alloc, &log
}

func TestLoadModulePrintOne(t *testing.T) {
	l, _, log := newLoader()
	mod := &ast.RawMod{
		Body: []*ast.RawStm{
			{
				Kind: ast.RawStmJust,
				Term: &ast.RawTerm{
					Kind:  ast.RawTermApply,
					Tuple: []*ast.RawTerm{
						{Kind: ast.RawTermIdent, Ident: &ast.RawIdent{Name: "print"}},
						{Kind: ast.RawTermIntLit, Lit: &ast.RawLit{Text: "1"}},
					},
				},
			},
		},
	}

	h, err := l.LoadModule(0, mod)
	require.NoError(t, err)
	assert.False(t, h.IsNil())
	assert.True(t, log.Len() > 0)

	mc, err := l.Env.Tables.GetModCode(h)
	require.NoError(t, err)
	assert.False(t, mc.Stmp.IsNil())

	// Stmp is the head cell of the statement chain.
	cell, err := l.Env.Tables.GetCell(mc.Stmp)
	require.NoError(t, err)
	stm, err := l.Env.Tables.GetStmCode(cell.Dptr)
	require.NoError(t, err)
	assert.Equal(t, store.StmJust, stm.Kind)
}

func TestInternIdentSharesHandleAcrossStatements(t *testing.T) {
	l, _, log := newLoader()

	identTerm := func() *ast.RawTerm {
		return &ast.RawTerm{Kind: ast.RawTermIdent, Ident: &ast.RawIdent{Name: "y"}}
	}
	mod := &ast.RawMod{
		Body: []*ast.RawStm{
			{Kind: ast.RawStmJust, Term: identTerm()},
			{Kind: ast.RawStmJust, Term: identTerm()},
			{Kind: ast.RawStmJust, Term: identTerm()},
		},
	}

	_, err := l.LoadModule(0, mod)
	require.NoError(t, err)

	loadRawCount := 0
	for log.Len() > 0 {
		e, _, ok := log.Pop()
		require.True(t, ok)
		if e.Kind == undo.KindLoadRaw && e.RawKey == "y" {
			loadRawCount++
		}
	}
	assert.Equal(t, 1, loadRawCount, "interning the same ident repeatedly must log exactly once")

	h, ok := l.Env.RawIdentIndex["y"]
	require.True(t, ok)
	assert.False(t, h.IsNil())
}

func TestLoadIfStatement(t *testing.T) {
	l, _, _ := newLoader()
	mod := &ast.RawMod{
		Body: []*ast.RawStm{
			{
				Kind: ast.RawStmIf,
				Cases: []ast.RawIfCase{
					{
						Cond: &ast.RawTerm{
							Kind:  ast.RawTermEqual,
							Left:  &ast.RawTerm{Kind: ast.RawTermIdent, Ident: &ast.RawIdent{Name: "x"}},
							Right: &ast.RawTerm{Kind: ast.RawTermIntLit, Lit: &ast.RawLit{Text: "1"}},
						},
						Body: []*ast.RawStm{
							{Kind: ast.RawStmJust, Term: &ast.RawTerm{Kind: ast.RawTermIdent, Ident: &ast.RawIdent{Name: "x"}}},
						},
					},
				},
			},
		},
	}

	h, err := l.LoadModule(0, mod)
	require.NoError(t, err)

	mc, err := l.Env.Tables.GetModCode(h)
	require.NoError(t, err)
	cell, err := l.Env.Tables.GetCell(mc.Stmp)
	require.NoError(t, err)
	stm, err := l.Env.Tables.GetStmCode(cell.Dptr)
	require.NoError(t, err)
	require.Equal(t, store.StmIf, stm.Kind)
	require.Len(t, stm.Cases, 1)

	cond, err := l.Env.Tables.GetTermCode(stm.Cases[0].Cond)
	require.NoError(t, err)
	assert.Equal(t, store.TermEqual, cond.Kind)
}
