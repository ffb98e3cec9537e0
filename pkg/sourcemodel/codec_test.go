package sourcemodel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := loadSample(t)

	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)

	require.Len(t, got.Stmts, len(a.Stmts))
	for i := range a.Stmts {
		assert.Equal(t, a.Stmts[i].Kind, got.Stmts[i].Kind, "stmt %d kind", i)
		assert.Equal(t, a.Stmts[i].Loc, got.Stmts[i].Loc, "stmt %d loc", i)
		assert.Equal(t, a.Stmts[i].Parent, got.Stmts[i].Parent, "stmt %d parent", i)
	}
	assert.Equal(t, a.Vars, got.Vars)
	assert.Equal(t, a.Functions, got.Functions)
	assert.Equal(t, a.Globals, got.Globals)
	assert.Equal(t, a, got)
}

func TestDecodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&AST{}).Encode(&buf))

	_, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("garbage")))
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	a := loadSample(t)
	add, ok := a.FunctionByName("add")
	require.True(t, ok)

	n := a.Dump(add)
	assert.Equal(t, "FunctionDecl", n.Kind)
	assert.Equal(t, "0x5", n.ID)
	assert.True(t, n.Function)
	require.Len(t, n.Variables, 2)
	assert.Equal(t, "a", n.Variables[0].Name)
	assert.Equal(t, 5, n.Variables[1].Init)

	globals := a.DumpGlobals()
	require.Len(t, globals, 1)
	assert.Equal(t, "counter", globals[0].Name)
}
