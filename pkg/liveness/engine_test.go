package liveness

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

func sampleEngine(t *testing.T) *Engine {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "sourcemodel", "testdata", "sample.json"))
	require.NoError(t, err)
	a, err := sourcemodel.Parse(data)
	require.NoError(t, err)
	return New(a)
}

func sortedNames(e *Engine, vars []sourcemodel.VarID) []string {
	names := e.Names(vars)
	sort.Strings(names)
	return names
}

func TestFunctionAt(t *testing.T) {
	e := sampleEngine(t)

	tests := []struct {
		line int
		want string
		ok   bool
	}{
		{line: 5, want: "add", ok: true},
		{line: 8, want: "add", ok: true},
		{line: 9, ok: false},
		{line: 14, want: "main", ok: true},
		{line: 21, ok: false},
		{line: 3, ok: false},
	}
	for _, tt := range tests {
		fn, ok := e.FunctionAt(tt.line)
		require.Equal(t, tt.ok, ok, "line %d", tt.line)
		if ok {
			assert.Equal(t, tt.want, e.AST().Stmt(fn).Name, "line %d", tt.line)
		}
	}
}

func TestStatementAt(t *testing.T) {
	e := sampleEngine(t)

	id, ok := e.StatementAt(17)
	require.True(t, ok)
	assert.Equal(t, sourcemodel.KindCallExpr, e.AST().Stmt(id).Kind)

	// No statement starts on line 20, so the body containing it is returned.
	id, ok = e.StatementAt(20)
	require.True(t, ok)
	assert.Equal(t, sourcemodel.KindCompoundStmt, e.AST().Stmt(id).Kind)

	_, ok = e.StatementAt(9)
	assert.False(t, ok)
}

func TestLiveVarsAt(t *testing.T) {
	e := sampleEngine(t)

	tests := []struct {
		line int
		want []string
	}{
		{line: 5, want: nil},
		{line: 6, want: []string{"a", "b"}},
		{line: 7, want: []string{"a", "b", "sum"}},
		{line: 11, want: []string{"argc", "argv"}},
		{line: 12, want: []string{"argc", "argv"}},
		{line: 13, want: []string{"argc", "argv", "x"}},
		{line: 14, want: []string{"argc", "argv", "x"}},
		{line: 16, want: []string{"argc", "argv", "x"}},
		{line: 17, want: []string{"argc", "argv", "i", "x"}},
		{line: 19, want: []string{"argc", "argv", "x"}},
	}
	for _, tt := range tests {
		vars, ok := e.LiveVarsAt(tt.line)
		require.True(t, ok, "line %d", tt.line)
		assert.Equal(t, tt.want, sortedNames(e, vars), "line %d", tt.line)
	}

	_, ok := e.LiveVarsAt(9)
	assert.False(t, ok)
}

func TestLiveVarsNeverIncludeGlobals(t *testing.T) {
	e := sampleEngine(t)
	names, ok := e.LiveNamesAt(14)
	require.True(t, ok)
	assert.NotContains(t, names, "counter")
}

// Every live variable must be initialized strictly before the line and be
// declared on the path from the function to the located statement.
func TestLiveVarsOnPath(t *testing.T) {
	e := sampleEngine(t)
	a := e.AST()

	for line := 1; line <= 22; line++ {
		vars, ok := e.LiveVarsAt(line)
		if !ok {
			continue
		}
		fn, _ := e.FunctionAt(line)
		stmt, _ := e.StatementAt(line)

		path := make(map[sourcemodel.StmtID]bool)
		for cur := stmt; cur != sourcemodel.NoStmt; cur = a.Parent(cur) {
			path[cur] = true
			if cur == fn {
				break
			}
		}
		for _, v := range vars {
			variable := a.Var(v)
			assert.Less(t, variable.InitLoc, line, "line %d var %s", line, variable.Name)
			assert.True(t, path[variable.Decl], "line %d var %s not on path", line, variable.Name)
		}
	}
}

const initBoundary = `{"kind":"TranslationUnitDecl","inner":[
 {"id":"0x10","kind":"FunctionDecl","name":"f","loc":{"line":10},"range":{"begin":{"line":10},"end":{"line":14}},"inner":[
  {"id":"0x11","kind":"CompoundStmt","range":{"begin":{"line":10},"end":{"line":14}},"inner":[
   {"id":"0x12","kind":"DeclStmt","range":{"begin":{"line":11},"end":{"line":11}},"inner":[
    {"id":"0x13","kind":"VarDecl","loc":{"line":11},"name":"x","type":{"qualType":"int"},"inner":[
     {"id":"0x14","kind":"IntegerLiteral","range":{"begin":{"line":11},"end":{"line":11}}}]}]},
   {"id":"0x15","kind":"CallExpr","range":{"begin":{"line":12},"end":{"line":12}},"inner":[
    {"id":"0x16","kind":"DeclRefExpr","range":{"begin":{"line":12},"end":{"line":12}},"referencedDecl":{"id":"0x13"}}]},
   {"id":"0x17","kind":"ReturnStmt","range":{"begin":{"line":13},"end":{"line":13}}}]}]}]}`

func TestLiveVarsInitBoundary(t *testing.T) {
	a, err := sourcemodel.Parse([]byte(initBoundary))
	require.NoError(t, err)
	e := New(a)

	vars, ok := e.LiveVarsAt(11)
	require.True(t, ok)
	assert.Empty(t, vars)

	vars, ok = e.LiveVarsAt(12)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, e.Names(vars))
}

func TestLiveVarsFirstReferenceInit(t *testing.T) {
	// x in the sample is declared without initializer on line 11 and first
	// referenced on line 12, which becomes its initialization point.
	e := sampleEngine(t)

	for _, line := range []int{11, 12} {
		names, ok := e.LiveNamesAt(line)
		require.True(t, ok)
		assert.NotContains(t, names, "x", "line %d", line)
	}
	names, ok := e.LiveNamesAt(13)
	require.True(t, ok)
	assert.Contains(t, names, "x")
}

func TestUsedVarsAt(t *testing.T) {
	e := sampleEngine(t)

	vars, ok := e.UsedVarsAt(12)
	require.True(t, ok)
	assert.Equal(t, []string{"argc", "x"}, sortedNames(e, vars))

	vars, ok = e.UsedVarsAt(14)
	require.True(t, ok)
	assert.Equal(t, []string{"counter", "x"}, sortedNames(e, vars))

	_, ok = e.UsedVarsAt(9)
	assert.False(t, ok)
}
