package sourcemodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSample(t *testing.T) *AST {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "sample.json"))
	require.NoError(t, err)
	a, err := Parse(data)
	require.NoError(t, err)
	return a
}

func varByName(t *testing.T, a *AST, name string) *Variable {
	t.Helper()
	for i := range a.Vars {
		if a.Vars[i].Name == name {
			return &a.Vars[i]
		}
	}
	t.Fatalf("variable %q not found", name)
	return nil
}

func TestParseFunctions(t *testing.T) {
	a := loadSample(t)

	var names []string
	for _, fn := range a.Functions {
		names = append(names, a.Stmt(fn).Name)
	}
	assert.Equal(t, []string{"add", "main"}, names)

	main, ok := a.FunctionByName("main")
	require.True(t, ok)
	assert.Equal(t, Location{Start: 10, End: 20}, a.Stmt(main).Loc)

	_, ok = a.FunctionByName("printf")
	assert.False(t, ok, "header declarations are not functions")
	_, ok = a.FunctionByName("ext")
	assert.False(t, ok, "extern prototypes are not functions")
}

func TestParseKinds(t *testing.T) {
	a := loadSample(t)

	counts := make(map[Kind]int)
	for _, s := range a.Stmts {
		counts[s.Kind]++
	}
	assert.Equal(t, 1, counts[KindIfStmt])
	assert.Equal(t, 1, counts[KindForStmt])
	assert.Equal(t, 2, counts[KindCallExpr])
	assert.Equal(t, 4, counts[KindParmVarDecl])
	assert.Equal(t, "TranslationUnitDecl", a.Stmt(a.Root).Tag)
	assert.Equal(t, KindOther, a.Stmt(a.Root).Kind)
	assert.Equal(t, NoStmt, a.Parent(a.Root))
}

func TestParseVariables(t *testing.T) {
	a := loadSample(t)

	tests := []struct {
		name    string
		decl    int
		init    bool
		initLoc int
		param   bool
		pointer bool
	}{
		{name: "a", decl: 5, init: true, initLoc: 5, param: true},
		{name: "b", decl: 5, init: true, initLoc: 5, param: true},
		{name: "sum", decl: 6, init: true, initLoc: 6},
		{name: "argc", decl: 10, init: true, initLoc: 10, param: true},
		{name: "argv", decl: 10, init: true, initLoc: 10, param: true, pointer: true},
		{name: "x", decl: 11, init: true, initLoc: 12},
		{name: "i", decl: 16, init: true, initLoc: 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := varByName(t, a, tt.name)
			assert.Equal(t, tt.decl, v.DeclLine, "decl line")
			assert.Equal(t, tt.init, v.IsInit, "init")
			assert.Equal(t, tt.initLoc, v.InitLoc, "init loc")
			assert.Equal(t, tt.param, v.IsParam, "param")
			assert.Equal(t, tt.pointer, v.IsPointer, "pointer")
		})
	}
}

func TestParseGlobals(t *testing.T) {
	a := loadSample(t)

	require.Len(t, a.Globals, 1)
	g := a.Var(a.Globals[0])
	assert.Equal(t, "counter", g.Name)
	assert.Equal(t, 3, g.DeclLine)
	assert.Equal(t, a.Root, g.Decl)

	v, ok := a.Global(0x3)
	require.True(t, ok)
	assert.Equal(t, a.Globals[0], v)
}

func TestValidLocInherits(t *testing.T) {
	a := loadSample(t)

	// The VarDecl of sum carries only columns and inherits the DeclStmt line.
	for id, s := range a.Stmts {
		if s.Kind == KindVarDecl && s.Name == "sum" {
			loc, ok := a.ValidLoc(StmtID(id))
			require.True(t, ok)
			assert.Equal(t, 6, loc.Start)
			return
		}
	}
	t.Fatal("VarDecl sum not found")
}

func TestValidLocRoot(t *testing.T) {
	a := loadSample(t)
	_, ok := a.ValidLoc(a.Root)
	assert.False(t, ok)
}

func TestResolveVarScopes(t *testing.T) {
	a := loadSample(t)

	add, ok := a.FunctionByName("add")
	require.True(t, ok)

	// argc belongs to main and is not visible from add.
	_, ok = a.ResolveVar(add, 0x21)
	assert.False(t, ok)

	v, ok := a.ResolveVar(add, 0x6)
	require.True(t, ok)
	assert.Equal(t, "a", a.Var(v).Name)

	v, ok = a.ResolveVar(add, 0x3)
	require.True(t, ok)
	assert.Equal(t, "counter", a.Var(v).Name)
}

func TestReferenced(t *testing.T) {
	a := loadSample(t)
	add, ok := a.FunctionByName("add")
	require.True(t, ok)

	var names []string
	for _, v := range a.Referenced(add) {
		names = append(names, a.Var(v).Name)
	}
	assert.ElementsMatch(t, []string{"a", "b", "sum"}, names)
}

func TestParseDegradation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, a *AST)
	}{
		{
			name:  "wrong-typed name",
			input: `{"kind":"TranslationUnitDecl","inner":[{"id":"0x2","kind":"FunctionDecl","name":42,"loc":{"line":1},"range":{"begin":{"line":1},"end":{"line":2}}}]}`,
			check: func(t *testing.T, a *AST) {
				require.Len(t, a.Functions, 1)
				assert.Empty(t, a.Stmt(a.Functions[0]).Name)
			},
		},
		{
			name:  "malformed child skipped",
			input: `{"kind":"TranslationUnitDecl","inner":[[1,2],{"id":"0x3","kind":"VarDecl","name":"g","loc":{"line":4}}]}`,
			check: func(t *testing.T, a *AST) {
				require.Len(t, a.Globals, 1)
				assert.Equal(t, "g", a.Var(a.Globals[0]).Name)
			},
		},
		{
			name:  "bad id",
			input: `{"kind":"TranslationUnitDecl","inner":[{"id":"zz","kind":"IfStmt"}]}`,
			check: func(t *testing.T, a *AST) {
				require.Len(t, a.Stmts, 2)
				assert.Zero(t, a.Stmts[1].ID)
				assert.Equal(t, KindIfStmt, a.Stmts[1].Kind)
			},
		},
		{
			name:  "missing range end",
			input: `{"kind":"TranslationUnitDecl","inner":[{"id":"0x2","kind":"FunctionDecl","name":"f","loc":{"line":1},"range":{"begin":{"line":1}}}]}`,
			check: func(t *testing.T, a *AST) {
				assert.Empty(t, a.Functions)
			},
		},
		{
			name:  "expansion location",
			input: `{"kind":"TranslationUnitDecl","inner":[{"id":"0x2","kind":"FunctionDecl","name":"m","loc":{"expansionLoc":{"line":7}},"range":{"begin":{"expansionLoc":{"line":7}},"end":{"expansionLoc":{"line":9}}}}]}`,
			check: func(t *testing.T, a *AST) {
				require.Len(t, a.Functions, 1)
				assert.Equal(t, Location{Start: 7, End: 9}, a.Stmt(a.Functions[0]).Loc)
			},
		},
		{
			name:  "expansion from header",
			input: `{"kind":"TranslationUnitDecl","inner":[{"id":"0x2","kind":"FunctionDecl","name":"m","loc":{"expansionLoc":{"line":7,"includedFrom":{"file":"a.c"}}},"range":{"begin":{"line":7},"end":{"line":9}}}]}`,
			check: func(t *testing.T, a *AST) {
				assert.Empty(t, a.Functions)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, a)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"inner":[]}`))
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ForStmt", KindForStmt.String())
	assert.Equal(t, "other", ParseKind("BinaryOperator").String())
	assert.True(t, KindDoStmt.IsLoop())
	assert.False(t, KindIfStmt.IsLoop())
}
