// Package liveness answers line-indexed queries over a source model.
//
// A variable is live at line L when it was initialized strictly before L and
// is declared on the statement path from the enclosing function down to the
// statement located at L. Initialization follows the model's first-reference
// rule, so this is a use-based approximation and not dataflow liveness.
package liveness

import (
	"sort"

	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

// Engine is a read-only query layer over an AST. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	ast *sourcemodel.AST
}

// New creates an engine over a.
func New(a *sourcemodel.AST) *Engine {
	return &Engine{ast: a}
}

// AST returns the underlying model.
func (e *Engine) AST() *sourcemodel.AST {
	return e.ast
}

// FunctionAt returns the defined function whose range contains line.
func (e *Engine) FunctionAt(line int) (sourcemodel.StmtID, bool) {
	for _, fn := range e.ast.Functions {
		loc := e.ast.Stmt(fn).Loc
		if loc.Start <= line && line <= loc.End {
			return fn, true
		}
	}
	return sourcemodel.NoStmt, false
}

// StatementAt returns the statement located at line inside its enclosing
// function. Statements starting exactly at line win over statements whose
// range merely contains it.
func (e *Engine) StatementAt(line int) (sourcemodel.StmtID, bool) {
	fn, ok := e.FunctionAt(line)
	if !ok {
		return sourcemodel.NoStmt, false
	}
	if id, ok := e.exactAt(fn, line); ok {
		return id, true
	}
	return e.inRange(fn, line)
}

// exactAt finds the deepest, leftmost statement starting at line.
func (e *Engine) exactAt(id sourcemodel.StmtID, line int) (sourcemodel.StmtID, bool) {
	s := e.ast.Stmt(id)
	for _, child := range s.Children {
		if found, ok := e.exactAt(child, line); ok {
			return found, true
		}
	}
	if s.Loc.Start == line {
		return id, true
	}
	return sourcemodel.NoStmt, false
}

// inRange descends through the first child whose full range contains line.
func (e *Engine) inRange(id sourcemodel.StmtID, line int) (sourcemodel.StmtID, bool) {
	s := e.ast.Stmt(id)
	for _, child := range s.Children {
		if e.ast.Stmt(child).Loc.Contains(line) {
			return e.inRange(child, line)
		}
	}
	if s.Loc.Contains(line) {
		return id, true
	}
	return sourcemodel.NoStmt, false
}

// LiveVarsAt returns the variables live at line, sorted by handle. ok is
// false when no function or statement can be located at line.
func (e *Engine) LiveVarsAt(line int) (vars []sourcemodel.VarID, ok bool) {
	fn, ok := e.FunctionAt(line)
	if !ok {
		return nil, false
	}
	stmt, ok := e.StatementAt(line)
	if !ok {
		return nil, false
	}

	seen := make(map[sourcemodel.VarID]struct{})
	for cur := stmt; cur != sourcemodel.NoStmt; cur = e.ast.Parent(cur) {
		for _, v := range e.ast.Stmt(cur).Vars {
			if variable := e.ast.Var(v); variable.IsInit && variable.InitLoc < line {
				seen[v] = struct{}{}
			}
		}
		if cur == fn {
			break
		}
	}
	return sortVars(seen), true
}

// LiveNamesAt is LiveVarsAt keyed by variable name.
func (e *Engine) LiveNamesAt(line int) (map[string]struct{}, bool) {
	vars, ok := e.LiveVarsAt(line)
	if !ok {
		return nil, false
	}
	names := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		names[e.ast.Var(v).Name] = struct{}{}
	}
	return names, true
}

// UsedVarsAt returns the variables referenced by the outermost statement
// that starts on the same line as the statement located at line.
func (e *Engine) UsedVarsAt(line int) ([]sourcemodel.VarID, bool) {
	stmt, ok := e.StatementAt(line)
	if !ok {
		return nil, false
	}
	cur := stmt
	for {
		parent := e.ast.Parent(cur)
		if parent == sourcemodel.NoStmt || e.ast.Stmt(parent).Loc.Start != line {
			break
		}
		cur = parent
	}
	return e.ast.Referenced(cur), true
}

// Names maps handles to variable names, preserving order.
func (e *Engine) Names(vars []sourcemodel.VarID) []string {
	if len(vars) == 0 {
		return nil
	}
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = e.ast.Var(v).Name
	}
	return out
}

func sortVars(set map[sourcemodel.VarID]struct{}) []sourcemodel.VarID {
	out := make([]sourcemodel.VarID, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
