package liveness

import "github.com/panbanda/dbgfidelity/pkg/sourcemodel"

// Match is a statement found by a structural query together with the
// variables it depends on.
type Match struct {
	Stmt sourcemodel.StmtID
	Vars []sourcemodel.VarID
}

type kindSet map[sourcemodel.Kind]struct{}

func kinds(ks ...sourcemodel.Kind) kindSet {
	set := make(kindSet, len(ks))
	for _, k := range ks {
		set[k] = struct{}{}
	}
	return set
}

var (
	conditionalKinds = kinds(sourcemodel.KindIfStmt, sourcemodel.KindSwitchStmt)
	callKinds        = kinds(sourcemodel.KindCallExpr)
	loopKinds        = kinds(sourcemodel.KindWhileStmt, sourcemodel.KindDoStmt, sourcemodel.KindForStmt)
)

// find collects, depth first, every statement under id whose kind is admitted.
func (e *Engine) find(id sourcemodel.StmtID, admitted kindSet, out []sourcemodel.StmtID) []sourcemodel.StmtID {
	s := e.ast.Stmt(id)
	if _, ok := admitted[s.Kind]; ok {
		out = append(out, id)
	}
	for _, child := range s.Children {
		out = e.find(child, admitted, out)
	}
	return out
}

func (e *Engine) findAll(admitted kindSet) []sourcemodel.StmtID {
	var out []sourcemodel.StmtID
	for _, fn := range e.ast.Functions {
		out = e.find(fn, admitted, out)
	}
	return out
}

// childRefs returns the variables referenced by the i-th child of id. A
// negative index counts from the end.
func (e *Engine) childRefs(id sourcemodel.StmtID, i int) []sourcemodel.VarID {
	children := e.ast.Stmt(id).Children
	if i < 0 {
		i += len(children)
	}
	if i < 0 || i >= len(children) {
		return nil
	}
	return e.ast.Referenced(children[i])
}

// Conditionals returns every if and switch statement with the variables of
// its condition.
func (e *Engine) Conditionals() []Match {
	var out []Match
	for _, stmt := range e.findAll(conditionalKinds) {
		out = append(out, Match{Stmt: stmt, Vars: e.childRefs(stmt, 0)})
	}
	return out
}

// Calls returns every call expression with the variables it references.
func (e *Engine) Calls() []Match {
	var out []Match
	for _, stmt := range e.findAll(callKinds) {
		out = append(out, Match{Stmt: stmt, Vars: e.ast.Referenced(stmt)})
	}
	return out
}

// Loops returns every loop with the variables of its header. The condition
// of a while loop is its first child and of a do loop its last; a for loop
// header is every child before the body compound statement.
func (e *Engine) Loops() []Match {
	var out []Match
	for _, stmt := range e.findAll(loopKinds) {
		m := Match{Stmt: stmt}
		switch e.ast.Stmt(stmt).Kind {
		case sourcemodel.KindWhileStmt:
			m.Vars = e.childRefs(stmt, 0)
		case sourcemodel.KindDoStmt:
			m.Vars = e.childRefs(stmt, -1)
		case sourcemodel.KindForStmt:
			m.Vars = e.forHeader(stmt)
		}
		out = append(out, m)
	}
	return out
}

func (e *Engine) forHeader(stmt sourcemodel.StmtID) []sourcemodel.VarID {
	seen := make(map[sourcemodel.VarID]struct{})
	for _, child := range e.ast.Stmt(stmt).Children {
		if e.ast.Stmt(child).Kind == sourcemodel.KindCompoundStmt {
			break
		}
		for _, v := range e.ast.Referenced(child) {
			seen[v] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	return sortVars(seen)
}

// GlobalUpdates returns statements whose first child is a reference and
// which reference at least one file-scope variable, typically assignments
// to globals.
func (e *Engine) GlobalUpdates() []Match {
	var out []Match
	for _, fn := range e.ast.Functions {
		queue := append([]sourcemodel.StmtID(nil), e.ast.Stmt(fn).Children...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			s := e.ast.Stmt(id)
			if len(s.Children) > 1 && e.ast.Stmt(s.Children[0]).Kind == sourcemodel.KindDeclRefExpr && e.refsGlobal(s) {
				out = append(out, Match{Stmt: id, Vars: e.ast.Referenced(id)})
			}
			queue = append(queue, s.Children...)
		}
	}
	return out
}

func (e *Engine) refsGlobal(s *sourcemodel.Statement) bool {
	for _, ref := range s.Refs {
		if _, ok := e.ast.Global(ref); ok {
			return true
		}
	}
	return false
}
