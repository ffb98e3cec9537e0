// Package sourcemodel holds the statement tree of one C translation unit
// as produced by clang's JSON AST dump.
//
// All statements and variables live in a single arena owned by AST and are
// addressed by integer handles. Parent links and the declaring statement of
// a variable are plain handles, never ownership edges. Once built an AST is
// never mutated, so it can be shared by concurrent readers.
package sourcemodel

import "sort"

// StmtID addresses a Statement inside an AST arena.
type StmtID int32

// VarID addresses a Variable inside an AST arena.
type VarID int32

// NoStmt is the parent of the translation unit root.
const NoStmt StmtID = -1

// Location is a source line range. Zero means the bound is unknown.
type Location struct {
	Start int
	End   int
}

// Valid reports whether both bounds are known.
func (l Location) Valid() bool {
	return l.Start > 0 && l.End > 0
}

// Contains reports whether line falls inside a fully known range.
func (l Location) Contains(line int) bool {
	return l.Valid() && l.Start <= line && line <= l.End
}

// Statement is one node of the clang tree.
type Statement struct {
	ID         uint64
	Kind       Kind
	Tag        string
	Name       string
	Type       string
	Loc        Location
	Children   []StmtID
	Vars       []VarID
	Refs       []uint64
	Parent     StmtID
	IsFunction bool
}

// Variable is a declared local, parameter or global.
type Variable struct {
	ID        uint64
	Decl      StmtID
	Name      string
	Type      string
	DeclLine  int
	IsPointer bool
	IsParam   bool
	IsInit    bool
	InitLoc   int
}

// AST is the arena for one source file.
type AST struct {
	Stmts     []Statement
	Vars      []Variable
	Root      StmtID
	Functions []StmtID
	Globals   []VarID
}

// Stmt returns the statement addressed by id.
func (a *AST) Stmt(id StmtID) *Statement {
	return &a.Stmts[id]
}

// Var returns the variable addressed by id.
func (a *AST) Var(id VarID) *Variable {
	return &a.Vars[id]
}

// Parent returns the parent handle of id, or NoStmt for the root.
func (a *AST) Parent(id StmtID) StmtID {
	return a.Stmts[id].Parent
}

// ValidLoc returns the location of id, or of its nearest ancestor with a
// known start line. The translation unit root never has a valid location.
func (a *AST) ValidLoc(id StmtID) (Location, bool) {
	for cur := id; cur != NoStmt; cur = a.Stmts[cur].Parent {
		stmt := &a.Stmts[cur]
		if stmt.Parent == NoStmt {
			return Location{}, false
		}
		if stmt.Loc.Start > 0 {
			return stmt.Loc, true
		}
	}
	return Location{}, false
}

// ResolveVar finds the variable with clang id declID as seen from stmt:
// first the statement itself, then its ancestors, then file-scope globals.
func (a *AST) ResolveVar(stmt StmtID, declID uint64) (VarID, bool) {
	for cur := stmt; cur != NoStmt; cur = a.Stmts[cur].Parent {
		for _, v := range a.Stmts[cur].Vars {
			if a.Vars[v].ID == declID {
				return v, true
			}
		}
	}
	return a.Global(declID)
}

// Global returns the file-scope variable with clang id declID.
func (a *AST) Global(declID uint64) (VarID, bool) {
	for _, v := range a.Globals {
		if a.Vars[v].ID == declID {
			return v, true
		}
	}
	return 0, false
}

// Referenced returns every variable referenced by stmt or any of its
// descendants, sorted by handle.
func (a *AST) Referenced(stmt StmtID) []VarID {
	seen := make(map[VarID]struct{})
	a.collectRefs(stmt, seen)
	return sortedVars(seen)
}

func (a *AST) collectRefs(stmt StmtID, seen map[VarID]struct{}) {
	s := &a.Stmts[stmt]
	for _, ref := range s.Refs {
		if v, ok := a.ResolveVar(stmt, ref); ok {
			seen[v] = struct{}{}
		}
	}
	for _, child := range s.Children {
		a.collectRefs(child, seen)
	}
}

// FunctionByName returns the first defined function called name.
func (a *AST) FunctionByName(name string) (StmtID, bool) {
	for _, fn := range a.Functions {
		if a.Stmts[fn].Name == name {
			return fn, true
		}
	}
	return NoStmt, false
}

func sortedVars(set map[VarID]struct{}) []VarID {
	if len(set) == 0 {
		return nil
	}
	out := make([]VarID, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
