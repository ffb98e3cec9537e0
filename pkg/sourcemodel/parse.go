package sourcemodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyTree is returned when the dump has no root node kind.
var ErrEmptyTree = errors.New("ast dump has no root node")

// rawNode is the subset of a clang JSON node the model reads. Fields are
// decoded one by one so a malformed field only leaves that attribute unset.
type rawNode struct {
	ID             string
	Kind           string
	Name           string
	Type           *rawType
	Loc            *rawLoc
	Range          *rawRange
	StorageClass   string
	ReferencedDecl *rawRef
	HasInner       bool
	Inner          []json.RawMessage
}

type rawType struct {
	QualType      string `json:"qualType"`
	DesugaredType string `json:"desugaredType"`
}

type rawLoc struct {
	Line         *int            `json:"line"`
	ExpansionLoc *rawLoc         `json:"expansionLoc"`
	IncludedFrom json.RawMessage `json:"includedFrom"`
}

type rawRange struct {
	Begin *rawLoc `json:"begin"`
	End   *rawLoc `json:"end"`
}

type rawRef struct {
	ID string `json:"id"`
}

func decodeNode(data []byte) (*rawNode, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	n := &rawNode{}
	field(fields, "id", &n.ID)
	field(fields, "kind", &n.Kind)
	field(fields, "name", &n.Name)
	field(fields, "type", &n.Type)
	field(fields, "loc", &n.Loc)
	field(fields, "range", &n.Range)
	field(fields, "storageClass", &n.StorageClass)
	field(fields, "referencedDecl", &n.ReferencedDecl)
	if _, ok := fields["inner"]; ok {
		n.HasInner = true
		field(fields, "inner", &n.Inner)
	}
	return n, true
}

func field(fields map[string]json.RawMessage, key string, dst any) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func (t *rawType) String() string {
	if t == nil {
		return ""
	}
	if t.DesugaredType != "" {
		return t.DesugaredType
	}
	return t.QualType
}

func (l *rawLoc) line() int {
	if l == nil {
		return 0
	}
	if l.Line != nil {
		return *l.Line
	}
	if l.ExpansionLoc != nil && l.ExpansionLoc.Line != nil {
		return *l.ExpansionLoc.Line
	}
	return 0
}

func (l *rawLoc) included() bool {
	return l != nil && len(l.IncludedFrom) > 0
}

func parseLoc(n *rawNode) Location {
	start := n.Loc.line()
	var end int
	if n.Range != nil {
		if start == 0 {
			start = n.Range.Begin.line()
		}
		end = n.Range.End.line()
	}
	return Location{Start: start, End: end}
}

func parseID(s string) uint64 {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return id
}

// definedHere reports whether a FunctionDecl node is defined in the file
// under analysis rather than pulled in from a header or declared extern.
func definedHere(n *rawNode) bool {
	if n.Loc == nil || n.Loc.included() {
		return false
	}
	if exp := n.Loc.ExpansionLoc; exp != nil {
		if exp.Line == nil || exp.included() {
			return false
		}
	}
	return n.StorageClass != "extern"
}

// Parse builds an AST from clang's -ast-dump=json output.
func Parse(data []byte) (*AST, error) {
	root, ok := decodeNode(data)
	if !ok {
		return nil, fmt.Errorf("decode ast dump: invalid json object")
	}
	if root.Kind == "" {
		return nil, ErrEmptyTree
	}

	b := &builder{ast: &AST{Root: NoStmt}}
	b.ast.Root = b.parse(NoStmt, root)

	for _, child := range b.ast.Stmts[b.ast.Root].Children {
		if b.ast.Stmts[child].IsFunction {
			b.ast.Functions = append(b.ast.Functions, child)
		}
	}
	return b.ast, nil
}

type builder struct {
	ast *AST
}

func (b *builder) parse(parent StmtID, n *rawNode) StmtID {
	loc := parseLoc(n)
	stmt := Statement{
		ID:     parseID(n.ID),
		Kind:   ParseKind(n.Kind),
		Tag:    n.Kind,
		Name:   n.Name,
		Type:   n.Type.String(),
		Loc:    loc,
		Parent: parent,
	}
	if stmt.Kind == KindFunctionDecl {
		stmt.IsFunction = definedHere(n) && loc.Valid()
	}

	id := StmtID(len(b.ast.Stmts))
	b.ast.Stmts = append(b.ast.Stmts, stmt)

	for _, raw := range n.Inner {
		child, ok := decodeNode(raw)
		if !ok || child.Kind == "" {
			continue
		}

		switch ParseKind(child.Kind) {
		case KindDeclStmt:
			b.declStmt(id, child)
		case KindDeclRefExpr:
			b.declRef(id, child)
		case KindParmVarDecl:
			b.param(id, child)
		case KindVarDecl:
			if parent == NoStmt {
				b.global(id, child)
			}
		}

		childID := b.parse(id, child)
		b.ast.Stmts[id].Children = append(b.ast.Stmts[id].Children, childID)
	}
	return id
}

// declStmt records the VarDecls of a DeclStmt on the owning statement.
func (b *builder) declStmt(owner StmtID, decl *rawNode) {
	for _, raw := range decl.Inner {
		inner, ok := decodeNode(raw)
		if !ok || ParseKind(inner.Kind) != KindVarDecl {
			continue
		}
		line := parseLoc(decl).Start
		if line == 0 {
			line = b.nearestLine(owner)
		}
		b.addVar(owner, inner, line)
	}
}

func (b *builder) declRef(owner StmtID, ref *rawNode) {
	if ref.ReferencedDecl == nil {
		return
	}
	declID := parseID(ref.ReferencedDecl.ID)
	b.addRef(owner, declID)

	// First use of an uninitialized variable is taken as its initialization.
	v, ok := b.ast.ResolveVar(owner, declID)
	if !ok || b.ast.Vars[v].IsInit {
		return
	}
	if loc, ok := b.ast.ValidLoc(owner); ok {
		b.ast.Vars[v].IsInit = true
		b.ast.Vars[v].InitLoc = loc.Start
	}
}

// param records a ParmVarDecl. Parameters sharing a line with the previous
// one often carry no line of their own.
func (b *builder) param(owner StmtID, parm *rawNode) {
	line := parseLoc(parm).Start
	fn := &b.ast.Stmts[owner]
	if fn.IsFunction && line == 0 {
		if len(fn.Vars) > 0 {
			line = b.ast.Vars[fn.Vars[len(fn.Vars)-1]].DeclLine
		} else {
			line = fn.Loc.Start
		}
	}
	b.addVar(owner, parm, line)
}

func (b *builder) global(root StmtID, decl *rawNode) {
	v := b.newVar(root, decl, parseLoc(decl).Start)
	b.ast.Globals = append(b.ast.Globals, v)
}

func (b *builder) addVar(owner StmtID, decl *rawNode, line int) {
	v := b.newVar(owner, decl, line)
	b.ast.Stmts[owner].Vars = append(b.ast.Stmts[owner].Vars, v)
}

func (b *builder) newVar(owner StmtID, decl *rawNode, line int) VarID {
	typ := decl.Type.String()
	v := Variable{
		ID:        parseID(decl.ID),
		Decl:      owner,
		Name:      decl.Name,
		Type:      typ,
		DeclLine:  line,
		IsPointer: strings.ContainsAny(typ, "*["),
		IsParam:   ParseKind(decl.Kind) == KindParmVarDecl,
	}
	if (decl.HasInner || v.IsParam) && line > 0 {
		v.IsInit = true
		v.InitLoc = line
	}
	id := VarID(len(b.ast.Vars))
	b.ast.Vars = append(b.ast.Vars, v)
	return id
}

func (b *builder) addRef(owner StmtID, declID uint64) {
	for _, r := range b.ast.Stmts[owner].Refs {
		if r == declID {
			return
		}
	}
	b.ast.Stmts[owner].Refs = append(b.ast.Stmts[owner].Refs, declID)
}

// nearestLine climbs from stmt until a statement with a known start line.
func (b *builder) nearestLine(stmt StmtID) int {
	for cur := stmt; cur != NoStmt; cur = b.ast.Stmts[cur].Parent {
		if start := b.ast.Stmts[cur].Loc.Start; start > 0 {
			return start
		}
	}
	return 0
}
