package sourcemodel

import "fmt"

// Node is a serializable view of a statement subtree.
type Node struct {
	Kind       string    `json:"kind" yaml:"kind"`
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type       string    `json:"type,omitempty" yaml:"type,omitempty"`
	Start      int       `json:"start,omitempty" yaml:"start,omitempty"`
	End        int       `json:"end,omitempty" yaml:"end,omitempty"`
	Function   bool      `json:"function,omitempty" yaml:"function,omitempty"`
	Variables  []VarNode `json:"variables,omitempty" yaml:"variables,omitempty"`
	References []string  `json:"references,omitempty" yaml:"references,omitempty"`
	Children   []Node    `json:"children,omitempty" yaml:"children,omitempty"`
}

// VarNode is a serializable view of a Variable.
type VarNode struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Decl    int    `json:"decl,omitempty" yaml:"decl,omitempty"`
	Init    int    `json:"init,omitempty" yaml:"init,omitempty"`
	Param   bool   `json:"param,omitempty" yaml:"param,omitempty"`
	Pointer bool   `json:"pointer,omitempty" yaml:"pointer,omitempty"`
}

// Dump returns the subtree rooted at id. Only resolvable references are
// listed, by variable name.
func (a *AST) Dump(id StmtID) Node {
	s := &a.Stmts[id]
	n := Node{
		Kind:     s.Tag,
		ID:       fmt.Sprintf("%#x", s.ID),
		Name:     s.Name,
		Type:     s.Type,
		Start:    s.Loc.Start,
		End:      s.Loc.End,
		Function: s.IsFunction,
	}
	for _, v := range s.Vars {
		n.Variables = append(n.Variables, a.dumpVar(v))
	}
	for _, ref := range s.Refs {
		if v, ok := a.ResolveVar(id, ref); ok {
			n.References = append(n.References, a.Vars[v].Name)
		}
	}
	for _, child := range s.Children {
		n.Children = append(n.Children, a.Dump(child))
	}
	return n
}

func (a *AST) dumpVar(id VarID) VarNode {
	v := &a.Vars[id]
	n := VarNode{
		ID:      fmt.Sprintf("%#x", v.ID),
		Name:    v.Name,
		Type:    v.Type,
		Decl:    v.DeclLine,
		Param:   v.IsParam,
		Pointer: v.IsPointer,
	}
	if v.IsInit {
		n.Init = v.InitLoc
	}
	return n
}

// DumpGlobals returns the file-scope variables.
func (a *AST) DumpGlobals() []VarNode {
	out := make([]VarNode, 0, len(a.Globals))
	for _, v := range a.Globals {
		out = append(out, a.dumpVar(v))
	}
	return out
}
