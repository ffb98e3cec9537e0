package sourcemodel

// Kind is the closed set of clang node kinds the analyzer distinguishes.
// Every other tag maps to KindOther.
type Kind uint8

const (
	KindOther Kind = iota
	KindFunctionDecl
	KindVarDecl
	KindIfStmt
	KindSwitchStmt
	KindForStmt
	KindWhileStmt
	KindDoStmt
	KindCallExpr
	KindDeclStmt
	KindDeclRefExpr
	KindParmVarDecl
	KindCompoundStmt
)

var kindNames = [...]string{
	KindOther:        "other",
	KindFunctionDecl: "FunctionDecl",
	KindVarDecl:      "VarDecl",
	KindIfStmt:       "IfStmt",
	KindSwitchStmt:   "SwitchStmt",
	KindForStmt:      "ForStmt",
	KindWhileStmt:    "WhileStmt",
	KindDoStmt:       "DoStmt",
	KindCallExpr:     "CallExpr",
	KindDeclStmt:     "DeclStmt",
	KindDeclRefExpr:  "DeclRefExpr",
	KindParmVarDecl:  "ParmVarDecl",
	KindCompoundStmt: "CompoundStmt",
}

// ParseKind maps a clang "kind" tag to a Kind.
func ParseKind(tag string) Kind {
	switch tag {
	case "FunctionDecl":
		return KindFunctionDecl
	case "VarDecl":
		return KindVarDecl
	case "IfStmt":
		return KindIfStmt
	case "SwitchStmt":
		return KindSwitchStmt
	case "ForStmt":
		return KindForStmt
	case "WhileStmt":
		return KindWhileStmt
	case "DoStmt":
		return KindDoStmt
	case "CallExpr":
		return KindCallExpr
	case "DeclStmt":
		return KindDeclStmt
	case "DeclRefExpr":
		return KindDeclRefExpr
	case "ParmVarDecl":
		return KindParmVarDecl
	case "CompoundStmt":
		return KindCompoundStmt
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindOther]
}

// IsLoop reports whether k is one of the loop statement kinds.
func (k Kind) IsLoop() bool {
	switch k {
	case KindForStmt, KindWhileStmt, KindDoStmt:
		return true
	default:
		return false
	}
}
