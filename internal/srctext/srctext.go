// Package srctext renders C source lines without comments or literals, for
// diagnostics that quote the code at a traced line.
package srctext

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// blanked node types are replaced by spaces, keeping line breaks.
var blanked = map[string]struct{}{
	"comment":        {},
	"string_literal": {},
	"char_literal":   {},
}

// Strip returns src with comments, string and character literals and
// "#if 0" blocks blanked out. Line numbers are preserved.
func Strip(ctx context.Context, src []byte) ([]byte, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(c.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse c source: %w", err)
	}
	defer tree.Close()

	out := make([]byte, len(src))
	copy(out, src)
	blank(tree.RootNode(), src, out)
	return out, nil
}

func blank(n *sitter.Node, src, out []byte) {
	if n == nil {
		return
	}
	if _, ok := blanked[n.Type()]; ok || disabledBlock(n, src) {
		for i := n.StartByte(); i < n.EndByte() && int(i) < len(out); i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		blank(n.Child(i), src, out)
	}
}

func disabledBlock(n *sitter.Node, src []byte) bool {
	if n.Type() != "preproc_if" {
		return false
	}
	cond := n.ChildByFieldName("condition")
	return cond != nil && strings.TrimSpace(cond.Content(src)) == "0"
}

// Source is the stripped text of one file.
type Source struct {
	lines []string
}

// New strips src and splits it into lines.
func New(ctx context.Context, src []byte) (*Source, error) {
	stripped, err := Strip(ctx, src)
	if err != nil {
		return nil, err
	}
	return &Source{lines: strings.Split(string(stripped), "\n")}, nil
}

// Load reads and strips the file at path.
func Load(ctx context.Context, path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, data)
}

// Line returns the 1-based line n with trailing space removed, or "" when
// out of range.
func (s *Source) Line(n int) string {
	if s == nil || n < 1 || n > len(s.lines) {
		return ""
	}
	return strings.TrimRight(s.lines[n-1], " \t\r")
}

// Len returns the number of lines.
func (s *Source) Len() int {
	if s == nil {
		return 0
	}
	return len(s.lines)
}
