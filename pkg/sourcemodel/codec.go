package sourcemodel

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Encode writes the arena in binary form.
func (a *AST) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(a); err != nil {
		return fmt.Errorf("encode ast: %w", err)
	}
	return nil
}

// Decode reads an arena previously written by Encode.
func Decode(r io.Reader) (*AST, error) {
	var a AST
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode ast: %w", err)
	}
	if len(a.Stmts) == 0 {
		return nil, ErrEmptyTree
	}
	return &a, nil
}
