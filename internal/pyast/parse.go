// Package pyast wraps tree-sitter's Python grammar with the handful of
// structural queries the evaluation pipeline needs: locating function and
// class definitions, checking that a source unit parses cleanly, and
// scanning method bodies for stubs and calls.
//
// A File owns its tree-sitter tree. Query results are plain values (names
// and byte offsets) so they stay valid after Close.
package pyast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// File is one parsed Python source unit.
type File struct {
	src  []byte
	tree *sitter.Tree
}

// Parse parses src with a fresh parser. Parsers are not safe for concurrent
// use, so every call gets its own.
func Parse(ctx context.Context, src []byte) (*File, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing python source: %w", err)
	}
	return &File{src: src, tree: tree}, nil
}

// ParseString is Parse with a background context.
func ParseString(src string) (*File, error) {
	return Parse(context.Background(), []byte(src))
}

// Close releases the underlying tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Source returns the bytes the file was parsed from.
func (f *File) Source() []byte { return f.src }

func (f *File) root() *sitter.Node { return f.tree.RootNode() }

func (f *File) text(n *sitter.Node) string {
	return string(f.src[n.StartByte():n.EndByte()])
}

// walk visits n and its named descendants depth first, in document order.
// Returning false from visit skips the node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}
