package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Definition is a function or method definition located in a File.
type Definition struct {
	Name string
	// Class is the name of the directly enclosing class, or "".
	Class string
	// Nested is set when the definition sits inside another function.
	Nested bool
	// Start is the offset of the first byte of the definition's first
	// line (decorators included) when only whitespace precedes it on that
	// line; otherwise the offset of the first token.
	Start uint32
	End   uint32
	// Indent is the whitespace between Start and the first token.
	Indent string
	// Line is the 1-based line of the first token (or decorator).
	Line int
}

// Text returns the definition's source span.
func (d Definition) Text(src []byte) string {
	return string(src[d.Start:d.End])
}

// Functions returns every function definition in the file at any depth, in
// document order.
func (f *File) Functions() []Definition {
	var defs []Definition
	walk(f.root(), func(n *sitter.Node) bool {
		if n.Type() == "function_definition" {
			if d, ok := f.definition(n); ok {
				defs = append(defs, d)
			}
		}
		return true
	})
	return defs
}

// Class returns the top-level class named name. Decorated classes are
// accepted.
func (f *File) Class(name string) (*Class, bool) {
	root := f.root()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "decorated_definition" {
			n = n.ChildByFieldName("definition")
			if n == nil {
				continue
			}
		}
		if n.Type() != "class_definition" {
			continue
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode != nil && f.text(nameNode) == name {
			return &Class{file: f, node: n, Name: name}, true
		}
	}
	return nil, false
}

// Class is a class definition inside a File. It is only valid until the
// File is closed.
type Class struct {
	file *File
	node *sitter.Node
	Name string
}

// Methods returns the function definitions directly inside the class body.
func (c *Class) Methods() []Definition {
	var defs []Definition
	for _, n := range c.methodNodes() {
		if d, ok := c.file.definition(n); ok {
			defs = append(defs, d)
		}
	}
	return defs
}

// Method returns the method named name, if the class body defines it.
// When the body defines it more than once the last definition is returned,
// matching Python's binding rules.
func (c *Class) Method(name string) (Definition, bool) {
	var found Definition
	ok := false
	for _, d := range c.Methods() {
		if d.Name == name {
			found, ok = d, true
		}
	}
	return found, ok
}

func (c *Class) methodNodes() []*sitter.Node {
	body := c.node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var nodes []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		n := body.NamedChild(i)
		if n.Type() == "decorated_definition" {
			n = n.ChildByFieldName("definition")
			if n == nil {
				continue
			}
		}
		if n.Type() == "function_definition" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (f *File) definition(n *sitter.Node) (Definition, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Definition{}, false
	}
	outer := n
	if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
		outer = p
	}
	start, indent := lineStart(f.src, outer.StartByte())
	return Definition{
		Name:   f.text(nameNode),
		Class:  f.enclosingClass(outer),
		Nested: insideFunction(outer),
		Start:  start,
		End:    outer.EndByte(),
		Indent: indent,
		Line:   int(outer.StartPoint().Row) + 1,
	}, true
}

func (f *File) enclosingClass(n *sitter.Node) string {
	body := n.Parent()
	if body == nil || body.Type() != "block" {
		return ""
	}
	cls := body.Parent()
	if cls == nil || cls.Type() != "class_definition" {
		return ""
	}
	if name := cls.ChildByFieldName("name"); name != nil {
		return f.text(name)
	}
	return ""
}

// lineStart walks back from off to the start of its line. If anything other
// than spaces or tabs precedes off on that line, off is returned unchanged
// with an empty indent.
func lineStart(src []byte, off uint32) (uint32, string) {
	i := off
	for i > 0 {
		c := src[i-1]
		if c == '\n' {
			break
		}
		if c != ' ' && c != '\t' {
			return off, ""
		}
		i--
	}
	return i, string(src[i:off])
}
