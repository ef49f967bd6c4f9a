package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// StubMethods returns, in class order, the methods of class whose bodies
// are unfinished: empty, or made only of a docstring, comments, pass,
// an ellipsis or raise NotImplementedError. A method defined twice is
// reported once.
func (c *Class) StubMethods() []string {
	var names []string
	seen := make(map[string]bool)
	for _, n := range c.methodNodes() {
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := c.file.text(nameNode)
		if seen[name] || !c.file.isStub(n) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Docstring returns the method's docstring with quotes stripped, or "".
func (c *Class) Docstring(method string) string {
	var doc string
	for _, n := range c.methodNodes() {
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil || c.file.text(nameNode) != method {
			continue
		}
		doc = ""
		body := n.ChildByFieldName("body")
		if body == nil || body.NamedChildCount() == 0 {
			continue
		}
		first := body.NamedChild(0)
		if s := stringStatement(first); s != nil {
			doc = unquote(c.file.text(s))
		}
	}
	return doc
}

func (f *File) isStub(fn *sitter.Node) bool {
	body := fn.ChildByFieldName("body")
	if body == nil {
		return true
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		switch stmt.Type() {
		case "comment", "pass_statement", "ERROR":
			continue
		case "expression_statement":
			if stringStatement(stmt) != nil || isEllipsis(stmt) {
				continue
			}
			return false
		case "raise_statement":
			if strings.Contains(f.text(stmt), "NotImplementedError") {
				continue
			}
			return false
		default:
			return false
		}
	}
	return true
}

// stringStatement returns the string node of an expression statement made
// of a single string literal (a docstring), or nil.
func stringStatement(stmt *sitter.Node) *sitter.Node {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return nil
	}
	s := stmt.NamedChild(0)
	if s.Type() == "string" || s.Type() == "concatenated_string" {
		return s
	}
	return nil
}

func isEllipsis(stmt *sitter.Node) bool {
	return stmt.NamedChildCount() == 1 && stmt.NamedChild(0).Type() == "ellipsis"
}

func unquote(lit string) string {
	s := strings.TrimLeft(lit, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(lit)
}
