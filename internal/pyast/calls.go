package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// TestTargets maps every test function in f (name starting with "test") to
// the names from required it calls as attributes (obj.name(...)), in
// required order. Test functions inside a class are keyed "Class.test_x".
// Tests that call none of the names map to an empty slice.
func (f *File) TestTargets(required []string) map[string][]string {
	want := make(map[string]bool, len(required))
	for _, r := range required {
		want[r] = true
	}
	targets := make(map[string][]string)
	walk(f.root(), func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		d, ok := f.definition(n)
		if !ok || !strings.HasPrefix(d.Name, "test") {
			return true
		}
		id := d.Name
		if d.Class != "" {
			id = d.Class + "." + d.Name
		}
		called := f.attributeCalls(n.ChildByFieldName("body"), func(obj *sitter.Node, name string) bool {
			return want[name]
		})
		targets[id] = inOrder(required, called)
		return false
	})
	return targets
}

// CallGroups partitions the class's required methods into groups connected
// by self.<name>(...) calls in either direction. Groups are ordered by their
// first member in required, and members keep required order. Required
// names the class does not define form singleton groups.
func (c *Class) CallGroups(required []string) [][]string {
	index := make(map[string]int, len(required))
	for i, r := range required {
		if _, dup := index[r]; !dup {
			index[r] = i
		}
	}
	parent := make([]int, len(required))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	for _, n := range c.methodNodes() {
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		from, ok := index[c.file.text(nameNode)]
		if !ok {
			continue
		}
		called := c.file.attributeCalls(n.ChildByFieldName("body"), func(obj *sitter.Node, name string) bool {
			_, req := index[name]
			return req && obj.Type() == "identifier" && c.file.text(obj) == "self"
		})
		for name := range called {
			union(from, index[name])
		}
	}

	var groups [][]string
	slot := make(map[int]int)
	for i, r := range required {
		if index[r] != i {
			continue
		}
		root := find(i)
		g, ok := slot[root]
		if !ok {
			g = len(groups)
			slot[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}
	return groups
}

// attributeCalls returns the set of attribute names called under n for which
// keep(object, name) holds.
func (f *File) attributeCalls(n *sitter.Node, keep func(obj *sitter.Node, name string) bool) map[string]bool {
	called := make(map[string]bool)
	walk(n, func(node *sitter.Node) bool {
		if node.Type() != "call" {
			return true
		}
		fn := node.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			return true
		}
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return true
		}
		if name := f.text(attr); keep(obj, name) {
			called[name] = true
		}
		return true
	})
	return called
}

func inOrder(order []string, set map[string]bool) []string {
	out := make([]string, 0, len(set))
	seen := make(map[string]bool, len(set))
	for _, name := range order {
		if set[name] && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
