package pyast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CompileChecker decides whether a Python source unit would compile. It is
// a structural check: nothing is executed and names are not resolved.
type CompileChecker interface {
	Check(ctx context.Context, source string) error
}

// SyntaxError is one problem found by the tree-sitter checker.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e SyntaxError) String() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// SyntaxErrors is returned by TreeSitterChecker.Check when the source does
// not compile.
type SyntaxErrors []SyntaxError

func (es SyntaxErrors) Error() string {
	if len(es) == 0 {
		return "syntax error"
	}
	parts := make([]string, 0, len(es))
	for i, e := range es {
		if i == 3 {
			parts = append(parts, fmt.Sprintf("and %d more", len(es)-3))
			break
		}
		parts = append(parts, e.String())
	}
	return "syntax error: " + strings.Join(parts, "; ")
}

// maxSyntaxErrors bounds collection on heavily malformed input.
const maxSyntaxErrors = 50

// TreeSitterChecker reports ERROR and MISSING nodes in the parse tree plus
// the compile errors CPython raises on shapes the grammar accepts, such as
// empty suites, Python 2 statements, misplaced return, break, await and
// nonlocal, duplicate parameters and invalid del targets.
type TreeSitterChecker struct{}

// Check implements CompileChecker.
func (TreeSitterChecker) Check(ctx context.Context, source string) error {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	f, err := Parse(ctx, []byte(source))
	if err != nil {
		return err
	}
	defer f.Close()
	if errs := f.SyntaxErrors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// SyntaxErrors lists the problems in the file, empty when it compiles.
func (f *File) SyntaxErrors() SyntaxErrors {
	var errs SyntaxErrors
	f.collectErrors(f.root(), &errs, 0)
	return errs
}

func (f *File) collectErrors(n *sitter.Node, errs *SyntaxErrors, depth int) {
	if depth > 1000 || len(*errs) >= maxSyntaxErrors {
		return
	}
	pos := n.StartPoint()
	at := func(msg string) {
		*errs = append(*errs, SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column), Message: msg})
	}
	switch {
	case n.IsMissing():
		at(fmt.Sprintf("missing %s", n.Type()))
	case n.IsError():
		at(fmt.Sprintf("unexpected %q", truncate(f.text(n), 40)))
	case !n.IsNamed():
		// Keywords share their node's type name ("await", "print").
	case n.Type() == "return_statement" && !insideFunction(n):
		at("'return' outside function")
	case (n.Type() == "break_statement" || n.Type() == "continue_statement") && !insideLoop(n):
		at(fmt.Sprintf("'%s' outside loop", strings.TrimSuffix(n.Type(), "_statement")))
	case n.Type() == "block" && emptyBlock(n):
		// The grammar accepts a bare newline as a suite; CPython does not.
		at("expected an indented block")
	case n.Type() == "print_statement" && isPrintStatement(f.text(n)):
		at("missing parentheses in call to 'print'")
	case n.Type() == "exec_statement":
		at("missing parentheses in call to 'exec'")
	case n.Type() == "await" && !insideAsync(n):
		at("'await' outside async function")
	case (n.Type() == "for_statement" || n.Type() == "with_statement") && isAsync(n) && !insideAsync(n):
		at(fmt.Sprintf("'async %s' outside async function", strings.TrimSuffix(n.Type(), "_statement")))
	case n.Type() == "for_in_clause":
		f.checkComprehension(n, at)
	case n.Type() == "nonlocal_statement":
		checkNonlocal(n, at)
	case n.Type() == "delete_statement":
		f.checkDelete(n, at)
	case n.Type() == "parameters" || n.Type() == "lambda_parameters":
		f.checkParameters(n, at)
	}
	// Children are visited unnamed too: MISSING tokens are anonymous.
	for i := 0; i < int(n.ChildCount()); i++ {
		f.collectErrors(n.Child(i), errs, depth+1)
	}
}

// isPrintStatement reports whether a print_statement node is the Python 2
// form. "print >>f, x" and "print (x)" are valid expressions in Python 3.
func isPrintStatement(text string) bool {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "print"))
	return !strings.HasPrefix(rest, "(") && !strings.HasPrefix(rest, ">>")
}

func (f *File) checkComprehension(n *sitter.Node, at func(string)) {
	parent := n.Parent()
	if isAsync(n) && parent != nil && parent.Type() != "generator_expression" && !insideAsync(n) {
		at("asynchronous comprehension outside of an asynchronous function")
	}
	// "for x in a, b" is a Python 2 form inside comprehensions.
	afterIn := false
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "in":
			afterIn = true
		case ",":
			if !afterIn {
				continue
			}
			if parent != nil && parent.Type() == "generator_expression" && parent.Parent() != nil && parent.Parent().Type() == "call" {
				at("generator expression must be parenthesized")
			} else {
				at("unparenthesized tuple after 'in' in comprehension")
			}
			return
		}
	}
}

func checkNonlocal(n *sitter.Node, at func(string)) {
	var scopes []string
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "function_definition" || p.Type() == "class_definition" {
			scopes = append(scopes, p.Type())
		}
	}
	if len(scopes) == 0 {
		at("nonlocal declaration not allowed at module level")
		return
	}
	for _, s := range scopes[1:] {
		if s == "function_definition" {
			return
		}
	}
	at("no binding for nonlocal found in an enclosing function")
}

func (f *File) checkDelete(n *sitter.Node, at func(string)) {
	var bad func(*sitter.Node) *sitter.Node
	bad = func(t *sitter.Node) *sitter.Node {
		switch t.Type() {
		case "identifier", "attribute", "subscript", "comment":
			return nil
		case "expression_list", "tuple", "list", "parenthesized_expression", "delete_statement":
			for i := 0; i < int(t.NamedChildCount()); i++ {
				if b := bad(t.NamedChild(i)); b != nil {
					return b
				}
			}
			return nil
		}
		return t
	}
	if b := bad(n); b != nil {
		at(fmt.Sprintf("cannot delete %s", strings.ReplaceAll(b.Type(), "_", " ")))
	}
}

func (f *File) checkParameters(n *sitter.Node, at func(string)) {
	seen := make(map[string]bool)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		if p.Type() == "keyword_separator" {
			next := nextParameter(n, i)
			if next == nil || isKwargs(next) {
				at("named arguments must follow bare *")
			}
			continue
		}
		name := f.parameterName(p)
		if name == "" {
			continue
		}
		if seen[name] {
			at(fmt.Sprintf("duplicate argument %q in function definition", name))
		}
		seen[name] = true
	}
}

func nextParameter(params *sitter.Node, i int) *sitter.Node {
	for j := i + 1; j < int(params.NamedChildCount()); j++ {
		if c := params.NamedChild(j); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

func isKwargs(p *sitter.Node) bool {
	if p.Type() == "typed_parameter" && p.NamedChildCount() > 0 {
		p = p.NamedChild(0)
	}
	return p.Type() == "dictionary_splat_pattern"
}

func (f *File) parameterName(p *sitter.Node) string {
	switch p.Type() {
	case "identifier":
		return f.text(p)
	case "default_parameter", "typed_default_parameter":
		if name := p.ChildByFieldName("name"); name != nil {
			return f.parameterName(name)
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		if p.NamedChildCount() > 0 {
			return f.parameterName(p.NamedChild(0))
		}
	}
	return ""
}

func emptyBlock(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() != "comment" {
			return false
		}
	}
	return true
}

func insideFunction(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "function_definition", "lambda":
			return true
		case "class_definition":
			return false
		}
	}
	return false
}

func insideLoop(n *sitter.Node) bool {
	for c, p := n, n.Parent(); p != nil; c, p = p, p.Parent() {
		switch p.Type() {
		case "for_statement", "while_statement":
			// The loop's else clause runs after the loop is done.
			if c.Type() != "else_clause" {
				return true
			}
		case "function_definition", "class_definition", "lambda":
			return false
		}
	}
	return false
}

// insideAsync reports whether the innermost function scope around n is an
// async def. Comprehensions do not open a scope here.
func insideAsync(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "function_definition":
			return isAsync(p)
		case "class_definition", "lambda":
			return false
		}
	}
	return false
}

func isAsync(n *sitter.Node) bool {
	return n.ChildCount() > 0 && n.Child(0).Type() == "async"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
