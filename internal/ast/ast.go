// Package ast defines the shape of the tree the external lexer and
// concrete-syntax parser hand to the evaluator. Neither the lexer nor the
// parser is implemented here — per the spec they are external collaborators
// described only through the data they produce. This package is that data
// contract, plus a small in-memory builder for hand-constructing trees in
// tests where a real parser isn't available.
package ast

import sitter "github.com/smacker/go-tree-sitter"

// Location pinpoints a span of source text within a module.
type Location struct {
	Module string
	Start  sitter.Point
	End    sitter.Point
	// StartByte/EndByte are byte offsets within the module's source text.
	StartByte int
	EndByte   int
}

// Node is one node of the concrete-syntax tree. Kind is the grammar's node
// kind string (e.g. "binary_expression", "identifier", "for_statement");
// the evaluator's dispatch table (internal/evaluator) is keyed by Kind.
type Node struct {
	Kind     string
	Text     string
	Location Location
	Children []*Node
	// Fields holds named children (e.g. "condition", "consequence") the way
	// a concrete grammar exposes them, so handlers don't depend on
	// positional child order.
	Fields map[string]*Node
}

// Child returns the i-th positional child, or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Field returns the named child, or nil.
func (n *Node) Field(name string) *Node {
	if n == nil || n.Fields == nil {
		return nil
	}
	return n.Fields[name]
}

// Builder constructs Node trees programmatically — the substitute for a
// real parser in unit tests.
type Builder struct {
	module string
}

// NewBuilder creates a Builder attributing every node it builds to module.
func NewBuilder(module string) *Builder {
	return &Builder{module: module}
}

// Node creates a leaf or branch node with the given kind and text.
func (b *Builder) Node(kind, text string, children ...*Node) *Node {
	return &Node{
		Kind:     kind,
		Text:     text,
		Location: Location{Module: b.module},
		Children: children,
	}
}

// WithField attaches a named child to n and returns n for chaining.
func (n *Node) WithField(name string, child *Node) *Node {
	if n.Fields == nil {
		n.Fields = make(map[string]*Node)
	}
	n.Fields[name] = child
	return n
}
