// Package evaluator implements the AST Evaluator of spec §4.3: a dispatch
// table keyed by AST-node kind, producing CodeDOM elements via the builder
// and attaching comments/attributes collected along the way.
package evaluator

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/ast"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/scope"
)

// Context carries the state threaded through every handler call: the
// current scope, the module being evaluated, and the diagnostic sink.
type Context struct {
	Scope  arena.ElementID
	Module string
	Diag   *diag.Result

	pendingAttributes []arena.ElementID
	pendingComments   []arena.ElementID
}

// Handler evaluates one AST node into zero-or-more CodeDOM elements,
// returning the element representing the node's value (NoElement for
// pure-statement nodes) and whether evaluation succeeded.
type Handler func(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool)

// Evaluator dispatches on AST node kind, caching which absolute module
// paths have already been evaluated so recursive imports reuse cached
// modules (§4.3: "the same source file may be evaluated only once").
type Evaluator struct {
	Builder *builder.Builder
	Scope   *scope.Graph

	handlers map[string]Handler
	evaluated map[string]arena.ElementID // absolute path -> module element id
}

// New creates an Evaluator with the built-in dispatch table installed.
func New(b *builder.Builder) *Evaluator {
	e := &Evaluator{
		Builder:   b,
		Scope:     b.Scope,
		handlers:  make(map[string]Handler),
		evaluated: make(map[string]arena.ElementID),
	}
	e.installHandlers()
	return e
}

// Register installs (or overrides) the handler for an AST node kind. Kept
// exported so callers can extend the dispatch table for grammar-specific
// node kinds without forking the package, the way the teacher's provider
// architecture lets languages extend a universal core.
func (e *Evaluator) Register(kind string, h Handler) {
	e.handlers[kind] = h
}

// EvaluateModule evaluates a whole source file's AST into a module element,
// reusing the cached element if path was already evaluated.
func (e *Evaluator) EvaluateModule(path string, root *ast.Node, d *diag.Result) arena.ElementID {
	if id, ok := e.evaluated[path]; ok {
		return id
	}
	moduleID := e.Builder.Module(path, loc(root, path))
	e.evaluated[path] = moduleID

	ctx := &Context{Scope: moduleID, Module: path, Diag: d}
	for _, stmt := range root.Children {
		e.evalStatement(ctx, stmt)
	}
	return moduleID
}

func (e *Evaluator) evalStatement(ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	h, ok := e.handlers[node.Kind]
	if !ok {
		ctx.Diag.Errorf(diag.X000, locOf(ctx, node), "unexpected node kind: %s", node.Kind)
		return arena.NoElement, false
	}
	id, ok := h(e, ctx, node)
	if ok && id != arena.NoElement {
		e.Builder.Attach(id, ctx.pendingAttributes, ctx.pendingComments)
		ctx.pendingAttributes = nil
		ctx.pendingComments = nil
	}
	return id, ok
}

func loc(node *ast.Node, module string) arena.Location {
	if node == nil {
		return arena.Location{Module: module}
	}
	return arena.Location{Module: module, Start: node.Location.Start, End: node.Location.End}
}

func locOf(ctx *Context, node *ast.Node) diag.Location {
	l := 0
	c := 0
	if node != nil {
		l = int(node.Location.Start.Row) + 1
		c = int(node.Location.Start.Column) + 1
	}
	return diag.Location{Module: ctx.Module, Line: l, Column: c}
}

func errKindMismatch(ctx *Context, node *ast.Node, want string) {
	ctx.Diag.Errorf(diag.X000, locOf(ctx, node), "unexpected node kind %q, expected %s", node.Kind, want)
}
