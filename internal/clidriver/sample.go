package clidriver

import "github.com/oxhq/basecode/internal/ast"

// Sample builds a tiny in-memory AST for a single module declaring a
// constant `main` procedure that returns the sum of two locals, standing in
// for the concrete-syntax parser this module does not implement (§1
// non-goal). It exists purely so the CLI driver has something real to push
// through every session phase end to end.
func Sample() (modules map[string]*ast.Node, mainModule string) {
	nb := ast.NewBuilder("main")

	xDecl := nb.Node("declaration", ":").
		WithField("name", nb.Node("name", "x")).
		WithField("value", nb.Node("int_literal", "40"))
	yDecl := nb.Node("declaration", ":").
		WithField("name", nb.Node("name", "y")).
		WithField("value", nb.Node("int_literal", "2"))

	sum := nb.Node("binary_expression", "+").
		WithField("left", nb.Node("identifier_ref", "x")).
		WithField("right", nb.Node("identifier_ref", "y"))
	ret := nb.Node("return_statement", "", sum)

	retParam := nb.Node("return_param", "").WithField("type", nb.Node("type", "i32"))
	proc := nb.Node("procedure_expression", "").
		WithField("parameters", nb.Node("parameters", "")).
		WithField("returns", nb.Node("returns", "", retParam)).
		WithField("body", nb.Node("body", "", xDecl, yDecl, ret))

	mainDecl := nb.Node("declaration", "::").
		WithField("name", nb.Node("name", "main")).
		WithField("value", proc)

	root := nb.Node("module_root", "", mainDecl)
	return map[string]*ast.Node{"main": root}, "main"
}

// SampleSource returns the (fictional) source text Sample's AST stands in
// for, so a compile cache keyed by content digest has something real to
// hash against in place of an actual parsed file.
func SampleSource() []byte {
	return []byte("main :: proc() (i32) {\n\tx := 40\n\ty := 2\n\treturn x + y\n}\n")
}
