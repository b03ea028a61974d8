package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxhq/basecode/internal/ast"
)

func TestBuilderAttributesModuleToEveryNode(t *testing.T) {
	b := ast.NewBuilder("main")
	n := b.Node("int_literal", "40")

	assert.Equal(t, "main", n.Location.Module)
	assert.Equal(t, "int_literal", n.Kind)
	assert.Equal(t, "40", n.Text)
}

func TestChildReturnsPositionalChildByIndex(t *testing.T) {
	b := ast.NewBuilder("main")
	left := b.Node("identifier_ref", "x")
	right := b.Node("identifier_ref", "y")
	sum := b.Node("binary_expression", "+", left, right)

	assert.Same(t, left, sum.Child(0))
	assert.Same(t, right, sum.Child(1))
	assert.Nil(t, sum.Child(2))
	assert.Nil(t, sum.Child(-1))
}

func TestChildOnNilNodeIsSafe(t *testing.T) {
	var n *ast.Node
	assert.Nil(t, n.Child(0))
	assert.Nil(t, n.Field("anything"))
}

func TestWithFieldAttachesAndChains(t *testing.T) {
	b := ast.NewBuilder("main")
	name := b.Node("name", "x")
	decl := b.Node("declaration", ":").WithField("name", name)

	assert.Same(t, name, decl.Field("name"))
	assert.Nil(t, decl.Field("missing"))
}

func TestWithFieldOverwritesExistingField(t *testing.T) {
	b := ast.NewBuilder("main")
	decl := b.Node("declaration", ":")
	first := b.Node("name", "x")
	second := b.Node("name", "y")

	decl.WithField("name", first)
	decl.WithField("name", second)

	assert.Same(t, second, decl.Field("name"))
}
