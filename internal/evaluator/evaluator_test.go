package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/ast"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/evaluator"
)

func newEvaluator() (*arena.Arena, *builder.Builder, *evaluator.Evaluator) {
	a := arena.New()
	b := builder.New(a)
	return a, b, evaluator.New(b)
}

func TestEvaluateModuleBuildsADeclarationPerStatement(t *testing.T) {
	a, _, ev := newEvaluator()
	nb := ast.NewBuilder("main")

	decl := nb.Node("declaration", ":").
		WithField("name", nb.Node("name", "x")).
		WithField("value", nb.Node("int_literal", "40"))
	root := nb.Node("module_root", "", decl)

	d := &diag.Result{}
	moduleID := ev.EvaluateModule("main", root, d)

	require.False(t, d.IsFailed())
	modElem := a.Find(moduleID)
	require.NotNil(t, modElem)
	assert.Equal(t, arena.KindModule, modElem.Kind)
	assert.Len(t, modElem.Payload.(*arena.ModulePayload).BlockPayload.Identifiers["x"], 1)
}

func TestEvaluateModuleCachesByPath(t *testing.T) {
	_, _, ev := newEvaluator()
	nb := ast.NewBuilder("main")
	root := nb.Node("module_root", "")

	d := &diag.Result{}
	first := ev.EvaluateModule("main", root, d)
	second := ev.EvaluateModule("main", root, d)

	assert.Equal(t, first, second, "re-evaluating the same path returns the cached module")
}

func TestEvaluateModuleReportsUnknownNodeKind(t *testing.T) {
	_, _, ev := newEvaluator()
	nb := ast.NewBuilder("main")
	root := nb.Node("module_root", "", nb.Node("not_a_real_kind", ""))

	d := &diag.Result{}
	ev.EvaluateModule("main", root, d)

	assert.True(t, d.IsFailed())
}

func TestHandleBinaryBuildsBinaryElementFromFields(t *testing.T) {
	a, _, ev := newEvaluator()
	nb := ast.NewBuilder("main")

	sum := nb.Node("binary_expression", "+").
		WithField("left", nb.Node("int_literal", "1")).
		WithField("right", nb.Node("int_literal", "2"))
	decl := nb.Node("declaration", ":").
		WithField("name", nb.Node("name", "sum")).
		WithField("value", sum)
	root := nb.Node("module_root", "", decl)

	d := &diag.Result{}
	ev.EvaluateModule("main", root, d)
	require.False(t, d.IsFailed())

	var found bool
	for _, e := range a.FindByKind(arena.KindBinary) {
		p := e.Payload.(*arena.BinaryPayload)
		if p.IsSyntheticAssignment {
			continue
		}
		assert.Equal(t, "+", p.Operator)
		found = true
	}
	assert.True(t, found, "the binary expression's operator must survive into a BinaryPayload")
}

func TestHandleDeclarationRejectsTypeDeclWithWalrus(t *testing.T) {
	_, _, ev := newEvaluator()
	nb := ast.NewBuilder("main")

	decl := nb.Node("declaration", ":").
		WithField("name", nb.Node("name", "Point")).
		WithField("value", nb.Node("type_decl", ""))
	root := nb.Node("module_root", "", decl)

	d := &diag.Result{}
	ev.EvaluateModule("main", root, d)

	assert.True(t, d.IsFailed(), "a type declaration must require :: not :=")
}

func TestRegisterOverridesDispatchForCustomNodeKind(t *testing.T) {
	_, b, ev := newEvaluator()
	seen := false
	ev.Register("custom_node", func(e *evaluator.Evaluator, ctx *evaluator.Context, node *ast.Node) (arena.ElementID, bool) {
		seen = true
		return b.Nil(), true
	})

	nb := ast.NewBuilder("main")
	root := nb.Node("module_root", "", nb.Node("custom_node", ""))

	d := &diag.Result{}
	ev.EvaluateModule("main", root, d)

	assert.True(t, seen)
	assert.False(t, d.IsFailed())
}
