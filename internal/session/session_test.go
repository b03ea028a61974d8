package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/ast"
)

// buildAddMain constructs `main :: proc() (i32) { x := 40; y := 2; return x + y }`
// as an in-memory AST, standing in for a parsed module (§1 non-goal: no
// concrete-syntax parser is implemented here).
func buildAddMain(t *testing.T) (map[string]*ast.Node, string) {
	t.Helper()
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

func TestCompileSucceedsForWellFormedProgram(t *testing.T) {
	modules, mainModule := buildAddMain(t)

	s := New(DefaultOptions())
	img := s.Compile(modules, mainModule)

	require.False(t, s.Diag.IsFailed(), "diagnostics: %v", s.Diag.Counts())
	require.NotNil(t, img)
	assert.NotEmpty(t, img.Text, "emitting main should produce at least one text blob")
}

func TestCompileRecordsEveryPhaseTask(t *testing.T) {
	modules, mainModule := buildAddMain(t)

	s := New(DefaultOptions())
	s.Compile(modules, mainModule)

	names := make(map[string]bool, len(s.Tasks))
	for _, task := range s.Tasks {
		names[task.Name] = true
		assert.GreaterOrEqual(t, task.ElapsedMicros, int64(0))
	}
	for _, want := range []string{
		"register_core_types", "evaluate_modules", "resolver_pass_a",
		"identifier_resolution", "resolver_pass_b", "constant_folding",
		"type_check", "resolver_pass_c_final", "emit_bytecode",
		"assemble_image", "execute_directives",
	} {
		assert.True(t, names[want], "missing task %s", want)
	}
}

func TestCompileRegistersCoreTypes(t *testing.T) {
	s := New(DefaultOptions())
	s.registerCoreTypes()

	for _, name := range []string{"i8", "i32", "i64", "u32", "f32", "f64", "bool", "rune", "module", "namespace", "generic"} {
		_, ok := s.CoreTypes[name]
		assert.True(t, ok, "core type %s should be registered", name)
	}
	assert.Contains(t, s.CoreTypes, "*i32", "pointer-to-numeric types are registered alongside the numeric itself")
}

func TestCompileFailsWhenMainModuleMissing(t *testing.T) {
	modules, _ := buildAddMain(t)

	s := New(DefaultOptions())
	img := s.Compile(modules, "no/such/module")

	assert.Nil(t, img)
	assert.True(t, s.Diag.IsFailed())
}

func TestCompileInjectsDefinitionsIntoFirstModule(t *testing.T) {
	modules, mainModule := buildAddMain(t)

	opts := DefaultOptions()
	opts.Definitions = map[string]string{"build_tag": "ci"}

	s := New(opts)
	img := s.Compile(modules, mainModule)

	require.False(t, s.Diag.IsFailed(), "diagnostics: %v", s.Diag.Counts())
	require.NotNil(t, img)
}
