package emitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/ast"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/emitter"
	"github.com/oxhq/basecode/internal/evaluator"
	"github.com/oxhq/basecode/internal/intern"
	"github.com/oxhq/basecode/internal/resolver"
	"github.com/oxhq/basecode/internal/types"
)

// fixture wires the same component graph session.Session does, so an
// emitter test exercises the real resolver/types/scope collaborators
// instead of hand-poking payload fields.
type fixture struct {
	arena    *arena.Arena
	builder  *builder.Builder
	types    *types.Registry
	resolver *resolver.Resolver
	eval     *evaluator.Evaluator
	emitter  *emitter.Emitter
	diag     *diag.Result
	i32      arena.ElementID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := arena.New()
	b := builder.New(a)
	reg := types.NewRegistry(a, b.Scope)
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	r := resolver.New(a, b.Scope, reg)
	ev := evaluator.New(b)
	interns := intern.New()
	d := &diag.Result{}
	em := emitter.New(a, reg, b.Scope, r, interns, d)

	return &fixture{arena: a, builder: b, types: reg, resolver: r, eval: ev, emitter: em, diag: d, i32: i32}
}

// resolveToFixpoint mirrors session.runToFixpoint for this single-module test.
func (f *fixture) resolveToFixpoint() {
	for f.resolver.ResolveTypes(f.diag) {
	}
	for f.resolver.ResolveIdentifiers(f.diag) {
	}
	for f.resolver.ResolveTypes(f.diag) {
	}
	for f.resolver.ResolveCalls(f.diag) {
	}
}

// buildAddProcedure constructs `proc() (i32) { x := 40; y := 2; return x + y }`.
func buildAddProcedure() *ast.Node {
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
	return nb.Node("declaration", "::").
		WithField("name", nb.Node("name", "main")).
		WithField("value", proc)
}

func TestEmitProcedureBodyProducesLoadAddAndReturn(t *testing.T) {
	f := newFixture(t)
	nb := ast.NewBuilder("main")
	mainDecl := buildAddProcedure()
	root := nb.Node("module_root", "", mainDecl)

	moduleID := f.eval.EvaluateModule("main", root, f.diag)
	require.False(t, f.diag.IsFailed(), "evaluation: %v", f.diag.All())

	f.resolveToFixpoint()
	require.False(t, f.diag.IsFailed(), "resolution: %v", f.diag.All())

	mainIdent := f.arena.Find(moduleID).Payload.(*arena.ModulePayload).BlockPayload.Identifiers["main"][0]
	ip := f.arena.Find(mainIdent).Payload.(*arena.IdentifierPayload)
	instance := ip.Initializer

	procType := f.arena.Find(instance).Payload.(*arena.ProcedureInstancePayload).ProcedureType
	body := instance

	entry := f.emitter.EmitProcedureBody(instance, procType, body)

	require.False(t, f.diag.IsFailed(), "emission: %v", f.diag.All())
	require.NotNil(t, entry)

	var ops []string
	for _, instr := range entry.Instructions {
		ops = append(ops, instr.Op)
	}
	assert.Contains(t, ops, "add", "x + y must lower to an add instruction")
	assert.Contains(t, ops, "load", "reading x and y must lower to load instructions")
	assert.Contains(t, ops, "rts", "the return statement must lower to an rts instruction")
}

func TestEmitElementLiteralsCarryImmediateOperands(t *testing.T) {
	f := newFixture(t)

	intID := f.builder.Int(7, false, arena.Location{})
	result, ok := f.emitter.EmitElement(intID)
	require.True(t, ok)
	assert.Equal(t, emitter.OperandImmediateInt, result.Operand.Kind)
	assert.Equal(t, int64(7), result.Operand.ImmInt)

	boolID := f.builder.Bool(true)
	result, ok = f.emitter.EmitElement(boolID)
	require.True(t, ok)
	assert.Equal(t, int64(1), result.Operand.ImmInt)
}

func TestEmitElementInternsStringsOnce(t *testing.T) {
	f := newFixture(t)

	a := f.builder.String("hello", arena.Location{})
	b := f.builder.String("hello", arena.Location{})

	ra, ok := f.emitter.EmitElement(a)
	require.True(t, ok)
	rb, ok := f.emitter.EmitElement(b)
	require.True(t, ok)

	assert.Equal(t, ra.Operand.Label, rb.Operand.Label, "two equal string literals share one intern label")
}

func TestEmitElementUnresolvedIdentifierRefFails(t *testing.T) {
	f := newFixture(t)

	// Build a raw identifier_reference with no Resolved target.
	sym := &arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "nowhere"}}
	f.arena.Add(sym)
	ref := &arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: sym.ID, Resolved: arena.NoElement}}
	f.arena.Add(ref)

	_, ok := f.emitter.EmitElement(ref.ID)
	assert.False(t, ok)
	assert.True(t, f.diag.IsFailed())
}

// buildTwoProcedureModule constructs:
//
//	add :: proc(a i32, b i32) (i32) { return a + b }
//	main :: proc() (i32) { return add(40, 2) }
func buildTwoProcedureModule() *ast.Node {
	nb := ast.NewBuilder("main")

	addParams := nb.Node("parameters", "",
		nb.Node("param", "").WithField("name", nb.Node("name", "a")).WithField("type", nb.Node("type", "i32")),
		nb.Node("param", "").WithField("name", nb.Node("name", "b")).WithField("type", nb.Node("type", "i32")),
	)
	addRetParam := nb.Node("return_param", "").WithField("type", nb.Node("type", "i32"))
	addSum := nb.Node("binary_expression", "+").
		WithField("left", nb.Node("identifier_ref", "a")).
		WithField("right", nb.Node("identifier_ref", "b"))
	addProc := nb.Node("procedure_expression", "").
		WithField("parameters", addParams).
		WithField("returns", nb.Node("returns", "", addRetParam)).
		WithField("body", nb.Node("body", "", nb.Node("return_statement", "", addSum)))
	addDecl := nb.Node("declaration", "::").
		WithField("name", nb.Node("name", "add")).
		WithField("value", addProc)

	callArgs := nb.Node("argument_list", "", nb.Node("int_literal", "40"), nb.Node("int_literal", "2"))
	call := nb.Node("call_expression", "").
		WithField("callee", nb.Node("identifier_ref", "add")).
		WithField("arguments", callArgs)
	mainRetParam := nb.Node("return_param", "").WithField("type", nb.Node("type", "i32"))
	mainProc := nb.Node("procedure_expression", "").
		WithField("parameters", nb.Node("parameters", "")).
		WithField("returns", nb.Node("returns", "", mainRetParam)).
		WithField("body", nb.Node("body", "", nb.Node("return_statement", "", call)))
	mainDecl := nb.Node("declaration", "::").
		WithField("name", nb.Node("name", "main")).
		WithField("value", mainProc)

	return nb.Node("module_root", "", addDecl, mainDecl)
}

// TestMultiProcedureCallResolvesAndReachesCallee exercises the gap flagged
// in review: a call to a procedure other than main must resolve its
// overload (§4.5), get marked reachable by the call graph, and actually
// appear in the assembled image instead of being silently dropped.
func TestMultiProcedureCallResolvesAndReachesCallee(t *testing.T) {
	f := newFixture(t)
	root := buildTwoProcedureModule()

	moduleID := f.eval.EvaluateModule("main", root, f.diag)
	require.False(t, f.diag.IsFailed(), "evaluation: %v", f.diag.All())

	f.resolveToFixpoint()
	require.False(t, f.diag.IsFailed(), "resolution: %v", f.diag.All())

	bp := f.arena.Find(moduleID).Payload.(*arena.ModulePayload).BlockPayload
	addInstance := f.arena.Find(bp.Identifiers["add"][0]).Payload.(*arena.IdentifierPayload).Initializer
	mainInstance := f.arena.Find(bp.Identifiers["main"][0]).Payload.(*arena.IdentifierPayload).Initializer

	var call *arena.CodeElement
	for _, e := range f.arena.FindByKind(arena.KindProcedureCall) {
		call = e
	}
	require.NotNil(t, call, "the call to add must have been evaluated")
	cp := call.Payload.(*arena.ProcedureCallPayload)
	require.Equal(t, addInstance, cp.Resolved, "overload resolution must pick the add instance, not arena.NoElement")

	mainProcType := f.arena.Find(mainInstance).Payload.(*arena.ProcedureInstancePayload).ProcedureType
	addProcType := f.arena.Find(addInstance).Payload.(*arena.ProcedureInstancePayload).ProcedureType
	f.emitter.EmitProcedureBody(mainInstance, mainProcType, mainInstance)
	f.emitter.EmitProcedureBody(addInstance, addProcType, addInstance)
	f.emitter.EmitStartEnd(mainInstance)
	require.False(t, f.diag.IsFailed(), "emission: %v", f.diag.All())

	img := f.emitter.Assemble(nil)
	var labels []string
	for _, blob := range img.Text {
		labels = append(labels, blob.Label)
	}
	assert.Contains(t, labels, "add_entry", "add must be reachable and emitted, not silently dropped")
}
