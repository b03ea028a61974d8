package varmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/types"
	"github.com/oxhq/basecode/internal/varmap"
)

func newFixture(t *testing.T) (*arena.Arena, *builder.Builder, *types.Registry) {
	t.Helper()
	a := arena.New()
	b := builder.New(a)
	reg := types.NewRegistry(a, b.Scope)
	return a, b, reg
}

func TestBuildClassifiesParametersBeforeLocals(t *testing.T) {
	a, b, reg := newFixture(t)
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)

	procType := b.ProcedureType(arena.NoElement, arena.Location{})
	paramID := b.AddParameter(procType, "x", i32, arena.Location{})
	inst := b.ProcedureInstance(procType, arena.Location{})

	local := b.Identifier("y", ":", false, inst, arena.Location{})
	if e := a.Find(local); e != nil {
		if ip, ok := e.Payload.(*arena.IdentifierPayload); ok {
			ip.TypeRef = i32
		}
	}
	b.AppendStatement(inst, local)

	m := varmap.New(a, reg)
	require.NoError(t, m.Build(inst, procType))

	param := m.Get(paramID)
	require.NotNil(t, param)
	assert.Equal(t, varmap.KindParameter, param.Kind)
	assert.Equal(t, 16, param.Offset)

	loc := m.Get(local)
	require.NotNil(t, loc)
	assert.Equal(t, varmap.KindLocal, loc.Kind)
	assert.Less(t, loc.Offset, 0, "locals sit below the frame pointer")
}

func TestBuildStopsAtFrameBoundary(t *testing.T) {
	a, b, reg := newFixture(t)
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)

	outerProcType := b.ProcedureType(arena.NoElement, arena.Location{})
	outerInst := b.ProcedureInstance(outerProcType, arena.Location{})

	innerProcType := b.ProcedureType(outerInst, arena.Location{})
	innerInst := b.ProcedureInstance(innerProcType, arena.Location{})
	innerLocal := b.Identifier("z", ":", false, innerInst, arena.Location{})
	if e := a.Find(innerLocal); e != nil {
		e.Payload.(*arena.IdentifierPayload).TypeRef = i32
	}
	b.AppendStatement(innerInst, innerLocal)

	m := varmap.New(a, reg)
	require.NoError(t, m.Build(outerInst, outerProcType))

	assert.Nil(t, m.Get(innerLocal), "a nested procedure_instance's locals belong to its own frame")
}

func TestUseStateMachine(t *testing.T) {
	a, b, reg := newFixture(t)
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	inst := b.Block(arena.NoElement, arena.Location{})
	id := b.Identifier("x", ":", false, inst, arena.Location{})
	a.Find(id).Payload.(*arena.IdentifierPayload).TypeRef = i32
	b.AppendStatement(inst, id)

	m := varmap.New(a, reg)
	require.NoError(t, m.Build(inst, arena.NoElement))

	assert.Equal(t, varmap.ActionInit, m.Use(id, false), "first read must init")
	assert.Equal(t, varmap.ActionNone, m.Use(id, false), "still-filled read needs nothing")

	m.CompositeWrite(id)
	assert.Equal(t, varmap.ActionFill, m.Use(id, false), "a read after a composite write must reload")

	assert.Equal(t, varmap.ActionNone, m.Use(id, true), "a write never emits a load")
}

func TestRetainTempReusesReleasedSlot(t *testing.T) {
	_, _, reg := newFixture(t)
	a := arena.New()
	m := varmap.New(a, reg)

	first := m.RetainTemp(arena.NumberInteger)
	m.ReleaseTemp(first)
	second := m.RetainTemp(arena.NumberInteger)

	assert.Equal(t, first, second, "a released temporary of the same class is reused")

	third := m.RetainTemp(arena.NumberInteger)
	assert.NotEqual(t, first, third)
}

func TestGroupVariablesSplitsOnExclusionAndClass(t *testing.T) {
	a, b, reg := newFixture(t)
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	f64 := reg.RegisterNumeric("f64", 8, arena.NumberFloating)

	inst := b.Block(arena.NoElement, arena.Location{})
	x := b.Identifier("x", ":", false, inst, arena.Location{})
	a.Find(x).Payload.(*arena.IdentifierPayload).TypeRef = i32
	b.AppendStatement(inst, x)
	y := b.Identifier("y", ":", false, inst, arena.Location{})
	a.Find(y).Payload.(*arena.IdentifierPayload).TypeRef = f64
	b.AppendStatement(inst, y)

	m := varmap.New(a, reg)
	require.NoError(t, m.Build(inst, arena.NoElement))
	m.Use(x, false)
	m.Use(y, false)

	groups := m.GroupVariables(nil)
	require.Len(t, groups, 2)
	assert.Equal(t, arena.NumberInteger, groups[0].Class)
	assert.Equal(t, arena.NumberFloating, groups[1].Class)

	groups = m.GroupVariables(map[arena.ElementID]bool{x: true})
	require.Len(t, groups, 1)
	assert.Equal(t, arena.NumberFloating, groups[0].Class)
}

func TestRestoreReversesSaveOrder(t *testing.T) {
	g := varmap.Group{Vars: []arena.ElementID{1, 2, 3}}
	assert.Equal(t, []arena.ElementID{3, 2, 1}, varmap.Restore(g))
}
