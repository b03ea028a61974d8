package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/scope"
	"github.com/oxhq/basecode/internal/types"
)

func newRegistry() *types.Registry {
	a := arena.New()
	return types.NewRegistry(a, scope.New(a))
}

func TestRegisterNumericIsIdempotent(t *testing.T) {
	r := newRegistry()

	first := r.RegisterNumeric("i32", 4, arena.NumberInteger)
	second := r.RegisterNumeric("i32", 4, arena.NumberInteger)

	assert.Equal(t, first, second)
}

func TestLookupResolvesEveryRegisteredBuiltin(t *testing.T) {
	r := newRegistry()
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)
	boolID := r.RegisterBool()

	got, ok := r.Lookup("i32")
	require.True(t, ok)
	assert.Equal(t, i32, got)

	got, ok = r.Lookup("bool")
	require.True(t, ok)
	assert.Equal(t, boolID, got)

	_, ok = r.Lookup("no_such_type")
	assert.False(t, ok)
}

func TestFindPointerTypeCanonicalizes(t *testing.T) {
	r := newRegistry()
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)

	first := r.FindPointerType(i32)
	second := r.FindPointerType(i32)

	assert.Equal(t, first, second)
	assert.Equal(t, 8, r.SizeOfPublic(first), "pointers are qword-wide on the target VM")
}

func TestFindArrayTypeCanonicalizesOnSubscriptValue(t *testing.T) {
	a := arena.New()
	r := types.NewRegistry(a, scope.New(a))
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)

	lit4a := a.Add(&arena.CodeElement{Kind: arena.KindInt, Payload: &arena.IntPayload{Value: 4}})
	lit4b := a.Add(&arena.CodeElement{Kind: arena.KindInt, Payload: &arena.IntPayload{Value: 4}})

	first := r.FindArrayType(i32, []arena.ElementID{lit4a})
	second := r.FindArrayType(i32, []arena.ElementID{lit4b})

	assert.Equal(t, first, second, "two distinct literal-4 elements canonicalize to the same array type")
}

func TestCalculateSizeStructAlignsAndPads(t *testing.T) {
	a := arena.New()
	r := types.NewRegistry(a, scope.New(a))
	i8 := r.RegisterNumeric("i8", 1, arena.NumberInteger)
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)

	structElem := &arena.CodeElement{Kind: arena.KindStructType, Payload: &arena.CompositeTypePayload{
		BlockPayload: arena.NewBlockPayload(),
		FieldOrder:   []string{"a", "b"},
		Fields: map[string]arena.ElementID{
			"a": a.Add(&arena.CodeElement{Kind: arena.KindField, Payload: &arena.FieldPayload{Name: "a", TypeRef: i8, SizeInBytes: 1}}),
			"b": a.Add(&arena.CodeElement{Kind: arena.KindField, Payload: &arena.FieldPayload{Name: "b", TypeRef: i32, SizeInBytes: 4}}),
		},
	}}
	id := a.Add(structElem)

	require.NoError(t, r.CalculateSize(id))

	cp := structElem.Payload.(*arena.CompositeTypePayload)
	assert.Equal(t, 8, cp.SizeInBytes, "1-byte field padded to the 4-byte alignment of the next field, plus trailing pad")
	assert.Equal(t, 4, cp.Alignment)
}

func TestCalculateSizeUnionUsesLargestField(t *testing.T) {
	a := arena.New()
	r := types.NewRegistry(a, scope.New(a))
	i8 := r.RegisterNumeric("i8", 1, arena.NumberInteger)
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)

	unionElem := &arena.CodeElement{Kind: arena.KindUnionType, Payload: &arena.CompositeTypePayload{
		BlockPayload: arena.NewBlockPayload(),
		IsUnion:      true,
		FieldOrder:   []string{"a", "b"},
		Fields: map[string]arena.ElementID{
			"a": a.Add(&arena.CodeElement{Kind: arena.KindField, Payload: &arena.FieldPayload{Name: "a", TypeRef: i8, SizeInBytes: 1}}),
			"b": a.Add(&arena.CodeElement{Kind: arena.KindField, Payload: &arena.FieldPayload{Name: "b", TypeRef: i32, SizeInBytes: 4}}),
		},
	}}
	id := a.Add(unionElem)

	require.NoError(t, r.CalculateSize(id))

	cp := unionElem.Payload.(*arena.CompositeTypePayload)
	assert.Equal(t, 4, cp.SizeInBytes)
}

func TestCalculateArraySizeFailsOnUnfoldedSubscript(t *testing.T) {
	a := arena.New()
	r := types.NewRegistry(a, scope.New(a))
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)
	notYetConst := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference})

	arr := r.FindArrayType(i32, []arena.ElementID{notYetConst})

	assert.Error(t, r.CalculateSize(arr))
}

func TestTypeCheckStrictRequiresExactMatch(t *testing.T) {
	r := newRegistry()
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)
	i64 := r.RegisterNumeric("i64", 8, arena.NumberInteger)

	assert.True(t, r.TypeCheck(i32, i32, true))
	assert.False(t, r.TypeCheck(i32, i64, true))
}

func TestTypeCheckNonStrictAllowsLiteralNarrowing(t *testing.T) {
	r := newRegistry()
	i32 := r.RegisterNumeric("i32", 4, arena.NumberInteger)
	i64 := r.RegisterNumeric("i64", 8, arena.NumberInteger)

	assert.True(t, r.TypeCheck(i32, i64, false), "a literal-sourced RHS may narrow under the same number class")
}

func TestClassifyCastChoosesLowering(t *testing.T) {
	assert.Equal(t, types.CastIntTruncate, types.ClassifyCast(arena.NumberInteger, arena.NumberInteger, 8, 4, true))
	assert.Equal(t, types.CastSignExtend, types.ClassifyCast(arena.NumberInteger, arena.NumberInteger, 4, 8, true))
	assert.Equal(t, types.CastZeroExtend, types.ClassifyCast(arena.NumberInteger, arena.NumberInteger, 4, 8, false))
	assert.Equal(t, types.CastNoop, types.ClassifyCast(arena.NumberInteger, arena.NumberInteger, 4, 4, true))
	assert.Equal(t, types.CastIntToFloat, types.ClassifyCast(arena.NumberInteger, arena.NumberFloating, 4, 8, true))
	assert.Equal(t, types.CastFloatToInt, types.ClassifyCast(arena.NumberFloating, arena.NumberInteger, 8, 4, true))
	assert.Equal(t, types.CastFloatExtend, types.ClassifyCast(arena.NumberFloating, arena.NumberFloating, 4, 8, true))
	assert.Equal(t, types.CastFloatTruncate, types.ClassifyCast(arena.NumberFloating, arena.NumberFloating, 8, 4, true))
}
