package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/resolver"
	"github.com/oxhq/basecode/internal/types"
)

func newFixture() (*arena.Arena, *builder.Builder, *types.Registry, *resolver.Resolver) {
	a := arena.New()
	b := builder.New(a)
	reg := types.NewRegistry(a, b.Scope)
	r := resolver.New(a, b.Scope, reg)
	return a, b, reg, r
}

func TestResolveIdentifiersFindsDeclarationInEnclosingScope(t *testing.T) {
	a, b, _, r := newFixture()
	mod := b.Module("main", arena.Location{})
	target := b.Identifier("x", ":", false, mod, arena.Location{})

	sym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "x"}})
	ref := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: sym, Scope: mod}})

	d := &diag.Result{}
	progress := r.ResolveIdentifiers(d)

	require.True(t, progress)
	rp := a.Find(ref).Payload.(*arena.IdentifierReferencePayload)
	assert.Equal(t, target, rp.Resolved)
}

func TestResolveIdentifiersLeavesUnresolvedReferenceAlone(t *testing.T) {
	a, b, _, r := newFixture()
	mod := b.Module("main", arena.Location{})

	sym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "nowhere"}})
	ref := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: sym, Scope: mod}})

	d := &diag.Result{}
	progress := r.ResolveIdentifiers(d)

	assert.False(t, progress)
	rp := a.Find(ref).Payload.(*arena.IdentifierReferencePayload)
	assert.Equal(t, arena.NoElement, rp.Resolved)
}

func TestResolveTypesReportsNoProgressWhenInitializerCarriesNoInherentType(t *testing.T) {
	a, b, _, r := newFixture()
	mod := b.Module("main", arena.Location{})

	lit := b.Int(40, false, arena.Location{})
	ident := b.Identifier("x", ":", false, mod, arena.Location{})
	ip := a.Find(ident).Payload.(*arena.IdentifierPayload)
	ip.Initializer = lit
	ip.TypeRef = a.Add(&arena.CodeElement{Kind: arena.KindUnknownType, Payload: &arena.UnknownTypePayload{}})

	d := &diag.Result{}
	progress := r.ResolveTypes(d)

	assert.False(t, progress, "int literals carry no inherent type in InferType's switch")
}

func TestResolveTypesInfersFromSymbolHint(t *testing.T) {
	a, b, _, r := newFixture()
	mod := b.Module("main", arena.Location{})

	ident := b.Identifier("x", ":", false, mod, arena.Location{})
	ip := a.Find(ident).Payload.(*arena.IdentifierPayload)
	unknown := a.Add(&arena.CodeElement{Kind: arena.KindUnknownType, Payload: &arena.UnknownTypePayload{Hint: "CustomType"}, ParentScope: mod})
	ip.TypeRef = unknown

	custom := b.Identifier("CustomType", "::", true, mod, arena.Location{})
	if e := a.Find(custom); e != nil {
		e.Kind = arena.KindStructType
		e.Payload = &arena.CompositeTypePayload{BlockPayload: arena.NewBlockPayload()}
	}

	d := &diag.Result{}
	progress := r.ResolveTypes(d)

	require.True(t, progress)
	assert.Equal(t, custom, ip.TypeRef)
}

func TestResolveTypesResolvesExplicitTypeReferenceToBuiltin(t *testing.T) {
	a, b, reg, r := newFixture()
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	mod := b.Module("main", arena.Location{})

	ident := b.Identifier("x", ":", false, mod, arena.Location{})
	ip := a.Find(ident).Payload.(*arena.IdentifierPayload)
	typeRef := a.Add(&arena.CodeElement{Kind: arena.KindTypeReference, Payload: &arena.TypeReferencePayload{UnresolvedName: "i32"}, ParentScope: mod})
	ip.TypeRef = typeRef

	d := &diag.Result{}
	progress := r.ResolveTypes(d)

	require.True(t, progress)
	assert.Equal(t, i32, ip.TypeRef)

	trp := a.Find(typeRef).Payload.(*arena.TypeReferencePayload)
	assert.Equal(t, i32, trp.Resolved, "InferType's cast handling reads Resolved directly")
}

func TestResolveTypesResolvesExplicitTypeReferenceToUserType(t *testing.T) {
	a, b, _, r := newFixture()
	mod := b.Module("main", arena.Location{})

	structID := a.Add(&arena.CodeElement{Kind: arena.KindStructType, Payload: &arena.CompositeTypePayload{BlockPayload: arena.NewBlockPayload()}})
	structIdent := b.Identifier("Point", "::", true, mod, arena.Location{})
	a.Find(structIdent).Payload.(*arena.IdentifierPayload).Initializer = structID

	ident := b.Identifier("p", ":", false, mod, arena.Location{})
	ip := a.Find(ident).Payload.(*arena.IdentifierPayload)
	typeRef := a.Add(&arena.CodeElement{Kind: arena.KindTypeReference, Payload: &arena.TypeReferencePayload{UnresolvedName: "Point"}, ParentScope: mod})
	ip.TypeRef = typeRef

	d := &diag.Result{}
	progress := r.ResolveTypes(d)

	require.True(t, progress)
	assert.Equal(t, structID, ip.TypeRef, "the type reference resolves through scope lookup, not just the builtin registry")
}

func TestInferTypeForwardsThroughBinaryOperands(t *testing.T) {
	a, b, reg, r := newFixture()
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	mod := b.Module("main", arena.Location{})

	ident := b.Identifier("x", ":", false, mod, arena.Location{})
	a.Find(ident).Payload.(*arena.IdentifierPayload).TypeRef = i32

	sym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "x"}})
	ref := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: sym, Scope: mod, Resolved: ident}})
	lit := b.Int(1, false, arena.Location{})
	bin := b.Binary("+", ref, lit, arena.Location{})

	assert.Equal(t, i32, r.InferType(bin))
}

// declareProcedure builds `name :: proc(params...) {}` with a single
// numeric parameter type shared by every parameter, mirroring the shape
// add_procedure_instance leaves behind: an identifier whose Initializer is
// the procedure_instance, with the instance's scope chained under the
// procedure_type's header scope.
func declareProcedure(a *arena.Arena, b *builder.Builder, mod arena.ElementID, name string, params []string, paramType arena.ElementID) (procType, instance, ident arena.ElementID) {
	procType = b.ProcedureType(mod, arena.Location{})
	for _, p := range params {
		b.AddParameter(procType, p, paramType, arena.Location{})
	}
	instance = b.ProcedureInstance(procType, arena.Location{})
	ident = b.Identifier(name, "::", true, mod, arena.Location{})
	a.Find(ident).Payload.(*arena.IdentifierPayload).Initializer = instance
	return
}

func TestResolveCallsResolvesRecursiveProcedureCall(t *testing.T) {
	a, b, reg, r := newFixture()
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	mod := b.Module("main", arena.Location{})

	procType, instance, _ := declareProcedure(a, b, mod, "fib", []string{"n"}, i32)
	nParam := a.Find(procType).Payload.(*arena.ProcedureTypePayload).Parameters[0]

	calleeSym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "fib"}})
	calleeRef := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: calleeSym, Scope: instance}})

	nSym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "n"}})
	nRef := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: nSym, Scope: instance, Resolved: nParam}})
	lit := b.Int(1, false, arena.Location{})
	arg := b.Binary("-", nRef, lit, arena.Location{})

	argList := a.Add(&arena.CodeElement{Kind: arena.KindArgumentList, Payload: &arena.ArgumentListPayload{Arguments: []arena.ElementID{arg}}})
	call := a.Add(&arena.CodeElement{Kind: arena.KindProcedureCall, Payload: &arena.ProcedureCallPayload{Callee: calleeRef, Arguments: argList}})

	d := &diag.Result{}
	progress := r.ResolveCalls(d)

	require.True(t, progress, "fib -> fib should resolve: §8 scenario 5's recursive call graph")
	cp := a.Find(call).Payload.(*arena.ProcedureCallPayload)
	assert.Equal(t, instance, cp.Resolved)
	assert.Equal(t, []arena.ElementID{instance}, cp.Candidates)
}

func TestResolveCallsLeavesTypeMismatchedCallUnresolved(t *testing.T) {
	a, b, reg, r := newFixture()
	i32 := reg.RegisterNumeric("i32", 4, arena.NumberInteger)
	boolType := reg.RegisterBool()
	mod := b.Module("main", arena.Location{})

	_, instance, _ := declareProcedure(a, b, mod, "fib", []string{"n"}, i32)

	calleeSym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "fib"}})
	calleeRef := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: calleeSym, Scope: instance}})

	flag := b.Identifier("flag", ":", false, mod, arena.Location{})
	a.Find(flag).Payload.(*arena.IdentifierPayload).TypeRef = boolType
	flagSym := a.Add(&arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: "flag"}})
	flagRef := a.Add(&arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: flagSym, Scope: mod, Resolved: flag}})

	argList := a.Add(&arena.CodeElement{Kind: arena.KindArgumentList, Payload: &arena.ArgumentListPayload{Arguments: []arena.ElementID{flagRef}}})
	call := a.Add(&arena.CodeElement{Kind: arena.KindProcedureCall, Payload: &arena.ProcedureCallPayload{Callee: calleeRef, Arguments: argList}})

	d := &diag.Result{}
	progress := r.ResolveCalls(d)

	assert.False(t, progress)
	cp := a.Find(call).Payload.(*arena.ProcedureCallPayload)
	assert.Equal(t, arena.NoElement, cp.Resolved)
	assert.Equal(t, []arena.ElementID{instance}, cp.Candidates, "the candidate is still recorded even though its argument type didn't match")
}
