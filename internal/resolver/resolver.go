// Package resolver implements the fix-point resolver of spec §4.4: unknown
// identifier resolution, unknown type inference, and constant folding,
// interleaved until no pass produces further substitutions.
package resolver

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/scope"
	"github.com/oxhq/basecode/internal/types"
)

// Resolver runs the three interleaved sub-passes over an arena.
type Resolver struct {
	Arena *arena.Arena
	Scope *scope.Graph
	Types *types.Registry
}

// New creates a Resolver over the given arena/scope/type registry.
func New(a *arena.Arena, s *scope.Graph, t *types.Registry) *Resolver {
	return &Resolver{Arena: a, Scope: s, Types: t}
}

// ResolveIdentifiers implements §4.4 sub-pass 1: for each unresolved
// identifier_reference, look up find_identifier using the scope captured
// at reference-creation time, restricting to a composite's field scope
// when the reference is the RHS of a member access on an already-typed
// LHS.
func (r *Resolver) ResolveIdentifiers(diagResult *diag.Result) (progress bool) {
	for _, e := range r.Arena.FindByKind(arena.KindIdentifierReference) {
		p, ok := e.Payload.(*arena.IdentifierReferencePayload)
		if !ok || p.Resolved != arena.NoElement {
			continue
		}
		sym := r.symbolParts(p.Symbol)
		if sym == nil {
			continue
		}
		searchScope := p.Scope
		if restricted := r.memberAccessScope(e.ID); restricted != arena.NoElement {
			searchScope = restricted
		}
		hits := r.Scope.FindIdentifier(sym, searchScope)
		if len(hits) == 0 {
			continue
		}
		p.Resolved = hits[0]
		progress = true
	}
	return progress
}

// memberAccessScope returns the field scope to restrict lookup to, when ref
// is the RHS name of a member_access whose LHS already carries an inferred
// composite type (§4.4 sub-pass 1's restriction clause). It returns
// NoElement when no restriction applies.
func (r *Resolver) memberAccessScope(ref arena.ElementID) arena.ElementID {
	refElem := r.Arena.Find(ref)
	if refElem == nil || refElem.ParentElement == arena.NoElement {
		return arena.NoElement
	}
	parent := r.Arena.Find(refElem.ParentElement)
	if parent == nil || parent.Kind != arena.KindMemberAccess {
		return arena.NoElement
	}
	ma, ok := parent.Payload.(*arena.MemberAccessPayload)
	if !ok {
		return arena.NoElement
	}
	lhsType := r.inferredTypeOf(ma.LHS)
	if lhsType == arena.NoElement {
		return arena.NoElement
	}
	typeElem := r.Arena.Find(lhsType)
	if typeElem == nil {
		return arena.NoElement
	}
	if typeElem.Kind == arena.KindPointerType {
		if pp, ok := typeElem.Payload.(*arena.PointerTypePayload); ok {
			typeElem = r.Arena.Find(pp.Base)
		}
	}
	if typeElem == nil {
		return arena.NoElement
	}
	switch typeElem.Kind {
	case arena.KindStructType, arena.KindUnionType, arena.KindEnumType:
		return typeElem.ID
	default:
		return arena.NoElement
	}
}

// inferredTypeOf returns the best-effort already-known type of id, used only
// to decide whether a member-access restriction applies.
func (r *Resolver) inferredTypeOf(id arena.ElementID) arena.ElementID {
	e := r.Arena.Find(id)
	if e == nil {
		return arena.NoElement
	}
	switch p := e.Payload.(type) {
	case *arena.IdentifierReferencePayload:
		if p.Resolved == arena.NoElement {
			return arena.NoElement
		}
		return r.inferredTypeOf(p.Resolved)
	case *arena.IdentifierPayload:
		return p.TypeRef
	}
	return arena.NoElement
}

func (r *Resolver) symbolParts(symbolID arena.ElementID) []string {
	e := r.Arena.Find(symbolID)
	if e == nil {
		return nil
	}
	sp, ok := e.Payload.(*arena.SymbolPayload)
	if !ok {
		return nil
	}
	return append(append([]string{}, sp.NamespaceParts...), sp.Name)
}

// ResolveTypes implements §4.4 sub-pass 2: for each identifier whose type is
// unknown_type, infer from (a) the initializer's inferred type, (b) the
// unknown type's own symbol lookup, or (c) the RHS type when the parent is
// an assignment binary operator. Unresolved pointer bases recursively
// refine through FindPointerType once their base resolves.
func (r *Resolver) ResolveTypes(diagResult *diag.Result) (progress bool) {
	for _, e := range r.Arena.FindByKind(arena.KindIdentifier) {
		ip, ok := e.Payload.(*arena.IdentifierPayload)
		if !ok {
			continue
		}
		if ip.TypeRef == arena.NoElement {
			continue
		}
		typeElem := r.Arena.Find(ip.TypeRef)
		if typeElem == nil {
			continue
		}
		if typeElem.Kind == arena.KindTypeReference {
			if resolved := r.inferFromTypeReference(typeElem); resolved != arena.NoElement {
				ip.TypeRef = resolved
				progress = true
			}
			continue
		}
		if typeElem.Kind != arena.KindUnknownType {
			continue
		}
		if inferred := r.inferFromInitializer(ip); inferred != arena.NoElement {
			ip.TypeRef = inferred
			progress = true
			continue
		}
		if inferred := r.inferFromSymbol(typeElem); inferred != arena.NoElement {
			ip.TypeRef = inferred
			progress = true
			continue
		}
	}
	return progress
}

// inferFromTypeReference resolves an explicit type annotation (§3.3: "a
// declaration's explicit type is a type_reference by name") to the concrete
// type element it names, searching from the scope the annotation appeared
// in. It also stamps the reference's own Resolved field, since InferType's
// cast handling reads that field directly rather than substituting TypeRef.
func (r *Resolver) inferFromTypeReference(typeElem *arena.CodeElement) arena.ElementID {
	trp, ok := typeElem.Payload.(*arena.TypeReferencePayload)
	if !ok || trp.UnresolvedName == "" {
		return arena.NoElement
	}
	if trp.Resolved != arena.NoElement {
		return trp.Resolved
	}
	if id, ok := r.Types.Lookup(trp.UnresolvedName); ok {
		trp.Resolved = id
		return id
	}
	hits := r.Scope.FindIdentifier([]string{trp.UnresolvedName}, typeElem.ParentScope)
	if len(hits) == 0 {
		return arena.NoElement
	}
	target := r.resolveNamedType(hits[0])
	if target == arena.NoElement {
		return arena.NoElement
	}
	trp.Resolved = target
	return target
}

// resolveNamedType follows a scope hit down to the type element it names: a
// user type declaration (`Point :: struct {...}`) binds the identifier
// itself, so the actual struct/union/enum element sits behind the
// identifier's Initializer (unwrapped one level if it's an initializer
// node, the way declare_identifier wraps constant RHS values).
func (r *Resolver) resolveNamedType(id arena.ElementID) arena.ElementID {
	e := r.Arena.Find(id)
	if e == nil {
		return arena.NoElement
	}
	if e.Kind.IsType() {
		return e.ID
	}
	ip, ok := e.Payload.(*arena.IdentifierPayload)
	if !ok || ip.Initializer == arena.NoElement {
		return arena.NoElement
	}
	init := r.Arena.Find(ip.Initializer)
	if init == nil {
		return arena.NoElement
	}
	if initP, ok := init.Payload.(*arena.InitializerPayload); ok {
		init = r.Arena.Find(initP.Expr)
	}
	if init == nil || !init.Kind.IsType() {
		return arena.NoElement
	}
	return init.ID
}

func (r *Resolver) inferFromInitializer(ip *arena.IdentifierPayload) arena.ElementID {
	if ip.Initializer == arena.NoElement {
		return arena.NoElement
	}
	init := r.Arena.Find(ip.Initializer)
	if init == nil {
		return arena.NoElement
	}
	var exprID arena.ElementID
	if initP, ok := init.Payload.(*arena.InitializerPayload); ok {
		exprID = initP.Expr
	} else {
		exprID = init.ID
	}
	return r.InferType(exprID)
}

func (r *Resolver) inferFromSymbol(unknown *arena.CodeElement) arena.ElementID {
	up, ok := unknown.Payload.(*arena.UnknownTypePayload)
	if !ok || up.Hint == "" {
		return arena.NoElement
	}
	hits := r.Scope.FindIdentifier([]string{up.Hint}, unknown.ParentScope)
	if len(hits) == 0 {
		return arena.NoElement
	}
	return r.resolveNamedType(hits[0])
}

// --- Call overload resolution (§4.5) ---------------------------------------

// ResolveCalls implements §4.5: for each unresolved procedure_call, every
// procedure_instance bound under the callee's name in its captured scope is
// scored against the call's arguments, and the lowest-cost match wins. A
// call left unresolved here (no candidate matches, or two tie for lowest
// cost) is reattempted on the next fixpoint iteration and, if still
// unresolved once the session's final pass runs, reported as a fatal X000.
func (r *Resolver) ResolveCalls(diagResult *diag.Result) (progress bool) {
	for _, e := range r.Arena.FindByKind(arena.KindProcedureCall) {
		p, ok := e.Payload.(*arena.ProcedureCallPayload)
		if !ok || p.Resolved != arena.NoElement {
			continue
		}
		winner, candidates, ambiguous := r.ResolveOverload(e)
		if len(candidates) > 0 {
			p.Candidates = candidates
		}
		if ambiguous || winner == arena.NoElement {
			continue
		}
		p.Resolved = winner
		progress = true
	}
	return progress
}

// ResolveOverload collects every procedure_instance bound to call's callee
// symbol in its captured scope and scores each against the call's argument
// list (§4.5: positional/named matching, literal coercion, variadic
// expansion, conversion cost). winner is NoElement when no candidate's
// arguments are compatible; ambiguous is true when two or more candidates
// tie for the lowest cost. The session's final resolution pass calls this
// directly (bypassing ResolveCalls' progress bookkeeping) to produce the
// fatal diagnostic's exact reason once fixpoint settles.
func (r *Resolver) ResolveOverload(call *arena.CodeElement) (winner arena.ElementID, candidates []arena.ElementID, ambiguous bool) {
	p, ok := call.Payload.(*arena.ProcedureCallPayload)
	if !ok {
		return arena.NoElement, nil, false
	}
	calleeElem := r.Arena.Find(p.Callee)
	if calleeElem == nil {
		return arena.NoElement, nil, false
	}
	crp, ok := calleeElem.Payload.(*arena.IdentifierReferencePayload)
	if !ok {
		return arena.NoElement, nil, false
	}
	sym := r.symbolParts(crp.Symbol)
	if sym == nil {
		return arena.NoElement, nil, false
	}
	for _, hit := range r.Scope.FindIdentifier(sym, crp.Scope) {
		if inst := r.procedureInstanceOf(hit); inst != arena.NoElement {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		return arena.NoElement, nil, false
	}

	args := r.callArguments(p.Arguments)
	bestCost := -1
	for _, c := range candidates {
		cost, matched := r.scoreOverload(c, args)
		if !matched {
			continue
		}
		switch {
		case bestCost < 0 || cost < bestCost:
			bestCost, winner, ambiguous = cost, c, false
		case cost == bestCost:
			ambiguous = true
		}
	}
	return winner, candidates, ambiguous
}

// procedureInstanceOf follows a scope hit down to the procedure_instance it
// names, unwrapping one Initializer level exactly like resolveNamedType
// does for named types: `fib :: proc(...) {...}` binds the identifier, with
// the actual procedure_instance sitting behind its Initializer.
func (r *Resolver) procedureInstanceOf(id arena.ElementID) arena.ElementID {
	e := r.Arena.Find(id)
	if e == nil {
		return arena.NoElement
	}
	if e.Kind == arena.KindProcedureInstance {
		return e.ID
	}
	ip, ok := e.Payload.(*arena.IdentifierPayload)
	if !ok || ip.Initializer == arena.NoElement {
		return arena.NoElement
	}
	init := r.Arena.Find(ip.Initializer)
	if init == nil {
		return arena.NoElement
	}
	if initP, ok := init.Payload.(*arena.InitializerPayload); ok {
		init = r.Arena.Find(initP.Expr)
	}
	if init == nil || init.Kind != arena.KindProcedureInstance {
		return arena.NoElement
	}
	return init.ID
}

// callArguments reads a procedure_call's argument_list into a flat
// ElementID slice; each element is either a plain expression (positional)
// or an argument_pair (named).
func (r *Resolver) callArguments(argsID arena.ElementID) []arena.ElementID {
	e := r.Arena.Find(argsID)
	if e == nil {
		return nil
	}
	ap, ok := e.Payload.(*arena.ArgumentListPayload)
	if !ok {
		return nil
	}
	return ap.Arguments
}

// scoreOverload matches args against candidate's declared parameters
// (§4.5): named arguments bind by parameter name, positional arguments fill
// whichever parameters remain unbound in declaration order, and a trailing
// variadic parameter absorbs any positional arguments left over. Every
// required, non-variadic parameter must end up bound or the candidate is
// disqualified; each bound argument then contributes a conversion cost, and
// any argument that cannot convert to its parameter's type disqualifies the
// whole candidate.
func (r *Resolver) scoreOverload(candidate arena.ElementID, args []arena.ElementID) (cost int, ok bool) {
	ce := r.Arena.Find(candidate)
	if ce == nil {
		return 0, false
	}
	pip, isInst := ce.Payload.(*arena.ProcedureInstancePayload)
	if !isInst {
		return 0, false
	}
	tpElem := r.Arena.Find(pip.ProcedureType)
	if tpElem == nil {
		return 0, false
	}
	tp, isProcType := tpElem.Payload.(*arena.ProcedureTypePayload)
	if !isProcType {
		return 0, false
	}

	bound := make(map[int]arena.ElementID, len(tp.Parameters))
	var overflow []arena.ElementID // positional args past a variadic tail
	var positional []arena.ElementID

	for _, argID := range args {
		argElem := r.Arena.Find(argID)
		if argElem == nil {
			return 0, false
		}
		if pair, isPair := argElem.Payload.(*arena.ArgumentPairPayload); isPair {
			idx := r.paramIndexByName(tp, pair.Name)
			if idx < 0 {
				return 0, false
			}
			bound[idx] = pair.Value
			continue
		}
		positional = append(positional, argID)
	}

	lastRegular := len(tp.Parameters)
	if tp.IsVariadic && lastRegular > 0 {
		lastRegular--
	}

	next := 0
	for _, argID := range positional {
		for next < lastRegular {
			if _, taken := bound[next]; !taken {
				break
			}
			next++
		}
		if next >= lastRegular {
			if !tp.IsVariadic {
				return 0, false
			}
			overflow = append(overflow, argID)
			continue
		}
		bound[next] = argID
		next++
	}

	for i := 0; i < lastRegular; i++ {
		if _, taken := bound[i]; !taken {
			return 0, false
		}
	}

	for idx, argID := range bound {
		c, matched := r.conversionCost(r.paramTypeRef(tp.Parameters[idx]), argID)
		if !matched {
			return 0, false
		}
		cost += c
	}
	if tp.IsVariadic && len(tp.Parameters) > 0 {
		variadicType := r.variadicElementType(tp.Parameters[len(tp.Parameters)-1])
		for _, argID := range overflow {
			c, matched := r.conversionCost(variadicType, argID)
			if !matched {
				return 0, false
			}
			cost += c
		}
	}
	return cost, true
}

func (r *Resolver) paramIndexByName(tp *arena.ProcedureTypePayload, name string) int {
	for i, id := range tp.Parameters {
		if e := r.Arena.Find(id); e != nil {
			if ip, ok := e.Payload.(*arena.IdentifierPayload); ok && ip.Name == name {
				return i
			}
		}
	}
	return -1
}

func (r *Resolver) paramTypeRef(paramID arena.ElementID) arena.ElementID {
	e := r.Arena.Find(paramID)
	if e == nil {
		return arena.NoElement
	}
	ip, ok := e.Payload.(*arena.IdentifierPayload)
	if !ok {
		return arena.NoElement
	}
	return ip.TypeRef
}

// variadicElementType returns the type each extra variadic argument is
// checked against: an array-typed variadic parameter checks against its
// element type, anything else checks against the parameter's own type.
func (r *Resolver) variadicElementType(paramID arena.ElementID) arena.ElementID {
	typeID := r.paramTypeRef(paramID)
	if typeID == arena.NoElement {
		return arena.NoElement
	}
	if te := r.Arena.Find(typeID); te != nil {
		if ap, ok := te.Payload.(*arena.ArrayTypePayload); ok {
			return ap.Base
		}
	}
	return typeID
}

// conversionCost returns the §4.5 conversion cost of binding argID to a
// parameter typed paramType: 0 for an exact type match or when either side
// hasn't resolved yet (left for the type-check phase to settle, and for
// literal arguments InferType never types so this is also where literal
// coercion is free), 1 for any narrowing/widening TypeCheck accepts, and
// matched=false when neither side is unknown and TypeCheck still rejects
// the pairing.
func (r *Resolver) conversionCost(paramType, argID arena.ElementID) (cost int, matched bool) {
	argType := r.InferType(argID)
	if paramType == arena.NoElement || argType == arena.NoElement {
		return 0, true
	}
	if paramType == argType {
		return 0, true
	}
	if r.Types.TypeCheck(paramType, argType, false) {
		return 1, true
	}
	return 0, false
}

// InferType is the minimal type inference used by both the resolver and the
// emitter: literals carry their obvious type, references forward their
// resolved identifier's type, binary/unary forward an operand's type.
func (r *Resolver) InferType(id arena.ElementID) arena.ElementID {
	e := r.Arena.Find(id)
	if e == nil {
		return arena.NoElement
	}
	switch e.Kind {
	case arena.KindIdentifierReference:
		p := e.Payload.(*arena.IdentifierReferencePayload)
		if p.Resolved == arena.NoElement {
			return arena.NoElement
		}
		if target, ok := r.Arena.Find(p.Resolved).Payload.(*arena.IdentifierPayload); ok {
			return target.TypeRef
		}
	case arena.KindBinary:
		p := e.Payload.(*arena.BinaryPayload)
		if t := r.InferType(p.LHS); t != arena.NoElement {
			return t
		}
		return r.InferType(p.RHS)
	case arena.KindUnary:
		p := e.Payload.(*arena.UnaryPayload)
		return r.InferType(p.Operand)
	case arena.KindCast:
		p := e.Payload.(*arena.CastPayload)
		if ref, ok := r.Arena.Find(p.TypeRef).Payload.(*arena.TypeReferencePayload); ok {
			return ref.Resolved
		}
	}
	return arena.NoElement
}
