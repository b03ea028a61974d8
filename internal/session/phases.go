package session

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/image"
	"github.com/oxhq/basecode/internal/varmap"
)

// typeCheck implements phase 7: every declared identifier with both a
// resolved (non-unknown) type and a constant initializer must type-check
// against its initializer's inferred type, non-strict (§3.3 narrowing
// rules); a mismatch raises C051. Identifiers whose type or initializer
// hasn't resolved yet are left for resolver pass C / the next session run.
func (s *Session) typeCheck() {
	for _, e := range s.Arena.FindByKind(arena.KindIdentifier) {
		ip := e.Payload.(*arena.IdentifierPayload)
		if ip.Initializer == arena.NoElement || ip.TypeRef == arena.NoElement {
			continue
		}
		declType := s.Arena.Find(ip.TypeRef)
		if declType == nil || declType.Kind == arena.KindUnknownType {
			continue
		}
		exprID := s.initializerExpr(ip.Initializer)
		if exprID == arena.NoElement {
			continue
		}
		exprType := s.Resolver.InferType(exprID)
		if exprType == arena.NoElement {
			continue
		}
		if !s.Types.TypeCheck(declType.ID, exprType, false) {
			s.Diag.Errorf(diag.C051, diag.Location{Module: e.Location.Module, Line: int(e.Location.Start.Row) + 1, Column: int(e.Location.Start.Column) + 1},
				"type mismatch initializing %s", ip.Name)
		}
	}
}

func (s *Session) initializerExpr(initID arena.ElementID) arena.ElementID {
	init := s.Arena.Find(initID)
	if init == nil {
		return arena.NoElement
	}
	if ip, ok := init.Payload.(*arena.InitializerPayload); ok {
		return ip.Expr
	}
	return init.ID
}

// finalTypeResolution implements phase 8: a last, final types resolution
// pass; any identifier whose type is still unknown_type afterward is a
// fatal P019, and any identifier_reference still unresolved is a fatal
// P004 (§4.9 phase 8, §4: "the resolver loops at most three times for
// types... after the final pass any still-unresolved identifier or
// unknown type is a fatal error"). A final call_resolution retry, now over
// the types settled by this pass, handles a procedure_call whose argument
// types only resolved once its siblings did; any call still unresolved
// afterward is a fatal X000 (§4.5 "zero matching candidates is X000").
func (s *Session) finalTypeResolution() {
	s.runToFixpoint(s.Resolver.ResolveTypes)

	for _, e := range s.Arena.FindByKind(arena.KindIdentifier) {
		ip := e.Payload.(*arena.IdentifierPayload)
		if ip.TypeRef == arena.NoElement {
			continue
		}
		if t := s.Arena.Find(ip.TypeRef); t != nil && t.Kind == arena.KindUnknownType {
			s.Diag.Errorf(diag.P019, locOfElem(e), "cannot infer type of %s", ip.Name)
		}
	}
	for _, e := range s.Arena.FindByKind(arena.KindIdentifierReference) {
		p := e.Payload.(*arena.IdentifierReferencePayload)
		if p.Resolved == arena.NoElement {
			s.Diag.Errorf(diag.P004, locOfElem(e), "unresolvable identifier")
		}
	}

	s.runToFixpoint(s.Resolver.ResolveCalls)
	for _, e := range s.Arena.FindByKind(arena.KindProcedureCall) {
		p := e.Payload.(*arena.ProcedureCallPayload)
		if p.Resolved != arena.NoElement {
			continue
		}
		_, candidates, ambiguous := s.Resolver.ResolveOverload(e)
		switch {
		case ambiguous:
			s.Diag.Errorf(diag.X000, locOfElem(e), "ambiguous call: multiple overloads match with equal cost")
		case len(candidates) == 0:
			s.Diag.Errorf(diag.X000, locOfElem(e), "no matching overload for call")
		default:
			s.Diag.Errorf(diag.X000, locOfElem(e), "no overload accepts the given arguments")
		}
	}
}

func locOfElem(e *arena.CodeElement) diag.Location {
	return diag.Location{Module: e.Location.Module, Line: int(e.Location.Start.Row) + 1, Column: int(e.Location.Start.Column) + 1}
}

// emitBytecode implements phase 9: every implicit module block is emitted,
// then every procedure_instance transitively reachable from mainModule's
// `main` is emitted. mainModule's `_start`/`_end` pair records the
// module-root call site the reachability walk (§4.8) starts from.
func (s *Session) emitBytecode(mainModule string) {
	moduleVarmaps := make([]*varmap.Map, 0, len(s.moduleIDs))
	for _, moduleID := range s.moduleIDs {
		_, vm := s.Emitter.EmitModuleBlock(moduleID)
		moduleVarmaps = append(moduleVarmaps, vm)
	}
	s.moduleVarmaps = moduleVarmaps

	mainID := s.findProcedure(mainModule, "main")
	if mainID == arena.NoElement {
		s.Diag.Errorf(diag.C021, diag.Location{Module: mainModule}, "module not found or has no main procedure")
		return
	}
	s.Emitter.EmitStartEnd(mainID)

	for _, instPayload := range s.Arena.FindByKind(arena.KindProcedureInstance) {
		pip := instPayload.Payload.(*arena.ProcedureInstancePayload)
		s.Emitter.EmitProcedureBody(instPayload.ID, pip.ProcedureType, instPayload.ID)
	}
}

// findProcedure resolves name at modulePath's root scope to a
// procedure_instance id, unwrapping the identifier's constant initializer.
func (s *Session) findProcedure(modulePath, name string) arena.ElementID {
	var moduleID arena.ElementID = arena.NoElement
	for _, id := range s.moduleIDs {
		if el := s.Arena.Find(id); el != nil {
			if mp, ok := el.Payload.(*arena.ModulePayload); ok && mp.Path == modulePath {
				moduleID = id
				break
			}
		}
	}
	if moduleID == arena.NoElement {
		return arena.NoElement
	}
	hits := s.Scope.FindIdentifier([]string{name}, moduleID)
	if len(hits) == 0 {
		return arena.NoElement
	}
	ident := s.Arena.Find(hits[0])
	if ident == nil {
		return arena.NoElement
	}
	ip, ok := ident.Payload.(*arena.IdentifierPayload)
	if !ok || ip.Initializer == arena.NoElement {
		return arena.NoElement
	}
	exprID := s.initializerExpr(ip.Initializer)
	if expr := s.Arena.Find(exprID); expr != nil && expr.Kind == arena.KindProcedureInstance {
		return expr.ID
	}
	return arena.NoElement
}

// assemble implements phase 10: flatten the emitted block graph and every
// module varmap's classified storage into the final image (§6.3).
func (s *Session) assemble() *image.Image {
	return s.Emitter.Assemble(s.moduleVarmaps)
}

// executeDirectives implements phase 11. The VM terp/assembler that would
// actually run `run` directives is a non-goal of this module (§1); `assert`
// directives are checked against their already-folded constant argument,
// and `type`/unrecognized directives are recorded as a no-op task for the
// session-task tree.
func (s *Session) executeDirectives() {
	for _, e := range s.Arena.FindByKind(arena.KindDirective) {
		p := e.Payload.(*arena.DirectivePayload)
		switch p.Name {
		case "assert":
			s.executeAssert(e, p)
		default:
			s.Tasks = append(s.Tasks, Task{Name: "directive:" + p.Name, Category: "directive"})
		}
	}
}

func (s *Session) executeAssert(e *arena.CodeElement, p *arena.DirectivePayload) {
	args := s.Arena.Find(p.Arguments)
	if args == nil {
		s.Diag.Errorf(diag.P044, locOfElem(e), "assert: missing condition")
		return
	}
	ap, ok := args.Payload.(*arena.ArgumentListPayload)
	if !ok || len(ap.Arguments) == 0 {
		s.Diag.Errorf(diag.P044, locOfElem(e), "assert: missing condition")
		return
	}
	cond := s.Arena.Find(ap.Arguments[0])
	if cond == nil || cond.Kind != arena.KindBool {
		s.Diag.Errorf(diag.P044, locOfElem(e), "assert: condition did not fold to a constant boolean")
		return
	}
	if !cond.Payload.(*arena.BoolPayload).Value {
		s.Diag.Errorf(diag.P044, locOfElem(e), "assertion failed")
	}
}
