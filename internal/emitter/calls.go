package emitter

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/varmap"
)

// CallGraph records caller->callee edges discovered at emission time and
// answers reachability queries from a set of root call sites (§4.8:
// "only procedures transitively called from a module-root call site are
// emitted").
type CallGraph struct {
	edges map[arena.ElementID][]arena.ElementID
	roots []arena.ElementID
}

func newCallGraph() *CallGraph {
	return &CallGraph{edges: make(map[arena.ElementID][]arena.ElementID)}
}

func (g *CallGraph) addEdge(caller, callee arena.ElementID) {
	if caller == arena.NoElement {
		g.roots = append(g.roots, callee)
		return
	}
	g.edges[caller] = append(g.edges[caller], callee)
}

// Reachable returns the set of procedure_instance ids transitively reachable
// from the recorded module-root call sites.
func (g *CallGraph) Reachable() map[arena.ElementID]bool {
	visited := make(map[arena.ElementID]bool)
	var walk func(arena.ElementID)
	walk = func(id arena.ElementID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, callee := range g.edges[id] {
			walk(callee)
		}
	}
	for _, root := range g.roots {
		walk(root)
	}
	return visited
}

func procLabel(a *arena.Arena, procInstance arena.ElementID) string {
	el := a.Find(procInstance)
	if el == nil {
		return "proc_unknown"
	}
	pip, ok := el.Payload.(*arena.ProcedureInstancePayload)
	if !ok {
		return "proc_unknown"
	}
	tref := a.Find(pip.ProcedureType)
	if tref == nil {
		return "proc_unknown"
	}
	h, ok := tref.Payload.(*arena.ProcedureTypePayload)
	if !ok {
		return "proc_unknown"
	}
	sym := a.Find(h.TypeHeader.Symbol)
	if sym == nil {
		return "proc_unknown"
	}
	if sp, ok := sym.Payload.(*arena.SymbolPayload); ok {
		return sp.Name
	}
	return "proc_unknown"
}

// emitCall lowers a procedure_call into the prologue/call/epilogue sequence
// of §4.8: save live locals, push arguments right-to-left, reserve
// return-tuple space, call, then reload return values and restore locals in
// reverse save order.
func (e *Emitter) emitCall(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.ProcedureCallPayload)
	e.graph.addEdge(e.ownerProc, p.Resolved)

	var argVals []Result
	if args := e.Arena.Find(p.Arguments); args != nil {
		if ap, ok := args.Payload.(*arena.ArgumentListPayload); ok {
			for _, argID := range ap.Arguments {
				v, ok := e.EmitElement(argID)
				if !ok {
					return Result{}, false
				}
				argVals = append(argVals, v)
			}
		}
	}

	var groups []varmap.Group
	if e.currentVM != nil {
		groups = e.currentVM.GroupVariables(nil)
		for _, grp := range groups {
			e.current.Emit(Instruction{Op: "pushm", Comment: grp.Class.String()})
		}
	}

	for i := len(argVals) - 1; i >= 0; i-- {
		e.current.Emit(Instruction{Op: "push", Src1: argVals[i].Operand})
		e.release(argVals[i])
	}

	calleeLabel := procLabel(e.Arena, p.Resolved)
	e.current.Emit(Instruction{Op: "reserve_return"})
	e.current.Emit(Instruction{Op: "call", Dst: Operand{Kind: OperandLabel, Label: calleeLabel}})

	retTemp := ""
	if e.currentVM != nil {
		retTemp = e.currentVM.RetainTemp(arena.NumberInteger)
		e.current.Emit(Instruction{Op: "load_return", Dst: Operand{Kind: OperandTemp, Temp: retTemp}})
	}

	for i := len(groups) - 1; i >= 0; i-- {
		e.current.Emit(Instruction{Op: "popm", Comment: groups[i].Class.String()})
	}
	return Result{Operand: Operand{Kind: OperandTemp, Temp: retTemp}, Temps: []string{retTemp}}, true
}
