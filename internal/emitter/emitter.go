package emitter

import (
	"fmt"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/image"
	"github.com/oxhq/basecode/internal/intern"
	"github.com/oxhq/basecode/internal/resolver"
	"github.com/oxhq/basecode/internal/scope"
	"github.com/oxhq/basecode/internal/types"
	"github.com/oxhq/basecode/internal/varmap"
)

// Result is the emit_element contract's return value (§4.8): the operand
// representing the element's value, its inferred type, and any temporaries
// the caller must release if it doesn't consume them further.
type Result struct {
	Operand Operand
	Type    arena.ElementID
	Temps   []string
}

// flowFrame is one entry of the break/continue label stack; Fallthrough
// flips when a `fallthrough` statement targets the current case.
type flowFrame struct {
	BreakLabel    string
	ContinueLabel string
	Fallthrough   bool
}

// Emitter walks the CodeDOM post-order, producing basic blocks and
// maintaining the variable map and temporary-register pool for whichever
// frame (procedure body or module top level) it is currently emitting.
type Emitter struct {
	Arena    *arena.Arena
	Types    *types.Registry
	Scope    *scope.Graph
	Resolver *resolver.Resolver
	Interns  *intern.Map
	Diag     *diag.Result

	Blocks []*BasicBlock

	current   *BasicBlock
	blockSeq  int
	currentVM *varmap.Map
	ownerProc arena.ElementID
	regs      map[arena.ElementID]string // variable id -> temp currently holding its value

	flow []*flowFrame

	// blockStack is the chain of currently-open block elements (outermost
	// first), used so an early return can drain every enclosing block's
	// defer stack, not just its own (§3.2/§9).
	blockStack []arena.ElementID

	graph *CallGraph
}

// New creates an Emitter over the given arena/type registry/resolver.
func New(a *arena.Arena, t *types.Registry, s *scope.Graph, r *resolver.Resolver, interns *intern.Map, d *diag.Result) *Emitter {
	return &Emitter{
		Arena: a, Types: t, Scope: s, Resolver: r, Interns: interns, Diag: d,
		regs:  make(map[arena.ElementID]string),
		graph: newCallGraph(),
	}
}

// sectionSpec pairs a section with the alignment its blocks should start on.
type sectionSpec struct {
	Section image.Section
	Align   int
}

func textSection() sectionSpec { return sectionSpec{Section: image.SectionText, Align: 1} }

// newBlock allocates a fresh basic block with a unique label if label is
// empty, registers it, and returns it without switching current.
func (e *Emitter) newBlock(label string, section sectionSpec) *BasicBlock {
	if label == "" {
		label = fmt.Sprintf("_bb%d", e.blockSeq)
	}
	e.blockSeq++
	b := &BasicBlock{Label: label, Section: section.Section, Align: section.Align, OwnerProc: e.ownerProc}
	e.Blocks = append(e.Blocks, b)
	return b
}

func (e *Emitter) errAt(loc arena.Location, code diag.Code, format string, args ...any) {
	e.Diag.Errorf(code, diag.Location{Module: loc.Module, Line: int(loc.Start.Row) + 1, Column: int(loc.Start.Column) + 1}, format, args...)
}

// EmitProcedureBody sets up the variable map for procType/body and emits
// body's statements into a fresh block chain, returning the entry block.
func (e *Emitter) EmitProcedureBody(procInstance, procType, body arena.ElementID) *BasicBlock {
	e.ownerProc = procInstance
	e.currentVM = varmap.New(e.Arena, e.Types)
	if err := e.currentVM.Build(body, procType); err != nil {
		e.Diag.Errorf(diag.X000, diag.Location{}, "emitter: %v", err)
	}
	e.regs = make(map[arena.ElementID]string)
	e.blockStack = nil

	entry := e.newBlock(procLabel(e.Arena, procInstance)+"_entry", textSection())
	e.current = entry
	e.emitBlockBody(body)
	e.ownerProc = arena.NoElement
	return entry
}

// emitBlockBody emits every statement of a block element in source order,
// then drains the block's own defer stack before returning to the caller
// (§3.2/§9: "at end-of-block emission, drain in reverse insertion order
// before emitting the block epilogue"). An early return inside this block
// drains it too (see emitReturn); DrainDefers empties the stack so that
// doesn't double-emit here.
func (e *Emitter) emitBlockBody(blockID arena.ElementID) {
	bp := scope.BlockPayload(e.Arena.Find(blockID))
	if bp == nil {
		return
	}
	e.blockStack = append(e.blockStack, blockID)
	for _, stmt := range bp.Statements {
		e.EmitElement(stmt)
	}
	e.drainDefers(bp)
	e.blockStack = e.blockStack[:len(e.blockStack)-1]
}

// drainDefers emits bp's deferred expressions in reverse-push order,
// releasing any temporaries each one produces.
func (e *Emitter) drainDefers(bp *arena.BlockPayload) {
	for _, id := range bp.DrainDefers() {
		if res, ok := e.EmitElement(id); ok {
			e.release(res)
		}
	}
}

// EmitElement implements the emit_element contract (§4.8): infer type,
// produce operands for children post-order, emit the instruction, and
// report temporaries the caller should release if unused.
func (e *Emitter) EmitElement(id arena.ElementID) (Result, bool) {
	el := e.Arena.Find(id)
	if el == nil {
		return Result{}, false
	}
	switch el.Kind {
	case arena.KindInt:
		p := el.Payload.(*arena.IntPayload)
		return Result{Operand: Operand{Kind: OperandImmediateInt, ImmInt: p.Value}}, true
	case arena.KindFloat:
		p := el.Payload.(*arena.FloatPayload)
		return Result{Operand: Operand{Kind: OperandImmediateFloat, ImmFloat: p.Value}}, true
	case arena.KindBool:
		p := el.Payload.(*arena.BoolPayload)
		v := int64(0)
		if p.Value {
			v = 1
		}
		return Result{Operand: Operand{Kind: OperandImmediateInt, ImmInt: v}}, true
	case arena.KindCharacter:
		p := el.Payload.(*arena.CharacterPayload)
		return Result{Operand: Operand{Kind: OperandImmediateInt, ImmInt: int64(p.Value)}}, true
	case arena.KindString:
		p := el.Payload.(*arena.StringPayload)
		if p.InternID < 0 {
			p.InternID = e.Interns.Intern(p.Value)
		}
		return Result{Operand: Operand{Kind: OperandLabel, Label: intern.DataLabel(p.InternID)}}, true
	case arena.KindIdentifierReference:
		return e.emitIdentifierRef(el)
	case arena.KindBinary:
		return e.emitBinary(el)
	case arena.KindUnary:
		return e.emitUnary(el)
	case arena.KindCast:
		return e.emitCast(el)
	case arena.KindSubscript:
		return e.emitSubscript(el)
	case arena.KindMemberAccess:
		return e.emitMemberAccess(el)
	case arena.KindIf:
		return Result{}, e.emitIf(el)
	case arena.KindWhile:
		return Result{}, e.emitWhile(el)
	case arena.KindFor:
		return Result{}, e.emitFor(el)
	case arena.KindReturn:
		return Result{}, e.emitReturn(el)
	case arena.KindBreak:
		return Result{}, e.emitBreakContinue(el, true)
	case arena.KindContinue:
		return Result{}, e.emitBreakContinue(el, false)
	case arena.KindBlock:
		e.emitBlockBody(el.ID)
		return Result{}, true
	case arena.KindIdentifier:
		return e.emitIdentifierDecl(el)
	case arena.KindProcedureCall:
		return e.emitCall(el)
	case arena.KindSwitch:
		return Result{}, e.emitSwitch(el)
	case arena.KindFallthrough:
		return Result{}, e.emitFallthrough(el)
	case arena.KindDefer, arena.KindCase:
		// Defer is drained at block-exit (emitBlockBody/emitReturn), never
		// emitted in its textual position; case bodies are emitted directly
		// by emitSwitch. Reaching either here means nothing further to do.
		return Result{}, true
	default:
		return Result{}, true
	}
}

func (e *Emitter) release(r Result) {
	for _, t := range r.Temps {
		e.currentVM.ReleaseTemp(t)
	}
}

// --- identifiers & variable load/store (§4.7 per-use state machine) --------

func (e *Emitter) emitIdentifierRef(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.IdentifierReferencePayload)
	if p.Resolved == arena.NoElement {
		e.errAt(el.Location, diag.P004, "unresolved identifier reference")
		return Result{}, false
	}
	return e.loadVariable(p.Resolved), true
}

func (e *Emitter) loadVariable(varID arena.ElementID) Result {
	v := e.currentVM.Get(varID)
	if v == nil {
		// Module-scope variable not yet tracked by the current procedure's
		// varmap; address it directly by label without a load.
		ident := e.Arena.Find(varID)
		name := ""
		if ip, ok := ident.Payload.(*arena.IdentifierPayload); ok {
			name = ip.Name
		}
		return Result{Operand: Operand{Kind: OperandModule, Label: name}}
	}
	action := e.currentVM.Use(varID, false)
	mem := e.variableOperand(v)
	switch action {
	case varmap.ActionInit, varmap.ActionFill:
		reg := e.currentVM.RetainTemp(v.NumberClass)
		e.regs[varID] = reg
		e.current.Emit(Instruction{Op: "load", Dst: Operand{Kind: OperandTemp, Temp: reg}, Src1: mem, Comment: v.Label})
		return Result{Operand: Operand{Kind: OperandTemp, Temp: reg}, Type: arena.NoElement, Temps: []string{reg}}
	default:
		reg := e.regs[varID]
		return Result{Operand: Operand{Kind: OperandTemp, Temp: reg}}
	}
}

func (e *Emitter) variableOperand(v *varmap.Variable) Operand {
	switch v.Kind {
	case varmap.KindModule:
		return Operand{Kind: OperandModule, Label: v.ModuleLabel, Size: v.SizeInBytes}
	default:
		return Operand{Kind: OperandFrame, Offset: v.Offset, Size: v.SizeInBytes}
	}
}

// emitIdentifierDecl handles a declaration statement reached directly (not
// through the synthetic-assignment binary path): a constant declaration has
// nothing to emit at runtime; a non-constant declaration without an
// initializer reserves storage only.
func (e *Emitter) emitIdentifierDecl(el *arena.CodeElement) (Result, bool) {
	ip := el.Payload.(*arena.IdentifierPayload)
	if ip.IsConstant || ip.Initializer == arena.NoElement {
		return Result{}, true
	}
	init := e.Arena.Find(ip.Initializer)
	if init == nil {
		return Result{}, true
	}
	if init.Kind == arena.KindBinary {
		// Synthetic assignment built by declare_identifier: emit it directly.
		_, ok := e.EmitElement(init.ID)
		return Result{}, ok
	}
	// Constant-expression initializer: unwrap the initializer element's
	// expr and store it once.
	exprID := init.ID
	if ip, ok := init.Payload.(*arena.InitializerPayload); ok {
		exprID = ip.Expr
	}
	rhs, ok := e.EmitElement(exprID)
	if !ok {
		return Result{}, false
	}
	rhs.Type = e.Resolver.InferType(exprID)
	e.storeVariable(el.ID, rhs)
	return Result{}, true
}

// storeVariable implements the write half of §4.7's state machine: a
// composite-typed destination takes the byte-wise copy path and clears
// Filled on every alias; a scalar destination takes the spill path.
func (e *Emitter) storeVariable(varID arena.ElementID, rhs Result) {
	v := e.currentVM.Get(varID)
	if v == nil {
		return
	}
	e.currentVM.Use(varID, true)
	mem := e.variableOperand(v)
	if e.isCompositeType(rhs.Type) {
		e.current.Emit(Instruction{Op: "copy", Dst: mem, Src1: rhs.Operand, Comment: v.Label})
		e.currentVM.CompositeWrite(varID)
		return
	}
	if sameOperand(mem, rhs.Operand) {
		return
	}
	e.current.Emit(Instruction{Op: "spill", Dst: mem, Src1: rhs.Operand, Comment: v.Label})
	e.currentVM.Spill(varID)
	// rhs's register becomes the variable's cached value; it is not
	// released to the temp pool while regs still points at it.
	if rhs.Operand.Kind == OperandTemp {
		e.regs[varID] = rhs.Operand.Temp
	}
}

func (e *Emitter) isCompositeType(typeID arena.ElementID) bool {
	te := e.Arena.Find(typeID)
	if te == nil {
		return false
	}
	switch te.Kind {
	case arena.KindStructType, arena.KindUnionType, arena.KindArrayType:
		return true
	default:
		return false
	}
}
