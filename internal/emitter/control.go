package emitter

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/scope"
)

// emitIf implements §4.8's four-block if lowering: predicate, true, false,
// exit. The predicate's zero-branch jumps to false (or exit, with no else);
// the true branch falls through to exit unless it already returned.
func (e *Emitter) emitIf(el *arena.CodeElement) bool {
	p := el.Payload.(*arena.IfPayload)
	cond, ok := e.EmitElement(p.Predicate)
	if !ok {
		return false
	}
	trueBlock := e.newBlock("", textSection())
	exitBlock := e.newBlock("", textSection())

	var falseTarget *BasicBlock
	if p.FalseBlock != arena.NoElement {
		falseTarget = e.newBlock("", textSection())
	} else {
		falseTarget = exitBlock
	}
	e.current.JumpIfZero(cond.Operand, falseTarget)
	e.current.Succs = append(e.current.Succs, trueBlock)
	trueBlock.Preds = append(trueBlock.Preds, e.current)
	e.release(cond)

	e.current = trueBlock
	e.EmitElement(p.TrueBlock)
	e.current.Jump(exitBlock)

	if p.FalseBlock != arena.NoElement {
		e.current = falseTarget
		e.EmitElement(p.FalseBlock)
		e.current.Jump(exitBlock)
	}

	e.current = exitBlock
	return true
}

// emitWhile implements the predicate/body/exit lowering, pushing a
// flowFrame so nested break/continue statements resolve their targets.
func (e *Emitter) emitWhile(el *arena.CodeElement) bool {
	p := el.Payload.(*arena.WhilePayload)
	predBlock := e.newBlock("", textSection())
	bodyBlock := e.newBlock("", textSection())
	exitBlock := e.newBlock("", textSection())

	e.current.Jump(predBlock)
	e.current = predBlock
	cond, ok := e.EmitElement(p.Predicate)
	if !ok {
		return false
	}
	e.current.JumpIfZero(cond.Operand, exitBlock)
	e.current.Succs = append(e.current.Succs, bodyBlock)
	bodyBlock.Preds = append(bodyBlock.Preds, e.current)
	e.release(cond)

	e.flow = append(e.flow, &flowFrame{BreakLabel: exitBlock.Label, ContinueLabel: predBlock.Label})
	e.current = bodyBlock
	e.EmitElement(p.Body)
	e.current.Jump(predBlock)
	e.flow = e.flow[:len(e.flow)-1]

	e.current = exitBlock
	return true
}

// emitFor implements the init/predicate/body/step/exit lowering the
// evaluator's for_in desugaring (§4.3) hands the emitter.
func (e *Emitter) emitFor(el *arena.CodeElement) bool {
	p := el.Payload.(*arena.ForPayload)
	if _, ok := e.EmitElement(p.Init); !ok {
		return false
	}

	predBlock := e.newBlock("", textSection())
	bodyBlock := e.newBlock("", textSection())
	stepBlock := e.newBlock("", textSection())
	exitBlock := e.newBlock("", textSection())

	e.current.Jump(predBlock)
	e.current = predBlock
	cond, ok := e.EmitElement(p.Predicate)
	if !ok {
		return false
	}
	e.current.JumpIfZero(cond.Operand, exitBlock)
	e.current.Succs = append(e.current.Succs, bodyBlock)
	bodyBlock.Preds = append(bodyBlock.Preds, e.current)
	e.release(cond)

	e.flow = append(e.flow, &flowFrame{BreakLabel: exitBlock.Label, ContinueLabel: stepBlock.Label})
	e.current = bodyBlock
	e.EmitElement(p.Body)
	e.current.Jump(stepBlock)
	e.flow = e.flow[:len(e.flow)-1]

	e.current = stepBlock
	e.EmitElement(p.Step)
	e.current.Jump(predBlock)

	e.current = exitBlock
	return true
}

// emitReturn stores each return expression into its named return slot,
// drains every enclosing block's defer stack (innermost first, since an
// early return unwinds through all of them before the procedure actually
// exits), then emits the epilogue/rts sequence, marking the block so If's
// lowering skips an unconditional jump to exit.
func (e *Emitter) emitReturn(el *arena.CodeElement) bool {
	p := el.Payload.(*arena.ReturnPayload)
	if e.currentVM != nil {
		retSlots := e.currentVM.ReturnParameters()
		for i, valID := range p.Values {
			val, ok := e.EmitElement(valID)
			if !ok {
				return false
			}
			if i < len(retSlots) {
				e.storeVariable(retSlots[i], val)
			} else {
				e.release(val)
			}
		}
	}
	for i := len(e.blockStack) - 1; i >= 0; i-- {
		if bp := scope.BlockPayload(e.Arena.Find(e.blockStack[i])); bp != nil {
			e.drainDefers(bp)
		}
	}
	e.current.Emit(Instruction{Op: "epilogue"})
	e.current.Emit(Instruction{Op: "rts"})
	return true
}

// emitSwitch implements §4.8's switch/case/fallthrough desugar: each case
// pushes an `equals` comparison against the switch expression, chained like
// an if/else-if ladder; a matched case's body block is allocated right
// after its test so the jz's not-taken edge falls through into it, mirroring
// emitIf's trueBlock placement. A fallthrough statement inside a case body
// flips the pushed flow frame's flag, read back here to decide whether the
// case jumps to the switch exit or into the next case's body.
func (e *Emitter) emitSwitch(el *arena.CodeElement) bool {
	p := el.Payload.(*arena.SwitchPayload)
	switchVal, ok := e.EmitElement(p.Expr)
	if !ok {
		return false
	}

	exitBlock := e.newBlock("", textSection())
	if len(p.Cases) == 0 {
		e.current.Jump(exitBlock)
		e.release(switchVal)
		e.current = exitBlock
		return true
	}

	frame := &flowFrame{BreakLabel: exitBlock.Label, ContinueLabel: exitBlock.Label}
	e.flow = append(e.flow, frame)

	testCurrent := e.current
	var pendingFallthrough *BasicBlock

	for i, caseID := range p.Cases {
		cp := e.Arena.Find(caseID).Payload.(*arena.CasePayload)

		var bodyBlock *BasicBlock
		if cp.Match == arena.NoElement {
			// default: unconditional entry, no comparison needed.
			bodyBlock = e.newBlock("", textSection())
			testCurrent.Jump(bodyBlock)
		} else {
			matchVal, ok := e.EmitElement(cp.Match)
			if !ok {
				e.flow = e.flow[:len(e.flow)-1]
				return false
			}
			class := e.numberClassOf(e.Resolver.InferType(p.Expr))
			eqDst := e.currentVM.RetainTemp(class)
			testCurrent.Emit(Instruction{
				Op: "cmp_eq", Dst: Operand{Kind: OperandTemp, Temp: eqDst},
				Src1: switchVal.Operand, Src2: matchVal.Operand,
			})
			e.release(matchVal)

			bodyBlock = e.newBlock("", textSection())
			nextTest := exitBlock
			if i+1 < len(p.Cases) {
				nextTest = e.newBlock("", textSection())
			}
			testCurrent.JumpIfZero(Operand{Kind: OperandTemp, Temp: eqDst}, nextTest)
			testCurrent.Succs = append(testCurrent.Succs, bodyBlock)
			bodyBlock.Preds = append(bodyBlock.Preds, testCurrent)
			e.currentVM.ReleaseTemp(eqDst)
			testCurrent = nextTest
		}

		if pendingFallthrough != nil {
			pendingFallthrough.Jump(bodyBlock)
			pendingFallthrough = nil
		}

		e.current = bodyBlock
		frame.Fallthrough = false
		e.EmitElement(cp.Body)
		if frame.Fallthrough && i+1 < len(p.Cases) {
			pendingFallthrough = e.current
		} else {
			e.current.Jump(exitBlock)
		}
	}
	if pendingFallthrough != nil {
		pendingFallthrough.Jump(exitBlock)
	}

	e.flow = e.flow[:len(e.flow)-1]
	e.release(switchVal)
	e.current = exitBlock
	return true
}

func (e *Emitter) emitBreakContinue(el *arena.CodeElement, isBreak bool) bool {
	if len(e.flow) == 0 {
		e.errAt(el.Location, diag.P081, "break/continue with no enclosing loop")
		return false
	}
	frame := e.flow[len(e.flow)-1]
	label := frame.ContinueLabel
	if isBreak {
		label = frame.BreakLabel
	}
	e.current.Emit(Instruction{Op: "jmp", Dst: Operand{Kind: OperandLabel, Label: label}})
	return true
}

// emitFallthrough flips the current case's flow frame so emitSwitch jumps
// into the next case's body instead of the switch exit (§4.8). It emits no
// instruction itself; the transfer happens once the whole case body has run.
func (e *Emitter) emitFallthrough(el *arena.CodeElement) bool {
	if len(e.flow) == 0 {
		e.errAt(el.Location, diag.P081, "fallthrough with no enclosing switch")
		return false
	}
	e.flow[len(e.flow)-1].Fallthrough = true
	return true
}
