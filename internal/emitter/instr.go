// Package emitter implements the byte-code emitter of spec §4.8: it walks
// the CodeDOM post-order, producing a tree of basic blocks whose
// predecessor/successor edges form the control-flow graph, each holding an
// ordered list of three-address instructions.
package emitter

import (
	"fmt"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/image"
)

// OperandKind distinguishes the operand shapes a three-address instruction
// can reference.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandTemp             // a named synthetic register, e.g. "t3"
	OperandImmediateInt
	OperandImmediateFloat
	OperandLabel  // a code label (jump/call target)
	OperandFrame  // frame-relative: [fp + Offset]
	OperandModule // module-scope: label [+ Offset] for field access
)

// Operand is one operand of a three-address instruction. Only the fields
// relevant to Kind are meaningful.
type Operand struct {
	Kind     OperandKind
	Temp     string
	ImmInt   int64
	ImmFloat float64
	Label    string
	Offset   int
	Size     int
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandTemp:
		return o.Temp
	case OperandImmediateInt:
		return fmt.Sprintf("%d", o.ImmInt)
	case OperandImmediateFloat:
		return fmt.Sprintf("%g", o.ImmFloat)
	case OperandLabel:
		return o.Label
	case OperandFrame:
		return fmt.Sprintf("[fp%+d]", o.Offset)
	case OperandModule:
		if o.Offset != 0 {
			return fmt.Sprintf("%s+%d", o.Label, o.Offset)
		}
		return o.Label
	default:
		return "-"
	}
}

// sameOperand reports whether a and b name the exact same storage — used to
// skip self-assignments (§4.8's "LHS and RHS refer to the same named
// temporary" guard).
func sameOperand(a, b Operand) bool {
	return a.Kind == b.Kind && a.Kind == OperandTemp && a.Temp == b.Temp
}

// Instruction is one three-address operation.
type Instruction struct {
	Op      string
	Dst     Operand
	Src1    Operand
	Src2    Operand
	Comment string
}

// BasicBlock is a node of the control-flow graph: an ordered instruction
// list plus a label, section, alignment, and owning procedure (NoElement for
// the top-level start/module/end blocks).
type BasicBlock struct {
	Label        string
	Section      image.Section
	Align        int
	Instructions []Instruction
	Preds        []*BasicBlock
	Succs        []*BasicBlock
	OwnerProc    arena.ElementID

	endsInReturn bool
}

// Emit appends instr to the block.
func (b *BasicBlock) Emit(instr Instruction) {
	b.Instructions = append(b.Instructions, instr)
	if instr.Op == "rts" {
		b.endsInReturn = true
	}
}

// Jump records a control-flow edge to target and emits an unconditional
// jump, unless b already ends in a return (§4.8's "true branch jumps to
// exit unless it already ends in a return").
func (b *BasicBlock) Jump(target *BasicBlock) {
	b.Succs = append(b.Succs, target)
	target.Preds = append(target.Preds, b)
	if b.endsInReturn {
		return
	}
	b.Emit(Instruction{Op: "jmp", Dst: Operand{Kind: OperandLabel, Label: target.Label}})
}

// JumpIfZero emits a conditional jump to target when cond is zero, without
// recording it as an unconditional successor edge collapse (both branches
// remain distinct successors).
func (b *BasicBlock) JumpIfZero(cond Operand, target *BasicBlock) {
	b.Succs = append(b.Succs, target)
	target.Preds = append(target.Preds, b)
	b.Emit(Instruction{Op: "jz", Src1: cond, Dst: Operand{Kind: OperandLabel, Label: target.Label}})
}
