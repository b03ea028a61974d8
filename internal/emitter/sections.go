package emitter

import (
	"fmt"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/image"
	"github.com/oxhq/basecode/internal/intern"
	"github.com/oxhq/basecode/internal/varmap"
)

// EmitStartEnd emits the `_start`/`_end` blocks described in §4.8: `_start`
// calls mainProc and captures its return value; `_end` exits the process
// with that value. The call to mainProc is recorded as a module-root call
// site for reachability.
func (e *Emitter) EmitStartEnd(mainProc arena.ElementID) (start, end *BasicBlock) {
	e.ownerProc = arena.NoElement
	start = e.newBlock("_start", textSection())
	e.current = start
	e.graph.addEdge(arena.NoElement, mainProc)

	label := procLabel(e.Arena, mainProc)
	e.current.Emit(Instruction{Op: "reserve_return"})
	e.current.Emit(Instruction{Op: "call", Dst: Operand{Kind: OperandLabel, Label: label}})
	exitTemp := "t_exit_code"
	e.current.Emit(Instruction{Op: "load_return", Dst: Operand{Kind: OperandTemp, Temp: exitTemp}})

	end = e.newBlock("_end", textSection())
	e.current.Jump(end)
	end.Emit(Instruction{Op: "exit", Src1: Operand{Kind: OperandTemp, Temp: exitTemp}})
	return start, end
}

// EmitModuleBlock emits an implicit module block for moduleID — one per
// distinct imported module plus the root (§4.8) — and classifies its
// top-level variables into bss/data/ro_data via a dedicated module varmap.
func (e *Emitter) EmitModuleBlock(moduleID arena.ElementID) (*BasicBlock, *varmap.Map) {
	e.ownerProc = arena.NoElement
	block := e.newBlock("_module_"+moduleLabel(e.Arena, moduleID), textSection())
	vm := varmap.New(e.Arena, e.Types)
	vm.ClassifyModule(moduleID)
	return block, vm
}

func moduleLabel(a *arena.Arena, moduleID arena.ElementID) string {
	el := a.Find(moduleID)
	if el == nil {
		return "unknown"
	}
	if mp, ok := el.Payload.(*arena.ModulePayload); ok {
		return sanitizeLabel(mp.Path)
	}
	return "unknown"
}

func sanitizeLabel(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Assemble flattens the emitted basic-block graph into a byte-code image,
// honoring the fixed text/ro_data/data/bss section order (§6.3) and
// reachability (§4.8: only procedures transitively called from a
// module-root call site are included).
func (e *Emitter) Assemble(moduleVarmaps []*varmap.Map) *image.Image {
	reachable := e.graph.Reachable()
	img := image.New()

	for _, b := range e.Blocks {
		if b.OwnerProc != arena.NoElement && !reachable[b.OwnerProc] {
			continue
		}
		img.Append(image.SectionText, image.Blob{
			Label: b.Label,
			Bytes: serializeBlock(b),
			Align: 1,
		})
	}

	for id, value := range e.Interns.All() {
		img.Append(image.SectionRoData, image.Blob{
			Label: intern.DataLabel(id),
			Bytes: []byte(value),
			Align: image.AlignString,
		})
	}

	img.Append(image.SectionRoData, image.Blob{
		Label: "_type_info",
		Bytes: e.typeInfoTable(),
		Align: image.AlignTypeInfo,
	})

	for _, vm := range moduleVarmaps {
		for _, id := range vm.RoData {
			img.Append(image.SectionRoData, moduleBlob(vm.Get(id)))
		}
		for _, id := range vm.Data {
			img.Append(image.SectionData, moduleBlob(vm.Get(id)))
		}
		for _, id := range vm.Bss {
			v := vm.Get(id)
			img.Append(image.SectionBss, image.Blob{Label: v.ModuleLabel, Size: v.SizeInBytes, Align: 1})
		}
	}

	return img
}

func moduleBlob(v *varmap.Variable) image.Blob {
	if v == nil {
		return image.Blob{}
	}
	return image.Blob{Label: v.ModuleLabel, Size: v.SizeInBytes, Align: 1}
}

// serializeBlock renders a block's instructions as a deterministic byte
// stream for the image's section digest; a real machine-code encoding is
// the external assembler's job (§4.9 non-goal).
func serializeBlock(b *BasicBlock) []byte {
	var out []byte
	for _, instr := range b.Instructions {
		out = append(out, []byte(fmt.Sprintf("%s %s,%s,%s;", instr.Op, instr.Dst, instr.Src1, instr.Src2))...)
	}
	return out
}

// typeInfoTable renders one "kind:id;" entry per registered type element
// (its kind name and element id; no size or alignment is written),
// qword-aligned as a whole (§6.4).
func (e *Emitter) typeInfoTable() []byte {
	var out []byte
	for _, kind := range []arena.ElementKind{
		arena.KindNumericType, arena.KindBoolType, arena.KindRuneType,
		arena.KindPointerType, arena.KindArrayType, arena.KindStructType,
		arena.KindUnionType, arena.KindEnumType,
	} {
		for _, el := range e.Arena.FindByKind(kind) {
			out = append(out, []byte(fmt.Sprintf("%s:%d;", kind, el.ID))...)
		}
	}
	return out
}
