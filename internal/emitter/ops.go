package emitter

import (
	"strconv"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/types"
)

// comparisonOps are binary operators that produce a boolean rather than
// preserving the operand number class.
var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
}

func (e *Emitter) emitBinary(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.BinaryPayload)
	if p.Operator == "=" || p.IsSyntheticAssignment {
		return e.emitAssignment(p)
	}

	lhs, ok1 := e.EmitElement(p.LHS)
	rhs, ok2 := e.EmitElement(p.RHS)
	if !ok1 || !ok2 {
		return Result{}, false
	}

	lhsType := e.Resolver.InferType(p.LHS)
	class := e.numberClassOf(lhsType)
	dst := e.currentVM.RetainTemp(class)
	e.current.Emit(Instruction{Op: opMnemonic(p.Operator), Dst: Operand{Kind: OperandTemp, Temp: dst}, Src1: lhs.Operand, Src2: rhs.Operand})
	e.release(lhs)
	e.release(rhs)

	resultType := lhsType
	if comparisonOps[p.Operator] {
		resultType = arena.NoElement // bool
	}
	return Result{Operand: Operand{Kind: OperandTemp, Temp: dst}, Type: resultType, Temps: []string{dst}}, true
}

// emitAssignment implements the scalar-spill vs composite-copy split of
// §4.7/§4.8, guarded against a no-op self-assignment to the same temporary.
func (e *Emitter) emitAssignment(p *arena.BinaryPayload) (Result, bool) {
	rhs, ok := e.EmitElement(p.RHS)
	if !ok {
		return Result{}, false
	}
	rhs.Type = e.Resolver.InferType(p.RHS)

	lhsElem := e.Arena.Find(p.LHS)
	if lhsElem == nil {
		return Result{}, false
	}
	switch lhsElem.Kind {
	case arena.KindIdentifierReference:
		ref := lhsElem.Payload.(*arena.IdentifierReferencePayload)
		if ref.Resolved == arena.NoElement {
			e.errAt(lhsElem.Location, diag.P004, "unresolved assignment target")
			return Result{}, false
		}
		e.storeVariable(ref.Resolved, rhs)
	case arena.KindSubscript, arena.KindMemberAccess:
		target, ok := e.EmitElement(p.LHS)
		if !ok {
			return Result{}, false
		}
		if sameOperand(target.Operand, rhs.Operand) {
			return Result{}, true
		}
		e.current.Emit(Instruction{Op: "spill", Dst: target.Operand, Src1: rhs.Operand})
		e.release(rhs)
	default:
		e.errAt(lhsElem.Location, diag.X000, "invalid assignment target kind %s", lhsElem.Kind)
		return Result{}, false
	}
	return Result{}, true
}

func opMnemonic(operator string) string {
	switch operator {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "mod"
	case "==":
		return "cmp_eq"
	case "!=":
		return "cmp_ne"
	case "<":
		return "cmp_lt"
	case ">":
		return "cmp_gt"
	case "<=":
		return "cmp_le"
	case ">=":
		return "cmp_ge"
	case "&&":
		return "and"
	case "||":
		return "or"
	default:
		return operator
	}
}

func (e *Emitter) emitUnary(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.UnaryPayload)
	operand, ok := e.EmitElement(p.Operand)
	if !ok {
		return Result{}, false
	}
	operandType := e.Resolver.InferType(p.Operand)
	dst := e.currentVM.RetainTemp(e.numberClassOf(operandType))
	op := "neg"
	switch p.Operator {
	case "!":
		op = "not"
	case "~":
		op = "bnot"
	}
	e.current.Emit(Instruction{Op: op, Dst: Operand{Kind: OperandTemp, Temp: dst}, Src1: operand.Operand})
	e.release(operand)
	return Result{Operand: Operand{Kind: OperandTemp, Temp: dst}, Type: operandType, Temps: []string{dst}}, true
}

// emitCast chooses the lowering named in §4.8 from the source/target number
// class, size comparison, and source signedness.
func (e *Emitter) emitCast(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.CastPayload)
	operand, ok := e.EmitElement(p.Operand)
	if !ok {
		return Result{}, false
	}
	sourceType := e.Resolver.InferType(p.Operand)
	var targetType arena.ElementID
	if targetRef := e.Arena.Find(p.TypeRef); targetRef != nil {
		if tr, ok := targetRef.Payload.(*arena.TypeReferencePayload); ok {
			targetType = tr.Resolved
		}
	}

	sourceClass, sourceSize, sourceSigned := e.numericProfile(sourceType)
	targetClass, targetSize, _ := e.numericProfile(targetType)
	kind := types.ClassifyCast(sourceClass, targetClass, sourceSize, targetSize, sourceSigned)

	dst := e.currentVM.RetainTemp(targetClass)
	op := castMnemonic(kind)
	if op == "" {
		e.release(operand)
		return Result{Operand: operand.Operand, Type: targetType}, true
	}
	e.current.Emit(Instruction{Op: op, Dst: Operand{Kind: OperandTemp, Temp: dst}, Src1: operand.Operand})
	e.release(operand)
	return Result{Operand: Operand{Kind: OperandTemp, Temp: dst}, Type: targetType, Temps: []string{dst}}, true
}

func castMnemonic(k types.CastKind) string {
	switch k {
	case types.CastIntTruncate:
		return "trunc"
	case types.CastSignExtend:
		return "sext"
	case types.CastZeroExtend:
		return "zext"
	case types.CastFloatExtend:
		return "fext"
	case types.CastFloatTruncate:
		return "ftrunc"
	case types.CastIntToFloat:
		return "i2f"
	case types.CastFloatToInt:
		return "f2i"
	default:
		return ""
	}
}

func (e *Emitter) numericProfile(typeID arena.ElementID) (arena.NumberClass, int, bool) {
	te := e.Arena.Find(typeID)
	if te == nil {
		return arena.NumberNone, 0, false
	}
	if np, ok := te.Payload.(*arena.NumericTypePayload); ok {
		return np.NumberClass, np.SizeInBytes, np.NumberClass == arena.NumberInteger && isSignedName(np.Name)
	}
	return arena.NumberNone, 0, false
}

func isSignedName(name string) bool {
	return len(name) > 0 && name[0] == 'i'
}

func (e *Emitter) numberClassOf(typeID arena.ElementID) arena.NumberClass {
	class, _, _ := e.numericProfile(typeID)
	return class
}

// emitSubscript lowers `base[index]` to `&base.data + index*elem_size`,
// followed by a scalar load unless the subscript is an assignment target.
func (e *Emitter) emitSubscript(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.SubscriptPayload)
	base, ok := e.EmitElement(p.Base)
	if !ok {
		return Result{}, false
	}
	index, ok := e.EmitElement(p.Index)
	if !ok {
		return Result{}, false
	}
	baseType := e.Resolver.InferType(p.Base)
	elemSize := 8
	if baseTypeElem := e.Arena.Find(baseType); baseTypeElem != nil {
		if arrType, ok := baseTypeElem.Payload.(*arena.ArrayTypePayload); ok {
			elemSize = e.Types.SizeOfPublic(arrType.Base)
		}
	}

	addr := e.currentVM.RetainTemp(arena.NumberInteger)
	e.current.Emit(Instruction{
		Op: "addr_index", Dst: Operand{Kind: OperandTemp, Temp: addr},
		Src1: base.Operand, Src2: index.Operand, Comment: "elem_size=" + strconv.Itoa(elemSize),
	})
	e.release(base)
	e.release(index)

	if p.IsAssignTarget {
		return Result{Operand: Operand{Kind: OperandTemp, Temp: addr}, Temps: []string{addr}}, true
	}
	val := e.currentVM.RetainTemp(arena.NumberInteger)
	e.current.Emit(Instruction{Op: "load", Dst: Operand{Kind: OperandTemp, Temp: val}, Src1: Operand{Kind: OperandTemp, Temp: addr}})
	e.currentVM.ReleaseTemp(addr)
	return Result{Operand: Operand{Kind: OperandTemp, Temp: val}, Temps: []string{val}}, true
}

func (e *Emitter) emitMemberAccess(el *arena.CodeElement) (Result, bool) {
	p := el.Payload.(*arena.MemberAccessPayload)
	base, ok := e.EmitElement(p.LHS)
	if !ok {
		return Result{}, false
	}
	offset := 0
	if fieldElem := e.Arena.Find(p.Resolved); fieldElem != nil {
		if fp, ok := fieldElem.Payload.(*arena.FieldPayload); ok {
			offset = fp.Offset
		}
	}
	reg := e.currentVM.RetainTemp(arena.NumberInteger)
	e.current.Emit(Instruction{Op: "addr_field", Dst: Operand{Kind: OperandTemp, Temp: reg}, Src1: base.Operand, Comment: "offset=" + strconv.Itoa(offset)})
	e.release(base)
	return Result{Operand: Operand{Kind: OperandTemp, Temp: reg}, Temps: []string{reg}}, true
}
