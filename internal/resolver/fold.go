package resolver

import "github.com/oxhq/basecode/internal/arena"

// pureIntrinsics is the fixed set of side-effect-free intrinsics allowed to
// fold (§9 Open Question: "fold_elements_of_type relies on
// intrinsic.can_fold(); its exact contract... must be settled" — decided in
// DESIGN.md as: pure, side-effect-free intrinsics only, enumerated here).
var pureIntrinsics = map[string]bool{
	"size_of":  true,
	"align_of": true,
	"type_of":  true,
	"add":      true,
	"sub":      true,
	"mul":      true,
	"div":      true,
}

// CanFold reports whether an intrinsic by name is eligible for constant
// folding. Side-effecting intrinsics (`assert`, `run`) are never foldable.
func CanFold(intrinsicName string) bool {
	return pureIntrinsics[intrinsicName]
}

// FoldConstants implements §4.4 sub-pass 3: for each foldable kind, attempt
// a fold and splice the substitute into the owning parent via
// ApplyFoldResult, removing the old subtree. It returns true if any
// substitution happened this pass, so the session can repeat until dry
// (§4.9 phase 6).
func (r *Resolver) FoldConstants() (progress bool) {
	for _, e := range r.Arena.All() {
		if !e.Kind.IsFoldable() {
			continue
		}
		substitute, ok := r.fold(e)
		if !ok {
			continue
		}
		r.applyFoldResult(e, substitute)
		progress = true
	}
	return progress
}

// fold attempts to reduce e to a literal element. It returns (id, true) on
// success.
func (r *Resolver) fold(e *arena.CodeElement) (arena.ElementID, bool) {
	switch e.Kind {
	case arena.KindIntrinsic:
		return r.foldIntrinsic(e)
	case arena.KindIdentifierReference:
		return r.foldIdentifierReference(e)
	case arena.KindUnary:
		return r.foldUnary(e)
	case arena.KindBinary:
		return r.foldBinary(e)
	case arena.KindLabelReference:
		return arena.NoElement, false
	}
	return arena.NoElement, false
}

func (r *Resolver) foldIntrinsic(e *arena.CodeElement) (arena.ElementID, bool) {
	p := e.Payload.(*arena.IntrinsicPayload)
	if !CanFold(p.Name) {
		return arena.NoElement, false
	}
	switch p.Name {
	case "size_of":
		arg := r.firstArgType(p.Arguments)
		if arg == arena.NoElement {
			return arena.NoElement, false
		}
		size := r.Types.SizeOfPublic(arg)
		return r.newFoldedInt(int64(size), e), true
	case "align_of":
		arg := r.firstArgType(p.Arguments)
		if arg == arena.NoElement {
			return arena.NoElement, false
		}
		align := r.Types.AlignOfPublic(arg)
		return r.newFoldedInt(int64(align), e), true
	}
	return arena.NoElement, false
}

func (r *Resolver) firstArgType(argListID arena.ElementID) arena.ElementID {
	list := r.Arena.Find(argListID)
	if list == nil {
		return arena.NoElement
	}
	lp, ok := list.Payload.(*arena.ArgumentListPayload)
	if !ok || len(lp.Arguments) == 0 {
		return arena.NoElement
	}
	return r.InferType(lp.Arguments[0])
}

func (r *Resolver) newFoldedInt(v int64, origin *arena.CodeElement) arena.ElementID {
	e := &arena.CodeElement{Kind: arena.KindInt, Payload: &arena.IntPayload{Value: v, Unsigned: true}, Location: origin.Location}
	r.Arena.Add(e)
	return e.ID
}

func (r *Resolver) foldIdentifierReference(e *arena.CodeElement) (arena.ElementID, bool) {
	p := e.Payload.(*arena.IdentifierReferencePayload)
	if p.Resolved == arena.NoElement {
		return arena.NoElement, false
	}
	target := r.Arena.Find(p.Resolved)
	if target == nil {
		return arena.NoElement, false
	}
	ip, ok := target.Payload.(*arena.IdentifierPayload)
	if !ok || !ip.IsConstant || ip.Initializer == arena.NoElement {
		return arena.NoElement, false
	}
	init := r.Arena.Find(ip.Initializer)
	if init == nil {
		return arena.NoElement, false
	}
	var exprID arena.ElementID = init.ID
	if initP, ok := init.Payload.(*arena.InitializerPayload); ok {
		exprID = initP.Expr
	}
	expr := r.Arena.Find(exprID)
	if expr == nil {
		return arena.NoElement, false
	}
	switch expr.Kind {
	case arena.KindInt, arena.KindFloat, arena.KindBool, arena.KindString, arena.KindCharacter:
		return expr.ID, true
	}
	return arena.NoElement, false
}

func (r *Resolver) foldUnary(e *arena.CodeElement) (arena.ElementID, bool) {
	p := e.Payload.(*arena.UnaryPayload)
	operand := r.Arena.Find(p.Operand)
	if operand == nil || operand.Kind != arena.KindInt {
		return arena.NoElement, false
	}
	ip := operand.Payload.(*arena.IntPayload)
	switch p.Operator {
	case "-":
		return r.newFoldedInt(-ip.Value, e), true
	case "!", "~":
		return r.newFoldedInt(^ip.Value, e), true
	}
	return arena.NoElement, false
}

func (r *Resolver) foldBinary(e *arena.CodeElement) (arena.ElementID, bool) {
	p := e.Payload.(*arena.BinaryPayload)
	if p.IsSyntheticAssignment {
		return arena.NoElement, false
	}
	lhs := r.Arena.Find(p.LHS)
	rhs := r.Arena.Find(p.RHS)
	if lhs == nil || rhs == nil || lhs.Kind != arena.KindInt || rhs.Kind != arena.KindInt {
		return arena.NoElement, false
	}
	lv := lhs.Payload.(*arena.IntPayload).Value
	rv := rhs.Payload.(*arena.IntPayload).Value
	switch p.Operator {
	case "+":
		return r.newFoldedInt(lv+rv, e), true
	case "-":
		return r.newFoldedInt(lv-rv, e), true
	case "*":
		return r.newFoldedInt(lv*rv, e), true
	case "/":
		if rv == 0 {
			return arena.NoElement, false
		}
		return r.newFoldedInt(lv/rv, e), true
	case "==":
		return r.newFoldedBool(lv == rv, e), true
	case "<":
		return r.newFoldedBool(lv < rv, e), true
	case ">":
		return r.newFoldedBool(lv > rv, e), true
	}
	return arena.NoElement, false
}

func (r *Resolver) newFoldedBool(v bool, origin *arena.CodeElement) arena.ElementID {
	e := &arena.CodeElement{Kind: arena.KindBool, Payload: &arena.BoolPayload{Value: v}, Location: origin.Location}
	r.Arena.Add(e)
	return e.ID
}

// applyFoldResult splices substitute in place of old within old's parent,
// attaches an intrinsic_substitution attribute when old was an intrinsic so
// post-hoc tooling can see what happened (§4.4), and removes the old
// subtree.
func (r *Resolver) applyFoldResult(old *arena.CodeElement, substitute arena.ElementID) {
	parent := r.Arena.Find(old.ParentElement)
	if parent != nil {
		replaceChildReference(parent, old.ID, substitute)
		r.Arena.Adopt(parent.ID, substitute)
	}
	if old.Kind == arena.KindIntrinsic {
		if ip, ok := old.Payload.(*arena.IntrinsicPayload); ok {
			ip.Substitution = substitute
		}
		if sub := r.Arena.Find(substitute); sub != nil {
			attr := &arena.CodeElement{Kind: arena.KindAttribute, Payload: &arena.AttributePayload{Name: "intrinsic_substitution", Value: old.Kind.String()}}
			r.Arena.Add(attr)
			sub.Attributes = append(sub.Attributes, attr.ID)
		}
	}
	r.Arena.Remove(old.ID)
}

// replaceChildReference rewrites every field of parent's payload pointing
// at oldID to point at newID instead. It covers the operator/control-flow
// payload shapes that can own a foldable child.
func replaceChildReference(parent *arena.CodeElement, oldID, newID arena.ElementID) {
	switch p := parent.Payload.(type) {
	case *arena.BinaryPayload:
		if p.LHS == oldID {
			p.LHS = newID
		}
		if p.RHS == oldID {
			p.RHS = newID
		}
	case *arena.UnaryPayload:
		if p.Operand == oldID {
			p.Operand = newID
		}
	case *arena.CastPayload:
		if p.Operand == oldID {
			p.Operand = newID
		}
	case *arena.IfPayload:
		if p.Predicate == oldID {
			p.Predicate = newID
		}
	case *arena.WhilePayload:
		if p.Predicate == oldID {
			p.Predicate = newID
		}
	case *arena.ForPayload:
		if p.Predicate == oldID {
			p.Predicate = newID
		}
		if p.Init == oldID {
			p.Init = newID
		}
		if p.Step == oldID {
			p.Step = newID
		}
	case *arena.ArgumentListPayload:
		for i, arg := range p.Arguments {
			if arg == oldID {
				p.Arguments[i] = newID
			}
		}
	case *arena.ArgumentPairPayload:
		if p.Value == oldID {
			p.Value = newID
		}
	case *arena.ReturnPayload:
		for i, v := range p.Values {
			if v == oldID {
				p.Values[i] = newID
			}
		}
	case *arena.IdentifierPayload:
		if p.Initializer == oldID {
			p.Initializer = newID
		}
	case *arena.InitializerPayload:
		if p.Expr == oldID {
			p.Expr = newID
		}
	case *arena.SubscriptPayload:
		if p.Index == oldID {
			p.Index = newID
		}
		if p.Base == oldID {
			p.Base = newID
		}
	case *arena.MemberAccessPayload:
		if p.LHS == oldID {
			p.LHS = newID
		}
	}
}
