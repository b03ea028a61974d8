// Package types implements the type system operations of spec §3.3 and
// §4.5: canonicalization of constructed types, composite size/alignment
// calculation, type checking, and cast classification. Type *elements*
// themselves live in the arena (they are CodeDOM nodes like any other); this
// package holds the behavior that dispatches on their kind.
package types

import (
	"fmt"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/scope"
)

// Registry canonicalizes constructed types (pointer-to-T, array-of-T) so
// that two syntactically equal constructed types share one element, per
// §3.3's canonicalization invariant and §8's idempotency property.
type Registry struct {
	Arena *arena.Arena
	Scope *scope.Graph

	pointerCache map[arena.ElementID]arena.ElementID            // base -> pointer type id
	arrayCache   map[string]arena.ElementID                     // "base:subscripts" -> array type id
	numericCache map[string]arena.ElementID
	singletons   map[arena.ElementKind]arena.ElementID
	genericCache map[string]arena.ElementID
	namedTypes   map[string]arena.ElementID // built-in type name -> element id, for explicit type-annotation lookup
}

// NewRegistry creates a type Registry over a.
func NewRegistry(a *arena.Arena, s *scope.Graph) *Registry {
	return &Registry{
		Arena:        a,
		Scope:        s,
		pointerCache: make(map[arena.ElementID]arena.ElementID),
		arrayCache:   make(map[string]arena.ElementID),
		numericCache: make(map[string]arena.ElementID),
		singletons:   make(map[arena.ElementKind]arena.ElementID),
		genericCache: make(map[string]arena.ElementID),
		namedTypes:   make(map[string]arena.ElementID),
	}
}

// Lookup resolves a built-in type name (as registered by phase 1's
// RegisterNumeric/RegisterBool/RegisterRune/RegisterModuleType/
// RegisterNamespaceType) to its element id, for dereferencing explicit type
// annotations (§3.3).
func (r *Registry) Lookup(name string) (arena.ElementID, bool) {
	id, ok := r.namedTypes[name]
	return id, ok
}

// singleton returns the one process-wide element of kind k, building it with
// build on first request (§4.9 phase 1: core-type registration is idempotent
// across repeated calls, matching the numeric-type cache above).
func (r *Registry) singleton(k arena.ElementKind, build func() any) arena.ElementID {
	if id, ok := r.singletons[k]; ok {
		return id
	}
	e := &arena.CodeElement{Kind: k, Payload: build()}
	r.Arena.Add(e)
	r.singletons[k] = e.ID
	return e.ID
}

// RegisterBool installs the singleton bool type.
func (r *Registry) RegisterBool() arena.ElementID {
	id := r.singleton(arena.KindBoolType, func() any {
		h := arena.TypeHeader{NumberClass: arena.NumberNone, Access: arena.AccessValue}
		h.SetSize(1, 1)
		return &arena.BoolTypePayload{TypeHeader: h}
	})
	r.namedTypes["bool"] = id
	return id
}

// RegisterRune installs the singleton rune (UTF-32 code point) type.
func (r *Registry) RegisterRune() arena.ElementID {
	id := r.singleton(arena.KindRuneType, func() any {
		h := arena.TypeHeader{NumberClass: arena.NumberInteger, Access: arena.AccessValue}
		h.SetSize(4, 4)
		return &arena.RuneTypePayload{TypeHeader: h}
	})
	r.namedTypes["rune"] = id
	return id
}

// RegisterNamespaceType installs the singleton type that namespace
// declarations carry; it has no runtime representation.
func (r *Registry) RegisterNamespaceType() arena.ElementID {
	id := r.singleton(arena.KindNamespaceType, func() any {
		return &arena.NamespaceTypePayload{TypeHeader: arena.TypeHeader{Access: arena.AccessValue}}
	})
	r.namedTypes["namespace"] = id
	return id
}

// RegisterModuleType installs the singleton type that module declarations
// carry; it has no runtime representation.
func (r *Registry) RegisterModuleType() arena.ElementID {
	id := r.singleton(arena.KindModuleType, func() any {
		return &arena.ModuleTypePayload{TypeHeader: arena.TypeHeader{Access: arena.AccessValue}}
	})
	r.namedTypes["module"] = id
	return id
}

// RegisterGeneric returns the canonical open (unconstrained) generic type
// named name, used as the element type of the generic containers the
// session's phase 1 registers ahead of any user code (§4.9, §6.2).
func (r *Registry) RegisterGeneric(name string) arena.ElementID {
	if id, ok := r.genericCache[name]; ok {
		return id
	}
	e := &arena.CodeElement{Kind: arena.KindGenericType, Payload: &arena.GenericTypePayload{TypeHeader: arena.TypeHeader{Access: arena.AccessValue}}}
	r.Arena.Add(e)
	r.genericCache[name] = e.ID
	return e.ID
}

// RegisterNumeric installs (or returns the existing) numeric type named
// name with the given size/alignment/signedness, used by the session's
// phase 1 core-type registration (§4.9).
func (r *Registry) RegisterNumeric(name string, sizeInBytes int, class arena.NumberClass) arena.ElementID {
	if id, ok := r.numericCache[name]; ok {
		return id
	}
	h := arena.TypeHeader{NumberClass: class, Access: arena.AccessValue}
	h.SetSize(sizeInBytes, sizeInBytes)
	e := &arena.CodeElement{Kind: arena.KindNumericType, Payload: &arena.NumericTypePayload{TypeHeader: h, Name: name}}
	r.Arena.Add(e)
	r.numericCache[name] = e.ID
	r.namedTypes[name] = e.ID
	return e.ID
}

// FindPointerType returns the canonical pointer-to-base type, constructing
// it on first request (§8: idempotent across repeated calls).
func (r *Registry) FindPointerType(base arena.ElementID) arena.ElementID {
	if id, ok := r.pointerCache[base]; ok {
		return id
	}
	h := arena.TypeHeader{Access: arena.AccessPointer}
	h.SetSize(8, 8) // pointer width on the target VM
	e := &arena.CodeElement{Kind: arena.KindPointerType, Payload: &arena.PointerTypePayload{TypeHeader: h, Base: base}}
	r.Arena.Add(e)
	r.pointerCache[base] = e.ID
	return e.ID
}

// FindArrayType returns the canonical [subscripts]base array type,
// constructing it on first request. subscripts are folded integer constant
// element ids; the cache key uses their literal values so two arrays built
// from different-but-equal-valued subscript elements still canonicalize.
func (r *Registry) FindArrayType(base arena.ElementID, subscripts []arena.ElementID) arena.ElementID {
	key := r.arrayKey(base, subscripts)
	if id, ok := r.arrayCache[key]; ok {
		return id
	}
	h := arena.TypeHeader{Access: arena.AccessValue}
	e := &arena.CodeElement{Kind: arena.KindArrayType, Payload: &arena.ArrayTypePayload{TypeHeader: h, Base: base, Subscripts: subscripts}}
	r.Arena.Add(e)
	r.arrayCache[key] = e.ID
	return e.ID
}

func (r *Registry) arrayKey(base arena.ElementID, subscripts []arena.ElementID) string {
	key := fmt.Sprintf("%d", base)
	for _, s := range subscripts {
		if v, ok := r.constInt(s); ok {
			key += fmt.Sprintf(":%d", v)
		} else {
			key += fmt.Sprintf(":e%d", s)
		}
	}
	return key
}

func (r *Registry) constInt(id arena.ElementID) (int64, bool) {
	e := r.Arena.Find(id)
	if e == nil || e.Kind != arena.KindInt {
		return 0, false
	}
	ip, ok := e.Payload.(*arena.IntPayload)
	if !ok {
		return 0, false
	}
	return ip.Value, true
}

// CalculateSize computes size_in_bytes/alignment for composite types
// (struct/union/enum), per §3.3: size = Σ field sizes + padding, aligned to
// the type's own alignment; a union's size equals its largest field. It
// resolves the Open Question in §9 about array_type's subscript placeholder
// by refusing to compute a size when a subscript hasn't folded to a
// constant yet — callers must re-run after constant folding.
func (r *Registry) CalculateSize(typeID arena.ElementID) error {
	e := r.Arena.Find(typeID)
	if e == nil {
		return fmt.Errorf("calculate_size: unknown type element %d", typeID)
	}
	switch e.Kind {
	case arena.KindStructType, arena.KindUnionType:
		return r.calculateCompositeSize(e)
	case arena.KindEnumType:
		return r.calculateEnumSize(e)
	case arena.KindArrayType:
		return r.calculateArraySize(e)
	default:
		return nil
	}
}

func (r *Registry) calculateCompositeSize(e *arena.CodeElement) error {
	cp, ok := e.Payload.(*arena.CompositeTypePayload)
	if !ok {
		return fmt.Errorf("calculate_size: element %d is not a composite type", e.ID)
	}
	total := 0
	maxAlign := 1
	maxField := 0
	for _, name := range cp.FieldOrder {
		fieldID := cp.Fields[name]
		field := r.Arena.Find(fieldID)
		if field == nil {
			continue
		}
		fp, ok := field.Payload.(*arena.FieldPayload)
		if !ok {
			continue
		}
		fieldAlign := r.alignmentOf(fp.TypeRef)
		if fieldAlign > maxAlign {
			maxAlign = fieldAlign
		}
		if fp.SizeInBytes > maxField {
			maxField = fp.SizeInBytes
		}
		if cp.IsUnion {
			continue
		}
		total = alignUp(total, fieldAlign) + fp.SizeInBytes
	}
	if cp.IsUnion {
		total = maxField
	}
	total = alignUp(total, maxAlign)
	cp.SetSize(total, maxAlign)
	return nil
}

func (r *Registry) calculateEnumSize(e *arena.CodeElement) error {
	cp, ok := e.Payload.(*arena.CompositeTypePayload)
	if !ok {
		return fmt.Errorf("calculate_size: element %d is not an enum type", e.ID)
	}
	base := r.Arena.Find(cp.EnumBase)
	if base == nil {
		// Default numeric base is u32 per §4.3 add_composite_type_fields.
		cp.SetSize(4, 4)
		return nil
	}
	if bp, ok := base.Payload.(*arena.NumericTypePayload); ok {
		cp.SetSize(bp.SizeInBytes, bp.Alignment)
	}
	return nil
}

func (r *Registry) calculateArraySize(e *arena.CodeElement) error {
	ap, ok := e.Payload.(*arena.ArrayTypePayload)
	if !ok {
		return fmt.Errorf("calculate_size: element %d is not an array type", e.ID)
	}
	elemSize := r.sizeOf(ap.Base)
	total := elemSize
	for _, sub := range ap.Subscripts {
		v, ok := r.constInt(sub)
		if !ok {
			return fmt.Errorf("calculate_size: array subscript %d has not folded to a constant", sub)
		}
		total *= int(v)
	}
	ap.FlatSize = total
	ap.SetSize(total, r.alignmentOf(ap.Base))
	return nil
}

// SizeOfPublic exposes sizeOf for the `size_of` intrinsic's constant fold.
func (r *Registry) SizeOfPublic(typeID arena.ElementID) int { return r.sizeOf(typeID) }

// AlignOfPublic exposes alignmentOf for the `align_of` intrinsic's constant fold.
func (r *Registry) AlignOfPublic(typeID arena.ElementID) int { return r.alignmentOf(typeID) }

func (r *Registry) sizeOf(typeID arena.ElementID) int {
	e := r.Arena.Find(typeID)
	if e == nil {
		return 0
	}
	switch p := e.Payload.(type) {
	case *arena.NumericTypePayload:
		return p.SizeInBytes
	case *arena.BoolTypePayload:
		return p.SizeInBytes
	case *arena.RuneTypePayload:
		return p.SizeInBytes
	case *arena.PointerTypePayload:
		return p.SizeInBytes
	case *arena.CompositeTypePayload:
		return p.SizeInBytes
	case *arena.ArrayTypePayload:
		return p.SizeInBytes
	}
	return 8 // qword default for composites/pointers not yet sized
}

func (r *Registry) alignmentOf(typeID arena.ElementID) int {
	e := r.Arena.Find(typeID)
	if e == nil {
		return 1
	}
	switch p := e.Payload.(type) {
	case *arena.NumericTypePayload:
		return p.Alignment
	case *arena.PointerTypePayload:
		return p.Alignment
	case *arena.CompositeTypePayload:
		if p.Alignment == 0 {
			return 1
		}
		return p.Alignment
	case *arena.ArrayTypePayload:
		return r.alignmentOf(p.Base)
	}
	return 1
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// --- Type checking (§4.5) ----------------------------------------------------

// TypeCheck validates that an rhs value of type rhsType may be assigned to a
// variable of type lhsType. strict disables implicit narrowing. The
// resolver's overload scoring and the session's type-check phase both call
// it with strict=false for every argument and initializer, whether or not
// the RHS is a literal.
func (r *Registry) TypeCheck(lhsType, rhsType arena.ElementID, strict bool) bool {
	if lhsType == rhsType {
		return true
	}
	lhs := r.Arena.Find(lhsType)
	rhs := r.Arena.Find(rhsType)
	if lhs == nil || rhs == nil {
		return false
	}
	lnp, lok := lhs.Payload.(*arena.NumericTypePayload)
	rnp, rok := rhs.Payload.(*arena.NumericTypePayload)
	if lok && rok {
		if strict {
			return lnp.SizeInBytes == rnp.SizeInBytes && lnp.NumberClass == rnp.NumberClass
		}
		// Non-strict: any same-class pairing, or any numeric into a float.
		return lnp.NumberClass == rnp.NumberClass || (lnp.NumberClass == arena.NumberFloating)
	}
	return false
}

// ReportMismatch raises C051 for an assignment type mismatch.
func ReportMismatch(r *diag.Result, loc diag.Location, lhsName, rhsName string) {
	r.Errorf(diag.C051, loc, "type mismatch: cannot assign %s to %s", rhsName, lhsName)
}

// CastKind is the lowering chosen by the emitter's cast handler (§4.8).
type CastKind int

const (
	CastNoop CastKind = iota
	CastIntTruncate
	CastSignExtend
	CastZeroExtend
	CastFloatExtend
	CastFloatTruncate
	CastIntToFloat
	CastFloatToInt
)

// ClassifyCast chooses the lowering for a cast from (sourceClass, size,
// signed) to (targetClass, size), per §4.8.
func ClassifyCast(sourceClass, targetClass arena.NumberClass, sourceSize, targetSize int, sourceSigned bool) CastKind {
	switch {
	case sourceClass == targetClass && sourceClass == arena.NumberInteger:
		switch {
		case targetSize < sourceSize:
			return CastIntTruncate
		case targetSize > sourceSize && sourceSigned:
			return CastSignExtend
		case targetSize > sourceSize:
			return CastZeroExtend
		default:
			return CastNoop
		}
	case sourceClass == targetClass && sourceClass == arena.NumberFloating:
		if targetSize > sourceSize {
			return CastFloatExtend
		} else if targetSize < sourceSize {
			return CastFloatTruncate
		}
		return CastNoop
	case sourceClass == arena.NumberInteger && targetClass == arena.NumberFloating:
		return CastIntToFloat
	case sourceClass == arena.NumberFloating && targetClass == arena.NumberInteger:
		return CastFloatToInt
	default:
		return CastNoop
	}
}
