// Package builder is the element factory (spec §2.3): it constructs every
// CodeDOM variant, wires parent/child ownership, and attaches comments and
// attributes collected by the evaluator.
package builder

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/scope"
)

// Builder constructs elements into a single arena, keeping the handful of
// process-wide singleton literals (§9) memoized so repeated requests for
// `nil`/`true`/`false`/`uninitialized`/`value_sink` hand out the same id.
type Builder struct {
	Arena *arena.Arena
	Scope *scope.Graph

	singletons map[arena.ElementKind]arena.ElementID
	boolSingle map[bool]arena.ElementID
}

// New creates a Builder over a fresh or existing arena.
func New(a *arena.Arena) *Builder {
	return &Builder{
		Arena:      a,
		Scope:      scope.New(a),
		singletons: make(map[arena.ElementKind]arena.ElementID),
		boolSingle: make(map[bool]arena.ElementID),
	}
}

func (b *Builder) new(kind arena.ElementKind, payload any, loc arena.Location) *arena.CodeElement {
	e := &arena.CodeElement{Kind: kind, Payload: payload, Location: loc}
	b.Arena.Add(e)
	return e
}

// adopt registers child as owned by parent and, when parentScope is not
// NoElement, sets the child's enclosing scope.
func (b *Builder) adopt(parent, child, parentScope arena.ElementID) {
	if parent != arena.NoElement {
		b.Arena.Adopt(parent, child)
	}
	if parentScope != arena.NoElement {
		if e := b.Arena.Find(child); e != nil {
			e.ParentScope = parentScope
		}
	}
}

// --- Singletons (§9) -------------------------------------------------------

// Nil returns the shared `nil` literal, creating it on first use.
func (b *Builder) Nil() arena.ElementID {
	if id, ok := b.singletons[arena.KindNil]; ok {
		return id
	}
	e := b.new(arena.KindNil, nil, arena.Location{})
	e.IsSingleton = true
	b.singletons[arena.KindNil] = e.ID
	return e.ID
}

// Uninitialized returns the shared `uninitialized` literal.
func (b *Builder) Uninitialized() arena.ElementID {
	if id, ok := b.singletons[arena.KindUninitialized]; ok {
		return id
	}
	e := b.new(arena.KindUninitialized, nil, arena.Location{})
	e.IsSingleton = true
	b.singletons[arena.KindUninitialized] = e.ID
	return e.ID
}

// ValueSink returns the shared `_` discard-target literal.
func (b *Builder) ValueSink() arena.ElementID {
	if id, ok := b.singletons[arena.KindValueSink]; ok {
		return id
	}
	e := b.new(arena.KindValueSink, nil, arena.Location{})
	e.IsSingleton = true
	b.singletons[arena.KindValueSink] = e.ID
	return e.ID
}

// Bool returns the shared `true`/`false` literal for value.
func (b *Builder) Bool(value bool) arena.ElementID {
	if id, ok := b.boolSingle[value]; ok {
		return id
	}
	e := b.new(arena.KindBool, &arena.BoolPayload{Value: value}, arena.Location{})
	e.IsSingleton = true
	b.boolSingle[value] = e.ID
	return e.ID
}

// --- Literals ---------------------------------------------------------------

func (b *Builder) Int(value int64, unsigned bool, loc arena.Location) arena.ElementID {
	return b.new(arena.KindInt, &arena.IntPayload{Value: value, Unsigned: unsigned}, loc).ID
}

func (b *Builder) Float(value float64, loc arena.Location) arena.ElementID {
	return b.new(arena.KindFloat, &arena.FloatPayload{Value: value}, loc).ID
}

func (b *Builder) String(value string, loc arena.Location) arena.ElementID {
	return b.new(arena.KindString, &arena.StringPayload{Value: value, InternID: -1}, loc).ID
}

func (b *Builder) Character(value rune, loc arena.Location) arena.ElementID {
	return b.new(arena.KindCharacter, &arena.CharacterPayload{Value: value}, loc).ID
}

// --- Declarations ------------------------------------------------------------

// Identifier constructs an `identifier` element under parentScope, declaring
// it by name in the enclosing block (§4.2's ordering guarantee: first
// insertion wins first place).
func (b *Builder) Identifier(name string, declaredWith string, isConstant bool, parentScope arena.ElementID, loc arena.Location) arena.ElementID {
	e := b.new(arena.KindIdentifier, &arena.IdentifierPayload{
		Name:         name,
		IsConstant:   isConstant,
		TypeRef:      arena.NoElement,
		Initializer:  arena.NoElement,
		DeclaredWith: declaredWith,
	}, loc)
	b.adopt(arena.NoElement, e.ID, parentScope)
	if parent := b.Arena.Find(parentScope); parent != nil {
		if bp := scope.BlockPayload(parent); bp != nil {
			bp.DeclareIdentifier(name, e.ID)
		}
	}
	return e.ID
}

// Field appends a named field to a composite type's inner scope, computing
// its offset from the previous field per §4.3 add_composite_type_fields.
func (b *Builder) Field(composite arena.ElementID, name string, typeRef arena.ElementID, sizeInBytes int, loc arena.Location) arena.ElementID {
	comp := b.Arena.Find(composite)
	if comp == nil {
		return arena.NoElement
	}
	cp, ok := comp.Payload.(*arena.CompositeTypePayload)
	if !ok {
		return arena.NoElement
	}
	offset := 0
	if !cp.IsUnion {
		if len(cp.FieldOrder) > 0 {
			prevName := cp.FieldOrder[len(cp.FieldOrder)-1]
			prevID := cp.Fields[prevName]
			if prev := b.Arena.Find(prevID); prev != nil {
				if fp, ok := prev.Payload.(*arena.FieldPayload); ok {
					offset = fp.Offset + fp.SizeInBytes
				}
			}
		}
	}
	e := b.new(arena.KindField, &arena.FieldPayload{
		Name:        name,
		TypeRef:     typeRef,
		Offset:      offset,
		SizeInBytes: sizeInBytes,
	}, loc)
	b.adopt(composite, e.ID, composite)
	cp.FieldOrder = append(cp.FieldOrder, name)
	cp.Fields[name] = e.ID
	return e.ID
}

// Namespace constructs (or returns the existing) anonymous namespace
// identifier declared under parentScope, for add_namespaces_to_scope (§4.3).
func (b *Builder) Namespace(name string, parentScope arena.ElementID, loc arena.Location) arena.ElementID {
	if parent := b.Arena.Find(parentScope); parent != nil {
		if bp := scope.BlockPayload(parent); bp != nil {
			if ids, ok := bp.Identifiers[name]; ok && len(ids) > 0 {
				if ident := b.Arena.Find(ids[0]); ident != nil {
					if ip, ok := ident.Payload.(*arena.IdentifierPayload); ok && ip.Initializer != arena.NoElement {
						if init := b.Arena.Find(ip.Initializer); init != nil && init.Kind == arena.KindNamespace {
							return init.ID
						}
					}
				}
			}
		}
	}

	ns := b.new(arena.KindNamespace, &arena.NamespacePayload{Name: name, BlockPayload: arena.NewBlockPayload()}, loc)
	b.adopt(parentScope, ns.ID, parentScope)
	ident := b.Identifier(name, "::", true, parentScope, loc)
	if identElem := b.Arena.Find(ident); identElem != nil {
		if ip, ok := identElem.Payload.(*arena.IdentifierPayload); ok {
			ip.Initializer = ns.ID
		}
	}
	b.adopt(ident, ns.ID, arena.NoElement)
	return ns.ID
}

// ProcedureType constructs a procedure_type element with a dedicated header
// scope holding its parameter and return-parameter identifiers (§3.3).
func (b *Builder) ProcedureType(parentScope arena.ElementID, loc arena.Location) arena.ElementID {
	header := b.Block(parentScope, loc)
	e := b.new(arena.KindProcedureType, &arena.ProcedureTypePayload{
		TypeHeader:  arena.TypeHeader{Access: arena.AccessValue},
		HeaderScope: header,
	}, loc)
	b.adopt(parentScope, e.ID, parentScope)
	return e.ID
}

// AddParameter declares a value parameter inside procType's header scope, in
// declared order.
func (b *Builder) AddParameter(procType arena.ElementID, name string, typeRef arena.ElementID, loc arena.Location) arena.ElementID {
	pp, ok := b.procedureType(procType)
	if !ok {
		return arena.NoElement
	}
	ident := b.Identifier(name, ":", false, pp.HeaderScope, loc)
	b.setTypeRef(ident, typeRef)
	b.AppendStatement(pp.HeaderScope, ident)
	pp.Parameters = append(pp.Parameters, ident)
	return ident
}

// AddReturnParameter declares a named return-tuple member inside procType's
// header scope, in declared order.
func (b *Builder) AddReturnParameter(procType arena.ElementID, name string, typeRef arena.ElementID, loc arena.Location) arena.ElementID {
	pp, ok := b.procedureType(procType)
	if !ok {
		return arena.NoElement
	}
	ident := b.Identifier(name, ":", false, pp.HeaderScope, loc)
	b.setTypeRef(ident, typeRef)
	b.AppendStatement(pp.HeaderScope, ident)
	pp.ReturnParameters = append(pp.ReturnParameters, ident)
	return ident
}

func (b *Builder) procedureType(id arena.ElementID) (*arena.ProcedureTypePayload, bool) {
	e := b.Arena.Find(id)
	if e == nil {
		return nil, false
	}
	pp, ok := e.Payload.(*arena.ProcedureTypePayload)
	return pp, ok
}

func (b *Builder) setTypeRef(ident, typeRef arena.ElementID) {
	if e := b.Arena.Find(ident); e != nil {
		if ip, ok := e.Payload.(*arena.IdentifierPayload); ok {
			ip.TypeRef = typeRef
		}
	}
}

// ProcedureInstance constructs a new body scope for procType and records it
// among the type's instances (§9: callers are responsible for the
// at-most-one-instance-per-(header-scope,body) rule named there). The
// instance's parent scope is the header scope, so body statements can see
// parameters by unqualified name.
func (b *Builder) ProcedureInstance(procType arena.ElementID, loc arena.Location) arena.ElementID {
	headerScope := arena.NoElement
	pp, ok := b.procedureType(procType)
	if ok {
		headerScope = pp.HeaderScope
	}
	e := b.new(arena.KindProcedureInstance, &arena.ProcedureInstancePayload{
		BlockPayload:  arena.NewBlockPayload(),
		ProcedureType: procType,
	}, loc)
	b.adopt(procType, e.ID, headerScope)
	b.Scope.PushScope(e.ID, headerScope)
	if ok {
		pp.Instances = append(pp.Instances, e.ID)
	}
	return e.ID
}

// Module constructs a root `module` element — a root block tagged per §3.2.
func (b *Builder) Module(path string, loc arena.Location) arena.ElementID {
	bp := arena.NewBlockPayload()
	bp.IsRoot = true
	e := b.new(arena.KindModule, &arena.ModulePayload{Path: path, BlockPayload: bp}, loc)
	return e.ID
}

// Import records an import edge visible from parentScope (§4.2).
func (b *Builder) Import(path string, targetScope arena.ElementID, fromParts []string, parentScope arena.ElementID, loc arena.Location) arena.ElementID {
	e := b.new(arena.KindImport, &arena.ImportPayload{Path: path, TargetScope: targetScope, FromParts: fromParts}, loc)
	b.adopt(parentScope, e.ID, parentScope)
	if parent := b.Arena.Find(parentScope); parent != nil {
		if bp := scope.BlockPayload(parent); bp != nil {
			bp.Imports = append(bp.Imports, e.ID)
		}
	}
	return e.ID
}

// --- Blocks / control flow ---------------------------------------------------

// Block constructs a nested lexical block under parentScope.
func (b *Builder) Block(parentScope arena.ElementID, loc arena.Location) arena.ElementID {
	e := b.new(arena.KindBlock, arena.NewBlockPayload(), loc)
	b.adopt(parentScope, e.ID, parentScope)
	b.Scope.PushScope(e.ID, parentScope)
	return e.ID
}

// AppendStatement appends stmt to block's ordered statement list in source
// order (§5's ordering guarantee) and adopts it.
func (b *Builder) AppendStatement(block, stmt arena.ElementID) {
	blockElem := b.Arena.Find(block)
	if blockElem == nil {
		return
	}
	bp := scope.BlockPayload(blockElem)
	if bp == nil {
		return
	}
	bp.Statements = append(bp.Statements, stmt)
	b.adopt(block, stmt, arena.NoElement)
}

// --- Operators ---------------------------------------------------------------

func (b *Builder) Binary(op string, lhs, rhs arena.ElementID, loc arena.Location) arena.ElementID {
	e := b.new(arena.KindBinary, &arena.BinaryPayload{Operator: op, LHS: lhs, RHS: rhs}, loc)
	b.adopt(e.ID, lhs, arena.NoElement)
	b.adopt(e.ID, rhs, arena.NoElement)
	return e.ID
}

func (b *Builder) Unary(op string, operand arena.ElementID, loc arena.Location) arena.ElementID {
	e := b.new(arena.KindUnary, &arena.UnaryPayload{Operator: op, Operand: operand}, loc)
	b.adopt(e.ID, operand, arena.NoElement)
	return e.ID
}

// --- Attributes & comments ----------------------------------------------------

func (b *Builder) Attribute(name, value string, loc arena.Location) arena.ElementID {
	return b.new(arena.KindAttribute, &arena.AttributePayload{Name: name, Value: value}, loc).ID
}

func (b *Builder) Comment(text string, loc arena.Location) arena.ElementID {
	return b.new(arena.KindComment, &arena.CommentPayload{Text: text}, loc).ID
}

// Attach records attributes and comments produced while evaluating target's
// AST node onto target, the way every evaluator handler finishes (§4.3).
func (b *Builder) Attach(target arena.ElementID, attributes, comments []arena.ElementID) {
	e := b.Arena.Find(target)
	if e == nil {
		return
	}
	e.Attributes = append(e.Attributes, attributes...)
	e.Comments = append(e.Comments, comments...)
	for _, id := range attributes {
		b.adopt(target, id, arena.NoElement)
	}
	for _, id := range comments {
		b.adopt(target, id, arena.NoElement)
	}
}
