package arena

// This file collects the kind-specific Payload shapes stored in
// CodeElement.Payload. Arena itself never inspects Payload; consumers type
// assert against the struct matching the element's Kind.

// NumberClass distinguishes integer from floating-point number kinds, used
// throughout cast lowering and type checking (§3.3, §4.8).
type NumberClass int

const (
	NumberNone NumberClass = iota
	NumberInteger
	NumberFloating
)

// AccessModel is "value" or "pointer" access for a type (§3.3).
type AccessModel int

const (
	AccessValue AccessModel = iota
	AccessPointer
)

// --- Literals -----------------------------------------------------------

type BoolPayload struct{ Value bool }
type IntPayload struct {
	Value    int64
	Unsigned bool
}
type FloatPayload struct{ Value float64 }
type StringPayload struct {
	Value    string
	InternID int // -1 until interned; see internal/intern
}
type CharacterPayload struct{ Value rune }

// --- Declarations --------------------------------------------------------

// IdentifierPayload is the payload for `identifier` elements: a declared
// name bound to a type and, optionally, an initializer.
type IdentifierPayload struct {
	Name          string
	IsConstant    bool
	TypeRef       ElementID // resolved type element id, or NoElement
	Initializer   ElementID // initializer element id, or NoElement
	DeclaredWith  string    // ":" or "::" — tracks §4.3 P029 enforcement
	Namespace     []string  // qualifying namespace parts, outer to inner
}

type DeclarationPayload struct {
	Identifier ElementID
}

type FieldPayload struct {
	Name         string
	TypeRef      ElementID
	Offset       int // byte offset within the owning composite
	SizeInBytes  int
	Initializer  ElementID // NoElement if none
}

type NamespacePayload struct {
	Name string
	*BlockPayload
}

type ModulePayload struct {
	Path string
	*BlockPayload
}

type ImportPayload struct {
	Path       string // dotted module/namespace path being imported
	TargetScope ElementID
	FromParts  []string // non-empty for `from X import Y`
}

// --- Scope / Block (spec §3.2) -------------------------------------------

// BlockPayload is the scope data every block-like element owns: ordered
// statements, declared identifiers and types, a defer stack, and child
// blocks. Namespace/module/program/procedure_instance/struct/union/enum
// payloads embed *BlockPayload so they double as scopes.
type BlockPayload struct {
	Statements []ElementID
	Imports    []ElementID

	// Identifiers maps a declared name to every identifier element declared
	// under that name in this block, in insertion order (§4.2's ordering
	// guarantee for overload resolution).
	Identifiers map[string][]ElementID

	// Types maps a declared type name to its element id in this block.
	Types map[string]ElementID

	// References collects every identifier_reference/type_reference
	// created while evaluating this block, for the resolver to walk.
	References []ElementID

	ChildBlocks []ElementID

	// DeferStack is a LIFO of deferred expression element ids.
	DeferStack []ElementID

	HasStackFrame bool
	IsRoot        bool
}

// NewBlockPayload returns an initialized, empty block payload.
func NewBlockPayload() *BlockPayload {
	return &BlockPayload{
		Identifiers: make(map[string][]ElementID),
		Types:       make(map[string]ElementID),
	}
}

// DeclareIdentifier records id as declared under name, preserving
// insertion order for overload resolution (§4.2, §8 "scope lookup
// determinism").
func (b *BlockPayload) DeclareIdentifier(name string, id ElementID) {
	b.Identifiers[name] = append(b.Identifiers[name], id)
}

// PushDefer pushes expr onto the defer stack (LIFO).
func (b *BlockPayload) PushDefer(expr ElementID) {
	b.DeferStack = append(b.DeferStack, expr)
}

// DrainDefers returns the deferred expressions in reverse of push order,
// the order the emitter must emit them in at end-of-block (§4.8, §5), and
// empties the stack so a block's defers run exactly once even when it is
// drained both by an early return and by falling off its own end.
func (b *BlockPayload) DrainDefers() []ElementID {
	out := make([]ElementID, len(b.DeferStack))
	for i, id := range b.DeferStack {
		out[len(b.DeferStack)-1-i] = id
	}
	b.DeferStack = nil
	return out
}

// --- Types (§3.3) ---------------------------------------------------------

// TypeHeader is embedded in every type payload: the common fields every
// type variant carries per §3.3's invariants.
type TypeHeader struct {
	Symbol      ElementID // `symbol` element describing this type's name
	ParentScope ElementID
	SizeInBytes int
	Alignment   int
	NumberClass NumberClass
	Access      AccessModel
	sizeValid   bool
}

func (h *TypeHeader) SizeKnown() bool { return h.sizeValid }
func (h *TypeHeader) SetSize(size, align int) {
	h.SizeInBytes = size
	h.Alignment = align
	h.sizeValid = true
}

type NumericTypePayload struct {
	TypeHeader
	Name string // e.g. "u8", "u32", "f32"
}

type BoolTypePayload struct{ TypeHeader }
type RuneTypePayload struct{ TypeHeader }

// NamespaceTypePayload and ModuleTypePayload back the two scope-only
// singleton types (§3.3): a declaration of namespace/module kind must be
// made with `::`, never hold a runtime value, and occupy no frame storage.
type NamespaceTypePayload struct{ TypeHeader }
type ModuleTypePayload struct{ TypeHeader }

type PointerTypePayload struct {
	TypeHeader
	Base ElementID // type_reference to the pointee
}

type ArrayTypePayload struct {
	TypeHeader
	Base       ElementID   // type_reference to the element type
	Subscripts []ElementID // ordered subscript expressions
	FlatSize   int         // cached flattened byte size once all subscripts fold
}

type TupleTypePayload struct {
	TypeHeader
	Members []ElementID // type_reference ids, in order
}

// CompositeTypePayload backs struct/union/enum types: each owns an inner
// scope (fields declared as identifiers) plus a name->field index.
type CompositeTypePayload struct {
	TypeHeader
	*BlockPayload
	FieldOrder []string
	Fields     map[string]ElementID // name -> field element id
	IsUnion    bool
	EnumBase   ElementID // numeric type backing an enum's values, if KindEnumType
}

type ProcedureTypePayload struct {
	TypeHeader
	HeaderScope      ElementID   // scope holding parameter identifiers
	Parameters       []ElementID // identifier ids, in declared order
	ReturnParameters []ElementID // identifier ids of the return tuple
	Instances        []ElementID // procedure_instance element ids (bodies)
	IsForeign        bool
	IsVariadic       bool
}

type GenericTypePayload struct {
	TypeHeader
	Constraints []ElementID // type_reference ids; empty means "open generic"
}

type FamilyTypePayload struct {
	TypeHeader
	Alternatives []ElementID // type_reference ids
}

type UnknownTypePayload struct {
	TypeHeader
	Hint string // best-effort diagnostic hint for the Open Question trail
}

// --- Operators -------------------------------------------------------------

type UnaryPayload struct {
	Operator string
	Operand  ElementID
}

type BinaryPayload struct {
	Operator string
	LHS      ElementID
	RHS      ElementID
	// IsSyntheticAssignment marks a binary built by declare_identifier for
	// a non-constant initializer (§4.3), so the emitter treats it exactly
	// like an explicit assignment.
	IsSyntheticAssignment bool
}

type SpreadPayload struct{ Operand ElementID }

type CastPayload struct {
	Operand ElementID
	TypeRef ElementID
	IsTransmute bool
}

type SubscriptPayload struct {
	Base      ElementID
	Index     ElementID
	IsAssignTarget bool
}

type MemberAccessPayload struct {
	LHS  ElementID
	Name string
	// Resolved is the field or identifier element this access resolves to,
	// once the resolver's member-access restriction (§4.4.1) fires.
	Resolved ElementID
}

// --- Control flow ------------------------------------------------------

type IfPayload struct {
	Predicate ElementID
	TrueBlock ElementID
	FalseBlock ElementID // NoElement if no else-branch
}

type WhilePayload struct {
	Predicate ElementID
	Body      ElementID
}

type ForPayload struct {
	Init      ElementID
	Predicate ElementID
	Step      ElementID
	Body      ElementID
	// RangeDir/RangeKind record the desugared range intrinsic's direction
	// ("asc"/"desc") and bound kind ("inclusive"/"exclusive") per §4.3.
	RangeDir  string
	RangeKind string
}

type SwitchPayload struct {
	Expr  ElementID
	Cases []ElementID
}

type CasePayload struct {
	Match       ElementID // expression compared against the switch expr
	Body        ElementID
	Fallthrough bool
}

type ReturnPayload struct {
	Values []ElementID
}

type DeferPayload struct{ Expr ElementID }
type WithPayload struct {
	Target ElementID
	Body   ElementID
}
type YieldPayload struct{ Value ElementID }

type LabelPayload struct{ Name string }
type LabelReferencePayload struct {
	Name    string
	Target  ElementID
}

// --- Calls ---------------------------------------------------------------

type ArgumentListPayload struct{ Arguments []ElementID }
type ArgumentPairPayload struct {
	Name  string // empty for positional
	Value ElementID
}

type ProcedureCallPayload struct {
	Callee    ElementID // identifier_reference naming the procedure
	Arguments ElementID // argument_list
	// Candidates are the overload candidates collected during resolution;
	// Resolved is the winner once overload resolution (§4.5) completes.
	Candidates []ElementID
	Resolved   ElementID
}

type ProcedureInstancePayload struct {
	*BlockPayload
	ProcedureType ElementID
}

type IntrinsicPayload struct {
	Name      string
	Arguments ElementID
	// Substitution records the element a successful fold spliced in, for
	// the intrinsic_substitution attribute (§4.4).
	Substitution ElementID
}

// --- Program-structural ----------------------------------------------------

type ProgramPayload struct{ *BlockPayload }

type InitializerPayload struct{ Expr ElementID }

type AttributePayload struct {
	Name  string
	Value string
}

type DirectivePayload struct {
	Name      string // "run", "assert", "type", ...
	Arguments ElementID
}

type CommentPayload struct{ Text string }

type RawBlockPayload struct{ Text string }

type AssemblyLabelPayload struct{ Name string }
type AssemblyLiteralLabelPayload struct {
	Name string
	InternID int
}

type SymbolPayload struct {
	Name           string
	NamespaceParts []string
	TypeParameters []ElementID // tagged symbol ids for generic binding
	IsConstant     bool
}

type TypeReferencePayload struct {
	// Resolved is the concrete type element this reference names, once
	// resolution completes (§3.3's "exactly one type-reference" invariant).
	Resolved ElementID
	// UnresolvedName is the textual type name before resolution.
	UnresolvedName string
}

type IdentifierReferencePayload struct {
	Symbol   ElementID // symbol element naming the lookup target
	Resolved ElementID // identifier element id once resolved
	Scope    ElementID // scope captured at reference-creation time (§4.4.1)
}

type ModuleReferencePayload struct {
	Target ElementID // module element id
}
