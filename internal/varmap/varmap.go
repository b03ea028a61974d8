// Package varmap implements the variable map of spec §4.7: before emitting a
// scope, it classifies every variable reachable from that scope's frame into
// local/parameter/return_parameter/module/temporary storage, tracks the
// per-use init/fill/spill state machine, and manages the temporary register
// pool and call-boundary save/restore groups the emitter depends on.
package varmap

import (
	"fmt"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/scope"
	"github.com/oxhq/basecode/internal/types"
)

// Kind is one of the five variable storage classes.
type Kind int

const (
	KindLocal Kind = iota
	KindParameter
	KindReturnParameter
	KindModule
	KindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindParameter:
		return "parameter"
	case KindReturnParameter:
		return "return_parameter"
	case KindModule:
		return "module"
	case KindTemporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// FieldOffset records that a variable is a field of a composite, so its
// storage resolves through base_ref+from_start rather than its own slot.
type FieldOffset struct {
	BaseRef   arena.ElementID
	FromStart int
}

// Variable is one entry of the map: the classification, storage location,
// and per-use tracking flags described in §4.7.
type Variable struct {
	Identifier  arena.ElementID
	Kind        Kind
	Label       string
	Offset      int // frame-relative for local/parameter/return_parameter; unused for module/temporary
	SizeInBytes int
	NumberClass arena.NumberClass
	Field       *FieldOffset
	ModuleLabel string

	MustInit    bool
	Used        bool
	Initialized bool
	Filled      bool
	Spilled     bool
	InBlock     arena.ElementID
	Pointer     bool
}

type tempEntry struct {
	name     string
	class    arena.NumberClass
	released bool
}

// Map is the variable map for one frame (a procedure_instance body, or the
// module's own top-level frame for module-scope variables).
type Map struct {
	Arena *arena.Arena
	Types *types.Registry

	vars  map[arena.ElementID]*Variable
	order []arena.ElementID

	temps   []*tempEntry
	tempSeq int

	Bss    []arena.ElementID
	Data   []arena.ElementID
	RoData []arena.ElementID
}

// New creates an empty variable map over a.
func New(a *arena.Arena, t *types.Registry) *Map {
	return &Map{Arena: a, Types: t, vars: make(map[arena.ElementID]*Variable)}
}

const paramBaseOffset = 16 // above saved frame pointer + return address

// frameBoundaryKinds are the scopes that get their own frame; Build does not
// recurse into them when collecting locals for the current frame.
func isFrameBoundary(k arena.ElementKind) bool {
	switch k {
	case arena.KindProcedureInstance, arena.KindStructType, arena.KindUnionType,
		arena.KindEnumType, arena.KindNamespace, arena.KindModule, arena.KindProcedureType:
		return true
	default:
		return false
	}
}

// Build classifies every variable reachable from block into the map,
// registering procType's parameters and return parameters first (so their
// offsets precede any local's) then walking block's subtree for locals.
func (m *Map) Build(block arena.ElementID, procType arena.ElementID) error {
	m.vars = make(map[arena.ElementID]*Variable)
	m.order = nil

	offset := paramBaseOffset
	if procType != arena.NoElement {
		pt := m.Arena.Find(procType)
		if pt == nil {
			return fmt.Errorf("varmap: build: unknown procedure type %d", procType)
		}
		pp, ok := pt.Payload.(*arena.ProcedureTypePayload)
		if !ok {
			return fmt.Errorf("varmap: build: element %d is not a procedure type", procType)
		}
		for _, paramID := range pp.Parameters {
			offset = m.addFrameVar(paramID, KindParameter, offset)
		}
		for _, retID := range pp.ReturnParameters {
			offset = m.addFrameVar(retID, KindReturnParameter, offset)
		}
	}

	localOffset := 0
	m.collectLocals(block, true, &localOffset)
	return nil
}

func (m *Map) collectLocals(id arena.ElementID, isRoot bool, offset *int) {
	e := m.Arena.Find(id)
	if e == nil {
		return
	}
	if e.Kind == arena.KindIdentifier {
		if ip, ok := e.Payload.(*arena.IdentifierPayload); ok && !ip.IsConstant {
			m.addLocal(e, ip, offset)
		}
	}
	if isFrameBoundary(e.Kind) && !isRoot {
		return
	}
	for _, child := range e.OwnerOf {
		m.collectLocals(child, false, offset)
	}
}

func (m *Map) addLocal(e *arena.CodeElement, ip *arena.IdentifierPayload, offset *int) {
	if _, exists := m.vars[e.ID]; exists {
		return
	}
	size := m.sizeOf(ip.TypeRef)
	*offset += size
	v := &Variable{
		Identifier:  e.ID,
		Kind:        KindLocal,
		Label:       ip.Name,
		Offset:      -*offset,
		SizeInBytes: size,
		NumberClass: m.numberClassOf(ip.TypeRef),
		MustInit:    true,
		InBlock:     e.ParentScope,
		Pointer:     m.isPointer(ip.TypeRef),
	}
	m.vars[e.ID] = v
	m.order = append(m.order, e.ID)
}

func (m *Map) addFrameVar(id arena.ElementID, kind Kind, offset int) int {
	e := m.Arena.Find(id)
	if e == nil {
		return offset
	}
	ip, ok := e.Payload.(*arena.IdentifierPayload)
	if !ok {
		return offset
	}
	size := m.sizeOf(ip.TypeRef)
	v := &Variable{
		Identifier:  id,
		Kind:        kind,
		Label:       ip.Name,
		Offset:      offset,
		SizeInBytes: size,
		NumberClass: m.numberClassOf(ip.TypeRef),
		MustInit:    kind == KindParameter || kind == KindReturnParameter,
		Pointer:     m.isPointer(ip.TypeRef),
	}
	m.vars[id] = v
	m.order = append(m.order, id)
	return offset + size
}

func (m *Map) sizeOf(typeID arena.ElementID) int {
	if typeID == arena.NoElement {
		return 8
	}
	if size := m.Types.SizeOfPublic(typeID); size > 0 {
		return size
	}
	return 8
}

func (m *Map) numberClassOf(typeID arena.ElementID) arena.NumberClass {
	e := m.Arena.Find(typeID)
	if e == nil {
		return arena.NumberNone
	}
	if np, ok := e.Payload.(*arena.NumericTypePayload); ok {
		return np.NumberClass
	}
	return arena.NumberNone
}

func (m *Map) isPointer(typeID arena.ElementID) bool {
	e := m.Arena.Find(typeID)
	return e != nil && e.Kind == arena.KindPointerType
}

// ClassifyModule groups moduleID's own top-level non-local variables into
// bss/data/ro_data (§4.7: never-initialized → bss, initialized → data,
// constant → ro_data).
func (m *Map) ClassifyModule(moduleID arena.ElementID) {
	e := m.Arena.Find(moduleID)
	if e == nil {
		return
	}
	bp := scope.BlockPayload(e)
	if bp == nil {
		return
	}
	for _, stmtID := range bp.Statements {
		stmt := m.Arena.Find(stmtID)
		if stmt == nil || stmt.Kind != arena.KindIdentifier {
			continue
		}
		ip, ok := stmt.Payload.(*arena.IdentifierPayload)
		if !ok {
			continue
		}
		v := &Variable{
			Identifier:  stmt.ID,
			Kind:        KindModule,
			Label:       ip.Name,
			SizeInBytes: m.sizeOf(ip.TypeRef),
			NumberClass: m.numberClassOf(ip.TypeRef),
			ModuleLabel: ip.Name,
			Pointer:     m.isPointer(ip.TypeRef),
		}
		m.vars[stmt.ID] = v
		m.order = append(m.order, stmt.ID)
		switch {
		case ip.IsConstant:
			m.RoData = append(m.RoData, stmt.ID)
		case ip.Initializer == arena.NoElement:
			m.Bss = append(m.Bss, stmt.ID)
		default:
			m.Data = append(m.Data, stmt.ID)
		}
	}
}

// Get returns the Variable for id, or nil if id isn't in the map.
func (m *Map) Get(id arena.ElementID) *Variable { return m.vars[id] }

// All returns every variable in classification order.
func (m *Map) All() []*Variable {
	out := make([]*Variable, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.vars[id])
	}
	return out
}

// ReturnParameters returns the identifier ids classified as
// return_parameter, in declaration order — the slots §4.8's return
// lowering stores each return expression into.
func (m *Map) ReturnParameters() []arena.ElementID {
	var out []arena.ElementID
	for _, id := range m.order {
		if v := m.vars[id]; v != nil && v.Kind == KindReturnParameter {
			out = append(out, id)
		}
	}
	return out
}

// --- Per-use state machine (§4.7) -------------------------------------------

// UseAction is what the emitter must do in response to a Use call.
type UseAction int

const (
	ActionNone UseAction = iota
	ActionInit
	ActionFill
)

// Use implements the per-use state machine. For a read (isAssignTarget
// false): first use emits an init (must_init clears, filled sets); a later
// use with filled already false requires a fill (reload into the assigned
// register); an already-filled use requires nothing further. For a write
// (isAssignTarget true), must_init/initialized/filled are set directly with
// no load emitted.
func (m *Map) Use(id arena.ElementID, isAssignTarget bool) UseAction {
	v := m.vars[id]
	if v == nil {
		return ActionNone
	}
	if isAssignTarget {
		v.MustInit = false
		v.Initialized = true
		v.Filled = true
		return ActionNone
	}
	if !v.Used {
		v.Used = true
		v.MustInit = false
		v.Filled = true
		return ActionInit
	}
	if !v.Filled {
		v.Filled = true
		return ActionFill
	}
	return ActionNone
}

// CompositeWrite clears Filled on every variable that aliases destBase (its
// own identifier, or a field whose base_ref is destBase), per §4.7's
// composite-write rule: subsequent reads must re-load after a block copy.
func (m *Map) CompositeWrite(destBase arena.ElementID) {
	for _, v := range m.vars {
		if v.Identifier == destBase || (v.Field != nil && v.Field.BaseRef == destBase) {
			v.Filled = false
		}
	}
}

// Spill marks id as written via the scalar spill path: stored from its
// assigned register into its memory slot.
func (m *Map) Spill(id arena.ElementID) {
	if v := m.vars[id]; v != nil {
		v.Spilled = true
		v.Filled = true
	}
}

// --- Temporary register pool (§4.7) -----------------------------------------

// RetainTemp reuses a released temporary of the given number class if one is
// available, else allocates a fresh t{n} name.
func (m *Map) RetainTemp(class arena.NumberClass) string {
	for _, t := range m.temps {
		if t.released && t.class == class {
			t.released = false
			return t.name
		}
	}
	name := fmt.Sprintf("t%d", m.tempSeq)
	m.tempSeq++
	m.temps = append(m.temps, &tempEntry{name: name, class: class})
	return name
}

// ReleaseTemp returns name to the pool for reuse by a later RetainTemp call.
func (m *Map) ReleaseTemp(name string) {
	for _, t := range m.temps {
		if t.name == name {
			t.released = true
			return
		}
	}
}

// --- Save/restore groups around calls (§4.7) --------------------------------

// Group is one pushm/popm range: a contiguous run of same-class live
// variables to save before a call and restore after, in reverse order.
type Group struct {
	Class arena.NumberClass
	Vars  []arena.ElementID
}

// GroupVariables partitions every currently-live (used) non-temporary
// variable into integer-class and float-class groups, splitting at every
// variable present in excluded (which must remain live through the call and
// so is never saved/restored).
func (m *Map) GroupVariables(excluded map[arena.ElementID]bool) []Group {
	var groups []Group
	var intRun, floatRun []arena.ElementID

	flush := func() {
		if len(intRun) > 0 {
			groups = append(groups, Group{Class: arena.NumberInteger, Vars: intRun})
			intRun = nil
		}
		if len(floatRun) > 0 {
			groups = append(groups, Group{Class: arena.NumberFloating, Vars: floatRun})
			floatRun = nil
		}
	}

	for _, id := range m.order {
		v := m.vars[id]
		if v == nil || v.Kind == KindTemporary || !v.Used {
			continue
		}
		if excluded[id] {
			flush()
			continue
		}
		if v.NumberClass == arena.NumberFloating {
			floatRun = append(floatRun, id)
		} else {
			intRun = append(intRun, id)
		}
	}
	flush()
	return groups
}

// Restore returns group's variables in the exact reverse of save order, per
// §4.7's restore-order guarantee.
func Restore(g Group) []arena.ElementID {
	out := make([]arena.ElementID, len(g.Vars))
	for i, id := range g.Vars {
		out[len(g.Vars)-1-i] = id
	}
	return out
}
