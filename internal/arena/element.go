package arena

import sitter "github.com/smacker/go-tree-sitter"

// ElementID is a process-wide, strictly monotone handle into the arena.
// Back references use ids, never pointers, so ownership cycles can't form.
type ElementID uint64

// NoElement is the zero value meaning "no element" / an unset reference.
const NoElement ElementID = 0

// Location is the source span a diagnostic or emitted instruction can point
// back to. Row/Column reuse tree-sitter's Point so downstream tooling (the
// listing/graphviz formatters, themselves non-goals here) can consume spans
// in the shape they already expect from the external parser.
type Location struct {
	Module string
	Start  sitter.Point
	End    sitter.Point
}

// CodeElement is the atomic CodeDOM unit described in spec §3.1.
type CodeElement struct {
	ID ElementID
	Kind ElementKind

	// ParentElement is a weak back reference used only for upward queries
	// (e.g. "which procedure_call owns this argument_list"), never for
	// ownership decisions.
	ParentElement ElementID

	// ParentScope is the enclosing block element's id (NoElement for roots).
	ParentScope ElementID

	Attributes []ElementID
	Comments   []ElementID
	Location   Location

	IsSingleton bool
	NonOwning   bool

	// OwnerOf lists the ids this element owns (its subtree, per §3.1's
	// ownership invariant). Populated by the builder at construction time.
	OwnerOf []ElementID

	// Payload is the kind-specific data. Arena never type-asserts it; each
	// consuming package (types, evaluator, resolver, emitter) knows the
	// concrete payload shape for the kinds it cares about.
	Payload any
}

// Arena is the element map and kind index described in spec §4.1.
type Arena struct {
	nextID   ElementID
	elements map[ElementID]*CodeElement
	// order preserves insertion order for deterministic emitter walks.
	order []ElementID
	byKind map[ElementKind][]ElementID
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{
		nextID:   1,
		elements: make(map[ElementID]*CodeElement),
		byKind:   make(map[ElementKind][]ElementID),
	}
}

// Alloc reserves the next id without registering a backing element. Callers
// use this when they need to know an element's id before its payload (e.g.
// self-referential procedure types) is fully built, then call Add.
func (a *Arena) Alloc() ElementID {
	id := a.nextID
	a.nextID++
	return id
}

// Add inserts element into the id map and kind index. If element.ID is
// zero, a fresh id is allocated; otherwise the caller's pre-allocated id
// (from Alloc) is honored.
func (a *Arena) Add(element *CodeElement) ElementID {
	if element.ID == NoElement {
		element.ID = a.Alloc()
	}
	a.elements[element.ID] = element
	a.order = append(a.order, element.ID)
	a.byKind[element.Kind] = append(a.byKind[element.Kind], element.ID)
	return element.ID
}

// Find returns the element for id, or nil if absent.
func (a *Arena) Find(id ElementID) *CodeElement {
	return a.elements[id]
}

// FindByKind returns every element of the given kind, in insertion order.
func (a *Arena) FindByKind(k ElementKind) []*CodeElement {
	ids := a.byKind[k]
	out := make([]*CodeElement, 0, len(ids))
	for _, id := range ids {
		if e, ok := a.elements[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// All iterates the arena in insertion order, the ordering the emitter
// depends on for determinism.
func (a *Arena) All() []*CodeElement {
	out := make([]*CodeElement, 0, len(a.order))
	for _, id := range a.order {
		if e, ok := a.elements[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// OwnedElements returns the ids element owns, the set Remove cascades
// through. Singletons are never removed and so are excluded from recursive
// removal even if they are referenced as owned (defensive: this should not
// occur, since singletons are never adopted by a builder).
func (a *Arena) OwnedElements(id ElementID) []ElementID {
	e := a.Find(id)
	if e == nil {
		return nil
	}
	return e.OwnerOf
}

// Remove deletes id and, transitively, every element it owns. It is a
// no-op on missing ids and refuses to remove singletons (§4.1).
func (a *Arena) Remove(id ElementID) {
	e := a.Find(id)
	if e == nil {
		return
	}
	if e.IsSingleton {
		return
	}
	for _, child := range e.OwnerOf {
		a.Remove(child)
	}
	delete(a.elements, id)
	a.removeFromKindIndex(e.Kind, id)
	a.removeFromOrder(id)
}

func (a *Arena) removeFromKindIndex(k ElementKind, id ElementID) {
	ids := a.byKind[k]
	for i, existing := range ids {
		if existing == id {
			a.byKind[k] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (a *Arena) removeFromOrder(id ElementID) {
	for i, existing := range a.order {
		if existing == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// Adopt records child as owned by parent, appending to the parent's
// OwnerOf list and setting the child's ParentElement back reference.
func (a *Arena) Adopt(parent, child ElementID) {
	p := a.Find(parent)
	c := a.Find(child)
	if p == nil || c == nil {
		return
	}
	p.OwnerOf = append(p.OwnerOf, child)
	c.ParentElement = parent
}
