// Package scope implements the symbol & scope resolution algorithm of
// spec §4.2: qualified-name lookup across the block tree with fall-through
// into import edges.
package scope

import (
	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/diag"
)

// Graph wraps an arena and exposes lookup operations over its block
// payloads. It holds no state of its own — every block's scope data lives
// in that block element's BlockPayload, per spec §3.2.
type Graph struct {
	Arena *arena.Arena
}

// New creates a scope Graph over a.
func New(a *arena.Arena) *Graph {
	return &Graph{Arena: a}
}

// blockOf returns the BlockPayload for a block-like element, or nil.
func blockOf(e *arena.CodeElement) *arena.BlockPayload {
	if e == nil {
		return nil
	}
	switch p := e.Payload.(type) {
	case *arena.BlockPayload:
		return p
	case *arena.ProgramPayload:
		return p.BlockPayload
	case *arena.ModulePayload:
		return p.BlockPayload
	case *arena.NamespacePayload:
		return p.BlockPayload
	case *arena.ProcedureInstancePayload:
		return p.BlockPayload
	case *arena.CompositeTypePayload:
		return p.BlockPayload
	}
	return nil
}

// parentScope returns the enclosing block element, or nil at the root.
func (g *Graph) parentScope(e *arena.CodeElement) *arena.CodeElement {
	if e == nil || e.ParentScope == arena.NoElement {
		return nil
	}
	return g.Arena.Find(e.ParentScope)
}

// FindIdentifier resolves a dotted qualified name starting from scope,
// implementing the left-to-right part walk of §4.2. parts is outer-to-inner
// (e.g. ["io", "Writer"] for `io.Writer`). It returns every identifier
// element bound to the final part, or nil if unresolved.
func (g *Graph) FindIdentifier(parts []string, scopeID arena.ElementID) []arena.ElementID {
	if len(parts) == 0 {
		return nil
	}
	current := g.Arena.Find(scopeID)
	for i, part := range parts {
		last := i == len(parts)-1
		hits, nextScope := g.lookupPart(part, current)
		if len(hits) == 0 {
			return nil
		}
		if last {
			return hits
		}
		if nextScope == nil {
			// Intermediate part resolved to something that isn't a
			// namespace or module reference: abort the walk (§4.2 failure).
			return nil
		}
		current = nextScope
	}
	return nil
}

// lookupPart walks parent scopes from block upward looking for name,
// falling through into visible import edges when the block chain is
// exhausted. It returns the hit identifiers and, when the walk must
// continue (more parts remain), the scope to continue from.
func (g *Graph) lookupPart(name string, block *arena.CodeElement) ([]arena.ElementID, *arena.CodeElement) {
	for b := block; b != nil; b = g.parentScope(b) {
		bp := blockOf(b)
		if bp == nil {
			continue
		}
		if hits, ok := bp.Identifiers[name]; ok && len(hits) > 0 {
			return hits, g.advanceScope(hits[0])
		}
		// Fall through into imports visible from this block (§4.2 step 2.2).
		for _, importID := range bp.Imports {
			imp := g.Arena.Find(importID)
			if imp == nil {
				continue
			}
			ip, ok := imp.Payload.(*arena.ImportPayload)
			if !ok {
				continue
			}
			target := g.Arena.Find(ip.TargetScope)
			if target == nil {
				continue
			}
			searchName := name
			if len(ip.FromParts) > 0 {
				// `from X import Y`: the symbol is prepended with X, so a
				// bare lookup of the imported name still succeeds from the
				// importer's block without re-walking X's own scope chain.
				if hits, next := g.lookupPart(searchName, target); len(hits) > 0 {
					return hits, next
				}
				continue
			}
			if hits, next := g.lookupPart(searchName, target); len(hits) > 0 {
				return hits, next
			}
		}
	}
	return nil, nil
}

// advanceScope implements §4.2 step 3: when a part resolves to an
// identifier whose initializer is a namespace or module reference, lookup
// of the next part continues inside that inner scope.
func (g *Graph) advanceScope(identifierID arena.ElementID) *arena.CodeElement {
	ident := g.Arena.Find(identifierID)
	if ident == nil {
		return nil
	}
	ip, ok := ident.Payload.(*arena.IdentifierPayload)
	if !ok || ip.Initializer == arena.NoElement {
		return nil
	}
	init := g.Arena.Find(ip.Initializer)
	if init == nil {
		return nil
	}
	switch init.Kind {
	case arena.KindNamespace:
		return init
	case arena.KindModuleReference:
		mrp, ok := init.Payload.(*arena.ModuleReferencePayload)
		if !ok {
			return nil
		}
		return g.Arena.Find(mrp.Target)
	default:
		// An initializer element wrapping a namespace/module reference:
		// unwrap one level (declare_identifier builds initializer nodes).
		if initP, ok := init.Payload.(*arena.InitializerPayload); ok {
			inner := g.Arena.Find(initP.Expr)
			if inner != nil && inner.Kind == arena.KindNamespace {
				return inner
			}
			if inner != nil && inner.Kind == arena.KindModuleReference {
				if mrp, ok := inner.Payload.(*arena.ModuleReferencePayload); ok {
					return g.Arena.Find(mrp.Target)
				}
			}
		}
		return nil
	}
}

// Resolve looks up parts starting at scopeID and reports P004 against r if
// the identifier is unresolved. It is the entry point the resolver and
// evaluator call instead of FindIdentifier directly, so every failure is
// uniformly diagnosed.
func (g *Graph) Resolve(parts []string, scopeID arena.ElementID, loc diag.Location, r *diag.Result) []arena.ElementID {
	hits := g.FindIdentifier(parts, scopeID)
	if len(hits) == 0 {
		r.Errorf(diag.P004, loc, "unable to resolve identifier: %s", dotted(parts))
		return nil
	}
	return hits
}

func dotted(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// PushScope links an existing block-like child element under parent: it
// sets the child's ParentScope and appends it to the parent's ChildBlocks.
// It neither creates nor registers the element — the builder owns element
// construction (§2.3).
func (g *Graph) PushScope(child, parent arena.ElementID) {
	childElem := g.Arena.Find(child)
	if childElem == nil {
		return
	}
	childElem.ParentScope = parent
	if parentElem := g.Arena.Find(parent); parentElem != nil {
		if bp := blockOf(parentElem); bp != nil {
			bp.ChildBlocks = append(bp.ChildBlocks, child)
		}
	}
}

// BlockPayload exposes blockOf for consumers outside this package (builder,
// evaluator, varmap) that need direct scope-data access without repeating
// the embedded-payload unwrap switch.
func BlockPayload(e *arena.CodeElement) *arena.BlockPayload {
	return blockOf(e)
}
