package archecs

import (
	"fmt"
	"reflect"
)

// ComponentID names a component. Components are themselves entities: the
// "component metadata" a table needs (whether a type element is a real
// component and what size it stores) is just another interned fact about
// that entity, external to table/query and consulted through this
// contract (spec.md §4.3).
type ComponentID = Entity

// ComponentRegistry is the component-metadata collaborator the core
// consumes (spec.md §4.3: component_size(c) -> size or absent). Create one
// with newComponentRegistry; the zero value has nil maps and cannot record
// sizes.
type ComponentRegistry struct {
	sizes    map[ComponentID]int
	typeToID map[reflect.Type]ComponentID
}

func newComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		sizes:    make(map[ComponentID]int),
		typeToID: make(map[reflect.Type]ComponentID),
	}
}

// Size implements the component_size(c) contract: the element size for c,
// or ok=false if c's id was never registered (a plain tag entity, or an id
// the registry has never seen). A zero-size type registered through
// RegisterComponent reports size 0 with ok=true. Role flags are stripped
// before the lookup.
func (r *ComponentRegistry) Size(c ComponentID) (size int, ok bool) {
	size, ok = r.sizes[c.Stripped()]
	return
}

// registerSize records the element size for a component id. Re-registering
// the same id with a different size is a programming error.
func (r *ComponentRegistry) registerSize(c ComponentID, size int) {
	id := c.Stripped()
	if existing, ok := r.sizes[id]; ok && existing != size {
		panic(fmt.Sprintf("archecs: component %d re-registered with different size (%d != %d)", id, existing, size))
	}
	r.sizes[id] = size
}

// RegisterComponent allocates (or returns the existing) entity id for Go
// type T and records its in-memory size, so that tables can lay out a
// column for it. Mirrors the teacher's RegisterComponent[T] generic, but
// returns a full Entity rather than a small fixed-width id, since
// components here share the same id space as every other entity.
func RegisterComponent[T any](w *World) ComponentID {
	var zero T
	t := reflect.TypeOf(zero)

	if id, ok := w.components.typeToID[t]; ok {
		return id
	}

	id := w.newID()
	size := 0
	if t != nil {
		size = int(t.Size())
	}
	w.components.typeToID[t] = id
	w.components.registerSize(id, size)
	return id
}

// ComponentIDOf returns the id previously registered for T via
// RegisterComponent, and false if T was never registered.
func ComponentIDOf[T any](w *World) (ComponentID, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	id, ok := w.components.typeToID[t]
	return id, ok
}
