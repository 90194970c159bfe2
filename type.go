package archecs

import (
	"sort"
	"strings"
)

// TypeID names an interned Type. Two structurally equal sequences of
// entity ids always share one TypeID (spec.md §3: "a type is interned").
type TypeID int

// Type is an ordered, immutable sequence of entity ids naming a
// composition. Ordering is by the raw (flag-inclusive) entity value, which
// is why ChildOf/InstanceOf elements — whose flag bits occupy the high end
// of the 64-bit value — always sort after the plain component ids and
// prefab entity they qualify (spec.md §3, §4.1 "Evaluate type").
type Type []Entity

// IndexOf implements type_index_of: the position of id in t, or -1.
func (t Type) IndexOf(id Entity) int {
	for i, e := range t {
		if e == id {
			return i
		}
	}
	return -1
}

// Has implements type_has: whether t contains id exactly.
func (t Type) Has(id Entity) bool {
	return t.IndexOf(id) >= 0
}

// key returns a canonical string for interning purposes.
func (t Type) key() string {
	var b strings.Builder
	for _, e := range t {
		b.WriteByte(byte(e >> 56))
		b.WriteByte(byte(e >> 48))
		b.WriteByte(byte(e >> 40))
		b.WriteByte(byte(e >> 32))
		b.WriteByte(byte(e >> 24))
		b.WriteByte(byte(e >> 16))
		b.WriteByte(byte(e >> 8))
		b.WriteByte(byte(e))
	}
	return b.String()
}

// typeInterner deduplicates Type values: structurally equal sequences
// share one TypeID, and the stored Type is never mutated once interned.
type typeInterner struct {
	byKey map[string]TypeID
	types []Type
}

func newTypeInterner() *typeInterner {
	in := &typeInterner{byKey: make(map[string]TypeID)}
	// TypeID 0 is reserved for the empty type, so a zero-value TypeID
	// always names the empty type.
	in.intern(nil)
	return in
}

// intern returns the TypeID for ids, sorting and deduplicating on the way
// in, registering a new one if this exact composition hasn't been seen.
func (in *typeInterner) intern(ids []Entity) TypeID {
	sorted := append([]Entity(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	// dedup adjacent equals
	out := sorted[:0]
	for i, e := range sorted {
		if i == 0 || e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	t := Type(out)
	k := t.key()
	if id, ok := in.byKey[k]; ok {
		return id
	}
	id := TypeID(len(in.types))
	in.types = append(in.types, t)
	in.byKey[k] = id
	return id
}

// get returns the Type for an interned id.
func (in *typeInterner) get(id TypeID) Type {
	return in.types[id]
}

// TypeAdd implements type_add: returns the TypeID of t with id appended
// (deduplicated, re-sorted, and interned).
func (w *World) TypeAdd(t TypeID, id Entity) TypeID {
	base := w.types.get(t)
	next := make([]Entity, len(base)+1)
	copy(next, base)
	next[len(base)] = id
	return w.types.intern(next)
}

// TypeIndexOf implements type_index_of for an interned type.
func (w *World) TypeIndexOf(t TypeID, id Entity) int {
	return w.types.get(t).IndexOf(id)
}

// TypeHas implements type_has for an interned type.
func (w *World) TypeHas(t TypeID, id Entity) bool {
	return w.types.get(t).Has(id)
}

// TypeContains implements type_contains(a, b, match_all, search_prefabs):
// whether type a (by id) holds the components of type b. When matchAll is
// true, every id in b must be present; otherwise any one suffices. When
// searchPrefabs is true, ids missing directly on a are additionally looked
// up through a's prefab ancestor chain. Returns the first matching b id
// found, or 0 if the check fails.
func (w *World) TypeContains(a TypeID, b Type, matchAll, searchPrefabs bool) Entity {
	aType := w.types.get(a)
	found := Entity(0)
	allOK := true
	for _, want := range b {
		if aType.Has(want) {
			if found == 0 {
				found = want
			}
			continue
		}
		if searchPrefabs {
			if prefab, ok := w.prefabIndex[a]; ok {
				if pRow, ok := w.entityIndex.GetRow(prefab); ok {
					if w.TypeContains(pRow.Table.typeID, Type{want}, false, true) != 0 {
						if found == 0 {
							found = want
						}
						continue
					}
				}
			}
		}
		allOK = false
		if matchAll {
			return 0
		}
	}
	if matchAll {
		if allOK {
			return found
		}
		return 0
	}
	return found
}
