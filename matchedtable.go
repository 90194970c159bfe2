package archecs

import "unsafe"

// PlanSlotKind discriminates how a matched table's column resolves for one
// signature column (spec.md Design Notes §9: model the access plan as a
// tagged variant, not a raw signed "0 = tag, +i = column, -j = reference"
// integer).
type PlanSlotKind int

const (
	// SlotTag marks a column with no backing data: a tag component, or an
	// Optional column absent from this table.
	SlotTag PlanSlotKind = iota
	// SlotColumn marks a column backed directly by one of the matched
	// table's own columns.
	SlotColumn
	// SlotReference marks a column resolved through another entity (a
	// Container, Cascade, System, or Entity(e) source, or a Self/Owned/
	// Shared component inherited from a prefab) via the matched table
	// record's Refs slice.
	SlotReference
)

// PlanSlot is one compiled column of a matched table's access plan.
// Index's meaning depends on Kind: a direct index into the table's
// columns for SlotColumn, or an index into MatchedTableRecord.Refs for
// SlotReference. Index is meaningless (zero) for SlotTag.
type PlanSlot struct {
	Kind  PlanSlotKind
	Index int
}

// Reference is a cached pointer to a component's storage on an entity
// that is not a row of the matched table itself — the resolution target
// of a Container, Cascade, System, or Entity(e) signature column, or of a
// column whose component the table inherits from a prefab (spec.md
// §4.2.3).
type Reference struct {
	Entity    Entity
	Component Entity
	Cached    unsafe.Pointer
	// resolvedAt is the World.Generation() value the pointer was cached
	// at; MatchedTableRecord.Refresh compares this against the world's
	// current generation to decide whether Cached needs recomputing
	// (spec.md Design Notes §9).
	resolvedAt uint64
}

// MatchedTableRecord is one table's compiled plan for a Query: which table,
// which access plan per signature column, and the references that back
// any column not stored in the table's own columns.
type MatchedTableRecord struct {
	Table   *Table
	Columns []PlanSlot
	Refs    []Reference
	HasRefs bool
}
