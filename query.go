package archecs

// Query compiles a Signature into a standing set of matched-table access
// plans, kept up to date as tables are created (spec.md §4.2).
type Query struct {
	world        *World
	sig          Signature
	systemEntity Entity
	records      []*MatchedTableRecord
}

// NewQuery implements query_new: preprocesses sig, matches every table
// that already exists, and registers for future tables created by
// world.getOrCreateTable. systemEntity is the fixed entity System-kind
// columns resolve against; pass 0 if the signature has none.
func NewQuery(world *World, sig Signature, systemEntity Entity) *Query {
	world.preprocess(&sig)
	q := &Query{world: world, sig: sig, systemEntity: systemEntity}

	for _, t := range world.tables {
		q.tryMatch(world, t)
	}
	world.queries = append(world.queries, q)
	return q
}

// Free implements query_free: deregisters the query from its world. Tables
// already matched keep their compiled records (the Query value itself just
// stops receiving updates); callers drop their reference to q.
func (q *Query) Free() {
	qs := q.world.queries
	for i, other := range qs {
		if other == q {
			q.world.queries = append(qs[:i], qs[i+1:]...)
			return
		}
	}
}

// Records returns the query's current matched-table plans.
func (q *Query) Records() []*MatchedTableRecord {
	return q.records
}

// MatchTable implements query_match_table: the gating predicate alone,
// without compiling or storing a plan. Exposed so callers (and tests) can
// probe matching independent of the query's live state.
func (q *Query) MatchTable(table *Table) bool {
	return q.matchTable(table)
}

// tryMatch runs gating against table and, on success, compiles and stores
// its access plan. Called for every pre-existing table at NewQuery time,
// and for every newly created table from World.getOrCreateTable.
func (q *Query) tryMatch(world *World, table *Table) {
	if !q.matchTable(table) {
		return
	}
	rec := q.addTable(world, table)
	q.records = append(q.records, rec)
	if q.systemEntity != 0 {
		table.RegisterSystem(world, q.systemEntity)
	}
}

// matchTable implements match_table: a table matches iff it is not itself
// a prefab, satisfies every aggregate And/Not requirement from
// preprocessing, satisfies every individual Or column, and satisfies
// every Container/Entity(e)-sourced column's per-column parent/entity
// check (spec.md §4.2.2).
func (q *Query) matchTable(table *Table) bool {
	w := q.world
	if table.IsPrefab {
		return false
	}

	if !requireAll(w, table.typeID, w.types.get(q.sig.andFromSelf), true) {
		return false
	}
	if !requireAll(w, table.typeID, w.types.get(q.sig.andFromOwned), false) {
		return false
	}
	if !requireShared(w, table, w.types.get(q.sig.andFromShared)) {
		return false
	}
	if !requireAll(w, systemType(w, q.systemEntity), w.types.get(q.sig.andFromSystem), true) {
		return false
	}

	if forbidAny(w, table.typeID, w.types.get(q.sig.notFromSelf), true) {
		return false
	}
	if forbidAny(w, table.typeID, w.types.get(q.sig.notFromOwned), false) {
		return false
	}
	if forbidSharedAny(w, table, w.types.get(q.sig.notFromShared)) {
		return false
	}
	if forbidParentAny(w, table, w.types.get(q.sig.notFromParent)) {
		return false
	}

	for _, col := range q.sig.Columns {
		switch col.Operator {
		case Or:
			if w.TypeContains(table.typeID, col.Components, false, true) == 0 {
				return false
			}
		case And:
			switch col.Kind {
			case Container:
				// §4.2.2 item 3: the table must have some parent whose own
				// table contains the component; otherwise match fails.
				pType, ok := parentRowType(w, table)
				if !ok || w.TypeContains(pType, Type{col.primary()}, false, true) == 0 {
					return false
				}
			case EntityKind:
				// §4.2.2 item 3: e's current type must contain the
				// component.
				row, ok := w.entityIndex.GetRow(col.Entity)
				if !ok || w.TypeContains(row.Table.typeID, Type{col.primary()}, false, true) == 0 {
					return false
				}
			}
		case Not:
			if col.Kind == EntityKind {
				row, ok := w.entityIndex.GetRow(col.Entity)
				if ok && w.TypeContains(row.Table.typeID, Type{col.primary()}, false, true) != 0 {
					return false
				}
			}
		}
	}

	if q.sig.andFromSystem != emptyTypeID && q.systemEntity == 0 {
		return false
	}

	return true
}

// parentRowType returns the TypeID of table's ChildOf parent's own table,
// or false if table has no parent or the parent is unknown.
func parentRowType(w *World, table *Table) (TypeID, bool) {
	parent := containerParent(table)
	if parent == 0 {
		return 0, false
	}
	row, ok := w.entityIndex.GetRow(parent)
	if !ok {
		return 0, false
	}
	return row.Table.typeID, true
}

// systemType returns the TypeID of system's current table, or the empty
// type if system is 0 or unknown — used so andFromSystem's gate reuses
// requireAll unchanged.
func systemType(w *World, system Entity) TypeID {
	if system == 0 {
		return emptyTypeID
	}
	row, ok := w.entityIndex.GetRow(system)
	if !ok {
		return emptyTypeID
	}
	return row.Table.typeID
}

func requireAll(w *World, typeID TypeID, required Type, searchPrefabs bool) bool {
	if len(required) == 0 {
		return true
	}
	return w.TypeContains(typeID, required, true, searchPrefabs) != 0
}

func forbidAny(w *World, typeID TypeID, forbidden Type, searchPrefabs bool) bool {
	if len(forbidden) == 0 {
		return false
	}
	return w.TypeContains(typeID, forbidden, false, searchPrefabs) != 0
}

// requireShared implements the Shared source kind's gate: every id must
// resolve through a prefab ancestor and must NOT be owned directly by the
// table itself (spec.md §3's Self/Owned/Shared distinction).
func requireShared(w *World, table *Table, required Type) bool {
	for _, id := range required {
		if table.typ.Has(id) {
			return false
		}
		if w.TypeContains(table.typeID, Type{id}, false, true) == 0 {
			return false
		}
	}
	return true
}

func forbidSharedAny(w *World, table *Table, forbidden Type) bool {
	for _, id := range forbidden {
		if !table.typ.Has(id) && w.TypeContains(table.typeID, Type{id}, false, true) != 0 {
			return true
		}
	}
	return false
}

// forbidParentAny implements Not+Container/Not+Cascade gating: checked
// against the table's ChildOf parent's own table, never the candidate
// table's own type (spec.md §4.2.2 item 5). A table with no parent has
// nothing to forbid, so it always passes.
func forbidParentAny(w *World, table *Table, forbidden Type) bool {
	if len(forbidden) == 0 {
		return false
	}
	pType, ok := parentRowType(w, table)
	if !ok {
		return false
	}
	return w.TypeContains(pType, forbidden, false, true) != 0
}

// addTable implements "adding a matched table": compiling one PlanSlot per
// signature column, and the Reference entries any non-Self-owned column
// needs (spec.md §4.2.3).
func (q *Query) addTable(world *World, table *Table) *MatchedTableRecord {
	rec := &MatchedTableRecord{Table: table, Columns: make([]PlanSlot, len(q.sig.Columns))}

	for i, col := range q.sig.Columns {
		rec.Columns[i] = q.compileColumn(world, rec, table, col)
	}

	return rec
}

func (q *Query) compileColumn(world *World, rec *MatchedTableRecord, table *Table, col SignatureColumn) PlanSlot {
	switch col.Kind {
	case Empty:
		return PlanSlot{Kind: SlotTag}

	case Self, Owned:
		id := col.primary()
		if col.Operator == Or {
			for _, alt := range col.Components {
				if idx := table.typ.IndexOf(alt); idx >= 0 {
					if table.columns[idx+1].size == 0 {
						return PlanSlot{Kind: SlotTag}
					}
					return PlanSlot{Kind: SlotColumn, Index: idx + 1}
				}
			}
			return PlanSlot{Kind: SlotTag}
		}
		if col.Operator == Not {
			return PlanSlot{Kind: SlotTag}
		}
		if idx := table.typ.IndexOf(id); idx >= 0 {
			if table.columns[idx+1].size == 0 {
				return PlanSlot{Kind: SlotTag}
			}
			return PlanSlot{Kind: SlotColumn, Index: idx + 1}
		}
		if col.Operator == Optional {
			return PlanSlot{Kind: SlotTag}
		}
		// Self, not owned directly: must be inherited from a prefab.
		prefab, ok := world.prefabIndex[table.typeID]
		if !ok {
			return PlanSlot{Kind: SlotTag}
		}
		return addReference(world, rec, prefab, id)

	case Shared:
		if col.Operator == Not {
			return PlanSlot{Kind: SlotTag}
		}
		id := col.primary()
		prefab, ok := world.prefabIndex[table.typeID]
		if !ok {
			return PlanSlot{Kind: SlotTag}
		}
		return addReference(world, rec, prefab, id)

	case Container:
		if col.Operator == Not {
			// Not+Container contributes only the parent-table gate already
			// enforced in matchTable (notFromParent); it needs no plan data.
			return PlanSlot{Kind: SlotTag}
		}
		id := col.primary()
		parent := containerParent(table)
		return addReference(world, rec, parent, id)

	case Cascade:
		if col.Operator == Not {
			return PlanSlot{Kind: SlotTag}
		}
		id := col.primary()
		// Open Question decision: a root entity with no parent still gets
		// a reference, with Entity == 0 (present but zero-valued).
		return addReference(world, rec, containerParent(table), id)

	case EntityKind:
		if col.Operator == Not {
			// Not+Entity(e) contributes only watcher registration
			// (preprocess) and the per-column gate in matchTable; no plan
			// data is needed for a column that must be absent.
			return PlanSlot{Kind: SlotTag}
		}
		return addReference(world, rec, col.Entity, col.primary())

	case System:
		if col.Operator == Not {
			return PlanSlot{Kind: SlotTag}
		}
		return addReference(world, rec, q.systemEntity, col.primary())
	}

	return PlanSlot{Kind: SlotTag}
}

// containerParent returns the ChildOf-qualified parent entity recorded in
// table's type, or 0 if the table has none.
func containerParent(table *Table) Entity {
	for _, e := range table.typ {
		if e.IsChildOf() {
			return e.Stripped()
		}
	}
	return 0
}

// addReference resolves and appends one Reference to rec, returning the
// SlotReference pointing at it.
func addReference(world *World, rec *MatchedTableRecord, entity Entity, component Entity) PlanSlot {
	ref := Reference{Entity: entity, Component: component}
	world.resolveReference(&ref)
	if entity != 0 {
		world.entityIndex.Watch(entity)
	}
	rec.Refs = append(rec.Refs, ref)
	rec.HasRefs = true
	return PlanSlot{Kind: SlotReference, Index: len(rec.Refs) - 1}
}
