package archecs

import "unsafe"

// Stage holds the shadow column sets writes are redirected to while the
// world is mid-mutation (spec.md §4.1 "Staging view"). Shadow sets are
// keyed by type id and constructed lazily on first write; MergeStage folds
// them back into the tables' primary columns.
type Stage struct {
	dataStage map[TypeID][]column
}

func newStage() *Stage {
	return &Stage{dataStage: make(map[TypeID][]column)}
}

// WorldOptions configures a new World (mirrors the teacher's
// NewWorldWithOptions constructor pattern).
type WorldOptions struct {
	// InitialTableCapacity reserves row capacity on every newly created
	// table, avoiding a first-insert realloc for workloads that know their
	// expected population up front.
	InitialTableCapacity int
}

// World owns every table, the type interner, the entity index, and
// component metadata for one ECS instance. It is the aggregate root the
// rest of this package's contracts (spec.md §4.3) are methods of.
type World struct {
	opts WorldOptions

	nextID     Entity
	lastHandle Entity

	components  *ComponentRegistry
	types       *typeInterner
	entityIndex *EntityIndex
	prefabIndex map[TypeID]Entity

	// PrefabTag is the reserved tag entity marking "this type's entities
	// are themselves prefabs" (distinct from InstanceOf, which marks "this
	// type's entities inherit from a prefab").
	PrefabTag Entity

	tables  map[TypeID]*Table
	queries []*Query

	stage     *Stage
	isMerging bool

	// shouldResolve is set whenever a table reallocation or a watched
	// entity's move could invalidate a cached Reference pointer. generation
	// is the monotonic counter recommended over a bare flag (see DESIGN.md,
	// Design Notes §9): consumers cache the generation they last resolved
	// against and compare, rather than polling a bool that a second
	// mutation could silently flip twice.
	shouldResolve bool
	generation    uint64

	// OnTableActivate, if set, is notified whenever a table transitions
	// between empty and non-empty for a given system (table_register_system
	// / activate_table in the original). OnTableDeinit is notified once,
	// with any remaining rows, immediately before a table's storage is
	// freed. Both are nil by default: the scheduler that owns systems is
	// external to this core (spec.md §1 Non-goals).
	OnTableActivate func(t *Table, system SystemID, active bool)
	OnTableDeinit   func(t *Table)
}

// NewWorld creates an empty World with default options.
func NewWorld() *World {
	return NewWorldWithOptions(WorldOptions{})
}

// NewWorldWithOptions creates an empty World, reserving the root (empty)
// table and the PrefabTag entity.
func NewWorldWithOptions(opts WorldOptions) *World {
	w := &World{
		opts:        opts,
		components:  newComponentRegistry(),
		types:       newTypeInterner(),
		entityIndex: newEntityIndex(),
		prefabIndex: make(map[TypeID]Entity),
		tables:      make(map[TypeID]*Table),
	}
	w.PrefabTag = w.newID()
	w.getOrCreateTable(emptyTypeID)
	return w
}

const emptyTypeID TypeID = 0

// newID issues the next unused entity id and advances lastHandle, the
// ceiling InvalidHandle checks are measured against.
func (w *World) newID() Entity {
	w.nextID++
	w.lastHandle = w.nextID
	return w.nextID
}

func (w *World) markShouldResolve() {
	w.shouldResolve = true
	w.generation++
}

// Generation returns the current resolve generation. A Reference whose
// cached pointer was resolved at an earlier generation must be re-resolved
// before use (spec.md Design Notes §9).
func (w *World) Generation() uint64 {
	return w.generation
}

// getOrCreateTable returns the table for typeID, constructing and
// initialising it (table_init) if this is the first time typeID has been
// requested.
func (w *World) getOrCreateTable(typeID TypeID) *Table {
	if t, ok := w.tables[typeID]; ok {
		return t
	}
	t := &Table{typeID: typeID}
	t.Init(w, nil)
	if w.opts.InitialTableCapacity > 0 {
		_ = t.Dim(w.opts.InitialTableCapacity)
	}
	w.tables[typeID] = t
	for _, q := range w.queries {
		q.tryMatch(w, t)
	}
	return t
}

// CreateEntity allocates a fresh entity in the empty table and returns its
// id.
func (w *World) CreateEntity() Entity {
	e := w.newID()
	t := w.getOrCreateTable(emptyTypeID)
	row, err := t.Insert(w, nil, e)
	if err != nil {
		panicf(InternalError, "create entity: %v", err)
	}
	w.entityIndex.setRow(e, EntityRow{Table: t, Row: row})
	return e
}

// DestroyEntity removes e from its current table and drops its entity
// index entry.
func (w *World) DestroyEntity(e Entity) {
	row, ok := w.entityIndex.GetRow(e)
	if !ok {
		panicf(InternalError, "destroy unknown entity %d", e)
	}
	row.Table.Delete(w, row.Row)
	w.entityIndex.delete(e)
}

// AddComponent moves e into the table for its current type plus id,
// preserving every existing column's data.
func (w *World) AddComponent(e Entity, id Entity) {
	row, ok := w.entityIndex.GetRow(e)
	if !ok {
		panicf(InternalError, "add component to unknown entity %d", e)
	}
	if row.Table.typ.Has(id) {
		return
	}
	destType := w.TypeAdd(row.Table.typeID, id)
	w.moveEntity(e, row, destType)
}

// RemoveComponent moves e into the table for its current type minus id.
func (w *World) RemoveComponent(e Entity, id Entity) {
	row, ok := w.entityIndex.GetRow(e)
	if !ok {
		panicf(InternalError, "remove component from unknown entity %d", e)
	}
	idx := row.Table.typ.IndexOf(id)
	if idx < 0 {
		return
	}
	next := make([]Entity, 0, len(row.Table.typ)-1)
	for i, c := range row.Table.typ {
		if i != idx {
			next = append(next, c)
		}
	}
	destType := w.types.intern(next)
	w.moveEntity(e, row, destType)
}

// moveEntity relocates e from its current row into the (possibly new)
// table for destType, copying every column both tables share by id, then
// deletes the old row via swap-with-last.
func (w *World) moveEntity(e Entity, from EntityRow, destType TypeID) {
	dest := w.getOrCreateTable(destType)
	destRow, err := dest.Insert(w, nil, e)
	if err != nil {
		panicf(InternalError, "move entity %d: %v", e, err)
	}

	for i, id := range dest.typ {
		destCol := &dest.columns[i+1]
		if destCol.size == 0 {
			continue
		}
		srcIdx := from.Table.typ.IndexOf(id)
		if srcIdx < 0 {
			continue
		}
		srcCol := &from.Table.columns[srcIdx+1]
		copy(
			destCol.data[(destRow-1)*destCol.size:destRow*destCol.size],
			srcCol.data[(from.Row-1)*srcCol.size:from.Row*srcCol.size],
		)
	}

	w.entityIndex.setRow(e, EntityRow{Table: dest, Row: destRow})
	if w.entityIndex.IsWatched(e) {
		w.markShouldResolve()
	}
	from.Table.Delete(w, from.Row)
}

// BeginStage switches the world into deferred-mutation mode: a caller that
// threads w.Stage() through to Table.Insert/Grow/resolveColumns has its
// writes land in a shadow column set instead of a table's primary storage,
// until MergeStage is called. CreateEntity/AddComponent/RemoveComponent
// always operate on primary storage directly — the scheduler that decides
// when mutation must be deferred is external to this core (spec.md §1
// Non-goals); BeginStage/MergeStage and the Table methods' stage parameter
// are the primitives such a scheduler composes.
func (w *World) BeginStage() {
	w.stage = newStage()
}

// Stage returns the world's current deferred-mutation stage, or nil if
// the world is not mid-stage.
func (w *World) Stage() *Stage {
	return w.stage
}

// MergeStage folds every shadow column set created since BeginStage back
// into its table's primary columns (staged rows are appended after the
// existing ones), then clears staging mode. Each merged table has its
// prefab flags evaluated again here, as the merge driver's explicit
// evaluation step; Init skips that step for tables created while
// isMerging is set.
func (w *World) MergeStage() {
	if w.stage == nil {
		return
	}
	w.isMerging = true
	merged := false
	for typeID, cols := range w.stage.dataStage {
		t, ok := w.tables[typeID]
		if !ok {
			continue
		}
		for i := range cols {
			t.columns[i].data = append(t.columns[i].data, cols[i].data...)
		}
		merged = true
		t.EvalType(w)
	}
	if merged {
		w.markShouldResolve()
	}
	w.isMerging = false
	w.stage = nil
}

// resolveReference (re)computes a Reference's cached pointer by walking
// from entity toward its prefab ancestors until component is found, and
// stamps it with the world's current generation (spec.md Design Notes §9).
func (w *World) resolveReference(ref *Reference) {
	w.resolveReferenceFrom(ref, ref.Entity)
}

func (w *World) resolveReferenceFrom(ref *Reference, entity Entity) {
	ref.resolvedAt = w.generation
	if entity == 0 {
		ref.Cached = nil
		return
	}
	row, ok := w.entityIndex.GetRow(entity)
	if !ok {
		ref.Cached = nil
		return
	}
	if idx := row.Table.typ.IndexOf(ref.Component); idx >= 0 {
		col := &row.Table.columns[idx+1]
		if col.size == 0 {
			ref.Cached = nil
			return
		}
		ref.Cached = unsafe.Pointer(&col.data[(row.Row-1)*col.size])
		return
	}
	if prefab, ok := w.prefabIndex[row.Table.typeID]; ok {
		w.resolveReferenceFrom(ref, prefab)
		return
	}
	ref.Cached = nil
}

// Refresh re-resolves every stale reference in rec against the world's
// current generation. Callers iterating a MatchedTableRecord across
// frames should call this once per frame before trusting Refs[i].Cached.
func (rec *MatchedTableRecord) Refresh(w *World) {
	if !rec.HasRefs {
		return
	}
	for i := range rec.Refs {
		if rec.Refs[i].resolvedAt != w.generation {
			w.resolveReferenceFrom(&rec.Refs[i], rec.Refs[i].Entity)
		}
	}
}

// Close tears down every table, notifying of any rows still present
// (supplements spec.md via original_source's ecs_table_deinit; see
// SPEC_FULL.md).
func (w *World) Close() {
	for _, t := range w.tables {
		t.Deinit(w)
	}
	w.tables = nil
}
