package archecs

const entityColumnSize = 8 // sizeof(Entity), stored as a raw byte column like every other column.

// column is one vector of a table: either the primary entity-id column
// (index 0, fixed 8-byte elements) or a component's byte column. size==0
// marks a tag column that carries no data at all (spec.md §4.1).
type column struct {
	data []byte
	size int
}

func (c *column) len() int {
	if c.size == 0 {
		return 0
	}
	return len(c.data) / c.size
}

func (c *column) cap() int {
	if c.size == 0 {
		return 0
	}
	return cap(c.data) / c.size
}

// Table is the unit of storage for all entities whose composition equals a
// given Type (spec.md §3). Rows are added, removed (swap-with-last), or
// grown in bulk; a table is never retyped once created.
type Table struct {
	typeID TypeID
	typ    Type

	columns []column // columns[0] is entity ids; columns[i+1] backs typ[i].

	frameSystems []SystemID

	IsPrefab  bool
	HasPrefab bool

	active bool // true while the table holds at least one row (cleared when Delete empties it).
}

// SystemID names a system registered against a table (spec.md §6
// table_register_system). The scheduler that owns systems is external to
// this core; a SystemID is an opaque entity-shaped handle.
type SystemID = Entity

// entityAt reads the entity id stored at a 0-based row in the entity
// column.
func (t *Table) entityAt(row int) Entity {
	return entityFromBytes(t.columns[0].data[row*entityColumnSize:])
}

func (t *Table) setEntityAt(row int, e Entity) {
	putEntityBytes(t.columns[0].data[row*entityColumnSize:], e)
}

func entityFromBytes(b []byte) Entity {
	var v uint64
	for i := 0; i < entityColumnSize; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return Entity(v)
}

func putEntityBytes(b []byte, e Entity) {
	v := uint64(e)
	for i := 0; i < entityColumnSize; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// newColumns allocates len(typ)+1 columns for typ: column 0 for entity
// ids, and one column per type element sized from component metadata.
// Zero-sized or non-component elements (tags, relation flags) still get a
// placeholder column of size 0, so column index arithmetic stays uniform
// (spec.md §4.1 "Column initialisation").
func newColumns(world *World, typ Type) []column {
	cols := make([]column, len(typ)+1)
	cols[0] = column{size: entityColumnSize}
	for i, id := range typ {
		if size, ok := world.components.Size(id); ok && size > 0 {
			cols[i+1] = column{size: size}
		}
	}
	return cols
}

// EvalType scans typ once to detect this table's prefab ancestor, if any
// (spec.md §4.1 "Evaluate type (prefab detection)"). The original walks
// its type vector in descending id order and tracks a "PrefabParent"
// exclusion so that, when a type carries a chain of nested prefab
// ancestors, an already-registered parent isn't re-registered when the
// walk reaches the element that names it again further down the chain.
// That exclusion has no equivalent here because it cannot be reached: a
// Type, by construction, holds at most one InstanceOf element — a second
// one is rejected by the MoreThanOnePrefab panic below before any
// "already registered" ambiguity could arise — so there is never a second
// prefab relation in flight for the exclusion to guard against. Scan
// order is therefore immaterial; a single ascending pass (the order
// typeInterner.intern already produces) is sufficient.
func (t *Table) EvalType(world *World) {
	prefabs := 0

	for _, c := range t.typ {
		if c.Stripped() > world.lastHandle {
			panicf(InvalidHandle, "type element %d exceeds highest issued id %d", c, world.lastHandle)
		}

		if c == world.PrefabTag {
			t.IsPrefab = true
			continue
		}

		if c.IsInstanceOf() {
			prefabs++
			if prefabs > 1 {
				panicf(MoreThanOnePrefab, "type %v has more than one prefab ancestor", t.typ)
			}
			world.prefabIndex[t.typeID] = c.Stripped()
			t.HasPrefab = true
		}
	}
}

// Init implements table_init: constructs columns and, unless the world is
// mid-merge (where evaluation is deferred to the merge driver), evaluates
// prefab flags.
func (t *Table) Init(world *World, stage *Stage) {
	t.typ = world.types.get(t.typeID)
	t.columns = newColumns(world, t.typ)
	if stage == nil && !world.isMerging {
		t.EvalType(world)
	}
}

// resolveColumns returns the column set writes should target: the table's
// primary columns when not mid-mutation, or the stage's lazily-constructed
// shadow set keyed by this table's type id otherwise (spec.md §4.1
// "Staging view").
func (t *Table) resolveColumns(world *World, stage *Stage) []column {
	if stage == nil {
		return t.columns
	}
	if cols, ok := stage.dataStage[t.typeID]; ok {
		return cols
	}
	cols := newColumns(world, t.typ)
	stage.dataStage[t.typeID] = cols
	return cols
}

func (t *Table) writeBack(stage *Stage, cols []column) {
	if stage != nil {
		stage.dataStage[t.typeID] = cols
	}
}

// activate notifies every system registered with this table (or just
// `system`, if nonzero) that its active/inactive state flipped.
func (t *Table) activate(world *World, system SystemID, active bool) {
	if world.OnTableActivate == nil {
		return
	}
	if system != 0 {
		world.OnTableActivate(t, system, active)
		return
	}
	for _, s := range t.frameSystems {
		world.OnTableActivate(t, s, active)
	}
}

// Insert implements table_insert: appends one entity id and one
// uninitialised element per non-zero-size column, returning the 1-based
// row index. The error result is always nil: an allocation failure is not
// turned into a -1 sentinel or an OUT_OF_MEMORY error here.
func (t *Table) Insert(world *World, stage *Stage, e Entity) (int, error) {
	cols := t.resolveColumns(world, stage)

	ecol := &cols[0]
	ecol.data, _ = extendByteSlice(ecol.data, entityColumnSize)
	putEntityBytes(ecol.data[len(ecol.data)-entityColumnSize:], e)

	reallocated := false
	for i := 1; i < len(cols); i++ {
		c := &cols[i]
		if c.size == 0 {
			continue
		}
		prevLen := len(c.data)
		next, grew := extendByteSlice(c.data, c.size)
		c.data = next
		if grew && prevLen > 0 {
			reallocated = true
		}
	}

	index := ecol.len() - 1
	t.writeBack(stage, cols)

	if stage == nil && index == 0 {
		t.active = true
		t.activate(world, 0, true)
	}

	if reallocated && stage == nil {
		world.markShouldResolve()
	}

	return index + 1, nil
}

// Delete implements table_delete: swap-with-last removal by 1-based index
// (negative values taken as absolute). Never reallocates.
func (t *Table) Delete(world *World, index int) {
	if index < 0 {
		index = -index
	}
	index--

	count := t.columns[0].len()
	if count == 0 {
		panicf(InternalError, "delete from empty table")
	}
	count--
	if index > count {
		panicf(InternalError, "delete index %d out of range (count=%d)", index, count)
	}

	if index != count {
		moved := t.entityAt(count)
		t.setEntityAt(index, moved)
		for i := 1; i < len(t.columns); i++ {
			c := &t.columns[i]
			if c.size == 0 {
				continue
			}
			copy(c.data[index*c.size:(index+1)*c.size], c.data[count*c.size:(count+1)*c.size])
		}
		world.entityIndex.setRow(moved, EntityRow{Table: t, Row: index + 1})
		if world.entityIndex.IsWatched(moved) {
			world.markShouldResolve()
		}
	}

	t.columns[0].data = t.columns[0].data[:count*entityColumnSize]
	for i := 1; i < len(t.columns); i++ {
		c := &t.columns[i]
		if c.size == 0 {
			continue
		}
		c.data = c.data[:count*c.size]
	}

	if count == 0 {
		t.active = false
		t.activate(world, 0, false)
	}
}

// Grow implements table_grow: appends count rows with consecutive entity
// ids starting at firstEntity, returning the 1-based index of the first
// added row.
func (t *Table) Grow(world *World, stage *Stage, count int, firstEntity Entity) (int, error) {
	cols := t.resolveColumns(world, stage)

	ecol := &cols[0]
	before := len(ecol.data)
	ecol.data, _ = extendByteSlice(ecol.data, count*entityColumnSize)
	for i := 0; i < count; i++ {
		putEntityBytes(ecol.data[before+i*entityColumnSize:], firstEntity+Entity(i))
	}

	reallocated := false
	for i := 1; i < len(cols); i++ {
		c := &cols[i]
		if c.size == 0 {
			continue
		}
		prevLen := len(c.data)
		next, grew := extendByteSlice(c.data, count*c.size)
		c.data = next
		if grew && prevLen > 0 {
			reallocated = true
		}
	}

	rowCount := ecol.len()
	t.writeBack(stage, cols)

	if stage == nil && rowCount == count {
		t.active = true
		t.activate(world, 0, true)
	}
	if reallocated && stage == nil {
		world.markShouldResolve()
	}

	return rowCount - count + 1, nil
}

// Dim implements table_dim: reserves capacity for count rows without
// changing the table's length. Operates on primary storage only.
func (t *Table) Dim(count int) error {
	for i := range t.columns {
		c := &t.columns[i]
		if c.size == 0 {
			continue
		}
		need := count*c.size - len(c.data)
		if need <= 0 {
			continue
		}
		grown, _ := extendByteSlice(c.data, need)
		c.data = grown[:len(c.data)]
		if cap(c.data) < count*c.size {
			return errOutOfMemory("table_dim: failed to reserve %d rows", count)
		}
	}
	return nil
}

// Count implements table_count.
func (t *Table) Count() int {
	return t.columns[0].len()
}

// RowSize implements table_row_size: the summed element size of every
// component column, excluding the entity-id column.
func (t *Table) RowSize() int {
	size := 0
	for i := 1; i < len(t.columns); i++ {
		size += t.columns[i].size
	}
	return size
}

// RowsDimensioned implements table_rows_dimensioned: the capacity (in
// rows) currently reserved in column 0.
func (t *Table) RowsDimensioned() int {
	return t.columns[0].cap()
}

// RegisterSystem implements table_register_system: adds system to the
// table's activation list, and activates it immediately if the table is
// already non-empty.
func (t *Table) RegisterSystem(world *World, system SystemID) {
	t.frameSystems = append(t.frameSystems, system)
	if t.Count() > 0 {
		t.activate(world, system, true)
	}
}

// Deinit notifies any remaining systems of a bulk removal before the
// table's storage is torn down (supplements spec.md with the original's
// ecs_table_deinit behavior, invoked by World.Close).
func (t *Table) Deinit(world *World) {
	if t.Count() > 0 && world.OnTableDeinit != nil {
		world.OnTableDeinit(t)
	}
	t.columns = nil
	t.frameSystems = nil
}
