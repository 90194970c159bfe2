package archecs

// EntityRow locates an entity's current storage: the table holding it, and
// its 1-based row within that table's columns (spec.md §4.3: get_row(e) ->
// {table, row}).
type EntityRow struct {
	Table *Table
	Row   int
}

// EntityIndex is the entity-index collaborator the core consumes (spec.md
// §4.3 and §4.2.1 preprocessing): it maps entities to their current row,
// and tracks which entities a query has asked to be notified about when
// their structural composition changes.
type EntityIndex struct {
	rows    map[Entity]EntityRow
	watched map[Entity]struct{}
}

func newEntityIndex() *EntityIndex {
	return &EntityIndex{
		rows:    make(map[Entity]EntityRow),
		watched: make(map[Entity]struct{}),
	}
}

// GetRow implements get_row(e) -> {table, row}.
func (ix *EntityIndex) GetRow(e Entity) (EntityRow, bool) {
	row, ok := ix.rows[e.Stripped()]
	return row, ok
}

// setRow records (or updates) where an entity currently lives.
func (ix *EntityIndex) setRow(e Entity, row EntityRow) {
	ix.rows[e.Stripped()] = row
}

// delete removes an entity's row entry, e.g. once it has been destroyed.
func (ix *EntityIndex) delete(e Entity) {
	delete(ix.rows, e.Stripped())
}

// Watch implements watch(e): marks e so that structural changes to it must
// invalidate cached reference pointers (spec.md §4.2.3, §5). Watching is
// idempotent.
func (ix *EntityIndex) Watch(e Entity) {
	ix.watched[e.Stripped()] = struct{}{}
}

// IsWatched reports whether e has been registered via Watch.
func (ix *EntityIndex) IsWatched(e Entity) bool {
	_, ok := ix.watched[e.Stripped()]
	return ok
}
