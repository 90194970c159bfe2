package archecs

// SourceKind names where a signature column's component is read from
// (spec.md §3 Signature).
type SourceKind int

const (
	// Self matches the component on the iterated entity itself, whether
	// owned directly or inherited from a prefab.
	Self SourceKind = iota
	// Owned matches the component only when it sits directly in the
	// table's own type (never inherited).
	Owned
	// Shared matches the component only when it is inherited through a
	// prefab ancestor, never when owned directly.
	Shared
	// EntityKind matches the component on one fixed, query-independent
	// entity, supplied alongside the column.
	EntityKind
	// Container matches the component on the iterated entity's ChildOf
	// parent.
	Container
	// Cascade matches the component on the iterated entity's ChildOf
	// parent, one level only; ancestors above that parent are not
	// searched. A root entity with no parent still produces a reference
	// (Entity == 0), per the Open Question decision recorded in
	// SPEC_FULL.md.
	Cascade
	// System matches the component on the system entity that owns this
	// query, independent of any table.
	System
	// Empty contributes no component requirement; it reserves a column
	// slot with no data, for callers that want raw table iteration.
	Empty
)

// Operator names how a signature column participates in table gating
// (spec.md §3 Signature).
type Operator int

const (
	// And requires the component to be present.
	And Operator = iota
	// Or requires at least one of Components to be present.
	Or
	// Optional never gates a table out; the compiled plan slot is SlotTag
	// when the component is absent.
	Optional
	// Not requires the component to be absent.
	Not
)

// SignatureColumn is one column of a Signature: what to match, how to
// gate on it, and (for EntityKind) which entity to resolve it against.
type SignatureColumn struct {
	Kind       SourceKind
	Operator   Operator
	Components []Entity // single element for And/Not/Optional; 2+ for Or.
	Entity     Entity   // only meaningful when Kind == EntityKind.
}

func (c SignatureColumn) primary() Entity {
	if len(c.Components) == 0 {
		return 0
	}
	return c.Components[0]
}

// Signature is a query's declarative column list, plus the aggregate
// views computed by preprocess that table matching gates on (spec.md
// §4.2.1 "Preprocessing").
type Signature struct {
	Columns []SignatureColumn

	andFromSelf   TypeID
	andFromOwned  TypeID
	andFromShared TypeID
	andFromSystem TypeID

	notFromSelf   TypeID
	notFromOwned  TypeID
	notFromShared TypeID
	// notFromParent aggregates Not+Container and Not+Cascade columns: it
	// is checked against the iterated entity's ChildOf parent's own
	// table, never against the candidate table's own type (spec.md
	// §4.2.2 item 5). Not+Entity(e) columns are deliberately excluded —
	// each needs its own fixed entity checked individually, so matchTable
	// verifies them per-column instead of folding them into one type.
	notFromParent TypeID

	// cascadeBy is the index into Columns of the query's Cascade column,
	// or -1 if it has none. A signature may carry at most one.
	cascadeBy int

	hasContainer bool
	hasEntityRef bool
}

// preprocess computes the aggregate types table matching gates on, and
// locates the (at most one) Cascade column. Mirrors ecs_new_query's
// postprocess pass in the original: per-column requirements are folded
// once into a handful of types, so match_table tests membership instead
// of re-walking every column for every candidate table. And+Container,
// And+Entity(e), and Not+Entity(e) columns are deliberately NOT folded
// into an aggregate here — each needs a parent- or entity-specific check
// that matchTable performs per column (spec.md §4.2.2 items 3 and 5).
func (w *World) preprocess(sig *Signature) {
	var self, owned, shared, system []Entity
	var notSelf, notOwned, notShared, notParent []Entity

	sig.cascadeBy = -1

	for i, col := range sig.Columns {
		switch col.Kind {
		case Cascade:
			sig.cascadeBy = i
		case Container:
			sig.hasContainer = true
		case EntityKind:
			sig.hasEntityRef = true
			// Entity(e) columns register e in the watch set unconditionally
			// during preprocessing, regardless of operator or whether any
			// table ever matches (spec.md §4.2.1).
			w.entityIndex.Watch(col.Entity)
		}

		if col.Operator == Or || col.Operator == Optional || col.Kind == EntityKind {
			continue
		}

		id := col.primary()

		switch col.Operator {
		case And:
			switch col.Kind {
			case Self:
				self = append(self, id)
			case Owned:
				owned = append(owned, id)
			case Shared:
				shared = append(shared, id)
			case System:
				system = append(system, id)
			}
		case Not:
			switch col.Kind {
			case Self:
				notSelf = append(notSelf, id)
			case Owned:
				notOwned = append(notOwned, id)
			case Shared:
				notShared = append(notShared, id)
			case Container, Cascade:
				notParent = append(notParent, id)
			}
		}
	}

	sig.andFromSelf = w.types.intern(self)
	sig.andFromOwned = w.types.intern(owned)
	sig.andFromShared = w.types.intern(shared)
	sig.andFromSystem = w.types.intern(system)
	sig.notFromSelf = w.types.intern(notSelf)
	sig.notFromOwned = w.types.intern(notOwned)
	sig.notFromShared = w.types.intern(notShared)
	sig.notFromParent = w.types.intern(notParent)
}
