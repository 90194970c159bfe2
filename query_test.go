package archecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryMatchesExistingAndFutureTables(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)

	withPos := w.CreateEntity()
	w.AddComponent(withPos, posID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)
	require.Len(t, q.Records(), 1)

	withBoth := w.CreateEntity()
	w.AddComponent(withBoth, posID)
	w.AddComponent(withBoth, velID)

	require.Len(t, q.Records(), 2)
}

func TestQueryNotExcludesTable(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)

	onlyPos := w.CreateEntity()
	w.AddComponent(onlyPos, posID)
	both := w.CreateEntity()
	w.AddComponent(both, posID)
	w.AddComponent(both, velID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{posID}},
		{Kind: Self, Operator: Not, Components: []Entity{velID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Len(t, q.Records(), 1)
	row, _ := w.entityIndex.GetRow(onlyPos)
	require.Equal(t, row.Table, q.Records()[0].Table)
}

func TestQueryOptionalColumnCompilesToTagWhenAbsent(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)

	e := w.CreateEntity()
	w.AddComponent(e, posID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{posID}},
		{Kind: Self, Operator: Optional, Components: []Entity{velID}},
	}}
	q := NewQuery(w, sig, 0)
	require.Len(t, q.Records(), 1)
	require.Equal(t, SlotTag, q.Records()[0].Columns[1].Kind)
}

func TestQueryContainerResolvesParentReference(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	parent := w.CreateEntity()
	w.AddComponent(parent, posID)

	childTypeID := w.TypeAdd(emptyTypeID, WithChildOf(parent))
	child := w.newID()
	childTable := w.getOrCreateTable(childTypeID)
	row, err := childTable.Insert(w, nil, child)
	require.NoError(t, err)
	w.entityIndex.setRow(child, EntityRow{Table: childTable, Row: row})

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Container, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Len(t, q.Records(), 1)
	rec := q.Records()[0]
	require.Equal(t, SlotReference, rec.Columns[0].Kind)
	require.True(t, rec.HasRefs)
	require.Equal(t, parent, rec.Refs[0].Entity)
	require.NotNil(t, rec.Refs[0].Cached)
}

func TestQueryContainerWithoutParentFailsMatch(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)

	// A table with no ChildOf element at all: {Y}, queried with
	// And Container X, And Self Y — must be rejected, not accepted with a
	// dangling zero-entity reference (spec.md §4.2.2 item 3).
	e := w.CreateEntity()
	w.AddComponent(e, velID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Container, Operator: And, Components: []Entity{posID}},
		{Kind: Self, Operator: And, Components: []Entity{velID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Empty(t, q.Records())
}

func TestQueryContainerFailsWhenParentLacksComponent(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	parent := w.CreateEntity() // parent owns nothing

	childTypeID := w.TypeAdd(emptyTypeID, WithChildOf(parent))
	child := w.newID()
	childTable := w.getOrCreateTable(childTypeID)
	row, err := childTable.Insert(w, nil, child)
	require.NoError(t, err)
	w.entityIndex.setRow(child, EntityRow{Table: childTable, Row: row})

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Container, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Empty(t, q.Records())
}

func TestQueryOrColumnMatchesAnyAlternative(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)
	hpID := RegisterComponent[testHealth](w)

	withPos := w.CreateEntity()
	w.AddComponent(withPos, posID)
	withVel := w.CreateEntity()
	w.AddComponent(withVel, velID)
	withNeither := w.CreateEntity()
	w.AddComponent(withNeither, hpID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: Or, Components: []Entity{posID, velID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Len(t, q.Records(), 2)
	neitherRow, _ := w.entityIndex.GetRow(withNeither)
	for _, rec := range q.Records() {
		require.NotEqual(t, neitherRow.Table, rec.Table)
	}
}

func TestQuerySelfInheritsFromPrefab(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	// Tagging the prefab before giving it posID keeps its tables out of the
	// match: {PrefabTag} lacks posID and {PrefabTag, posID} is a prefab table.
	prefab := w.CreateEntity()
	w.AddComponent(prefab, w.PrefabTag)
	w.AddComponent(prefab, posID)

	instanceTypeID := w.TypeAdd(emptyTypeID, WithInstanceOf(prefab))
	instance := w.newID()
	instanceTable := w.getOrCreateTable(instanceTypeID)
	row, err := instanceTable.Insert(w, nil, instance)
	require.NoError(t, err)
	w.entityIndex.setRow(instance, EntityRow{Table: instanceTable, Row: row})

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Len(t, q.Records(), 1)
	rec := q.Records()[0]
	require.Equal(t, SlotReference, rec.Columns[0].Kind)
	require.Equal(t, prefab, rec.Refs[0].Entity)
}

func TestQuerySharedColumnRejectsDirectlyOwnedComponent(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	prefab := w.CreateEntity()
	w.AddComponent(prefab, posID)

	// Owns posID directly as well as inheriting it: Shared must reject this
	// table even though the component is reachable through the prefab chain
	// (spec.md §3's Self/Owned/Shared distinction).
	instanceTypeID := w.types.intern([]Entity{posID, WithInstanceOf(prefab)})
	instance := w.newID()
	instanceTable := w.getOrCreateTable(instanceTypeID)
	row, err := instanceTable.Insert(w, nil, instance)
	require.NoError(t, err)
	w.entityIndex.setRow(instance, EntityRow{Table: instanceTable, Row: row})

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Shared, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)

	require.Empty(t, q.Records())

	notSig := Signature{Columns: []SignatureColumn{
		{Kind: Shared, Operator: Not, Components: []Entity{posID}},
	}}
	notQ := NewQuery(w, notSig, 0)
	require.Len(t, notQ.Records(), 1)
}

func TestQueryNotContainerChecksParentNotSelf(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	parent := w.CreateEntity()
	w.AddComponent(parent, posID)

	childTypeID := w.TypeAdd(emptyTypeID, WithChildOf(parent))
	child := w.newID()
	childTable := w.getOrCreateTable(childTypeID)
	row, err := childTable.Insert(w, nil, child)
	require.NoError(t, err)
	w.entityIndex.setRow(child, EntityRow{Table: childTable, Row: row})

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Container, Operator: Not, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)
	// Only the root table and the parent's own {posID} table pass: neither
	// has a parent to forbid anything.
	require.Len(t, q.Records(), 2)
	for _, rec := range q.Records() {
		require.NotEqual(t, childTable, rec.Table, "parent owns the forbidden component, so the child table must be rejected")
	}

	// A table that owns the component itself, with no parent involved at
	// all, must not be rejected by a Not+Container column checking the
	// parent's table (spec.md §4.2.2 item 5).
	owner := w.CreateEntity()
	w.AddComponent(owner, posID)
	ownerSig := Signature{Columns: []SignatureColumn{
		{Kind: Container, Operator: Not, Components: []Entity{posID}},
	}}
	ownerQ := NewQuery(w, ownerSig, 0)
	found := false
	ownerRow, _ := w.entityIndex.GetRow(owner)
	for _, rec := range ownerQ.Records() {
		if rec.Table == ownerRow.Table {
			found = true
		}
	}
	require.True(t, found, "a table with no parent has nothing to forbid and must pass")
}

func TestQueryNotEntityChecksFixedEntity(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)
	velID := RegisterComponent[testVelocity](w)

	fixed := w.CreateEntity()
	w.AddComponent(fixed, posID)

	e := w.CreateEntity()
	w.AddComponent(e, velID)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{velID}},
		{Kind: EntityKind, Operator: Not, Entity: fixed, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)
	require.Empty(t, q.Records(), "fixed entity holds the forbidden component, so every table must be rejected")

	w.RemoveComponent(fixed, posID)
	q2 := NewQuery(w, sig, 0)
	require.Len(t, q2.Records(), 1)
}

func TestQueryFreeStopsFurtherUpdates(t *testing.T) {
	w := NewWorld()
	posID := RegisterComponent[testPosition](w)

	sig := Signature{Columns: []SignatureColumn{
		{Kind: Self, Operator: And, Components: []Entity{posID}},
	}}
	q := NewQuery(w, sig, 0)
	q.Free()

	e := w.CreateEntity()
	w.AddComponent(e, posID)

	require.Empty(t, q.Records())
}
