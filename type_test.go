package archecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeInternDeduplicatesRegardlessOfInputOrder(t *testing.T) {
	in := newTypeInterner()

	a := in.intern([]Entity{3, 1, 2})
	b := in.intern([]Entity{2, 3, 1})

	assert.Equal(t, a, b)
	assert.Equal(t, Type{1, 2, 3}, in.get(a))
}

func TestTypeInternDropsDuplicateElements(t *testing.T) {
	in := newTypeInterner()

	id := in.intern([]Entity{5, 5, 1, 1, 1})

	assert.Equal(t, Type{1, 5}, in.get(id))
}

func TestEmptyTypeIsReservedAtZero(t *testing.T) {
	in := newTypeInterner()
	assert.Equal(t, TypeID(0), in.intern(nil))
	assert.Empty(t, in.get(0))
}

func TestWorldTypeAddAndIndexOf(t *testing.T) {
	w := NewWorld()
	base := emptyTypeID

	withA := w.TypeAdd(base, 501)
	withAB := w.TypeAdd(withA, 502)

	require.True(t, w.TypeHas(withAB, 501))
	require.True(t, w.TypeHas(withAB, 502))
	assert.False(t, w.TypeHas(withAB, 999))
	assert.GreaterOrEqual(t, w.TypeIndexOf(withAB, 501), 0)
}

func TestTypeContainsMatchAllAndAny(t *testing.T) {
	w := NewWorld()
	full := w.TypeAdd(w.TypeAdd(emptyTypeID, 501), 502)

	assert.NotZero(t, w.TypeContains(full, Type{501, 502}, true, false))
	assert.Zero(t, w.TypeContains(full, Type{501, 503}, true, false))
	assert.NotZero(t, w.TypeContains(full, Type{501, 503}, false, false))
}
