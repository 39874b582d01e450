package sqlbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAllCountMismatch(t *testing.T) {
	bs := newBindSet(2)
	var a int64
	err := bs.BindAll(&a)
	require.ErrorIs(t, err, ErrBindIndexOutOfRange)
	// Nothing was bound.
	assert.Nil(t, bs.binders[0])
	assert.Nil(t, bs.binders[1])

	var b string
	var c int64
	err = bs.BindAll(&a, &b, &c)
	require.ErrorIs(t, err, ErrBindIndexOutOfRange)
}

func TestBindOutOfRange(t *testing.T) {
	bs := newBindSet(1)
	var v int64
	require.ErrorIs(t, bs.Bind(1, &v), ErrBindIndexOutOfRange)
	require.ErrorIs(t, bs.Bind(-1, &v), ErrBindIndexOutOfRange)
	require.NoError(t, bs.Bind(0, &v))
}

func TestBindUnsupportedType(t *testing.T) {
	bs := newBindSet(1)
	var v struct{ X int }
	require.ErrorIs(t, bs.Bind(0, &v), ErrUnsupportedBindType)
	// Plain values are rejected too; binding is by pointer.
	require.ErrorIs(t, bs.Bind(0, int64(1)), ErrUnsupportedBindType)
}

func TestUnboundSlotPanics(t *testing.T) {
	bs := newBindSet(2)
	var v int64
	require.NoError(t, bs.Bind(0, &v))
	assert.Panics(t, func() { bs.preExecute() })
	assert.Panics(t, func() { bs.preFetch() })
}

func TestPostFetchCollectsRefetchIndices(t *testing.T) {
	bs := newBindSet(3)
	var a string
	var b int64
	var c []byte
	require.NoError(t, bs.BindAll(&a, &b, &c))
	bs.preFetch()

	// Simulate a row whose text columns both arrived truncated.
	bs.desc(0).Length = 10
	bs.desc(1).Length = 8
	bs.desc(2).Length = 4

	refetch := bs.postFetch()
	assert.Equal(t, []int{0, 2}, refetch)
	assert.EqualValues(t, 10, bs.desc(0).Capacity())
	assert.EqualValues(t, 4, bs.desc(2).Capacity())

	copy(bs.desc(0).Buffer, "aaaaaaaaaa")
	copy(bs.desc(2).Buffer, []byte{1, 2, 3, 4})
	bs.postRefetch(refetch)
	assert.Equal(t, "aaaaaaaaaa", a)
	assert.Equal(t, []byte{1, 2, 3, 4}, c)
}
