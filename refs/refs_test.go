package refs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noClose() error { return nil }

func TestNewGetRelease(t *testing.T) {
	var m Manager
	id := m.New("a", noClose)
	assert.Equal(t, 1, m.Len())
	v, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	closed := false
	id2 := m.New("b", func() error {
		closed = true
		return nil
	})
	require.NotEqual(t, id, id2)
	require.NoError(t, m.Release(id2))
	assert.True(t, closed)
	assert.Equal(t, 1, m.Len())
	_, err = m.Get(id2)
	assert.ErrorIs(t, err, ErrBadRef)
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	var m Manager
	require.NoError(t, m.Release(42))
	id := m.New("a", noClose)
	require.NoError(t, m.Release(id))
	require.NoError(t, m.Release(id))
}

func TestExpiry(t *testing.T) {
	m := Manager{Expiry: 10 * time.Millisecond}
	done := make(chan struct{})
	m.New("a", func() error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ref did not expire")
	}
	assert.Equal(t, 0, m.Len())
}

func TestGetRestartsExpiry(t *testing.T) {
	m := Manager{Expiry: 50 * time.Millisecond}
	id := m.New("a", noClose)
	for range 5 {
		time.Sleep(20 * time.Millisecond)
		_, err := m.Get(id)
		require.NoError(t, err)
	}
	require.NoError(t, m.Release(id))
}
