package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var wb WriteBuffer
	var out bytes.Buffer
	wb.BeginFrame(byte(CmdExecute))
	wb.PutUint32(7)
	wb.PutUint16(2)
	wb.PutString("hello")
	wb.PutLenBytes([]byte{1, 2, 3})
	require.NoError(t, wb.EndFrame(&out))

	var rb ReadBuffer
	kind, n, err := rb.ReadFrame(&out)
	require.NoError(t, err)
	assert.EqualValues(t, CmdExecute, kind)
	assert.Equal(t, 5+rb.Remaining(), n)

	id, err := rb.GetUint32()
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	count, err := rb.GetUint16()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	s, err := rb.GetString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	p, err := rb.GetLenBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)
	assert.Equal(t, 0, rb.Remaining())
}

func TestReadBufferShortData(t *testing.T) {
	var wb WriteBuffer
	var out bytes.Buffer
	wb.BeginFrame(byte(CmdFetch))
	wb.PutUint8(1)
	require.NoError(t, wb.EndFrame(&out))

	var rb ReadBuffer
	_, _, err := rb.ReadFrame(&out)
	require.NoError(t, err)
	_, err = rb.GetUint32()
	assert.Error(t, err)
}

func TestReadBufferReuse(t *testing.T) {
	var wb WriteBuffer
	var out bytes.Buffer
	for i := 0; i < 3; i++ {
		wb.BeginFrame(byte(StatusRow))
		wb.PutUint64(uint64(i))
		require.NoError(t, wb.EndFrame(&out))
	}
	var rb ReadBuffer
	for i := 0; i < 3; i++ {
		_, _, err := rb.ReadFrame(&out)
		require.NoError(t, err)
		v, err := rb.GetUint64()
		require.NoError(t, err)
		assert.EqualValues(t, i, v)
	}
}

func TestTypeSizes(t *testing.T) {
	assert.Equal(t, 1, TypeTiny.Size())
	assert.Equal(t, 2, TypeShort.Size())
	assert.Equal(t, 4, TypeLong.Size())
	assert.Equal(t, 4, TypeFloat.Size())
	assert.Equal(t, 8, TypeLongLong.Size())
	assert.Equal(t, 8, TypeDouble.Size())
	assert.Equal(t, 0, TypeString.Size())
	assert.True(t, TypeString.Variable())
	assert.True(t, TypeBlob.Variable())
	assert.False(t, TypeLong.Variable())
}

func TestDescriptor(t *testing.T) {
	d := Descriptor{
		Type:   TypeString,
		Buffer: make([]byte, 1),
		Length: 5,
	}
	assert.EqualValues(t, 1, d.Capacity())
	assert.True(t, d.Truncated())
	d.Buffer = make([]byte, 5)
	assert.False(t, d.Truncated())

	d.Unsigned = true
	assert.Equal(t, FlagUnsigned, d.Flags())
	d.IsNull = true
	assert.Equal(t, FlagUnsigned|FlagNull, d.Flags())
}
