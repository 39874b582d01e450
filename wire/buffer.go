package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame payload.
const MaxFrameSize = 1 << 24

// ReadBuffer holds one received frame payload and consumes typed values from
// the front of it.
type ReadBuffer struct {
	Msg []byte
	tmp [5]byte
}

// reset sets b.Msg to exactly size, reusing spare capacity at the end of the
// previous slice when possible and allocating otherwise.
func (b *ReadBuffer) reset(size int) {
	if b.Msg != nil {
		b.Msg = b.Msg[len(b.Msg):]
	}

	if cap(b.Msg) >= size {
		b.Msg = b.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.Msg = make([]byte, size, allocSize)
}

// ReadFrame reads one frame header and payload from rd. It returns the kind
// byte and the total number of bytes read, which can be nonzero even on
// error.
func (b *ReadBuffer) ReadFrame(rd io.Reader) (kind byte, n int, err error) {
	n, err = io.ReadFull(rd, b.tmp[:])
	if err != nil {
		return
	}
	kind = b.tmp[0]
	size := int(binary.LittleEndian.Uint32(b.tmp[1:]))
	if size > MaxFrameSize || size < 0 {
		err = fmt.Errorf("frame size %d out of bounds (0..%d)", size, MaxFrameSize)
		return
	}

	b.reset(size)
	nn, err := io.ReadFull(rd, b.Msg)
	n += nn
	return
}

// Remaining returns the number of unconsumed payload bytes.
func (b *ReadBuffer) Remaining() int {
	return len(b.Msg)
}

// GetBytes consumes and returns the next n bytes. The returned slice aliases
// the buffer and is only valid until the next ReadFrame.
func (b *ReadBuffer) GetBytes(n int) ([]byte, error) {
	if len(b.Msg) < n {
		return nil, fmt.Errorf("insufficient data: %d", len(b.Msg))
	}
	v := b.Msg[:n]
	b.Msg = b.Msg[n:]
	return v, nil
}

func (b *ReadBuffer) GetUint8() (byte, error) {
	v, err := b.GetBytes(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (b *ReadBuffer) GetUint16() (uint16, error) {
	v, err := b.GetBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (b *ReadBuffer) GetUint32() (uint32, error) {
	v, err := b.GetBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (b *ReadBuffer) GetUint64() (uint64, error) {
	v, err := b.GetBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

// GetLenBytes consumes a uint32 length prefix and that many bytes.
func (b *ReadBuffer) GetLenBytes() ([]byte, error) {
	n, err := b.GetUint32()
	if err != nil {
		return nil, err
	}
	return b.GetBytes(int(n))
}

// GetString consumes a uint32-prefixed string.
func (b *ReadBuffer) GetString() (string, error) {
	v, err := b.GetLenBytes()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// WriteBuffer accumulates one outgoing frame.
type WriteBuffer struct {
	bytes.Buffer
	putbuf [8]byte
}

// BeginFrame resets the buffer and writes the frame header for kind. The
// length field is patched in by EndFrame.
func (b *WriteBuffer) BeginFrame(kind byte) {
	b.Reset()
	b.putbuf[0] = kind
	b.putbuf[1] = 0
	b.putbuf[2] = 0
	b.putbuf[3] = 0
	b.putbuf[4] = 0
	b.Write(b.putbuf[:5])
}

// EndFrame fixes up the length header and writes the whole frame to w.
func (b *WriteBuffer) EndFrame(w io.Writer) error {
	frame := b.Bytes()
	binary.LittleEndian.PutUint32(frame[1:5], uint32(b.Len()-5))
	_, err := w.Write(frame) // err is not nil for partial writes
	b.Reset()
	return err
}

func (b *WriteBuffer) PutUint8(v byte) {
	b.WriteByte(v)
}

func (b *WriteBuffer) PutUint16(v uint16) {
	binary.LittleEndian.PutUint16(b.putbuf[:], v)
	b.Write(b.putbuf[:2])
}

func (b *WriteBuffer) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(b.putbuf[:], v)
	b.Write(b.putbuf[:4])
}

func (b *WriteBuffer) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(b.putbuf[:], v)
	b.Write(b.putbuf[:8])
}

// PutLenBytes writes a uint32 length prefix followed by p.
func (b *WriteBuffer) PutLenBytes(p []byte) {
	b.PutUint32(uint32(len(p)))
	b.Write(p)
}

// PutString writes a uint32-prefixed string.
func (b *WriteBuffer) PutString(s string) {
	b.PutUint32(uint32(len(s)))
	b.WriteString(s)
}
