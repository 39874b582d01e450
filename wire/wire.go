// Package wire defines the binary frames exchanged with a prepared-statement
// server: commands, response statuses, column type tags and the per-slot bind
// descriptors, plus the read/write buffers used to build and parse frames.
//
// All multi-byte scalars are little-endian. A frame is a single kind byte
// followed by a uint32 payload length and the payload itself.
package wire

// Command is the kind byte of a client-to-server frame.
type Command byte

const (
	CmdPrepare     Command = 'P' // query text
	CmdExecute     Command = 'E' // stmt id, param descriptors with values
	CmdFetch       Command = 'F' // stmt id, result descriptors (type+capacity)
	CmdFetchColumn Command = 'C' // stmt id, column index, new capacity
	CmdQuery       Command = 'Q' // query text, buffered text result
	CmdCloseStmt   Command = 'X' // stmt id
)

// Status is the kind byte of a server-to-client frame.
type Status byte

const (
	StatusOK        Status = 'O'
	StatusErr       Status = 'e' // code uint16, message
	StatusRow       Status = 'R' // flags byte, then per column: null, length, clipped payload
	StatusColumn    Status = 'c' // single column payload for a refetch
	StatusEOF       Status = 'Z' // no more rows
	StatusResultSet Status = 'T' // column names plus fully buffered text rows
)

// RowTruncated is set in the flags byte of a StatusRow frame when at least
// one column's value exceeded its descriptor capacity.
const RowTruncated byte = 1 << 0

// Type tags a bind slot for the protocol. The numeric values follow the
// MySQL binary protocol's field types.
type Type byte

const (
	TypeNull     Type = 0
	TypeTiny     Type = 1
	TypeShort    Type = 2
	TypeLong     Type = 3
	TypeFloat    Type = 4
	TypeDouble   Type = 5
	TypeLongLong Type = 8
	TypeBlob     Type = 252
	TypeString   Type = 254
)

// Size returns the fixed wire width of t, or 0 for variable-length types.
func (t Type) Size() int {
	switch t {
	case TypeTiny:
		return 1
	case TypeShort:
		return 2
	case TypeLong, TypeFloat:
		return 4
	case TypeLongLong, TypeDouble:
		return 8
	}
	return 0
}

// Variable reports whether t is length-prefixed on the wire rather than
// fixed-width.
func (t Type) Variable() bool {
	return t == TypeString || t == TypeBlob
}

// Descriptor flag bits as sent in Execute frames.
const (
	FlagUnsigned byte = 1 << 0
	FlagNull     byte = 1 << 1
)

// Descriptor describes one parameter or result slot: the staging buffer, the
// type tag, the null flag and the actual (possibly truncated) value length.
// The buffer must stay valid and unaliased from the moment the slot is
// prepared until the protocol call that consumes it has completed.
type Descriptor struct {
	Type     Type
	Unsigned bool
	IsNull   bool

	// Buffer is the staging area the protocol reads from or writes into.
	// Its length is the slot capacity; a variable-length slot always keeps
	// at least one byte so the capacity is never zero.
	Buffer []byte

	// Length is the value's true byte length as reported by the server,
	// which may exceed len(Buffer) when the row arrived truncated.
	Length uint32
}

// Capacity returns the slot's buffer capacity.
func (d *Descriptor) Capacity() uint32 {
	return uint32(len(d.Buffer))
}

// Truncated reports whether the last fetch wrote fewer bytes than the
// server-reported value length.
func (d *Descriptor) Truncated() bool {
	return d.Length > d.Capacity()
}

// Flags packs the unsigned/null bits for an Execute frame.
func (d *Descriptor) Flags() (ret byte) {
	if d.Unsigned {
		ret |= FlagUnsigned
	}
	if d.IsNull {
		ret |= FlagNull
	}
	return
}

// Protocol error codes carried in StatusErr frames. The ranges follow the
// MySQL convention: 1xxx for server-reported errors, 2xxx for client-side
// conditions.
const (
	CodeParse       uint16 = 1064 // statement rejected at prepare
	CodeQuery       uint16 = 1105 // execution failed
	CodeUnknownStmt uint16 = 1243 // unknown statement handle
	CodeLostConn    uint16 = 2013 // transport failure mid-call
)
