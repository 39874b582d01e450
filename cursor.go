package sqlbind

import (
	"database/sql"
	"strconv"
)

// Results is the buffered row set a Cursor reads: fully materialized
// client-side, addressable by row index. A field is the column's text
// representation, nil for SQL NULL.
type Results interface {
	RowCount() int
	// Row returns the fields of row i, nil when i is out of range.
	Row(i int) [][]byte
}

// Cursor is a lazy, random-access view over a buffered row set. Moving the
// index is a client-side seek that never touches the network; dereferencing
// decodes the current row on demand and caches it until the index moves.
// Cursors over the same Results compare by Pos. A Cursor is a repeatable,
// non-consuming view: the row set underneath never changes.
type Cursor struct {
	res Results
	idx int
	row [][]byte
}

// NewCursor returns a cursor positioned at row 0.
func NewCursor(res Results) *Cursor {
	return &Cursor{res: res}
}

// Pos returns the current row index.
func (me *Cursor) Pos() int {
	return me.idx
}

// Valid reports whether the cursor addresses a row.
func (me *Cursor) Valid() bool {
	return me.idx >= 0 && me.idx < me.res.RowCount()
}

// Seek moves to row i, dropping the cached tuple, and reports whether the
// new position addresses a row. Seeking past the end is a clean no-row
// state, not a failure.
func (me *Cursor) Seek(i int) bool {
	me.idx = i
	me.row = nil
	return me.Valid()
}

// Advance moves the index by n, which may be negative.
func (me *Cursor) Advance(n int) bool {
	return me.Seek(me.idx + n)
}

func (me *Cursor) Next() bool {
	return me.Advance(1)
}

func (me *Cursor) Prev() bool {
	return me.Advance(-1)
}

// Clone returns an independent cursor at the same position with its own
// cache.
func (me *Cursor) Clone() *Cursor {
	return &Cursor{res: me.res, idx: me.idx}
}

func (me *Cursor) deref() bool {
	if me.row == nil {
		me.row = me.res.Row(me.idx)
	}
	return me.row != nil
}

// Scan decodes the current row into dests, one per column, using
// type-directed text conversion. It returns ok=false with nothing decoded
// when the cursor addresses no row. A field that is NULL or fails to
// convert yields no value for that dest and its index appears in missed;
// the rest of the row still decodes.
func (me *Cursor) Scan(dests ...any) (missed []int, ok bool) {
	if !me.deref() {
		return nil, false
	}
	for i, dest := range dests {
		if i >= len(me.row) || !scanField(me.row[i], dest) {
			missed = append(missed, i)
		}
	}
	ok = true
	return
}

// Value decodes a single field of the current row, reporting whether a
// value was produced.
func (me *Cursor) Value(i int, dest any) bool {
	if !me.deref() || i < 0 || i >= len(me.row) {
		return false
	}
	return scanField(me.row[i], dest)
}

// scanField converts one text field into dest. A nil field is SQL NULL: it
// clears a nullable dest and produces no value for anything else. Malformed
// numeric text produces no value rather than an error.
func scanField(field []byte, dest any) bool {
	switch d := dest.(type) {
	case *sql.Null[int64]:
		return scanNullField(field, d)
	case *sql.Null[uint64]:
		return scanNullField(field, d)
	case *sql.Null[float64]:
		return scanNullField(field, d)
	case *sql.Null[bool]:
		return scanNullField(field, d)
	case *sql.Null[string]:
		return scanNullField(field, d)
	case *sql.Null[[]byte]:
		return scanNullField(field, d)
	}
	if field == nil {
		return false
	}
	s := string(field)
	switch d := dest.(type) {
	case *bool:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		*d = v != 0
	case *int:
		v, err := strconv.ParseInt(s, 10, 0)
		if err != nil {
			return false
		}
		*d = int(v)
	case *int8:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return false
		}
		*d = int8(v)
	case *int16:
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return false
		}
		*d = int16(v)
	case *int32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return false
		}
		*d = int32(v)
	case *int64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		*d = v
	case *uint:
		v, err := strconv.ParseUint(s, 10, 0)
		if err != nil {
			return false
		}
		*d = uint(v)
	case *uint8:
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return false
		}
		*d = uint8(v)
	case *uint16:
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return false
		}
		*d = uint16(v)
	case *uint32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return false
		}
		*d = uint32(v)
	case *uint64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return false
		}
		*d = v
	case *float32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return false
		}
		*d = float32(v)
	case *float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		*d = v
	case *string:
		*d = s
	case *[]byte:
		*d = append([]byte(nil), field...)
	default:
		return false
	}
	return true
}

// scanNullField handles nullable dests: NULL clears the dest and counts as
// a produced value; a conversion failure still yields no value.
func scanNullField[T any](field []byte, dest *sql.Null[T]) bool {
	if field == nil {
		*dest = sql.Null[T]{}
		return true
	}
	var v T
	if !scanField(field, &v) {
		*dest = sql.Null[T]{}
		return false
	}
	*dest = sql.Null[T]{V: v, Valid: true}
	return true
}
