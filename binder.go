package sqlbind

import (
	"database/sql"
	"encoding/binary"
	"math"

	"sqlbind/wire"
)

// Numeric are the fixed-width bindable types. bool rides along as a
// one-byte tiny int.
type Numeric interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | bool
}

// Text are the variable-length bindable types.
type Text interface {
	string | []byte
}

// binder adapts one bound application value to its wire descriptor. The
// variant set is closed; dispatch is a construction-time type switch in
// newBinder. postFetch commits fixed-width values and reports whether the
// slot needs a column-level refetch; postRefetch commits after the refetch
// wrote into the resized staging buffer.
type binder interface {
	preExecute()
	postExecute()
	preFetch()
	postFetch() bool
	postRefetch()
	descriptor() *wire.Descriptor
}

// numBinder binds a fixed-width value. Its staging buffer is exactly the
// wire width, so it never truncates.
type numBinder[T Numeric] struct {
	val *T
	d   wire.Descriptor
	buf [8]byte
}

func newNumBinder[T Numeric](val *T) *numBinder[T] {
	me := &numBinder[T]{val: val}
	var zero T
	me.d.Type, me.d.Unsigned = numericTag(zero)
	me.d.Buffer = me.buf[:me.d.Type.Size()]
	return me
}

func (me *numBinder[T]) preExecute() {
	me.d.IsNull = false
	me.d.Length = uint32(len(me.d.Buffer))
	putNumeric(me.d.Buffer, *me.val)
}

func (me *numBinder[T]) postExecute() {}

func (me *numBinder[T]) preFetch() {
	me.d.IsNull = false
	me.d.Length = 0
	clear(me.buf[:])
}

func (me *numBinder[T]) postFetch() bool {
	// NULL leaves the target untouched; bind a nullable slot to observe it.
	if !me.d.IsNull {
		*me.val = getNumeric[T](me.d.Buffer)
	}
	return false
}

func (me *numBinder[T]) postRefetch() {}

func (me *numBinder[T]) descriptor() *wire.Descriptor { return &me.d }

// optNumBinder binds a nullable fixed-width value via sql.Null.
type optNumBinder[T Numeric] struct {
	val *sql.Null[T]
	d   wire.Descriptor
	buf [8]byte
}

func newOptNumBinder[T Numeric](val *sql.Null[T]) *optNumBinder[T] {
	me := &optNumBinder[T]{val: val}
	var zero T
	me.d.Type, me.d.Unsigned = numericTag(zero)
	me.d.Buffer = me.buf[:me.d.Type.Size()]
	return me
}

func (me *optNumBinder[T]) preExecute() {
	if !me.val.Valid {
		me.d.IsNull = true
		me.d.Length = 0
		return
	}
	me.d.IsNull = false
	me.d.Length = uint32(len(me.d.Buffer))
	putNumeric(me.d.Buffer, me.val.V)
}

func (me *optNumBinder[T]) postExecute() {}

func (me *optNumBinder[T]) preFetch() {
	me.d.IsNull = false
	me.d.Length = 0
	clear(me.buf[:])
}

func (me *optNumBinder[T]) postFetch() bool {
	if me.d.IsNull {
		*me.val = sql.Null[T]{}
	} else {
		me.val.V = getNumeric[T](me.d.Buffer)
		me.val.Valid = true
	}
	return false
}

func (me *optNumBinder[T]) postRefetch() {}

func (me *optNumBinder[T]) descriptor() *wire.Descriptor { return &me.d }

// textBinder binds a variable-length value. Reads go through a binder-owned
// staging buffer: a one-byte placeholder first, resized to the reported
// length for the column refetch.
type textBinder[T Text] struct {
	val     *T
	d       wire.Descriptor
	staging []byte
}

func newTextBinder[T Text](val *T) *textBinder[T] {
	me := &textBinder[T]{val: val}
	me.d.Type = textTag[T]()
	return me
}

func (me *textBinder[T]) preExecute() {
	stageTextWrite(&me.d, &me.staging, []byte(*me.val), false)
}

func (me *textBinder[T]) postExecute() {}

func (me *textBinder[T]) preFetch() {
	stageTextRead(&me.d, &me.staging)
}

func (me *textBinder[T]) postFetch() bool {
	if me.d.IsNull {
		var zero T
		*me.val = zero
		return false
	}
	if growForRefetch(&me.d, &me.staging) {
		return true
	}
	var zero T
	*me.val = zero
	return false
}

func (me *textBinder[T]) postRefetch() {
	*me.val = T(cloneValue(&me.d))
}

func (me *textBinder[T]) descriptor() *wire.Descriptor { return &me.d }

// optTextBinder binds a nullable variable-length value.
type optTextBinder[T Text] struct {
	val     *sql.Null[T]
	d       wire.Descriptor
	staging []byte
}

func newOptTextBinder[T Text](val *sql.Null[T]) *optTextBinder[T] {
	me := &optTextBinder[T]{val: val}
	me.d.Type = textTag[T]()
	return me
}

func (me *optTextBinder[T]) preExecute() {
	if !me.val.Valid {
		stageTextWrite(&me.d, &me.staging, nil, true)
		return
	}
	stageTextWrite(&me.d, &me.staging, []byte(me.val.V), false)
}

func (me *optTextBinder[T]) postExecute() {}

func (me *optTextBinder[T]) preFetch() {
	stageTextRead(&me.d, &me.staging)
}

func (me *optTextBinder[T]) postFetch() bool {
	if me.d.IsNull {
		*me.val = sql.Null[T]{}
		return false
	}
	if growForRefetch(&me.d, &me.staging) {
		return true
	}
	*me.val = sql.Null[T]{Valid: true}
	return false
}

func (me *optTextBinder[T]) postRefetch() {
	me.val.V = T(cloneValue(&me.d))
	me.val.Valid = true
}

func (me *optTextBinder[T]) descriptor() *wire.Descriptor { return &me.d }

// stageTextWrite points d at the outgoing value. An empty or absent value
// still gets a one-byte buffer: zero capacity is protocol-illegal.
func stageTextWrite(d *wire.Descriptor, staging *[]byte, v []byte, isNull bool) {
	d.IsNull = isNull
	d.Length = uint32(len(v))
	if len(v) == 0 {
		if cap(*staging) == 0 {
			*staging = make([]byte, 1)
		}
		d.Buffer = (*staging)[:1]
		return
	}
	d.Buffer = v
}

// stageTextRead installs the one-byte placeholder.
func stageTextRead(d *wire.Descriptor, staging *[]byte) {
	if cap(*staging) == 0 {
		*staging = make([]byte, 1)
	}
	*staging = (*staging)[:1]
	(*staging)[0] = 0
	d.Buffer = *staging
	d.IsNull = false
	d.Length = 0
}

// growForRefetch resizes the staging buffer to the reported length. Any
// nonzero length forces the refetch, even one that fit the placeholder.
func growForRefetch(d *wire.Descriptor, staging *[]byte) bool {
	if d.Length == 0 {
		return false
	}
	n := int(d.Length)
	if cap(*staging) < n {
		*staging = make([]byte, n)
	}
	*staging = (*staging)[:n]
	d.Buffer = *staging
	return true
}

// cloneValue copies the fetched bytes so the committed value never aliases
// the staging buffer.
func cloneValue(d *wire.Descriptor) []byte {
	return append([]byte(nil), d.Buffer[:d.Length]...)
}

func textTag[T Text]() wire.Type {
	var zero T
	if _, ok := any(zero).(string); ok {
		return wire.TypeString
	}
	return wire.TypeBlob
}

func numericTag[T Numeric](zero T) (wire.Type, bool) {
	switch any(zero).(type) {
	case int8:
		return wire.TypeTiny, false
	case uint8:
		return wire.TypeTiny, true
	case int16:
		return wire.TypeShort, false
	case uint16:
		return wire.TypeShort, true
	case int32:
		return wire.TypeLong, false
	case uint32:
		return wire.TypeLong, true
	case int64:
		return wire.TypeLongLong, false
	case uint64:
		return wire.TypeLongLong, true
	case float32:
		return wire.TypeFloat, false
	case float64:
		return wire.TypeDouble, false
	case bool:
		return wire.TypeTiny, false
	}
	panic("unreachable")
}

func putNumeric[T Numeric](buf []byte, v T) {
	switch v := any(v).(type) {
	case int8:
		buf[0] = byte(v)
	case uint8:
		buf[0] = v
	case int16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case uint16:
		binary.LittleEndian.PutUint16(buf, v)
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case uint32:
		binary.LittleEndian.PutUint32(buf, v)
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case uint64:
		binary.LittleEndian.PutUint64(buf, v)
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	case bool:
		if v {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	}
}

func getNumeric[T Numeric](buf []byte) (ret T) {
	switch p := any(&ret).(type) {
	case *int8:
		*p = int8(buf[0])
	case *uint8:
		*p = buf[0]
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(buf))
	case *uint16:
		*p = binary.LittleEndian.Uint16(buf)
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(buf))
	case *uint32:
		*p = binary.LittleEndian.Uint32(buf)
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(buf))
	case *uint64:
		*p = binary.LittleEndian.Uint64(buf)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case *bool:
		*p = buf[0] != 0
	}
	return
}
