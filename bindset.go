package sqlbind

import (
	"database/sql"
	"fmt"

	"sqlbind/wire"
)

// BindSet is the ordered, fixed-size collection of binders for one
// statement's full parameter or result vector. The slot count is fixed at
// construction from the server-reported parameter or column count; slot
// order is the statement's positional order.
type BindSet struct {
	binders []binder
}

func newBindSet(n int) *BindSet {
	return &BindSet{binders: make([]binder, n)}
}

// Len returns the slot count.
func (me *BindSet) Len() int {
	return len(me.binders)
}

// Bind installs the binder variant for target's type at slot i.
func (me *BindSet) Bind(i int, target any) error {
	if i < 0 || i >= len(me.binders) {
		return fmt.Errorf("%w: index %d with %d slots", ErrBindIndexOutOfRange, i, len(me.binders))
	}
	b, err := newBinder(target)
	if err != nil {
		return err
	}
	me.binders[i] = b
	return nil
}

// BindAll binds positionally starting at slot 0. The argument count must
// equal the slot count exactly; on a mismatch nothing is bound.
func (me *BindSet) BindAll(targets ...any) error {
	if len(targets) != len(me.binders) {
		return fmt.Errorf("%w: %d arguments for %d slots", ErrBindIndexOutOfRange, len(targets), len(me.binders))
	}
	for i, target := range targets {
		if err := me.Bind(i, target); err != nil {
			return err
		}
	}
	return nil
}

func (me *BindSet) desc(i int) *wire.Descriptor {
	return me.binders[i].descriptor()
}

// An unbound slot at protocol time is an application omission, not a data
// condition, so it fails loudly.
func (me *BindSet) checkBound() {
	for i, b := range me.binders {
		if b == nil {
			panic(fmt.Sprintf("sqlbind: slot %d used before being bound", i))
		}
	}
}

func (me *BindSet) preExecute() {
	me.checkBound()
	for _, b := range me.binders {
		b.preExecute()
	}
}

func (me *BindSet) postExecute() {
	for _, b := range me.binders {
		b.postExecute()
	}
}

func (me *BindSet) preFetch() {
	me.checkBound()
	for _, b := range me.binders {
		b.preFetch()
	}
}

// postFetch runs the per-binder hook after the primary row fetch and
// returns the ascending slot indices that need a column-level refetch.
func (me *BindSet) postFetch() (refetch []int) {
	for i, b := range me.binders {
		if b.postFetch() {
			refetch = append(refetch, i)
		}
	}
	return
}

// postRefetch finalizes exactly the given slots, in the given order, after
// their column-level refetches completed.
func (me *BindSet) postRefetch(indices []int) {
	for _, i := range indices {
		me.binders[i].postRefetch()
	}
}

// newBinder maps a bind target to its variant. The set is closed; the
// protocol's tags admit nothing else.
func newBinder(target any) (binder, error) {
	switch v := target.(type) {
	case *int8:
		return newNumBinder(v), nil
	case *uint8:
		return newNumBinder(v), nil
	case *int16:
		return newNumBinder(v), nil
	case *uint16:
		return newNumBinder(v), nil
	case *int32:
		return newNumBinder(v), nil
	case *uint32:
		return newNumBinder(v), nil
	case *int64:
		return newNumBinder(v), nil
	case *uint64:
		return newNumBinder(v), nil
	case *float32:
		return newNumBinder(v), nil
	case *float64:
		return newNumBinder(v), nil
	case *bool:
		return newNumBinder(v), nil
	case *sql.Null[int8]:
		return newOptNumBinder(v), nil
	case *sql.Null[uint8]:
		return newOptNumBinder(v), nil
	case *sql.Null[int16]:
		return newOptNumBinder(v), nil
	case *sql.Null[uint16]:
		return newOptNumBinder(v), nil
	case *sql.Null[int32]:
		return newOptNumBinder(v), nil
	case *sql.Null[uint32]:
		return newOptNumBinder(v), nil
	case *sql.Null[int64]:
		return newOptNumBinder(v), nil
	case *sql.Null[uint64]:
		return newOptNumBinder(v), nil
	case *sql.Null[float32]:
		return newOptNumBinder(v), nil
	case *sql.Null[float64]:
		return newOptNumBinder(v), nil
	case *sql.Null[bool]:
		return newOptNumBinder(v), nil
	case *string:
		return newTextBinder(v), nil
	case *[]byte:
		return newTextBinder(v), nil
	case *sql.Null[string]:
		return newOptTextBinder(v), nil
	case *sql.Null[[]byte]:
		return newOptTextBinder(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedBindType, target)
}
