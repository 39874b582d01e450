package sqlbind

import (
	"fmt"

	"sqlbind/wire"
)

type stmtState int

const (
	statePrepared stmtState = iota
	stateFetchPending
	stateExhausted
	stateClosed
)

// Stmt is a prepared statement: the server-side handle, one parameter
// BindSet and one result BindSet, and the execute/fetch protocol between
// them. A Stmt is not internally synchronized. Execute and Fetch report
// failure by returning false with the cause left in ErrorCode/ErrorMessage;
// truncation is not a failure, it drives the column refetch and never
// surfaces to the application.
type Stmt struct {
	caller Caller
	id     uint32
	cols   []string

	params  *BindSet
	results *BindSet

	state        stmtState
	rowsAffected uint64
	lastInsertId uint64

	errCode uint16
	errMsg  string

	rb wire.ReadBuffer
}

// Prepare sends the statement text for server-side parsing, sizing both
// bind sets from the reported counts. A rejected statement returns
// *PrepareError.
func Prepare(c Caller, query string) (ret *Stmt, err error) {
	me := &Stmt{caller: c}
	st, err := c.Call(wire.CmdPrepare, func(b *wire.WriteBuffer) {
		b.PutString(query)
	}, &me.rb)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if st == wire.StatusErr {
		code, msg := readServerErr(&me.rb)
		return nil, &PrepareError{Code: code, Message: msg}
	}
	if st != wire.StatusOK {
		return nil, fmt.Errorf("prepare: unexpected response %q", byte(st))
	}
	if me.id, err = me.rb.GetUint32(); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	paramCount, err := me.rb.GetUint16()
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	colCount, err := me.rb.GetUint16()
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	for range colCount {
		name, err := me.rb.GetString()
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		me.cols = append(me.cols, name)
	}
	me.params = newBindSet(int(paramCount))
	me.results = newBindSet(int(colCount))
	ret = me
	return
}

func (me *Stmt) NumParams() int {
	return me.params.Len()
}

func (me *Stmt) Columns() []string {
	return me.cols
}

// BindParams binds the full parameter vector positionally. The values stay
// caller-owned and are re-read on every Execute.
func (me *Stmt) BindParams(values ...any) error {
	return me.params.BindAll(values...)
}

// BindResults binds the full result vector positionally. The targets stay
// caller-owned and are overwritten by each successful Fetch.
func (me *Stmt) BindResults(targets ...any) error {
	return me.results.BindAll(targets...)
}

// Execute submits the bound parameters. A successful Execute (re)opens the
// row set.
func (me *Stmt) Execute() bool {
	if me.state == stateClosed {
		me.fail(wire.CodeUnknownStmt, "statement is closed")
		return false
	}
	me.params.preExecute()
	st, err := me.caller.Call(wire.CmdExecute, func(b *wire.WriteBuffer) {
		b.PutUint32(me.id)
		b.PutUint16(uint16(me.params.Len()))
		for i := 0; i < me.params.Len(); i++ {
			d := me.params.desc(i)
			b.PutUint8(byte(d.Type))
			b.PutUint8(d.Flags())
			if !d.IsNull {
				b.PutLenBytes(d.Buffer[:d.Length])
			}
		}
	}, &me.rb)
	if err != nil {
		me.failTransport(err)
		return false
	}
	if st == wire.StatusErr {
		me.errCode, me.errMsg = readServerErr(&me.rb)
		return false
	}
	me.rowsAffected, _ = me.rb.GetUint64()
	me.lastInsertId, _ = me.rb.GetUint64()
	me.params.postExecute()
	me.clearErr()
	me.state = stateFetchPending
	return true
}

// Fetch requests the next row into the bound result targets, returning
// false when the row set is exhausted (repeatable, without error) or on
// failure (ErrorCode nonzero). Truncated variable-length columns are
// completed with column-level refetches before Fetch returns.
func (me *Stmt) Fetch() bool {
	switch me.state {
	case stateFetchPending:
	case stateExhausted:
		return false
	default:
		me.fail(wire.CodeUnknownStmt, "statement not executed")
		return false
	}
	me.results.preFetch()
	st, err := me.caller.Call(wire.CmdFetch, func(b *wire.WriteBuffer) {
		b.PutUint32(me.id)
		b.PutUint16(uint16(me.results.Len()))
		for i := 0; i < me.results.Len(); i++ {
			d := me.results.desc(i)
			b.PutUint8(byte(d.Type))
			b.PutUint32(d.Capacity())
		}
	}, &me.rb)
	if err != nil {
		me.failTransport(err)
		return false
	}
	switch st {
	case wire.StatusErr:
		me.errCode, me.errMsg = readServerErr(&me.rb)
		return false
	case wire.StatusEOF:
		me.state = stateExhausted
		return false
	case wire.StatusRow:
	default:
		me.fail(wire.CodeLostConn, fmt.Sprintf("unexpected fetch response %q", byte(st)))
		return false
	}
	if !me.readRow() {
		return false
	}
	refetch := me.results.postFetch()
	for _, i := range refetch {
		if !me.fetchColumn(i) {
			return false
		}
	}
	me.results.postRefetch(refetch)
	me.clearErr()
	return true
}

// readRow copies the primary fetch payload into the result descriptors: per
// column the null flag, the true length, and at most capacity bytes.
func (me *Stmt) readRow() bool {
	if _, err := me.rb.GetUint8(); err != nil { // row flags
		me.failTransport(err)
		return false
	}
	for i := 0; i < me.results.Len(); i++ {
		d := me.results.desc(i)
		null, err := me.rb.GetUint8()
		if err != nil {
			me.failTransport(err)
			return false
		}
		d.IsNull = null != 0
		if d.IsNull {
			d.Length = 0
			continue
		}
		if d.Length, err = me.rb.GetUint32(); err != nil {
			me.failTransport(err)
			return false
		}
		n := int(d.Length)
		if n > len(d.Buffer) {
			n = len(d.Buffer)
		}
		p, err := me.rb.GetBytes(n)
		if err != nil {
			me.failTransport(err)
			return false
		}
		copy(d.Buffer, p)
	}
	return true
}

// fetchColumn issues the second-phase fetch for one resized slot.
func (me *Stmt) fetchColumn(i int) bool {
	d := me.results.desc(i)
	st, err := me.caller.Call(wire.CmdFetchColumn, func(b *wire.WriteBuffer) {
		b.PutUint32(me.id)
		b.PutUint16(uint16(i))
		b.PutUint32(d.Capacity())
	}, &me.rb)
	if err != nil {
		me.failTransport(err)
		return false
	}
	if st == wire.StatusErr {
		me.errCode, me.errMsg = readServerErr(&me.rb)
		return false
	}
	if st != wire.StatusColumn {
		me.fail(wire.CodeLostConn, fmt.Sprintf("unexpected refetch response %q", byte(st)))
		return false
	}
	p, err := me.rb.GetLenBytes()
	if err != nil {
		me.failTransport(err)
		return false
	}
	copy(d.Buffer, p)
	d.Length = uint32(len(p))
	return true
}

func (me *Stmt) RowsAffected() uint64 {
	return me.rowsAffected
}

func (me *Stmt) LastInsertId() uint64 {
	return me.lastInsertId
}

// ErrorCode returns the code of the most recent failing protocol call, or
// zero.
func (me *Stmt) ErrorCode() uint16 {
	return me.errCode
}

func (me *Stmt) ErrorMessage() string {
	return me.errMsg
}

// Err folds the deferred error state into an error value.
func (me *Stmt) Err() error {
	if me.errCode == 0 {
		return nil
	}
	return &ServerError{Code: me.errCode, Message: me.errMsg}
}

// Close releases the server-side handle; only the first call reaches the
// server.
func (me *Stmt) Close() (err error) {
	if me.state == stateClosed {
		return
	}
	me.state = stateClosed
	_, err = me.caller.Call(wire.CmdCloseStmt, func(b *wire.WriteBuffer) {
		b.PutUint32(me.id)
	}, &me.rb)
	return
}

func (me *Stmt) fail(code uint16, msg string) {
	me.errCode = code
	me.errMsg = msg
}

func (me *Stmt) failTransport(err error) {
	me.fail(wire.CodeLostConn, err.Error())
}

func (me *Stmt) clearErr() {
	me.errCode = 0
	me.errMsg = ""
}

func readServerErr(rb *wire.ReadBuffer) (code uint16, msg string) {
	code, _ = rb.GetUint16()
	msg, _ = rb.GetString()
	return
}
