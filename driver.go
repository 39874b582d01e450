package sqlbind

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"time"
)

func init() {
	sql.Register("sqlbind", &bindDriver{})
}

// bindDriver adapts the binding layer to database/sql: parameters travel
// through the typed binders and results are bound as nullable blobs, since
// database/sql callers expect driver-typed values rather than pre-declared
// targets.
type bindDriver struct{}

type conn struct {
	client *Client
}

func (me bindDriver) Open(name string) (ret driver.Conn, err error) {
	cl, err := Dial(name)
	if err != nil {
		return
	}
	ret = &conn{client: cl}
	return
}

func (me *conn) Close() (err error) {
	err = me.client.Close()
	me.client = nil
	return
}

func (me *conn) Begin() (driver.Tx, error) {
	// Transactions belong to the connection layer, not the binding layer.
	return nil, errors.New("transactions not supported")
}

func (me *conn) Prepare(query string) (ret driver.Stmt, err error) {
	st, err := Prepare(me.client, query)
	if err != nil {
		return
	}
	ret = &stmt{st: st}
	return
}

type stmt struct {
	st *Stmt
}

func (me *stmt) Close() error {
	return me.st.Close()
}

func (me *stmt) NumInput() int {
	return me.st.NumParams()
}

// bindArgs rebinds the parameter vector to copies of the driver values.
func (me *stmt) bindArgs(args []driver.Value) error {
	targets := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			targets[i] = new(sql.Null[[]byte])
		case int64:
			p := v
			targets[i] = &p
		case float64:
			p := v
			targets[i] = &p
		case bool:
			p := v
			targets[i] = &p
		case []byte:
			p := append([]byte(nil), v...)
			targets[i] = &p
		case string:
			p := v
			targets[i] = &p
		case time.Time:
			p := v.Format("2006-01-02 15:04:05")
			targets[i] = &p
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedBindType, arg)
		}
	}
	return me.st.BindParams(targets...)
}

func (me *stmt) Exec(args []driver.Value) (ret driver.Result, err error) {
	if err = me.bindArgs(args); err != nil {
		return
	}
	if !me.st.Execute() {
		err = me.st.Err()
		return
	}
	ret = result{
		affected: int64(me.st.RowsAffected()),
		insertId: int64(me.st.LastInsertId()),
	}
	return
}

func (me *stmt) Query(args []driver.Value) (ret driver.Rows, err error) {
	if err = me.bindArgs(args); err != nil {
		return
	}
	dests := make([]sql.Null[[]byte], len(me.st.Columns()))
	targets := make([]any, len(dests))
	for i := range dests {
		targets[i] = &dests[i]
	}
	if err = me.st.BindResults(targets...); err != nil {
		return
	}
	if !me.st.Execute() {
		err = me.st.Err()
		return
	}
	ret = &rows{st: me.st, dests: dests}
	return
}

type result struct {
	affected int64
	insertId int64
}

func (me result) LastInsertId() (int64, error) {
	return me.insertId, nil
}

func (me result) RowsAffected() (int64, error) {
	return me.affected, nil
}

type rows struct {
	st    *Stmt
	dests []sql.Null[[]byte]
}

func (me *rows) Columns() []string {
	return me.st.Columns()
}

func (me *rows) Close() error {
	// The statement stays open for reuse; the server drops its row set on
	// the next execute or statement close.
	return nil
}

func (me *rows) Next(dest []driver.Value) error {
	if !me.st.Fetch() {
		if err := me.st.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	for i := range me.dests {
		if me.dests[i].Valid {
			dest[i] = append([]byte(nil), me.dests[i].V...)
		} else {
			dest[i] = nil
		}
	}
	return nil
}
