package sqlbind

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"

	"sqlbind/wire"
)

const logCalls = false

// Client speaks the wire protocol over a single network connection. One
// mutex guards each individual exchange, so statements sharing a Client
// interleave at call granularity while a single call stays atomic. The
// mutex is never held across calls.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	wb   wire.WriteBuffer
}

// Dial connects to a protocol server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
	}
}

func (me *Client) Close() error {
	return me.conn.Close()
}

// Call implements Caller: one request frame out, one response frame into
// resp, under the connection lock.
func (me *Client) Call(cmd wire.Command, build func(*wire.WriteBuffer), resp *wire.ReadBuffer) (wire.Status, error) {
	if logCalls {
		log.Printf("call %q", byte(cmd))
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	me.wb.BeginFrame(byte(cmd))
	build(&me.wb)
	if err := me.wb.EndFrame(me.conn); err != nil {
		return 0, err
	}
	kind, _, err := resp.ReadFrame(me.br)
	if err != nil {
		return 0, err
	}
	return wire.Status(kind), nil
}

// Rows is the fully buffered result of a plain text query: every row is
// already in client memory, a field is a byte string or nil for SQL NULL.
// Rows satisfies Results, so a Cursor over it is random-access and
// repeatable.
type Rows struct {
	cols []string
	rows [][][]byte
}

func (me *Rows) Columns() []string {
	return me.cols
}

func (me *Rows) RowCount() int {
	return len(me.rows)
}

// Row returns the fields of row i, or nil when i is out of range.
func (me *Rows) Row(i int) [][]byte {
	if i < 0 || i >= len(me.rows) {
		return nil
	}
	return me.rows[i]
}

// Query runs a plain (non-prepared) statement and buffers the entire text
// result set client-side. This is the lighter-weight path that feeds a
// Cursor; use a Stmt when values should travel in binary.
func (me *Client) Query(query string) (ret *Rows, err error) {
	var rb wire.ReadBuffer
	st, err := me.Call(wire.CmdQuery, func(b *wire.WriteBuffer) {
		b.PutString(query)
	}, &rb)
	if err != nil {
		return
	}
	if st == wire.StatusErr {
		code, msg := readServerErr(&rb)
		return nil, &ServerError{Code: code, Message: msg}
	}
	if st != wire.StatusResultSet {
		return nil, fmt.Errorf("query: unexpected response %q", byte(st))
	}
	colCount, err := rb.GetUint16()
	if err != nil {
		return nil, err
	}
	ret = &Rows{}
	for range colCount {
		var name string
		if name, err = rb.GetString(); err != nil {
			return nil, err
		}
		ret.cols = append(ret.cols, name)
	}
	rowCount, err := rb.GetUint32()
	if err != nil {
		return nil, err
	}
	for range rowCount {
		row := make([][]byte, colCount)
		for i := range row {
			var null byte
			if null, err = rb.GetUint8(); err != nil {
				return nil, err
			}
			if null != 0 {
				continue
			}
			var p []byte
			if p, err = rb.GetLenBytes(); err != nil {
				return nil, err
			}
			row[i] = append([]byte(nil), p...)
		}
		ret.rows = append(ret.rows, row)
	}
	return
}
