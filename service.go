package sqlbind

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/iter"
	"github.com/jmoiron/sqlx"

	"sqlbind/refs"
	"sqlbind/wire"
)

// Service executes protocol verbs against a SQL database. Statement handles
// live in a ref table with optional expiry; the session loop in Server
// releases whatever a disconnecting client left behind.
type Service struct {
	DB     *sqlx.DB
	Expiry time.Duration

	expiryOnce sync.Once
	refs       refs.Manager
}

func (me *Service) manager() *refs.Manager {
	me.expiryOnce.Do(func() {
		me.refs.Expiry = me.Expiry
	})
	return &me.refs
}

// serverStmt is the server side of one prepared statement: the backing
// statement, its parameter/column metadata, the open row set after an
// execute, and the current row's fully encoded values so a column-level
// refetch can be served without touching the database again.
type serverStmt struct {
	stmt      *sqlx.Stmt
	query     string
	numParams int
	cols      []string

	rows        *sqlx.Rows
	current     [][]byte
	currentNull []bool
}

func (me *serverStmt) release() error {
	me.closeRows()
	return me.stmt.Close()
}

func (me *serverStmt) closeRows() {
	if me.rows != nil {
		me.rows.Close()
		me.rows = nil
	}
	me.current = nil
	me.currentNull = nil
}

// Refs exposes the live handle table for a status page.
func (me *Service) Refs() map[refs.Id]any {
	return me.manager().GetAll()
}

// dispatch handles one request frame, leaving the response frame in wb. A
// returned error means the request could not be parsed and the connection
// is beyond recovery; everything else is reported in-band as a StatusErr
// frame.
func (me *Service) dispatch(cmd wire.Command, rb *wire.ReadBuffer, wb *wire.WriteBuffer, owned *[]refs.Id) error {
	switch cmd {
	case wire.CmdPrepare:
		return me.prepare(rb, wb, owned)
	case wire.CmdExecute:
		return me.execute(rb, wb)
	case wire.CmdFetch:
		return me.fetch(rb, wb)
	case wire.CmdFetchColumn:
		return me.fetchColumn(rb, wb)
	case wire.CmdQuery:
		return me.query(rb, wb)
	case wire.CmdCloseStmt:
		return me.closeStmt(rb, wb)
	}
	return fmt.Errorf("unknown command %q", byte(cmd))
}

func writeErr(wb *wire.WriteBuffer, code uint16, msg string) {
	wb.BeginFrame(byte(wire.StatusErr))
	wb.PutUint16(code)
	wb.PutString(msg)
}

func (me *Service) stmtRef(id uint32) (*serverStmt, bool) {
	v, err := me.manager().Get(refs.Id(id))
	if err != nil {
		return nil, false
	}
	return v.(*serverStmt), true
}

func (me *Service) prepare(rb *wire.ReadBuffer, wb *wire.WriteBuffer, owned *[]refs.Id) error {
	query, err := rb.GetString()
	if err != nil {
		return err
	}
	stmt, err := me.DB.Preparex(query)
	if err != nil {
		writeErr(wb, wire.CodeParse, err.Error())
		return nil
	}
	ss := &serverStmt{
		stmt:      stmt,
		query:     query,
		numParams: countParams(query),
	}
	if returnsRows(query) {
		// Probe the column metadata so the prepare response can size the
		// client's result bind set. Unbound parameters run as NULLs, and a
		// rows-returning statement has no side effects to worry about.
		args := make([]any, ss.numParams)
		rows, err := stmt.Queryx(args...)
		if err != nil {
			stmt.Close()
			writeErr(wb, wire.CodeParse, err.Error())
			return nil
		}
		ss.cols, _ = rows.Columns()
		rows.Close()
	}
	id := me.manager().New(ss, ss.release)
	*owned = append(*owned, id)
	wb.BeginFrame(byte(wire.StatusOK))
	wb.PutUint32(uint32(id))
	wb.PutUint16(uint16(ss.numParams))
	wb.PutUint16(uint16(len(ss.cols)))
	for _, c := range ss.cols {
		wb.PutString(c)
	}
	return nil
}

func (me *Service) execute(rb *wire.ReadBuffer, wb *wire.WriteBuffer) error {
	id, err := rb.GetUint32()
	if err != nil {
		return err
	}
	n, err := rb.GetUint16()
	if err != nil {
		return err
	}
	args := make([]any, 0, n)
	for range iter.N(int(n)) {
		t, err := rb.GetUint8()
		if err != nil {
			return err
		}
		flags, err := rb.GetUint8()
		if err != nil {
			return err
		}
		if flags&wire.FlagNull != 0 {
			args = append(args, nil)
			continue
		}
		p, err := rb.GetLenBytes()
		if err != nil {
			return err
		}
		v, err := decodeParam(wire.Type(t), flags&wire.FlagUnsigned != 0, p)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	ss, ok := me.stmtRef(id)
	if !ok {
		writeErr(wb, wire.CodeUnknownStmt, fmt.Sprintf("unknown statement %d", id))
		return nil
	}
	ss.closeRows()
	var affected, insertId uint64
	if len(ss.cols) > 0 {
		rows, err := ss.stmt.Queryx(args...)
		if err != nil {
			writeErr(wb, wire.CodeQuery, err.Error())
			return nil
		}
		ss.rows = rows
	} else {
		res, err := ss.stmt.Exec(args...)
		if err != nil {
			writeErr(wb, wire.CodeQuery, err.Error())
			return nil
		}
		if v, err := res.RowsAffected(); err == nil {
			affected = uint64(v)
		}
		if v, err := res.LastInsertId(); err == nil {
			insertId = uint64(v)
		}
	}
	wb.BeginFrame(byte(wire.StatusOK))
	wb.PutUint64(affected)
	wb.PutUint64(insertId)
	return nil
}

func (me *Service) fetch(rb *wire.ReadBuffer, wb *wire.WriteBuffer) error {
	id, err := rb.GetUint32()
	if err != nil {
		return err
	}
	n, err := rb.GetUint16()
	if err != nil {
		return err
	}
	types := make([]wire.Type, n)
	caps := make([]uint32, n)
	for i := range iter.N(int(n)) {
		t, err := rb.GetUint8()
		if err != nil {
			return err
		}
		types[i] = wire.Type(t)
		if caps[i], err = rb.GetUint32(); err != nil {
			return err
		}
	}
	ss, ok := me.stmtRef(id)
	if !ok {
		writeErr(wb, wire.CodeUnknownStmt, fmt.Sprintf("unknown statement %d", id))
		return nil
	}
	if ss.rows == nil {
		wb.BeginFrame(byte(wire.StatusEOF))
		return nil
	}
	if !ss.rows.Next() {
		err := ss.rows.Err()
		ss.closeRows()
		if err != nil {
			writeErr(wb, wire.CodeQuery, err.Error())
		} else {
			wb.BeginFrame(byte(wire.StatusEOF))
		}
		return nil
	}
	vals, err := ss.rows.SliceScan()
	if err != nil {
		writeErr(wb, wire.CodeQuery, err.Error())
		return nil
	}
	ss.current = make([][]byte, n)
	ss.currentNull = make([]bool, n)
	truncated := false
	for i := range iter.N(int(n)) {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		enc, isNull := encodeValue(types[i], v)
		ss.current[i] = enc
		ss.currentNull[i] = isNull
		if !isNull && uint32(len(enc)) > caps[i] {
			truncated = true
		}
	}
	var flags byte
	if truncated {
		flags |= wire.RowTruncated
	}
	wb.BeginFrame(byte(wire.StatusRow))
	wb.PutUint8(flags)
	for i := range iter.N(int(n)) {
		if ss.currentNull[i] {
			wb.PutUint8(1)
			continue
		}
		wb.PutUint8(0)
		enc := ss.current[i]
		wb.PutUint32(uint32(len(enc)))
		clip := enc
		if uint32(len(clip)) > caps[i] {
			clip = clip[:caps[i]]
		}
		wb.Write(clip)
	}
	return nil
}

func (me *Service) fetchColumn(rb *wire.ReadBuffer, wb *wire.WriteBuffer) error {
	id, err := rb.GetUint32()
	if err != nil {
		return err
	}
	col, err := rb.GetUint16()
	if err != nil {
		return err
	}
	capacity, err := rb.GetUint32()
	if err != nil {
		return err
	}
	ss, ok := me.stmtRef(id)
	if !ok {
		writeErr(wb, wire.CodeUnknownStmt, fmt.Sprintf("unknown statement %d", id))
		return nil
	}
	if ss.current == nil || int(col) >= len(ss.current) || ss.currentNull[col] {
		writeErr(wb, wire.CodeQuery, fmt.Sprintf("no current value for column %d", col))
		return nil
	}
	p := ss.current[col]
	if uint32(len(p)) > capacity {
		p = p[:capacity]
	}
	wb.BeginFrame(byte(wire.StatusColumn))
	wb.PutLenBytes(p)
	return nil
}

func (me *Service) query(rb *wire.ReadBuffer, wb *wire.WriteBuffer) error {
	query, err := rb.GetString()
	if err != nil {
		return err
	}
	rows, err := me.DB.Queryx(query)
	if err != nil {
		writeErr(wb, wire.CodeQuery, err.Error())
		return nil
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		writeErr(wb, wire.CodeQuery, err.Error())
		return nil
	}
	var all [][][]byte
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			writeErr(wb, wire.CodeQuery, err.Error())
			return nil
		}
		row := make([][]byte, len(cols))
		for i := range row {
			var v any
			if i < len(vals) {
				v = vals[i]
			}
			row[i] = textValue(v)
		}
		all = append(all, row)
	}
	if err := rows.Err(); err != nil {
		writeErr(wb, wire.CodeQuery, err.Error())
		return nil
	}
	wb.BeginFrame(byte(wire.StatusResultSet))
	wb.PutUint16(uint16(len(cols)))
	for _, c := range cols {
		wb.PutString(c)
	}
	wb.PutUint32(uint32(len(all)))
	for _, row := range all {
		for _, field := range row {
			if field == nil {
				wb.PutUint8(1)
				continue
			}
			wb.PutUint8(0)
			wb.PutLenBytes(field)
		}
	}
	return nil
}

func (me *Service) closeStmt(rb *wire.ReadBuffer, wb *wire.WriteBuffer) error {
	id, err := rb.GetUint32()
	if err != nil {
		return err
	}
	if err := me.manager().Release(refs.Id(id)); err != nil {
		writeErr(wb, wire.CodeQuery, err.Error())
		return nil
	}
	wb.BeginFrame(byte(wire.StatusOK))
	return nil
}

// countParams counts ? placeholders outside quoted regions.
func countParams(query string) (ret int) {
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			ret++
		}
	}
	return
}

// returnsRows sniffs whether a statement produces a result set, by leading
// keyword. Only rows-returning statements are probed at prepare time.
func returnsRows(query string) bool {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "select", "values", "with", "pragma", "explain":
		return true
	}
	return false
}

// decodeParam turns one execute-frame value into a driver argument.
func decodeParam(t wire.Type, unsigned bool, p []byte) (any, error) {
	if size := t.Size(); size != 0 && len(p) != size {
		return nil, fmt.Errorf("type %d wants %d bytes, got %d", t, size, len(p))
	}
	switch t {
	case wire.TypeTiny:
		if unsigned {
			return int64(p[0]), nil
		}
		return int64(int8(p[0])), nil
	case wire.TypeShort:
		v := binary.LittleEndian.Uint16(p)
		if unsigned {
			return int64(v), nil
		}
		return int64(int16(v)), nil
	case wire.TypeLong:
		v := binary.LittleEndian.Uint32(p)
		if unsigned {
			return int64(v), nil
		}
		return int64(int32(v)), nil
	case wire.TypeLongLong:
		return int64(binary.LittleEndian.Uint64(p)), nil
	case wire.TypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p))), nil
	case wire.TypeDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil
	case wire.TypeString:
		return string(p), nil
	case wire.TypeBlob:
		return append([]byte(nil), p...), nil
	case wire.TypeNull:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %d", t)
}

// encodeValue renders a scanned database value in the representation the
// requested result tag wants: fixed-width little-endian for the numeric
// tags, raw text bytes for string/blob.
func encodeValue(t wire.Type, v any) (enc []byte, isNull bool) {
	if v == nil {
		return nil, true
	}
	if t.Variable() || t.Size() == 0 {
		return textValue(v), false
	}
	buf := make([]byte, t.Size())
	switch t {
	case wire.TypeFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(floatValue(v))))
	case wire.TypeDouble:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(floatValue(v)))
	default:
		n := intValue(v)
		switch t.Size() {
		case 1:
			buf[0] = byte(n)
		case 2:
			binary.LittleEndian.PutUint16(buf, uint16(n))
		case 4:
			binary.LittleEndian.PutUint32(buf, uint32(n))
		case 8:
			binary.LittleEndian.PutUint64(buf, uint64(n))
		}
	}
	return buf, false
}

func intValue(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case time.Time:
		return v.Unix()
	}
	return 0
}

func floatValue(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// textValue renders a scanned database value as text, nil for NULL.
func textValue(v any) []byte {
	switch v := v.(type) {
	case nil:
		return nil
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64)
	case bool:
		if v {
			return []byte("1")
		}
		return []byte("0")
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	case time.Time:
		return []byte(v.Format("2006-01-02 15:04:05"))
	}
	return []byte(fmt.Sprint(v))
}
