package sqlbind

import (
	"database/sql"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRows is a Results fixture built directly from field slices.
type memRows [][][]byte

func (me memRows) RowCount() int { return len(me) }

func (me memRows) Row(i int) [][]byte {
	if i < 0 || i >= len(me) {
		return nil
	}
	return me[i]
}

func field(s string) []byte { return []byte(s) }

func numberedRows(n int) memRows {
	var ret memRows
	for i := range n {
		ret = append(ret, [][]byte{
			field(strconv.Itoa(i)),
			field("row " + strconv.Itoa(i)),
		})
	}
	return ret
}

func TestCursorSeekAndAdvance(t *testing.T) {
	cur := NewCursor(numberedRows(5))
	require.True(t, cur.Valid())
	assert.Equal(t, 0, cur.Pos())

	require.True(t, cur.Seek(0))
	require.True(t, cur.Advance(4))
	var id int
	var label string
	_, ok := cur.Scan(&id, &label)
	require.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, "row 4", label)

	require.True(t, cur.Prev())
	require.True(t, cur.Value(0, &id))
	assert.Equal(t, 3, id)

	// Walking to the end and back lands on the same row.
	require.False(t, cur.Seek(5))
	require.True(t, cur.Prev())
	require.True(t, cur.Value(1, &label))
	assert.Equal(t, "row 4", label)
}

func TestCursorPastEnd(t *testing.T) {
	cur := NewCursor(numberedRows(2))
	require.True(t, cur.Seek(1))
	require.False(t, cur.Next())
	assert.False(t, cur.Valid())
	var id int
	missed, ok := cur.Scan(&id)
	assert.False(t, ok)
	assert.Nil(t, missed)
	assert.False(t, cur.Value(0, &id))

	// Exhaustion is positional, not terminal.
	require.True(t, cur.Seek(0))
	require.True(t, cur.Value(0, &id))
	assert.Equal(t, 0, id)
}

func TestCursorScanMissed(t *testing.T) {
	rows := memRows{{field("12"), field("not a number"), nil, field("ok")}}
	cur := NewCursor(rows)
	var a, b int
	var c sql.Null[string]
	var d string
	missed, ok := cur.Scan(&a, &b, &c, &d)
	require.True(t, ok)
	// The bad numeric field is reported; the rest of the row still decodes.
	assert.Equal(t, []int{1}, missed)
	assert.Equal(t, 12, a)
	assert.False(t, c.Valid)
	assert.Equal(t, "ok", d)
}

func TestCursorNullFields(t *testing.T) {
	rows := memRows{{nil, field("7")}}
	cur := NewCursor(rows)

	plain := 99
	assert.False(t, cur.Value(0, &plain))
	assert.Equal(t, 99, plain, "NULL must not touch a non-nullable dest")

	null := sql.Null[int64]{V: 5, Valid: true}
	assert.True(t, cur.Value(0, &null))
	assert.False(t, null.Valid)

	assert.True(t, cur.Value(1, &null))
	assert.True(t, null.Valid)
	assert.EqualValues(t, 7, null.V)
}

func TestCursorCaching(t *testing.T) {
	rows := numberedRows(2)
	cur := NewCursor(rows)
	var label string
	require.True(t, cur.Value(1, &label))
	require.Equal(t, "row 0", label)

	// A dereferenced row stays cached until the index moves.
	rows[0] = [][]byte{field("0"), field("changed")}
	require.True(t, cur.Value(1, &label))
	assert.Equal(t, "row 0", label)
	require.True(t, cur.Seek(0))
	require.True(t, cur.Value(1, &label))
	assert.Equal(t, "changed", label)
}

func TestCursorClone(t *testing.T) {
	cur := NewCursor(numberedRows(3))
	require.True(t, cur.Seek(2))
	clone := cur.Clone()
	assert.Equal(t, 2, clone.Pos())
	require.True(t, cur.Seek(0))
	// Moving the original leaves the clone in place.
	assert.Equal(t, 2, clone.Pos())
	var id int
	require.True(t, clone.Value(0, &id))
	assert.Equal(t, 2, id)
}

func TestCursorOverQuery(t *testing.T) {
	srv := startServer(t)
	cl := srv.NewClient(t)
	mustExec(t, cl, "create table t (a integer, b text)").Close()
	mustExec(t, cl, "insert into t values (?, ?)", intp(1), strp("one")).Close()
	mustExec(t, cl, "insert into t values (?, ?)", intp(2), nullStr()).Close()
	mustExec(t, cl, "insert into t values (?, ?)", intp(3), strp("three")).Close()

	rows, err := cl.Query("select a, b from t order by a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows.Columns())
	require.Equal(t, 3, rows.RowCount())

	cur := NewCursor(rows)
	require.True(t, cur.Seek(2))
	var a int64
	var b sql.Null[string]
	_, ok := cur.Scan(&a, &b)
	require.True(t, ok)
	assert.EqualValues(t, 3, a)
	assert.Equal(t, "three", b.V)

	require.True(t, cur.Seek(1))
	_, ok = cur.Scan(&a, &b)
	require.True(t, ok)
	assert.EqualValues(t, 2, a)
	assert.False(t, b.Valid)

	_, err = cl.Query("select borked from nowhere")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.NotZero(t, se.Code)
}

func nullStr() *sql.Null[string] { return &sql.Null[string]{} }
