// build test
package sqlbind

import (
	"net"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	Service *Service
	L       net.Listener
}

func (me testServer) Close() {
	me.Service.DB.Close()
	me.L.Close()
}

func (me testServer) NewClient(t testing.TB) *Client {
	cl, err := Dial(me.L.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { cl.Close() })
	return cl
}

func startServer(t testing.TB) testServer {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	service := &Service{DB: db, Expiry: time.Minute}
	server := &Server{Service: service}
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	go server.Serve(l)
	ret := testServer{service, l}
	t.Cleanup(ret.Close)
	return ret
}
