package sqlbind

import (
	"bufio"
	"io"
	"log"
	"net"

	"github.com/google/uuid"

	"sqlbind/refs"
	"sqlbind/wire"
)

const logSessions = false

// Server accepts protocol connections and runs one session goroutine per
// client. All sessions share the Service's database and handle table;
// handles a session opened are released when it disconnects.
type Server struct {
	Service *Service
}

// Serve accepts on l until it fails.
func (me *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go me.serveConn(conn)
	}
}

func (me *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	session := uuid.NewString()
	if logSessions {
		log.Printf("session %s: %s connected", session, conn.RemoteAddr())
	}
	br := bufio.NewReader(conn)
	var (
		rb    wire.ReadBuffer
		wb    wire.WriteBuffer
		owned []refs.Id
	)
	defer func() {
		for _, id := range owned {
			me.Service.manager().Release(id)
		}
	}()
	for {
		kind, _, err := rb.ReadFrame(br)
		if err != nil {
			if err != io.EOF {
				log.Printf("session %s: read: %s", session, err)
			}
			return
		}
		if err := me.Service.dispatch(wire.Command(kind), &rb, &wb, &owned); err != nil {
			// The frame could not be parsed; the stream can no longer be
			// trusted to be aligned.
			log.Printf("session %s: %s", session, err)
			return
		}
		if err := wb.EndFrame(conn); err != nil {
			log.Printf("session %s: write: %s", session, err)
			return
		}
	}
}
