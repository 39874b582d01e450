// Package sqlbind is a client-side binding layer for a binary
// prepared-statement protocol. It maps statically-typed Go values onto the
// per-slot wire descriptors the protocol requires (see the wire package),
// drives the execute/fetch state machine including the truncation-driven
// column refetch, and provides a random-access cursor over buffered text
// result sets. A matching server implementation backed by database/sql is
// included so the whole exchange can be run in-process.
package sqlbind

import (
	"sqlbind/wire"
)

// Caller issues a single protocol exchange on a connection: one request
// frame out, one response frame into resp. Implementations must make each
// call atomic with respect to other users of the same connection, and must
// not hold any exclusive access across calls. A transport failure is
// returned as err; a server-reported failure arrives as wire.StatusErr with
// the code and message left in resp.
type Caller interface {
	Call(cmd wire.Command, build func(*wire.WriteBuffer), resp *wire.ReadBuffer) (wire.Status, error)
}
