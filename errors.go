package sqlbind

import (
	"errors"
	"fmt"
)

var (
	// ErrBindIndexOutOfRange reports a bind index at or past the slot
	// count, or an argument count that does not match it. This is a
	// programmer error, not a data condition.
	ErrBindIndexOutOfRange = errors.New("bind index out of range")

	// ErrUnsupportedBindType reports a bind target outside the closed set
	// of supported pointer types.
	ErrUnsupportedBindType = errors.New("unsupported bind type")
)

// PrepareError is returned when the server rejects the statement text.
type PrepareError struct {
	Code    uint16
	Message string
}

func (me *PrepareError) Error() string {
	return fmt.Sprintf("prepare failed: %s (code %d)", me.Message, me.Code)
}

// ServerError carries the code and message of a failed protocol call on the
// plain-query path.
type ServerError struct {
	Code    uint16
	Message string
}

func (me *ServerError) Error() string {
	return fmt.Sprintf("%s (code %d)", me.Message, me.Code)
}
