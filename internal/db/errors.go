package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrConnClosed  = errors.New("db: connection closed")
	ErrUnavailable = errors.New("db: store unavailable")
)

// Op constants name the failing operation for error context.
const (
	OpPing   = "PING"
	OpOpen   = "OPEN"
	OpClose  = "CLOSE"
	OpFind   = "FIND"
	OpUpsert = "UPSERT"
	OpDecode = "DECODE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
