package text

import (
	"errors"
	"fmt"
)

// ClientError represents a CLIENT_ERROR reply.
// The server rejected the command line or data block and the stream position
// is uncertain, so the connection must be closed.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "CLIENT_ERROR: " + e.Message
}

func (e *ClientError) ShouldCloseConnection() bool {
	return true
}

// ServerError represents a SERVER_ERROR reply.
// The command failed on the server (out of memory, object too large) but the
// stream is still in sync: the connection can be reused.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "SERVER_ERROR: " + e.Message
}

func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// GenericError represents a bare ERROR reply, usually an unknown command.
type GenericError struct {
	Message string
}

func (e *GenericError) Error() string {
	return e.Message
}

func (e *GenericError) ShouldCloseConnection() bool {
	return true
}

// InvalidKeyError is returned when a key cannot be encoded on the wire.
// Nothing was written, the connection is still valid.
type InvalidKeyError struct {
	Key     string
	Message string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.Key, e.Message)
}

func (e *InvalidKeyError) ShouldCloseConnection() bool {
	return false
}

// ProtocolError is returned when a reply does not match the expected grammar,
// including a get reply carrying a key that was not requested.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// IOError wraps a transport failure while writing a request or reading a reply.
type IOError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by every error of this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether a connection must be discarded after err.
// Errors that do not implement ErrorWithConnectionState (timeouts, cancellations
// surfacing from the transport) are treated as fatal for the connection.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

// IsServerReported reports whether err is a reply from the server rather than
// a local failure.
func IsServerReported(err error) bool {
	var (
		ce *ClientError
		se *ServerError
		ge *GenericError
	)
	return errors.As(err, &ce) || errors.As(err, &se) || errors.As(err, &ge)
}
