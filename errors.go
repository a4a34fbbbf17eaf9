package memcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by data operations while the server pool is empty.
	ErrNotConfigured = errors.New("memcache: no servers configured")

	// ErrClientClosed is returned by every operation after Close.
	ErrClientClosed = errors.New("memcache: client closed")

	// ErrInvalidServerSpec matches every *ServerSpecError with errors.Is.
	ErrInvalidServerSpec = errors.New("memcache: invalid server spec")
)

// ServerSpecError reports a malformed entry passed to SetServers.
type ServerSpecError struct {
	Spec   string
	Reason string
}

func (e *ServerSpecError) Error() string {
	return fmt.Sprintf("memcache: invalid server spec %q: %s", e.Spec, e.Reason)
}

func (e *ServerSpecError) Is(target error) bool {
	return target == ErrInvalidServerSpec
}

// ConnectError is returned when a server cannot be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("memcache: connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) ShouldCloseConnection() bool {
	return true
}
