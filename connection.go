package memcache

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pior/memcache-text/text"
)

// ErrConnectionClosed is returned by operations on a closed Connection.
var ErrConnectionClosed = errors.New("memcache: connection closed")

// Connection is a single stream to a server. Requests and replies are strictly
// ordered: a Connection is used by one caller at a time, the pool guarantees it.
type Connection struct {
	Reader *bufio.Reader
	Writer *bufio.Writer

	conn    net.Conn
	timeout time.Duration

	mu      sync.Mutex
	lastErr error
	closed  bool
}

// NewConnection wraps an established net.Conn. A positive timeout bounds every
// request/reply exchange, in addition to the context deadline.
func NewConnection(conn net.Conn, timeout time.Duration) *Connection {
	return &Connection{
		Reader:  bufio.NewReader(conn),
		Writer:  bufio.NewWriter(conn),
		conn:    conn,
		timeout: timeout,
	}
}

// Dial opens a connection to addr. Failures are returned as *ConnectError.
func Dial(ctx context.Context, dialer *net.Dialer, addr string, timeout time.Duration) (*Connection, error) {
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return NewConnection(netConn, timeout), nil
}

// Healthy reports whether the connection can carry another request.
func (c *Connection) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !text.ShouldCloseConnection(c.lastErr)
}

// Err returns the last error seen on the connection.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// RemoteAddr returns the address of the memcached server.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Send writes req and flushes it.
func (c *Connection) Send(req *text.Request) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return &text.IOError{Op: "write", Err: ErrConnectionClosed}
	}

	err := text.WriteRequest(c.Writer, req)
	c.record(err)
	return err
}

func (c *Connection) record(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// setDeadline applies the earliest of the context deadline and the connection timeout.
func (c *Connection) setDeadline(ctx context.Context) error {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}

// roundTrip sends req on conn and decodes the reply with read.
// Cancelling ctx interrupts a blocked exchange; the connection is then unusable.
func roundTrip[T any](ctx context.Context, conn *Connection, req *text.Request, read func(*bufio.Reader) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if err := conn.setDeadline(ctx); err != nil {
		err = &text.IOError{Op: "write", Err: err}
		conn.record(err)
		return zero, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.Send(req); err != nil {
		return zero, withContextErr(ctx, err)
	}

	value, err := read(conn.Reader)
	if err != nil {
		conn.record(err)
		return zero, withContextErr(ctx, err)
	}
	return value, nil
}

// withContextErr attaches the context error to an I/O failure caused by cancellation.
func withContextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}
