package testutils

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn replaying a canned reply stream and recording
// everything written to it.
type ConnectionMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	readErr  error
	writeErr error
	deadline time.Time
	closed   bool
}

// NewConnectionMock creates a mock connection whose reads return the
// concatenation of replies.
func NewConnectionMock(replies ...string) *ConnectionMock {
	return &ConnectionMock{
		readBuf:  bytes.NewBufferString(strings.Join(replies, "")),
		writeBuf: &bytes.Buffer{},
	}
}

// FailReads makes every read fail with err once the canned replies are consumed.
func (m *ConnectionMock) FailReads(err error) *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	return m
}

// FailWrites makes every write fail with err.
func (m *ConnectionMock) FailWrites(err error) *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
	return m
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readBuf.Len() == 0 && m.readErr != nil {
		return 0, m.readErr
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11211}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

// Deadline returns the last deadline set on the connection.
func (m *ConnectionMock) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// Written returns the raw bytes written to the connection.
func (m *ConnectionMock) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}
