package testutils

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/puzpuzpuz/xsync/v3"
)

// Version is the version string reported by the fake server.
const Version = "1.6.0-testutils"

type entry struct {
	flags uint32
	data  []byte
}

// Server is an in-process memcached speaking the text protocol.
// It implements set, add, replace, get, gets, delete, incr, decr, flush_all,
// stats and version. Expiration times are accepted and ignored.
type Server struct {
	listener net.Listener
	items    *xsync.MapOf[string, entry]

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	intercept atomic.Pointer[InterceptFunc]
	commands  atomic.Int64
}

// InterceptFunc can replace the reply to a command line. When handled is true
// reply is written verbatim (possibly empty, leaving the client waiting) and the
// command is not executed.
type InterceptFunc func(line string) (reply string, handled bool)

// NewServer starts a server on a random local port. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start fake memcached: %v", err)
	}

	s := &Server{
		listener: listener,
		items:    xsync.NewMapOf[string, entry](),
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the listener and drops every open connection, simulating a
// server going down. It is safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.listener.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// SetIntercept installs fn to rewrite replies. Pass nil to remove it.
func (s *Server) SetIntercept(fn InterceptFunc) {
	if fn == nil {
		s.intercept.Store(nil)
		return
	}
	s.intercept.Store(&fn)
}

// Peek returns the stored value for key.
func (s *Server) Peek(key string) ([]byte, uint32, bool) {
	e, ok := s.items.Load(key)
	return e.data, e.flags, ok
}

// Put stores a value directly, bypassing the protocol.
func (s *Server) Put(key string, value []byte, flags uint32) {
	s.items.Store(key, entry{flags: flags, data: value})
}

// Len returns the number of stored items.
func (s *Server) Len() int {
	return s.items.Size()
}

// Commands returns the number of command lines received.
func (s *Server) Commands() int64 {
	return s.commands.Load()
}

// OpenConnections returns the number of client connections currently open.
func (s *Server) OpenConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.commands.Add(1)

		if fn := s.intercept.Load(); fn != nil {
			if reply, handled := (*fn)(line); handled {
				// Consume the data block so the stream stays aligned.
				if err := skipDataBlock(r, line); err != nil {
					return
				}
				_, _ = w.WriteString(reply)
				if err := w.Flush(); err != nil {
					return
				}
				continue
			}
		}

		if err := s.handle(line, r, w); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func skipDataBlock(r *bufio.Reader, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return nil
	}
	switch fields[0] {
	case "set", "add", "replace":
		size, err := strconv.Atoi(fields[4])
		if err != nil || size < 0 {
			return nil
		}
		_, err = io.CopyN(io.Discard, r, int64(size+2))
		return err
	}
	return nil
}

func (s *Server) handle(line string, r *bufio.Reader, w *bufio.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		_, _ = w.WriteString("ERROR\r\n")
		return nil
	}

	switch fields[0] {
	case "set", "add", "replace":
		return s.handleStore(fields, r, w)
	case "get", "gets":
		s.handleGet(fields, w)
	case "delete":
		s.handleDelete(fields, w)
	case "incr", "decr":
		s.handleArith(fields, w)
	case "flush_all":
		s.items.Clear()
		_, _ = w.WriteString("OK\r\n")
	case "stats":
		s.handleStats(fields, w)
	case "version":
		fmt.Fprintf(w, "VERSION %s\r\n", Version)
	default:
		_, _ = w.WriteString("ERROR\r\n")
	}
	return nil
}

func (s *Server) handleStore(fields []string, r *bufio.Reader, w *bufio.Writer) error {
	if len(fields) < 5 {
		_, _ = w.WriteString("CLIENT_ERROR bad command line format\r\n")
		return nil
	}

	flags, err1 := strconv.ParseUint(fields[2], 10, 32)
	size, err2 := strconv.Atoi(fields[4])
	if err1 != nil || err2 != nil || size < 0 {
		_, _ = w.WriteString("CLIENT_ERROR bad command line format\r\n")
		return nil
	}

	data := make([]byte, size+2)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	if string(data[size:]) != "\r\n" {
		_, _ = w.WriteString("CLIENT_ERROR bad data chunk\r\n")
		return nil
	}

	key := fields[1]
	e := entry{flags: uint32(flags), data: data[:size]}

	stored := true
	switch fields[0] {
	case "set":
		s.items.Store(key, e)
	case "add":
		_, loaded := s.items.LoadOrStore(key, e)
		stored = !loaded
	case "replace":
		s.items.Compute(key, func(old entry, loaded bool) (entry, bool) {
			stored = loaded
			if !loaded {
				return old, true
			}
			return e, false
		})
	}

	if stored {
		_, _ = w.WriteString("STORED\r\n")
	} else {
		_, _ = w.WriteString("NOT_STORED\r\n")
	}
	return nil
}

func (s *Server) handleGet(fields []string, w *bufio.Writer) {
	for _, key := range fields[1:] {
		e, ok := s.items.Load(key)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "VALUE %s %d %d\r\n", key, e.flags, len(e.data))
		_, _ = w.Write(e.data)
		_, _ = w.WriteString("\r\n")
	}
	_, _ = w.WriteString("END\r\n")
}

func (s *Server) handleDelete(fields []string, w *bufio.Writer) {
	if len(fields) < 2 {
		_, _ = w.WriteString("ERROR\r\n")
		return
	}
	if _, ok := s.items.LoadAndDelete(fields[1]); ok {
		_, _ = w.WriteString("DELETED\r\n")
	} else {
		_, _ = w.WriteString("NOT_FOUND\r\n")
	}
}

func (s *Server) handleArith(fields []string, w *bufio.Writer) {
	if len(fields) != 3 {
		_, _ = w.WriteString("ERROR\r\n")
		return
	}
	delta, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		_, _ = w.WriteString("CLIENT_ERROR invalid numeric delta argument\r\n")
		return
	}

	var (
		reply string
		incr  = fields[0] == "incr"
	)
	s.items.Compute(fields[1], func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			reply = "NOT_FOUND"
			return old, true
		}
		current, err := strconv.ParseUint(string(old.data), 10, 64)
		if err != nil {
			reply = "CLIENT_ERROR cannot increment or decrement non-numeric value"
			return old, false
		}
		switch {
		case incr:
			current += delta
		case delta > current:
			current = 0
		default:
			current -= delta
		}
		reply = strconv.FormatUint(current, 10)
		return entry{flags: old.flags, data: []byte(reply)}, false
	})

	_, _ = w.WriteString(reply + "\r\n")
}

func (s *Server) handleStats(fields []string, w *bufio.Writer) {
	if len(fields) == 1 {
		fmt.Fprintf(w, "STAT pid %d\r\n", 1)
		fmt.Fprintf(w, "STAT version %s\r\n", Version)
		fmt.Fprintf(w, "STAT curr_items %d\r\n", s.items.Size())
		fmt.Fprintf(w, "STAT curr_connections %d\r\n", s.OpenConnections())
		fmt.Fprintf(w, "STAT rusage_user 0.500000\r\n")
		fmt.Fprintf(w, "STAT uptime 3600\r\n")
	}
	_, _ = w.WriteString("END\r\n")
}
