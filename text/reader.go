package text

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	crlfBytes         = []byte(CRLF)
	endBytes          = []byte(ReplyEnd)
	valuePrefix       = []byte(ValuePrefix + " ")
	statPrefix        = []byte(StatPrefix + " ")
	versionPrefix     = []byte(VersionPrefix + " ")
	errorGenericBytes = []byte(ErrorGeneric)
	clientErrorPrefix = []byte(ErrorClientPrefix + " ")
	serverErrorPrefix = []byte(ErrorServerPrefix + " ")
)

// Value is one VALUE block of a get reply.
type Value struct {
	Key   string
	Flags uint32
	Data  []byte
	CAS   uint64
}

// readLine returns the next reply line without its terminator.
// The returned slice is only valid until the next read on r.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// ReadSlice consumed the buffered prefix, keep it.
		head := append([]byte(nil), line...)
		var rest []byte
		rest, err = r.ReadBytes('\n')
		line = append(head, rest...)
	}
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, &IOError{Op: "read", Err: err}
	}

	line = bytes.TrimSuffix(line, crlfBytes)
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return line, nil
}

// parseErrorLine returns the error carried by an error reply line, or nil.
func parseErrorLine(line []byte) error {
	if msg, ok := bytes.CutPrefix(line, clientErrorPrefix); ok {
		return &ClientError{Message: string(msg)}
	}
	if msg, ok := bytes.CutPrefix(line, serverErrorPrefix); ok {
		return &ServerError{Message: string(msg)}
	}
	if bytes.Equal(line, errorGenericBytes) || bytes.HasPrefix(line, []byte(ErrorGeneric+" ")) {
		return &GenericError{Message: string(line)}
	}
	return nil
}

func unexpectedReply(cmd string, line []byte) error {
	return &ProtocolError{Message: "unexpected " + cmd + " reply: " + strconv.Quote(string(line))}
}

// ReadStoreResponse reads the reply of set, add or replace.
// STORED returns true. NOT_STORED, EXISTS and NOT_FOUND return false: the
// condition of the command did not hold, which is not an error.
func ReadStoreResponse(r *bufio.Reader) (bool, error) {
	line, err := readLine(r)
	if err != nil {
		return false, err
	}

	switch string(line) {
	case ReplyStored:
		return true, nil
	case ReplyNotStored, ReplyExists, ReplyNotFound:
		return false, nil
	}

	if err := parseErrorLine(line); err != nil {
		return false, err
	}
	return false, unexpectedReply("store", line)
}

// ReadGetResponse reads VALUE blocks until END.
//
// When requested is not empty, every returned key must be one of the requested
// keys; otherwise a *ProtocolError is returned. Values own their data.
func ReadGetResponse(r *bufio.Reader, requested []string) ([]Value, error) {
	var want map[string]struct{}
	if len(requested) > 1 {
		want = make(map[string]struct{}, len(requested))
		for _, k := range requested {
			want[k] = struct{}{}
		}
	}

	var values []Value
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}

		if bytes.Equal(line, endBytes) {
			return values, nil
		}

		if !bytes.HasPrefix(line, valuePrefix) {
			if err := parseErrorLine(line); err != nil {
				return nil, err
			}
			return nil, unexpectedReply("get", line)
		}

		value, size, err := parseValueLine(line)
		if err != nil {
			return nil, err
		}

		switch {
		case want != nil:
			if _, ok := want[value.Key]; !ok {
				return nil, &ProtocolError{Message: "server returned unrequested key " + strconv.Quote(value.Key)}
			}
		case len(requested) == 1:
			if value.Key != requested[0] {
				return nil, &ProtocolError{Message: "server returned unrequested key " + strconv.Quote(value.Key)}
			}
		}

		value.Data, err = readDataBlock(r, size)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}
}

// parseValueLine parses "VALUE <key> <flags> <bytes> [<cas>]".
func parseValueLine(line []byte) (Value, int, error) {
	fields := bytes.Fields(line)
	if len(fields) != 4 && len(fields) != 5 {
		return Value{}, 0, &ProtocolError{Message: "malformed VALUE line: " + strconv.Quote(string(line))}
	}

	flags, err := strconv.ParseUint(string(fields[2]), 10, 32)
	if err != nil {
		return Value{}, 0, &ProtocolError{Message: "invalid flags in VALUE line", Err: err}
	}

	size, err := strconv.Atoi(string(fields[3]))
	if err != nil {
		return Value{}, 0, &ProtocolError{Message: "invalid size in VALUE line", Err: err}
	}
	if size < 0 {
		return Value{}, 0, &ProtocolError{Message: "negative size in VALUE line"}
	}
	if size > MaxValueSize {
		return Value{}, 0, &ProtocolError{Message: "size in VALUE line exceeds " + strconv.Itoa(MaxValueSize) + " bytes"}
	}

	value := Value{
		Key:   string(fields[1]),
		Flags: uint32(flags),
	}

	if len(fields) == 5 {
		value.CAS, err = strconv.ParseUint(string(fields[4]), 10, 64)
		if err != nil {
			return Value{}, 0, &ProtocolError{Message: "invalid cas in VALUE line", Err: err}
		}
	}

	return value, size, nil
}

// Data blocks up to this size are read in a single read. Larger blocks grow
// with the data actually received.
const preallocSize = 1 << 20

// readDataBlock reads size bytes followed by CRLF.
func readDataBlock(r *bufio.Reader, size int) ([]byte, error) {
	var data []byte

	if size <= preallocSize {
		data = make([]byte, size+2)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, &IOError{Op: "read", Err: err}
		}
	} else {
		buf := bytes.NewBuffer(make([]byte, 0, preallocSize))
		if _, err := io.CopyN(buf, r, int64(size)+2); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, &IOError{Op: "read", Err: err}
		}
		data = buf.Bytes()
	}

	if !bytes.HasSuffix(data, crlfBytes) {
		return nil, &ProtocolError{Message: "invalid data block terminator"}
	}

	return data[:size], nil
}

// ReadDeleteResponse reads the reply of delete: DELETED returns true,
// NOT_FOUND returns false.
func ReadDeleteResponse(r *bufio.Reader) (bool, error) {
	line, err := readLine(r)
	if err != nil {
		return false, err
	}

	switch string(line) {
	case ReplyDeleted:
		return true, nil
	case ReplyNotFound:
		return false, nil
	}

	if err := parseErrorLine(line); err != nil {
		return false, err
	}
	return false, unexpectedReply("delete", line)
}

// ReadArithResponse reads the reply of incr or decr.
//
// found is false when the key does not exist or holds a non-numeric value;
// neither case is an error. The returned value is only meaningful when found.
func ReadArithResponse(r *bufio.Reader) (value uint64, found bool, err error) {
	line, err := readLine(r)
	if err != nil {
		return 0, false, err
	}

	if string(line) == ReplyNotFound {
		return 0, false, nil
	}

	if err := parseErrorLine(line); err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && strings.HasPrefix(ce.Message, ErrorNonNumeric) {
			return 0, false, nil
		}
		return 0, false, err
	}

	// Older servers pad the number with trailing spaces when it shrinks.
	value, err = strconv.ParseUint(string(bytes.TrimSpace(line)), 10, 64)
	if err != nil {
		return 0, false, &ProtocolError{Message: "invalid arithmetic reply", Err: err}
	}
	return value, true, nil
}

// ReadOKResponse reads a reply that must be OK, such as the reply of flush_all.
func ReadOKResponse(r *bufio.Reader) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}

	if string(line) == ReplyOK {
		return nil
	}

	if err := parseErrorLine(line); err != nil {
		return err
	}
	return unexpectedReply("flush_all", line)
}

// ReadStatsResponse reads "STAT <name> <value>" lines until END.
// Values are returned verbatim and may contain spaces.
//
// Example response:
//
//	STAT pid 12345
//	STAT uptime 3600
//	STAT version 1.6.21
//	END
func ReadStatsResponse(r *bufio.Reader) (map[string]string, error) {
	stats := make(map[string]string)

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}

		if bytes.Equal(line, endBytes) {
			return stats, nil
		}

		statLine, ok := bytes.CutPrefix(line, statPrefix)
		if !ok {
			if err := parseErrorLine(line); err != nil {
				return nil, err
			}
			return nil, unexpectedReply("stats", line)
		}

		name, value, ok := bytes.Cut(statLine, []byte(Space))
		if !ok || len(name) == 0 {
			return nil, &ProtocolError{Message: "invalid STAT line format: " + strconv.Quote(string(line))}
		}

		stats[string(name)] = string(value)
	}
}

// ReadVersionResponse reads "VERSION <version>" and returns the version string.
func ReadVersionResponse(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}

	if version, ok := bytes.CutPrefix(line, versionPrefix); ok {
		return string(version), nil
	}

	if err := parseErrorLine(line); err != nil {
		return "", err
	}
	return "", unexpectedReply("version", line)
}
