package text

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pior/memcache-text/internal"
)

// Typical command lines are well under 256 bytes. Buffers that grew past 64KiB
// because of a large data block are not recycled.
var bufferPool = internal.NewBufferPool(256, 64*1024)

type requestWriter interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

// ValidateKey checks that key can be sent in a text protocol command line:
// 1 to 250 bytes, no spaces and no control characters.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength {
		return &InvalidKeyError{Key: key, Message: "key is empty"}
	}

	if len(key) > MaxKeyLength {
		return &InvalidKeyError{Key: key, Message: "key exceeds maximum length of 250 bytes"}
	}

	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return &InvalidKeyError{Key: key, Message: "key contains whitespace or control characters"}
		}
	}

	return nil
}

func validateRequest(req *Request) error {
	switch req.Command {
	case CmdGet:
		if len(req.Keys) == 0 {
			return &InvalidKeyError{Message: "get requires at least one key"}
		}
	case CmdSet, CmdAdd, CmdReplace, CmdDelete, CmdIncr, CmdDecr:
		if len(req.Keys) != 1 {
			return &InvalidKeyError{Message: string(req.Command) + " requires exactly one key"}
		}
	case CmdStats:
		for _, arg := range req.Args {
			if err := ValidateKey(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}

	for _, key := range req.Keys {
		if err := ValidateKey(key); err != nil {
			return err
		}
	}
	return nil
}

// WriteRequest serializes req and writes it to w.
//
// Keys are validated before anything is written, so an *InvalidKeyError leaves
// the stream untouched. Transport failures are returned as *IOError.
// A *bufio.Writer is written to directly and flushed; other writers receive the
// request in a single Write call.
func WriteRequest(w io.Writer, req *Request) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	if bw, ok := w.(*bufio.Writer); ok {
		encodeRequest(bw, req)
		if err := bw.Flush(); err != nil {
			return &IOError{Op: "write", Err: err}
		}
		return nil
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	encodeRequest(buf, req)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// encodeRequest ignores write errors: bufio.Writer keeps the first error and
// returns it on Flush, bytes.Buffer never fails.
func encodeRequest(w requestWriter, req *Request) {
	_, _ = w.WriteString(string(req.Command))

	switch req.Command {
	case CmdSet, CmdAdd, CmdReplace:
		writeToken(w, req.Keys[0])
		writeToken(w, strconv.FormatUint(uint64(req.Flags), 10))
		writeToken(w, strconv.FormatInt(req.Exptime, 10))
		writeToken(w, strconv.Itoa(len(req.Data)))
		_, _ = w.WriteString(CRLF)
		_, _ = w.Write(req.Data)

	case CmdGet:
		for _, key := range req.Keys {
			writeToken(w, key)
		}

	case CmdDelete:
		writeToken(w, req.Keys[0])
		if req.Exptime != 0 {
			writeToken(w, strconv.FormatInt(req.Exptime, 10))
		}

	case CmdIncr, CmdDecr:
		writeToken(w, req.Keys[0])
		writeToken(w, strconv.FormatUint(req.Delta, 10))

	case CmdFlushAll:
		if req.Exptime != 0 {
			writeToken(w, strconv.FormatInt(req.Exptime, 10))
		}

	case CmdStats:
		for _, arg := range req.Args {
			writeToken(w, arg)
		}
	}

	_, _ = w.WriteString(CRLF)
}

func writeToken(w requestWriter, token string) {
	_ = w.WriteByte(' ')
	_, _ = w.WriteString(token)
}
