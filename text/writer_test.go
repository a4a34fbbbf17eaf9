package text

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      *Request
		expected string
	}{
		{
			name:     "set",
			req:      NewStoreRequest(CmdSet, "foo", []byte("bar"), 0, 0),
			expected: "set foo 0 0 3\r\nbar\r\n",
		},
		{
			name:     "add with flags and exptime",
			req:      NewStoreRequest(CmdAdd, "foo", []byte("hello"), 42, 300),
			expected: "add foo 42 300 5\r\nhello\r\n",
		},
		{
			name:     "replace empty value",
			req:      NewStoreRequest(CmdReplace, "foo", nil, 0, 0),
			expected: "replace foo 0 0 0\r\n\r\n",
		},
		{
			name:     "binary value",
			req:      NewStoreRequest(CmdSet, "bin", []byte("a\r\nb\x00"), 0, 0),
			expected: "set bin 0 0 5\r\na\r\nb\x00\r\n",
		},
		{
			name:     "get single key",
			req:      NewGetRequest("foo"),
			expected: "get foo\r\n",
		},
		{
			name:     "get multiple keys",
			req:      NewGetRequest("foo", "bar", "baz"),
			expected: "get foo bar baz\r\n",
		},
		{
			name:     "delete",
			req:      NewDeleteRequest("foo", 0),
			expected: "delete foo\r\n",
		},
		{
			name:     "delete with hold time",
			req:      NewDeleteRequest("foo", 10),
			expected: "delete foo 10\r\n",
		},
		{
			name:     "incr",
			req:      NewArithRequest(CmdIncr, "counter", 1),
			expected: "incr counter 1\r\n",
		},
		{
			name:     "decr max delta",
			req:      NewArithRequest(CmdDecr, "counter", 18446744073709551615),
			expected: "decr counter 18446744073709551615\r\n",
		},
		{
			name:     "flush_all",
			req:      NewFlushAllRequest(0),
			expected: "flush_all\r\n",
		},
		{
			name:     "flush_all delayed",
			req:      NewFlushAllRequest(60),
			expected: "flush_all 60\r\n",
		},
		{
			name:     "stats",
			req:      NewStatsRequest(),
			expected: "stats\r\n",
		},
		{
			name:     "stats group",
			req:      NewStatsRequest("slabs"),
			expected: "stats slabs\r\n",
		},
		{
			name:     "version",
			req:      NewVersionRequest(),
			expected: "version\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, tt.req))
			require.Equal(t, tt.expected, buf.String())

			// The buffered path must produce the same bytes.
			var out bytes.Buffer
			bw := bufio.NewWriter(&out)
			require.NoError(t, WriteRequest(bw, tt.req))
			require.Equal(t, tt.expected, out.String())
		})
	}
}

func TestWriteRequestInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"empty key", NewGetRequest("")},
		{"no key", NewGetRequest()},
		{"space", NewStoreRequest(CmdSet, "foo bar", nil, 0, 0)},
		{"newline", NewDeleteRequest("foo\r\n", 0)},
		{"tab", NewArithRequest(CmdIncr, "a\tb", 1)},
		{"del", NewGetRequest("a\x7fb")},
		{"too long", NewGetRequest(strings.Repeat("k", MaxKeyLength+1))},
		{"one bad key among many", NewGetRequest("good", "bad key")},
		{"stats argument", NewStatsRequest("bad arg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteRequest(&buf, tt.req)

			var keyErr *InvalidKeyError
			require.ErrorAs(t, err, &keyErr)
			require.False(t, ShouldCloseConnection(err))
			require.Zero(t, buf.Len(), "nothing must be written for an invalid request")
		})
	}
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey("k"))
	require.NoError(t, ValidateKey(strings.Repeat("k", MaxKeyLength)))
	require.NoError(t, ValidateKey("user:42/profile{é}"))
	require.Error(t, ValidateKey(strings.Repeat("k", MaxKeyLength+1)))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriteRequestIOError(t *testing.T) {
	err := WriteRequest(failingWriter{}, NewGetRequest("foo"))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "write", ioErr.Op)
	require.True(t, ShouldCloseConnection(err))

	err = WriteRequest(bufio.NewWriter(failingWriter{}), NewGetRequest("foo"))
	require.ErrorAs(t, err, &ioErr)
}
