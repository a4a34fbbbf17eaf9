package text

import (
	"bufio"
	"bytes"
	"testing"
)

// FuzzReadGetResponse checks that malformed get replies never panic and that
// values returned without error respect the declared sizes.
// Run with: go test -fuzz='^FuzzReadGetResponse$' -fuzztime=60s ./text
func FuzzReadGetResponse(f *testing.F) {
	f.Add([]byte("END\r\n"))
	f.Add([]byte("VALUE foo 0 3\r\nbar\r\nEND\r\n"))
	f.Add([]byte("VALUE foo 0 3 99\r\nbar\r\nEND\r\n"))
	f.Add([]byte("VALUE foo 0 0\r\n\r\nEND\r\n"))
	f.Add([]byte("VALUE foo 4294967295 1\r\nx\r\nEND\r\n"))
	f.Add([]byte("VALUE foo 0 -1\r\n"))
	f.Add([]byte("VALUE foo 0 9223372036854775807\r\nx\r\nEND\r\n"))
	f.Add([]byte("VALUE foo 0 1099511627776\r\n"))
	f.Add([]byte("VALUE foo 0 3\r\nbarXX"))
	f.Add([]byte("VALUE\r\n"))
	f.Add([]byte("CLIENT_ERROR bad\r\n"))
	f.Add([]byte("SERVER_ERROR\r\n"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		values, err := ReadGetResponse(bufio.NewReader(bytes.NewReader(data)), nil)
		if err != nil {
			return
		}
		for _, v := range values {
			if v.Key == "" {
				t.Errorf("value with empty key: %+v", v)
			}
		}
	})
}

// FuzzReadArithResponse checks that arithmetic replies never panic.
func FuzzReadArithResponse(f *testing.F) {
	f.Add([]byte("42\r\n"))
	f.Add([]byte("NOT_FOUND\r\n"))
	f.Add([]byte("CLIENT_ERROR cannot increment or decrement non-numeric value\r\n"))
	f.Add([]byte("18446744073709551616\r\n"))
	f.Add([]byte("1 \r\n"))
	f.Add([]byte("\r\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, found, err := ReadArithResponse(bufio.NewReader(bytes.NewReader(data)))
		if err != nil && found {
			t.Errorf("found must be false on error")
		}
	})
}

// FuzzReadStatsResponse checks that stats replies never panic.
func FuzzReadStatsResponse(f *testing.F) {
	f.Add([]byte("STAT pid 1\r\nEND\r\n"))
	f.Add([]byte("STAT a\r\nEND\r\n"))
	f.Add([]byte("STAT  b\r\nEND\r\n"))
	f.Add([]byte("END\r\n"))
	f.Add([]byte("ERROR\r\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = ReadStatsResponse(bufio.NewReader(bytes.NewReader(data)))
	})
}
