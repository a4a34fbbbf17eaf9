package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(16, 64)

	buf := pool.Get()
	assert.Zero(t, buf.Len())
	assert.GreaterOrEqual(t, buf.Cap(), 16)

	buf.WriteString("set foo 0 0 3\r\n")
	pool.Put(buf)

	buf = pool.Get()
	assert.Zero(t, buf.Len(), "pooled buffers are reset")
	pool.Put(buf)
}

func TestBufferPoolDropsLargeBuffers(t *testing.T) {
	pool := NewBufferPool(16, 64)

	large := pool.Get()
	large.WriteString(strings.Repeat("x", 1024))
	pool.Put(large)

	for range 10 {
		buf := pool.Get()
		assert.NotSame(t, large, buf)
		assert.LessOrEqual(t, buf.Cap(), 64)
	}
}
