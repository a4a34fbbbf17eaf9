package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedSlots(t *testing.T) {
	assert.Equal(t, []int{0, 1, 1, 1, 2}, WeightedSlots([]int{1, 3, 1}))
	assert.Equal(t, []int{1, 1}, WeightedSlots([]int{0, 2, -1}))
	assert.Empty(t, WeightedSlots(nil))
}

func TestJump(t *testing.T) {
	assert.Equal(t, 0, Jump(42, 0))
	assert.Equal(t, 0, Jump(42, 1))

	for hash := range uint64(1000) {
		b := Jump(hash, 10)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, 10)
	}
}

func TestJumpMinimalMovement(t *testing.T) {
	for hash := range uint64(10000) {
		before := Jump(hash*0x9e3779b97f4a7c15, 10)
		after := Jump(hash*0x9e3779b97f4a7c15, 11)
		if before != after {
			require.Equal(t, 10, after, "keys only move to the new bucket")
		}
	}
}

func TestJumpDistribution(t *testing.T) {
	counts := make([]int, 4)
	for hash := range uint64(40000) {
		counts[Jump(hash*0x9e3779b97f4a7c15, 4)]++
	}
	for _, c := range counts {
		assert.InDelta(t, 10000, c, 1000)
	}
}
