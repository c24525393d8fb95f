package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceReplaysAndWraps(t *testing.T) {
	seq := NewSequence(4, 1, 99)

	got := make([]int, 0, 7)
	for range 7 {
		got = append(got, seq.IntN(100))
	}
	assert.Equal(t, []int{4, 1, 99, 4, 1, 99, 4}, got)
}

func TestDefaultStaysInRange(t *testing.T) {
	src := Default()
	for range 1000 {
		v := src.IntN(100)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 100)
	}
}
