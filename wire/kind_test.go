package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type record struct {
	A int
	B string
}

func TestKindOfScalars(t *testing.T) {
	assert.Equal(t, KindScalar, KindOf[bool]())
	assert.Equal(t, KindScalar, KindOf[int8]())
	assert.Equal(t, KindScalar, KindOf[int32]())
	assert.Equal(t, KindScalar, KindOf[uint64]())
	assert.Equal(t, KindScalar, KindOf[float32]())
	assert.Equal(t, KindScalar, KindOf[float64]())
}

func TestKindOfRecordLike(t *testing.T) {
	assert.Equal(t, KindRecord, KindOf[string]())
	assert.Equal(t, KindRecord, KindOf[record]())
	assert.Equal(t, KindRecord, KindOf[[]int]())
	assert.Equal(t, KindRecord, KindOf[map[string]int]())
	assert.Equal(t, KindRecord, KindOf[*record]())
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar[uint32]())
	assert.False(t, IsScalar[record]())
}

func TestKindOfIsMemoized(t *testing.T) {
	// Calling twice must hit the cache and return the same answer; this
	// mainly guards against the memoization path itself panicking on a
	// type it hasn't seen before.
	first := KindOf[record]()
	second := KindOf[record]()
	assert.Equal(t, first, second)
}
