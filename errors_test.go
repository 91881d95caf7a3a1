package scotch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	withCause := newError(ErrorKindDecode, "read", errors.New("boom"))
	assert.Contains(t, withCause.Error(), "decode error")
	assert.Contains(t, withCause.Error(), "boom")

	withoutCause := &Error{Kind: ErrorKindAlloc, Op: "alloc"}
	assert.Contains(t, withoutCause.Error(), "alloc error")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := newError(ErrorKindRuntime, "call", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorIsComparesKindOnly(t *testing.T) {
	a := newError(ErrorKindFreeFailed, "free", errors.New("one"))
	b := newError(ErrorKindFreeFailed, "free", errors.New("two"))
	c := newError(ErrorKindAlloc, "alloc", errors.New("three"))

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorKindStringCoversAllKinds(t *testing.T) {
	kinds := []ErrorKind{
		ErrorKindModuleCompile, ErrorKindModuleDeserialize, ErrorKindInstantiation,
		ErrorKindExportMissing, ErrorKindEncode, ErrorKindDecode, ErrorKindMemoryAccess,
		ErrorKindAlloc, ErrorKindRuntime, ErrorKindFreeFailed,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "unknown error", k.String())
	}
}
