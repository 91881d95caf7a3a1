package scotch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

// emptyModule is the smallest legal WASM module: just the magic number
// and version, with no sections. wazero compiles it successfully but
// it exports nothing, so instantiating it always fails the
// __scotch_alloc/__scotch_free/memory checks in Builder.Finish.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestBuilderPreconditionPanicsOnImportsBeforeState(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	b := NewBuilder[int](runtime)
	assert.Panics(t, func() {
		b.WithImports(func(context.Context, wazero.Runtime, *Environment[int]) error {
			return nil
		})
	})
}

func TestBuilderPreconditionPanicsOnBytecodeBeforeState(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	b := NewBuilder[int](runtime)
	assert.Panics(t, func() {
		b.WithBytecode(emptyModule)
	})
}

func TestBuilderPreconditionPanicsOnFinishBeforeExports(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	b := NewBuilder[int](runtime).WithState(0).WithBytecode(emptyModule)
	assert.Panics(t, func() {
		_, _ = b.Finish(ctx)
	})
}

func TestBuilderPreconditionPanicsOnDoubleState(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	b := NewBuilder[int](runtime).WithState(0)
	assert.Panics(t, func() {
		b.WithState(1)
	})
}

func TestBuilderInvalidBytecodeReturnsErrorNotPanic(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	plugin, err := NewBuilder[int](runtime).
		WithState(0).
		WithBytecode([]byte("not a wasm module")).
		WithExports().
		Finish(ctx)

	require.Error(t, err)
	assert.Nil(t, plugin)
	var scotchErr *Error
	require.ErrorAs(t, err, &scotchErr)
	assert.Equal(t, ErrorKindModuleCompile, scotchErr.Kind)
}

func TestBuilderRejectsModuleWithoutRequiredExports(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	plugin, err := NewBuilder[int](runtime).
		WithState(0).
		WithBytecode(emptyModule).
		WithExports().
		Finish(ctx)

	require.Error(t, err)
	assert.Nil(t, plugin)
	var scotchErr *Error
	require.ErrorAs(t, err, &scotchErr)
	assert.Equal(t, ErrorKindExportMissing, scotchErr.Kind)
}
