package scotch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	plugin := &Plugin{wasmBytes: emptyModule}
	module, data, err := DeserializeModule(ctx, runtime, Serialize(plugin))
	require.NoError(t, err)
	assert.Equal(t, emptyModule, data)
	assert.NotNil(t, module)
}

func TestSerializeCompressedDeserializeCompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	plugin := &Plugin{wasmBytes: emptyModule}
	compressed, err := SerializeCompressed(plugin)
	require.NoError(t, err)

	_, data, err := DeserializeCompressedModule(ctx, runtime, compressed)
	require.NoError(t, err)
	assert.Equal(t, emptyModule, data)
}

func TestBuilderFromFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	path := filepath.Join(t.TempDir(), "module.wasm")
	require.NoError(t, os.WriteFile(path, emptyModule, 0o644))

	b, err := BuilderFromFile[int](ctx, runtime, 0, path, false)
	require.NoError(t, err)

	_, err = b.WithExports().Finish(ctx)
	require.Error(t, err)
	var scotchErr *Error
	require.ErrorAs(t, err, &scotchErr)
	assert.Equal(t, ErrorKindExportMissing, scotchErr.Kind)
}
