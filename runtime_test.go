package scotch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntime(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx)
	require.NoError(t, err)
	require.NotNil(t, runtime)
	defer runtime.Close(ctx)
}

func TestNewRuntimeWithMemoryLimit(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx, WithMemoryLimitPages(16))
	require.NoError(t, err)
	defer runtime.Close(ctx)
	assert.NotNil(t, runtime)
}
