package scotch

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// globalCache speeds up compilation across runtimes within a process by
// sharing one wazero.CompilationCache across every Runtime created here.
var globalCache = wazero.NewCompilationCache()

// CloseGlobalCache releases resources held by the shared compilation
// cache. Long-running hosts should call it during graceful shutdown;
// short-lived CLI invocations can skip it and let the OS reclaim it.
func CloseGlobalCache(ctx context.Context) error {
	return globalCache.Close(ctx)
}

// RuntimeOption configures NewRuntime.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	memoryLimitPages uint32
}

// WithMemoryLimitPages caps the linear memory of each guest module
// instantiated in the runtime at the given number of 64 KiB pages. The
// in-guest allocator's own slab sits inside whatever this limit allows.
func WithMemoryLimitPages(pages uint32) RuntimeOption {
	return func(c *runtimeConfig) { c.memoryLimitPages = pages }
}

// NewRuntime creates a wazero Runtime sharing the package's compilation
// cache, with WASI preview1 already instantiated against it. The
// resulting Runtime is handed to NewBuilder.
func NewRuntime(ctx context.Context, opts ...RuntimeOption) (wazero.Runtime, error) {
	cfg := runtimeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	config := wazero.NewRuntimeConfig().WithCompilationCache(globalCache)
	if cfg.memoryLimitPages > 0 {
		config = config.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, config)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, newError(ErrorKindInstantiation, "wasi", fmt.Errorf("instantiate WASI: %w", err))
	}
	return r, nil
}
