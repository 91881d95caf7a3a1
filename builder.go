package scotch

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
)

type buildStage int

const (
	stageState buildStage = iota
	stageModule
	stageImports
	stageExports
	stageFinished
)

// ImportsFunc produces the engine import table for a plugin instance
// given the engine runtime and the environment. Called lazily, once
// the module source is known.
type ImportsFunc[S any] func(ctx context.Context, runtime wazero.Runtime, env *Environment[S]) error

// Builder assembles a Plugin through a fixed staged sequence: state,
// module, imports, exports, finish. Calling a stage method out of
// order panics with a descriptive message.
type Builder[S any] struct {
	stage          buildStage
	runtime        wazero.Runtime
	env            *Environment[S]
	pendingModule  wazero.CompiledModule
	pendingBytes   []byte
	pendingFileErr error
	moduleProvided bool
	imports        ImportsFunc[S]
	exports        []ExportCreator
}

// NewBuilder creates a Builder bound to an already-configured wazero
// Runtime. Callers control engine-wide settings such as memory limits
// and the compilation cache via NewRuntime.
func NewBuilder[S any](runtime wazero.Runtime) *Builder[S] {
	return &Builder[S]{runtime: runtime, stage: stageState}
}

func (b *Builder[S]) requireStage(want buildStage, method string) {
	if b.stage > want {
		panic(fmt.Sprintf("scotch: Builder.%s called out of order (already past stage %d)", method, want))
	}
}

// WithState installs the user state value, creating the environment
// slot. Must precede WithImports.
func (b *Builder[S]) WithState(state S) *Builder[S] {
	b.requireStage(stageState, "WithState")
	b.env = NewEnvironment(state)
	b.stage = stageModule
	return b
}

// WithBytecode queues raw WASM bytecode to be compiled during Finish.
// Exactly one of WithBytecode/WithModuleFile/WithCompiledModule must be
// called. Compile failures are reported as an error from Finish, not a
// panic: only builder-sequencing violations panic.
func (b *Builder[S]) WithBytecode(wasmBytes []byte) *Builder[S] {
	b.requireStage(stageModule, "WithBytecode")
	if b.env == nil {
		panic("scotch: Builder.WithBytecode called before WithState")
	}
	b.pendingBytes = wasmBytes
	b.moduleProvided = true
	b.stage = stageImports
	return b
}

// WithModuleFile queues the WASM bytecode found at path. Like
// WithBytecode, read/compile failures surface from Finish.
func (b *Builder[S]) WithModuleFile(path string) *Builder[S] {
	b.requireStage(stageModule, "WithModuleFile")
	if b.env == nil {
		panic("scotch: Builder.WithModuleFile called before WithState")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// File I/O failure is reported through the same channel as a
		// compile failure would be, deferred to Finish.
		b.pendingFileErr = newError(ErrorKindModuleCompile, "compile", err)
		b.moduleProvided = true
		b.stage = stageImports
		return b
	}
	b.pendingBytes = data
	b.moduleProvided = true
	b.stage = stageImports
	return b
}

// WithCompiledModule installs an already-compiled module together with
// the bytecode it was compiled from, e.g. the pair returned by
// DeserializeModule.
func (b *Builder[S]) WithCompiledModule(module wazero.CompiledModule, wasmBytes []byte) *Builder[S] {
	b.requireStage(stageModule, "WithCompiledModule")
	if b.env == nil {
		panic("scotch: Builder.WithCompiledModule called before WithState")
	}
	b.pendingModule = module
	b.pendingBytes = wasmBytes
	b.moduleProvided = true
	b.stage = stageImports
	return b
}

// WithImports supplies the closure that builds the engine import table
// once the module source is known.
func (b *Builder[S]) WithImports(fn ImportsFunc[S]) *Builder[S] {
	b.requireStage(stageImports, "WithImports")
	if !b.moduleProvided {
		panic("scotch: Builder.WithImports called before a module source")
	}
	b.imports = fn
	b.stage = stageExports
	return b
}

// WithExports supplies the list of export creators to resolve once the
// instance exists.
func (b *Builder[S]) WithExports(creators ...ExportCreator) *Builder[S] {
	b.requireStage(stageExports, "WithExports")
	if !b.moduleProvided {
		panic("scotch: Builder.WithExports called before a module source")
	}
	b.exports = creators
	b.stage = stageFinished
	return b
}

// Finish instantiates the module against the built import table, wires
// the environment's back-reference, and warms the export cache.
func (b *Builder[S]) Finish(ctx context.Context) (*Plugin, error) {
	if b.stage != stageFinished {
		panic(fmt.Sprintf("scotch: Builder.Finish called out of order (stage %d, want %d)", b.stage, stageFinished))
	}
	if b.pendingFileErr != nil {
		return nil, b.pendingFileErr
	}

	module := b.pendingModule
	if module == nil {
		compiled, err := b.runtime.CompileModule(ctx, b.pendingBytes)
		if err != nil {
			return nil, newError(ErrorKindModuleCompile, "compile", err)
		}
		module = compiled
	}

	if b.imports != nil {
		if err := b.imports(ctx, b.runtime, b.env); err != nil {
			return nil, newError(ErrorKindInstantiation, "imports", err)
		}
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	instance, err := b.runtime.InstantiateModule(ctx, module, moduleConfig)
	if err != nil {
		return nil, newError(ErrorKindInstantiation, "instantiate", err)
	}
	if instance.ExportedFunction("__scotch_alloc") == nil || instance.ExportedFunction("__scotch_free") == nil {
		_ = instance.Close(ctx)
		return nil, newError(ErrorKindExportMissing, "instantiate", fmt.Errorf("module must export __scotch_alloc and __scotch_free"))
	}
	if instance.Memory() == nil {
		_ = instance.Close(ctx)
		return nil, newError(ErrorKindExportMissing, "instantiate", fmt.Errorf("module must export a memory named \"memory\""))
	}

	b.env.bind(instance)

	plugin := &Plugin{
		runtime:    b.runtime,
		module:     module,
		wasmBytes:  b.pendingBytes,
		instance:   instance,
		alloc:      newAllocator(instance),
		instanceID: b.env.InstanceID,
	}
	plugin.exports = newExportCache(plugin, b.exports)
	if err := plugin.exports.warm(ctx); err != nil {
		_ = instance.Close(ctx)
		return nil, err
	}
	return plugin, nil
}
