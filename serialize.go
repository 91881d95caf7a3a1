package scotch

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/tetratelabs/wazero"
)

// Serialize returns the raw WASM bytecode the plugin's module was
// compiled from. wazero does not expose a compiled module's machine
// code as a portable byte stream, so the thing that actually
// round-trips through the engine's own compiler is the bytecode
// itself; Deserialize recompiles it rather than reconstructing any
// engine-internal form.
func Serialize(p *Plugin) []byte {
	out := make([]byte, len(p.wasmBytes))
	copy(out, p.wasmBytes)
	return out
}

// SerializeCompressed gzip-wraps the result of Serialize.
func SerializeCompressed(p *Plugin) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(p.wasmBytes); err != nil {
		return nil, newError(ErrorKindRuntime, "serialize", err)
	}
	if err := w.Close(); err != nil {
		return nil, newError(ErrorKindRuntime, "serialize", err)
	}
	return buf.Bytes(), nil
}

// SerializeToFile writes Serialize's output to path.
func SerializeToFile(p *Plugin, path string) error {
	if err := os.WriteFile(path, Serialize(p), 0o644); err != nil {
		return newError(ErrorKindRuntime, "serialize", err)
	}
	return nil
}

// SerializeCompressedToFile writes SerializeCompressed's output to path.
func SerializeCompressedToFile(p *Plugin, path string) error {
	data, err := SerializeCompressed(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return newError(ErrorKindRuntime, "serialize", err)
	}
	return nil
}

// DeserializeModule recompiles previously-serialized bytecode against
// runtime, returning a (module, bytecode) pair suitable for
// Builder.WithCompiledModule.
func DeserializeModule(ctx context.Context, runtime wazero.Runtime, data []byte) (wazero.CompiledModule, []byte, error) {
	module, err := runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, nil, newError(ErrorKindModuleDeserialize, "deserialize", err)
	}
	return module, data, nil
}

// DeserializeCompressedModule gunzips data before recompiling it.
func DeserializeCompressedModule(ctx context.Context, runtime wazero.Runtime, data []byte) (wazero.CompiledModule, []byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, newError(ErrorKindModuleDeserialize, "deserialize", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, newError(ErrorKindModuleDeserialize, "deserialize", err)
	}
	return DeserializeModule(ctx, runtime, raw)
}

// DeserializeModuleFile reads path and recompiles it.
func DeserializeModuleFile(ctx context.Context, runtime wazero.Runtime, path string) (wazero.CompiledModule, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, newError(ErrorKindModuleDeserialize, "deserialize", err)
	}
	return DeserializeModule(ctx, runtime, data)
}

// DeserializeCompressedModuleFile reads path, gunzips it, and
// recompiles the result.
func DeserializeCompressedModuleFile(ctx context.Context, runtime wazero.Runtime, path string) (wazero.CompiledModule, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, newError(ErrorKindModuleDeserialize, "deserialize", err)
	}
	return DeserializeCompressedModule(ctx, runtime, data)
}

// BuilderFromFile is the serialize/deserialize round-trip's
// counterpart to SerializeToFile: it deserializes a previously
// serialized module file and returns a Builder already primed with
// the given state and compiled module, ready for WithImports/
// WithExports. compressed selects DeserializeCompressedModuleFile over
// DeserializeModuleFile.
func BuilderFromFile[S any](ctx context.Context, runtime wazero.Runtime, state S, path string, compressed bool) (*Builder[S], error) {
	var module wazero.CompiledModule
	var data []byte
	var err error
	if compressed {
		module, data, err = DeserializeCompressedModuleFile(ctx, runtime, path)
	} else {
		module, data, err = DeserializeModuleFile(ctx, runtime, path)
	}
	if err != nil {
		return nil, err
	}
	return NewBuilder[S](runtime).WithState(state).WithCompiledModule(module, data), nil
}
