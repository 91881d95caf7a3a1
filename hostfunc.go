package scotch

import (
	"context"

	"github.com/scotch-wasm/scotch/wire"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RegisterHostFunc0 registers a zero-argument host function under name
// in builder. fn receives the shared Environment so it can read or
// mutate user state.
func RegisterHostFunc0[S any, R any](builder wazero.HostModuleBuilder, env *Environment[S], name string, fn func(ctx context.Context, env *Environment[S]) (R, error)) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			result, err := fn(ctx, env)
			if err != nil {
				panic(newError(ErrorKindRuntime, name, err))
			}
			stack[0] = lowerHostResult(ctx, mod, name, result)
		}),
			[]api.ValueType{},
			[]api.ValueType{valueType[R]()},
		).
		Export(name)
}

// RegisterHostFunc1 registers a one-argument host function returning R.
func RegisterHostFunc1[S any, A any, R any](builder wazero.HostModuleBuilder, env *Environment[S], name string, fn func(ctx context.Context, env *Environment[S], a A) (R, error)) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			a := raiseHostArg[A](ctx, mod, name, stack[0])
			result, err := fn(ctx, env, a)
			if err != nil {
				panic(newError(ErrorKindRuntime, name, err))
			}
			stack[0] = lowerHostResult(ctx, mod, name, result)
		}),
			[]api.ValueType{valueType[A]()},
			[]api.ValueType{valueType[R]()},
		).
		Export(name)
}

// RegisterHostFunc2 registers a two-argument host function returning R.
func RegisterHostFunc2[S any, A any, B any, R any](builder wazero.HostModuleBuilder, env *Environment[S], name string, fn func(ctx context.Context, env *Environment[S], a A, b B) (R, error)) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			a := raiseHostArg[A](ctx, mod, name, stack[0])
			b := raiseHostArg[B](ctx, mod, name, stack[1])
			result, err := fn(ctx, env, a, b)
			if err != nil {
				panic(newError(ErrorKindRuntime, name, err))
			}
			stack[0] = lowerHostResult(ctx, mod, name, result)
		}),
			[]api.ValueType{valueType[A](), valueType[B]()},
			[]api.ValueType{valueType[R]()},
		).
		Export(name)
}

// RegisterHostProc1 registers a one-argument host function with no
// return value, e.g. a logging sink.
func RegisterHostProc1[S any, A any](builder wazero.HostModuleBuilder, env *Environment[S], name string, fn func(ctx context.Context, env *Environment[S], a A) error) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			a := raiseHostArg[A](ctx, mod, name, stack[0])
			if err := fn(ctx, env, a); err != nil {
				panic(newError(ErrorKindRuntime, name, err))
			}
		}),
			[]api.ValueType{valueType[A]()},
			[]api.ValueType{},
		).
		Export(name)
}

// raiseHostArg lifts one incoming call-stack word into A: scalars pass
// through directly, structured values arrive as an encoded descriptor
// the guest still owns. The wrapper reads them into typed values via
// the memory view before invoking the user body; read failures trap.
func raiseHostArg[A any](_ context.Context, mod api.Module, name string, raw uint64) A {
	if wire.IsScalar[A]() {
		return uint64ToScalar[A](raw)
	}
	enc := borrowEncoded[A](mod.Memory(), uint32(raw))
	v, err := enc.Read()
	if err != nil {
		panic(newError(ErrorKindDecode, name, err))
	}
	return v
}

// lowerHostResult lowers a host function's return value onto the call
// stack: scalars pass through, structured values are written into
// guest memory via the guest's own allocator export and returned by
// offset, for the guest to free.
func lowerHostResult[R any](ctx context.Context, mod api.Module, name string, result R) uint64 {
	if wire.IsScalar[R]() {
		return scalarToUint64(result)
	}
	managed, err := putManaged(ctx, newAllocator(mod), result)
	if err != nil {
		panic(newError(ErrorKindEncode, name, err))
	}
	return uint64(managed.Offset())
}
