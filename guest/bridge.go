// Package guest is the plugin-side counterpart to the root scotch
// package: generic adapters that lift wasmexport arguments out of
// linear memory and lower results back into it, and symmetric
// wrappers around wasmimport host calls.
//
// A plugin author still writes the actual //go:wasmexport and
// //go:wasmimport function declarations themselves. Go's compiler
// requires those directives directly above a concrete func
// declaration, not a variable holding a closure, but the bodies are
// one line deep, delegating to the closures this package returns.
//
//	var addUp = guest.Export1("add_up", func(xs []int32) (int32, error) { ... })
//
//	//go:wasmexport add_up
//	func addUpExport(offset uint64) uint64 { return addUp(offset) }
//
//go:build wasip1

package guest

import (
	"fmt"
	"os"

	"github.com/scotch-wasm/scotch/guest/alloc"
	"github.com/scotch-wasm/scotch/wire"
)

// panicHandler is invoked with the recovered value before an export
// call finishes unwinding into a trap. The default writes a one-line
// diagnostic to stderr, the closest a wasip1 guest has to the
// original's panic-hook-to-host-log behavior since a trapped call
// carries no payload back to the host beyond the trap itself.
var panicHandler = func(exportName string, recovered any) {
	fmt.Fprintf(os.Stderr, "guest: panic in export %q: %v\n", exportName, recovered)
}

// SetPanicHandler overrides the diagnostic written before a guest-side
// panic finishes unwinding an export call into a trap. Plugin authors
// call this once, typically from an init function, to route
// diagnostics through their own logging instead of stderr.
func SetPanicHandler(fn func(exportName string, recovered any)) {
	panicHandler = fn
}

// guarded wraps an export body so a panic is reported through
// panicHandler before it continues unwinding into a trap, rather than
// surfacing as a bare runtime panic with no diagnostic trail.
func guarded(exportName string, body func()) {
	defer func() {
		if r := recover(); r != nil {
			panicHandler(exportName, r)
			panic(r)
		}
	}()
	body()
}

func readRecord(offset uint32) (wire.Record, error) {
	if offset == 0 {
		return nil, fmt.Errorf("guest: read from null offset")
	}
	header := readBytes(offset, wire.LengthPrefixBytes)
	rec := wire.Record(header)
	payloadLen, err := rec.Len()
	if err != nil {
		return nil, err
	}
	return wire.Record(readBytes(offset, uint32(wire.LengthPrefixBytes+payloadLen))), nil
}

// writeRecord allocates a guest Record from the package allocator and
// copies rec into it, returning the offset the host (or a host import)
// will read from. It returns 0 if the allocator is exhausted.
func writeRecord(rec wire.Record) uint32 {
	offset := alloc.Global().Alloc(uint32(len(rec)), 1)
	if offset == 0 {
		return 0
	}
	writeBytes(offset, rec)
	return offset
}

func liftArg[A any](raw uint64) (A, error) {
	var zero A
	if wire.IsScalar[A]() {
		return wordToScalar[A](raw), nil
	}
	rec, err := readRecord(uint32(raw))
	if err != nil {
		return zero, err
	}
	return wire.Decode[A](rec)
}

func lowerResult[R any](v R) uint64 {
	if wire.IsScalar[R]() {
		return scalarToWord(v)
	}
	rec, err := wire.Encode(v)
	if err != nil {
		panic(fmt.Sprintf("guest: encode result: %v", err))
	}
	offset := writeRecord(rec)
	if offset == 0 {
		panic("guest: allocator exhausted encoding export result")
	}
	return uint64(offset)
}

// Export0 adapts a zero-argument guest function to the fixed shape a
// //go:wasmexport stub requires. A non-nil error traps the call, the
// same as any other guest-side panic. name identifies the export in
// panicHandler diagnostics; it need not match the //go:wasmexport name
// exactly, but matching it makes traps easier to place.
func Export0[R any](name string, fn func() (R, error)) func() uint64 {
	return func() (out uint64) {
		guarded(name, func() {
			result, err := fn()
			if err != nil {
				panic(err)
			}
			out = lowerResult(result)
		})
		return out
	}
}

// Export1 adapts a one-argument guest function. Scalar A arrives as a
// native word; record-like A arrives as an offset into a Record the
// host already wrote and owns freeing of. The guest decodes but never
// frees a borrowed argument record.
func Export1[A any, R any](name string, fn func(A) (R, error)) func(uint64) uint64 {
	return func(raw uint64) (out uint64) {
		guarded(name, func() {
			arg, err := liftArg[A](raw)
			if err != nil {
				panic(fmt.Sprintf("guest: decode export argument: %v", err))
			}
			result, err := fn(arg)
			if err != nil {
				panic(err)
			}
			out = lowerResult(result)
		})
		return out
	}
}

// Export2 is Export1 generalized to two arguments.
func Export2[A any, B any, R any](name string, fn func(A, B) (R, error)) func(uint64, uint64) uint64 {
	return func(rawA, rawB uint64) (out uint64) {
		guarded(name, func() {
			a, err := liftArg[A](rawA)
			if err != nil {
				panic(fmt.Sprintf("guest: decode export argument 0: %v", err))
			}
			b, err := liftArg[B](rawB)
			if err != nil {
				panic(fmt.Sprintf("guest: decode export argument 1: %v", err))
			}
			result, err := fn(a, b)
			if err != nil {
				panic(err)
			}
			out = lowerResult(result)
		})
		return out
	}
}

// lowerArgManaged allocates and writes a Record for a record-like
// argument being passed to a host import, returning the word to place
// on the call stack together with the offset/size to free once the
// call returns, regardless of outcome.
func lowerArgManaged[A any](a A) (word uint64, offset, size uint32, err error) {
	if wire.IsScalar[A]() {
		return scalarToWord(a), 0, 0, nil
	}
	rec, encErr := wire.Encode(a)
	if encErr != nil {
		return 0, 0, 0, encErr
	}
	off := alloc.Global().Alloc(uint32(len(rec)), 1)
	if off == 0 {
		return 0, 0, 0, fmt.Errorf("guest: allocator exhausted encoding import argument")
	}
	writeBytes(off, rec)
	return uint64(off), off, uint32(len(rec)), nil
}

func liftResultFromHost[R any](raw uint64) (R, error) {
	var zero R
	if wire.IsScalar[R]() {
		return wordToScalar[R](raw), nil
	}
	offset := uint32(raw)
	rec, err := readRecord(offset)
	if err != nil {
		return zero, err
	}
	v, err := wire.Decode[R](rec)
	alloc.Global().Free(offset, uint32(len(rec)), 1)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Import0 wraps a raw //go:wasmimport stub with no arguments.
func Import0[R any](raw func() uint64) func() (R, error) {
	return func() (R, error) {
		return liftResultFromHost[R](raw())
	}
}

// Import1 wraps a raw one-argument //go:wasmimport stub declared by the
// plugin author, handling managed-descriptor allocation and freeing.
// The raw stub's Go signature must be func(uint64) uint64, matching the
// fixed scalar-or-offset calling convention Export also uses.
func Import1[A any, R any](raw func(uint64) uint64) func(A) (R, error) {
	return func(a A) (R, error) {
		var zero R
		word, offset, size, err := lowerArgManaged(a)
		if err != nil {
			return zero, err
		}
		result := raw(word)
		if offset != 0 {
			alloc.Global().Free(offset, size, 1)
		}
		return liftResultFromHost[R](result)
	}
}

// Import2 is Import1 generalized to two arguments.
func Import2[A any, B any, R any](raw func(uint64, uint64) uint64) func(A, B) (R, error) {
	return func(a A, b B) (R, error) {
		var zero R
		wordA, offsetA, sizeA, err := lowerArgManaged(a)
		if err != nil {
			return zero, err
		}
		wordB, offsetB, sizeB, err := lowerArgManaged(b)
		if err != nil {
			if offsetA != 0 {
				alloc.Global().Free(offsetA, sizeA, 1)
			}
			return zero, err
		}
		result := raw(wordA, wordB)
		if offsetA != 0 {
			alloc.Global().Free(offsetA, sizeA, 1)
		}
		if offsetB != 0 {
			alloc.Global().Free(offsetB, sizeB, 1)
		}
		return liftResultFromHost[R](result)
	}
}
