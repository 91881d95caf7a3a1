package scotch

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/scotch-wasm/scotch/wire"
	"github.com/tetratelabs/wazero/api"
)

// allocator drives an instance's exported __scotch_alloc/__scotch_free
// functions on the host's behalf.
type allocator struct {
	instance api.Module
}

func newAllocator(instance api.Module) *allocator {
	return &allocator{instance: instance}
}

func (a *allocator) callAlloc(ctx context.Context, size, align uint32) (uint32, error) {
	fn := a.instance.ExportedFunction("__scotch_alloc")
	if fn == nil {
		return 0, newError(ErrorKindExportMissing, "alloc", fmt.Errorf("instance does not export __scotch_alloc"))
	}
	results, err := fn.Call(ctx, uint64(size), uint64(align))
	if err != nil {
		return 0, newError(ErrorKindAlloc, "alloc", err)
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, newError(ErrorKindAlloc, "alloc", fmt.Errorf("guest allocator returned 0 for %d bytes", size))
	}
	return ptr, nil
}

func (a *allocator) callFree(ctx context.Context, ptr, size, align uint32) error {
	fn := a.instance.ExportedFunction("__scotch_free")
	if fn == nil {
		return newError(ErrorKindExportMissing, "free", fmt.Errorf("instance does not export __scotch_free"))
	}
	if _, err := fn.Call(ctx, uint64(ptr), uint64(size), uint64(align)); err != nil {
		return newError(ErrorKindFreeFailed, "free", err)
	}
	return nil
}

// Managed is a wire record the host allocated in guest memory and
// therefore owns.
type Managed[T any] struct {
	offset uint32
	size   uint32
	alloc  *allocator
}

// putManaged encodes v, allocates room for it in the guest via
// __scotch_alloc, and writes the record into guest memory.
func putManaged[T any](ctx context.Context, a *allocator, v T) (Managed[T], error) {
	rec, err := wire.Encode(v)
	if err != nil {
		return Managed[T]{}, newError(ErrorKindEncode, "put", err)
	}
	offset, err := a.callAlloc(ctx, uint32(len(rec)), 1)
	if err != nil {
		return Managed[T]{}, err
	}
	if !a.instance.Memory().Write(offset, rec) {
		return Managed[T]{}, newError(ErrorKindMemoryAccess, "put", fmt.Errorf("write %d bytes at offset %d", len(rec), offset))
	}
	return Managed[T]{offset: offset, size: uint32(len(rec)), alloc: a}, nil
}

// Offset returns the descriptor's guest-memory offset.
func (m Managed[T]) Offset() uint32 { return m.offset }

// Free releases the record via __scotch_free. Freeing the zero value
// (an unallocated Managed) is a no-op.
func (m Managed[T]) Free(ctx context.Context) error {
	if m.offset == 0 {
		return nil
	}
	return m.alloc.callFree(ctx, m.offset, m.size, 1)
}

// Encoded borrows a wire record owned by the guest. It never frees what
// it reads.
type Encoded[T any] struct {
	offset uint32
	mem    api.Memory
}

func borrowEncoded[T any](mem api.Memory, offset uint32) Encoded[T] {
	return Encoded[T]{offset: offset, mem: mem}
}

// Offset returns the descriptor's guest-memory offset.
func (e Encoded[T]) Offset() uint32 { return e.offset }

// totalSize reads the record's length prefix to determine how many
// bytes of guest memory the full record occupies.
func (e Encoded[T]) totalSize() (uint32, error) {
	header, ok := e.mem.Read(e.offset, wire.LengthPrefixBytes)
	if !ok {
		return 0, newError(ErrorKindMemoryAccess, "read", fmt.Errorf("header at offset %d", e.offset))
	}
	payloadLen := binary.LittleEndian.Uint16(header)
	return uint32(wire.LengthPrefixBytes) + uint32(payloadLen), nil
}

// Read decodes the record at the descriptor's offset into a T.
func (e Encoded[T]) Read() (T, error) {
	var zero T
	total, err := e.totalSize()
	if err != nil {
		return zero, err
	}
	raw, ok := e.mem.Read(e.offset, total)
	if !ok {
		return zero, newError(ErrorKindMemoryAccess, "read", fmt.Errorf("payload at offset %d", e.offset))
	}
	v, err := wire.Decode[T](wire.Record(raw))
	if err != nil {
		return zero, newError(ErrorKindDecode, "read", err)
	}
	return v, nil
}

// liftResult converts a raw call-stack value into R, freeing the guest
// record behind a structured result so occupancy returns to its
// pre-call level on success.
func liftResult[R any](ctx context.Context, a *allocator, mem api.Memory, raw uint64) (R, error) {
	var zero R
	if wire.IsScalar[R]() {
		return uint64ToScalar[R](raw), nil
	}
	offset := uint32(raw)
	enc := borrowEncoded[R](mem, offset)
	total, err := enc.totalSize()
	if err != nil {
		return zero, err
	}
	v, err := enc.Read()
	if err != nil {
		return zero, err
	}
	if err := a.callFree(ctx, offset, total, 1); err != nil {
		return zero, err
	}
	return v, nil
}

// lowerArg prepares a single call argument: scalars pass through as
// uint64, record-like values are written into guest memory as a
// Managed descriptor whose offset is returned along with a cleanup
// closure the caller must invoke after the call returns.
func lowerArg[A any](ctx context.Context, a *allocator, arg A) (uint64, func(context.Context) error, error) {
	if wire.IsScalar[A]() {
		return scalarToUint64(arg), func(context.Context) error { return nil }, nil
	}
	managed, err := putManaged(ctx, a, arg)
	if err != nil {
		return 0, nil, err
	}
	return uint64(managed.Offset()), managed.Free, nil
}
