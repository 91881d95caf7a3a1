//go:build wasip1

package alloc

import "unsafe"

// arenaPages bounds the static slab reserved inside the module's data
// segment for the default allocator instance. Go's wasip1 target does
// not expose the WebAssembly memory.grow instruction to user code the
// way a host embedder's engine does, so, unlike the host side, the
// guest slab here is a fixed-size global array reserved at module load
// rather than grown lazily page by page. A guest that needs a larger
// allocator slab increases this constant and rebuilds.
const arenaPages = 16

var arena [(arenaPages + 1) * PageSize]byte

// staticMemory adapts the arena array to the Memory interface expected
// by Buddy. "Growing" hands out the next unused page range of the
// array; the array itself is already backed by real linear memory
// pages at instantiation time because it is part of the module's data
// segment.
//
// Buddy recovers its base address as previousPages*PageSize, so Grow
// must report page counts that round-trip through that multiplication
// back to a real address inside the arena. &arena[0] is not generally
// page-aligned, so pages are counted from the first page boundary at or
// above &arena[0] rather than from the array's own start; the leading
// slack bytes below that boundary are never handed out. The extra page
// reserved in arena's size above covers that slack.
type staticMemory struct {
	usedBytes uint32
}

func (m *staticMemory) Grow(delta uint32) (previousPages uint32, ok bool) {
	need := delta * PageSize
	if m.usedBytes+need > arenaCapacity() {
		return 0, false
	}
	previousPages = (alignedArenaBase() + m.usedBytes) / PageSize
	m.usedBytes += need
	return previousPages, true
}

func (m *staticMemory) Size() uint32 {
	return alignedArenaBase() + m.usedBytes
}

func arenaBase() uint32 {
	return uint32(uintptr(unsafe.Pointer(&arena[0])))
}

// alignedArenaBase rounds arenaBase() up to the next page boundary, so
// every address handed out is an exact multiple of PageSize.
func alignedArenaBase() uint32 {
	base := arenaBase()
	return (base + PageSize - 1) &^ (PageSize - 1)
}

// arenaCapacity is the usable slab size after the leading alignment
// slack is removed.
func arenaCapacity() uint32 {
	return arenaBase() + uint32(len(arena)) - alignedArenaBase()
}

// guestAllocator is the single package-level Buddy backing the
// exported __scotch_alloc/__scotch_free entry points.
var guestAllocator *Buddy

func init() {
	b, err := New(&staticMemory{}, WithPageCount(arenaPages))
	if err != nil {
		panic("alloc: failed to initialize guest allocator slab: " + err.Error())
	}
	guestAllocator = b
}

//go:wasmexport __scotch_alloc
func scotchAlloc(size, align uint32) uint32 {
	return guestAllocator.Alloc(size, align)
}

//go:wasmexport __scotch_free
func scotchFree(ptr, size, align uint32) {
	guestAllocator.Free(ptr, size, align)
}

// Global exposes the process-wide guest allocator to the rest of the
// guest bridge (bridge.go), so argument/return Records are carved from
// the same slab the host drives through __scotch_alloc/__scotch_free.
func Global() *Buddy { return guestAllocator }
