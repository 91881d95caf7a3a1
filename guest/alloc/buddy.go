// Package alloc implements an in-guest buddy allocator: a binary buddy
// scheme carving a reserved, page-aligned slab out of the guest's own
// linear memory. It has no build tag and no dependency on an engine or
// on wasip1; it operates purely over the Memory abstraction below, so
// the algorithm can be exercised by plain host-side unit tests without
// an actual WASM instance. The //go:wasmexport entry points that expose
// it to the host as __scotch_alloc/__scotch_free live in export.go,
// built only under wasip1.
package alloc

import (
	"fmt"
	"sync"
)

// PageSize is the fixed WebAssembly page size in bytes.
const PageSize = 65536

// DefaultBlockSize is the minimum allocation quantum when unset.
const DefaultBlockSize = 512

// DefaultPageCount is the slab size, in pages, when unset.
const DefaultPageCount = 1

// Memory is the minimal linear-memory surface the allocator needs from
// its host environment: the ability to grow by whole pages and report
// the current size. The wasip1 build satisfies this with staticMemory
// (export.go), which hands out page ranges of a static array; tests
// satisfy it with a fake defined alongside them in buddy_test.go.
type Memory interface {
	// Grow grows memory by delta pages, returning the page count
	// before growth and whether the grow succeeded.
	Grow(delta uint32) (previousPages uint32, ok bool)
	// Size returns the current memory size in bytes.
	Size() uint32
}

type nodeState uint8

const (
	vacant nodeState = iota
	occupied
	split
)

// node is one vertex of the buddy tree. start is relative to the
// slab's base offset, not the absolute guest address.
type node struct {
	order uint32
	start uint32
	state nodeState
	left  *node
	right *node
}

// Buddy is a binary buddy allocator over a reserved slab of guest
// linear memory.
type Buddy struct {
	mu        sync.Mutex
	mem       Memory
	base      uint32
	blockSize uint32
	pageCount uint32
	maxOrder  uint32
	root      *node
}

// Option configures a Buddy at construction.
type Option func(*config)

type config struct {
	blockSize uint32
	pageCount uint32
}

// WithBlockSize sets the minimum allocation quantum (default 512).
func WithBlockSize(n uint32) Option {
	return func(c *config) { c.blockSize = n }
}

// WithPageCount sets the slab size in 64 KiB pages (default 1).
func WithPageCount(n uint32) Option {
	return func(c *config) { c.pageCount = n }
}

// New grows mem by page_count pages and initializes a single root
// vacant node covering the new slab. The page count must be a power of
// two, so that the root block is exactly the slab.
func New(mem Memory, opts ...Option) (*Buddy, error) {
	cfg := config{blockSize: DefaultBlockSize, pageCount: DefaultPageCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockSize == 0 || (cfg.blockSize&(cfg.blockSize-1)) != 0 {
		return nil, fmt.Errorf("alloc: block size %d must be a power of two", cfg.blockSize)
	}
	if cfg.pageCount == 0 {
		return nil, fmt.Errorf("alloc: page count must be at least 1")
	}
	if (cfg.pageCount & (cfg.pageCount - 1)) != 0 {
		return nil, fmt.Errorf("alloc: page count %d must be a power of two", cfg.pageCount)
	}

	// Guarantee base > 0: offset 0 is reserved to mean "no allocation".
	// Real guest toolchains already reserve static data/stack below the
	// allocator's region, so this only matters for memory fakes that
	// start empty.
	if mem.Size() == 0 {
		if _, ok := mem.Grow(1); !ok {
			return nil, fmt.Errorf("alloc: failed to reserve guard page")
		}
	}

	prevPages, ok := mem.Grow(cfg.pageCount)
	if !ok {
		return nil, fmt.Errorf("alloc: failed to grow memory by %d pages", cfg.pageCount)
	}
	base := prevPages * PageSize
	slabSize := cfg.pageCount * PageSize

	maxOrder := uint32(0)
	for (uint32(1) << maxOrder) * cfg.blockSize < slabSize {
		maxOrder++
	}

	return &Buddy{
		mem:       mem,
		base:      base,
		blockSize: cfg.blockSize,
		pageCount: cfg.pageCount,
		maxOrder:  maxOrder,
		root:      &node{order: maxOrder, start: 0, state: vacant},
	}, nil
}

// Base returns the absolute guest offset of the start of the slab.
func (b *Buddy) Base() uint32 { return b.base }

// SlabSize returns the total size of the managed slab in bytes.
func (b *Buddy) SlabSize() uint32 { return b.pageCount * PageSize }

// orderFor returns the smallest order whose block size
// (blockSize * 2^order) is at least need, capped conceptually at
// maxOrder (callers check the result against maxOrder themselves).
func (b *Buddy) orderFor(need uint32) uint32 {
	if need <= b.blockSize {
		return 0
	}
	order := uint32(0)
	size := b.blockSize
	for size < need {
		size <<= 1
		order++
	}
	return order
}

// Alloc allocates a block of at least size bytes aligned to align,
// returning its absolute offset, or 0 on OOM. Because a buddy block of
// order o starts at a multiple of its own size (blockSize*2^o), sizing
// the block to cover both size and align intrinsically satisfies the
// alignment request without any extra bookkeeping.
func (b *Buddy) Alloc(size, align uint32) uint32 {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	need := size
	if align > need {
		need = align
	}
	order := b.orderFor(need)
	if order > b.maxOrder {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := allocNode(b.root, order, b.blockSize)
	if n == nil {
		return 0
	}
	return b.base + n.start
}

// allocNode finds the left-most vacant node of order >= target,
// splitting down to exactly target if a larger block is found first.
func allocNode(n *node, target, blockSize uint32) *node {
	if n == nil || n.order < target {
		return nil
	}
	switch n.state {
	case occupied:
		return nil
	case vacant:
		if n.order == target {
			n.state = occupied
			return n
		}
		half := n.order - 1
		childSize := uint32(1) << half
		n.left = &node{order: half, start: n.start, state: vacant}
		n.right = &node{order: half, start: n.start + childSize*blockSize, state: vacant}
		n.state = split
		return allocNode(n.left, target, blockSize)
	case split:
		if found := allocNode(n.left, target, blockSize); found != nil {
			return found
		}
		return allocNode(n.right, target, blockSize)
	}
	return nil
}

// Free releases the block at offset, which must have been returned by
// a matching Alloc(size, align) call. Freeing an offset that was not
// currently allocated, or whose size/align do not match the original
// Alloc, is a caller error; Free reports it via the boolean return
// rather than panicking. The __scotch_free export (export.go) returns
// nothing, so this result is not passed on to the host.
func (b *Buddy) Free(offset, size, align uint32) bool {
	if offset < b.base {
		return false
	}
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	need := size
	if align > need {
		need = align
	}
	order := b.orderFor(need)
	start := offset - b.base

	b.mu.Lock()
	defer b.mu.Unlock()
	return freeNode(b.root, start, order, b.blockSize)
}

// freeNode descends to the node matching (start, order), marks it
// vacant, and re-coalesces any split ancestor whose children are both
// vacant, transitively, on every free.
func freeNode(n *node, start, order, blockSize uint32) bool {
	if n == nil {
		return false
	}
	if n.start == start && n.order == order {
		if n.state != occupied {
			return false
		}
		n.state = vacant
		return true
	}
	if n.state != split {
		return false
	}
	mid := n.start + (uint32(1)<<(n.order-1))*blockSize
	var ok bool
	if start < mid {
		ok = freeNode(n.left, start, order, blockSize)
	} else {
		ok = freeNode(n.right, start, order, blockSize)
	}
	if ok && n.left.state == vacant && n.right.state == vacant {
		n.state = vacant
		n.left = nil
		n.right = nil
	}
	return ok
}

// Occupancy reports the total bytes currently allocated.
func (b *Buddy) Occupancy() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return occupancy(b.root, b.blockSize)
}

func occupancy(n *node, blockSize uint32) uint32 {
	if n == nil {
		return 0
	}
	switch n.state {
	case occupied:
		return blockSize << n.order
	case split:
		return occupancy(n.left, blockSize) + occupancy(n.right, blockSize)
	default:
		return 0
	}
}

// IsFullyVacant reports whether the whole slab has coalesced back to a
// single vacant root.
func (b *Buddy) IsFullyVacant() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.root.state == vacant
}
