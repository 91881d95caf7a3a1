package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is a plain byte-slice-backed Memory used to exercise Buddy
// without a real WASM instance.
type fakeMemory struct {
	buf []byte
}

func (m *fakeMemory) Grow(delta uint32) (previousPages uint32, ok bool) {
	previousPages = uint32(len(m.buf)) / PageSize
	m.buf = append(m.buf, make([]byte, delta*PageSize)...)
	return previousPages, true
}

func (m *fakeMemory) Size() uint32 {
	return uint32(len(m.buf))
}

func TestNewReservesGuardPageWhenMemoryEmpty(t *testing.T) {
	mem := &fakeMemory{}
	b, err := New(mem)
	require.NoError(t, err)
	assert.Equal(t, PageSize, int(b.Base()))
}

func TestNewRejectsNonPowerOfTwoBlockSize(t *testing.T) {
	_, err := New(&fakeMemory{}, WithBlockSize(100))
	assert.Error(t, err)
}

func TestAllocReturnsDistinctNonOverlappingBlocks(t *testing.T) {
	b, err := New(&fakeMemory{}, WithPageCount(2))
	require.NoError(t, err)

	a := b.Alloc(64, 8)
	require.NotZero(t, a)
	c := b.Alloc(64, 8)
	require.NotZero(t, c)

	assert.NotEqual(t, a, c)
	// Blocks of the same order never overlap.
	lo, hi := a, c
	if hi < lo {
		lo, hi = hi, lo
	}
	assert.GreaterOrEqual(t, hi-lo, uint32(DefaultBlockSize))
}

func TestAllocZeroOnOOM(t *testing.T) {
	b, err := New(&fakeMemory{}, WithPageCount(1), WithBlockSize(512))
	require.NoError(t, err)

	// Slab is one page (65536 bytes); ask for more than that fits.
	got := b.Alloc(1<<20, 1)
	assert.Zero(t, got)
}

func TestFreeThenAllocReusesSpace(t *testing.T) {
	b, err := New(&fakeMemory{}, WithPageCount(1))
	require.NoError(t, err)

	first := b.Alloc(512, 1)
	require.NotZero(t, first)
	require.True(t, b.Free(first, 512, 1))

	second := b.Alloc(512, 1)
	require.NotZero(t, second)
	assert.Equal(t, first, second)
}

func TestRootCoalescesBackToVacantAfterAllFreed(t *testing.T) {
	b, err := New(&fakeMemory{}, WithPageCount(1))
	require.NoError(t, err)

	a := b.Alloc(512, 1)
	c := b.Alloc(1024, 1)
	require.NotZero(t, a)
	require.NotZero(t, c)
	assert.False(t, b.IsFullyVacant())

	require.True(t, b.Free(a, 512, 1))
	require.True(t, b.Free(c, 1024, 1))
	assert.True(t, b.IsFullyVacant())
	assert.Zero(t, b.Occupancy())
}

func TestFreeRejectsOffsetBelowBase(t *testing.T) {
	b, err := New(&fakeMemory{})
	require.NoError(t, err)
	assert.False(t, b.Free(0, 512, 1))
}

func TestFreeRejectsDoubleFree(t *testing.T) {
	b, err := New(&fakeMemory{})
	require.NoError(t, err)

	a := b.Alloc(512, 1)
	require.True(t, b.Free(a, 512, 1))
	assert.False(t, b.Free(a, 512, 1))
}

func TestOccupancyTracksLiveAllocations(t *testing.T) {
	b, err := New(&fakeMemory{}, WithPageCount(1))
	require.NoError(t, err)

	a := b.Alloc(512, 1)
	require.NotZero(t, a)
	assert.Equal(t, uint32(DefaultBlockSize), b.Occupancy())

	c := b.Alloc(1500, 1)
	require.NotZero(t, c)
	assert.Greater(t, b.Occupancy(), uint32(DefaultBlockSize))
}

func FuzzAllocFreeNeverPanics(f *testing.F) {
	f.Add(uint32(64), uint32(1))
	f.Add(uint32(0), uint32(0))
	f.Add(uint32(1<<20), uint32(4096))

	f.Fuzz(func(t *testing.T, size, align uint32) {
		b, err := New(&fakeMemory{}, WithPageCount(4))
		require.NoError(t, err)

		off := b.Alloc(size, align)
		if off != 0 {
			b.Free(off, size, align)
		}
	})
}
