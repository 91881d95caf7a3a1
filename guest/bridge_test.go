//go:build wasip1

package guest

import (
	"errors"
	"testing"

	"github.com/scotch-wasm/scotch/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int32
	Y int32
}

func TestExport1ScalarRoundTrip(t *testing.T) {
	double := Export1("double", func(x int32) (int32, error) { return x * 2, nil })
	assert.Equal(t, uint64(84), double(scalarToWord(int32(42))))
}

func TestExport1RecordRoundTrip(t *testing.T) {
	sumCoords := Export1("sum_coords", func(p point) (int32, error) { return p.X + p.Y, nil })

	rec, err := wire.Encode(point{X: 3, Y: 4})
	require.NoError(t, err)
	offset := writeRecord(rec)
	require.NotZero(t, offset)

	raw := sumCoords(uint64(offset))
	assert.Equal(t, int32(7), wordToScalar[int32](raw))
}

func TestExport1PanicsOnFunctionError(t *testing.T) {
	boom := Export1("boom", func(x int32) (int32, error) { return 0, errors.New("boom") })
	assert.Panics(t, func() {
		boom(scalarToWord(int32(1)))
	})
}

func TestExport2CombinesBothArguments(t *testing.T) {
	add := Export2("add", func(a, b int32) (int32, error) { return a + b, nil })
	raw := add(scalarToWord(int32(10)), scalarToWord(int32(32)))
	assert.Equal(t, int32(42), wordToScalar[int32](raw))
}

func TestImport1ScalarPassthrough(t *testing.T) {
	raw := func(word uint64) uint64 { return word + 1 }
	increment := Import1[int32, int32](raw)

	result, err := increment(41)
	require.NoError(t, err)
	assert.Equal(t, int32(42), result)
}

func TestSetPanicHandlerIsInvokedBeforeTrap(t *testing.T) {
	var gotName string
	var gotValue any
	SetPanicHandler(func(name string, recovered any) {
		gotName = name
		gotValue = recovered
	})
	defer SetPanicHandler(func(string, any) {})

	boom := Export1("boom", func(x int32) (int32, error) { return 0, errors.New("kaboom") })
	assert.Panics(t, func() {
		boom(scalarToWord(int32(1)))
	})
	assert.Equal(t, "boom", gotName)
	assert.NotNil(t, gotValue)
}

func TestImport1RecordArgumentIsWrittenBeforeCall(t *testing.T) {
	var sawOffset uint32
	raw := func(word uint64) uint64 {
		sawOffset = uint32(word)
		return scalarToWord(int32(1))
	}
	echo := Import1[point, int32](raw)

	_, err := echo(point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.NotZero(t, sawOffset)
}
