//go:build wasip1

package guest

import (
	"fmt"
	"math"
)

// scalarToWord and wordToScalar mirror the host bridge's scalarToUint64
// / uint64ToScalar (../scalar.go). The logic is duplicated rather than
// shared because the guest module must not import the root module,
// which pulls in the wazero engine.
func scalarToWord[T any](v T) uint64 {
	switch val := any(v).(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case int8:
		return uint64(uint8(val))
	case int16:
		return uint64(uint16(val))
	case int32:
		return uint64(uint32(val))
	case int64:
		return uint64(val)
	case int:
		return uint64(val)
	case uint8:
		return uint64(val)
	case uint16:
		return uint64(val)
	case uint32:
		return uint64(val)
	case uint64:
		return val
	case uint:
		return uint64(val)
	case float32:
		return uint64(math.Float32bits(val))
	case float64:
		return math.Float64bits(val)
	default:
		panic(fmt.Sprintf("guest: %T is not a scalar", v))
	}
}

func wordToScalar[T any](raw uint64) T {
	var zero T
	switch any(zero).(type) {
	case bool:
		return any(raw != 0).(T)
	case int8:
		return any(int8(uint8(raw))).(T)
	case int16:
		return any(int16(uint16(raw))).(T)
	case int32:
		return any(int32(uint32(raw))).(T)
	case int64:
		return any(int64(raw)).(T)
	case int:
		return any(int(raw)).(T)
	case uint8:
		return any(uint8(raw)).(T)
	case uint16:
		return any(uint16(raw)).(T)
	case uint32:
		return any(uint32(raw)).(T)
	case uint64:
		return any(raw).(T)
	case uint:
		return any(uint(raw)).(T)
	case float32:
		return any(math.Float32frombits(uint32(raw))).(T)
	case float64:
		return any(math.Float64frombits(raw)).(T)
	default:
		panic(fmt.Sprintf("guest: %T is not a scalar", zero))
	}
}
