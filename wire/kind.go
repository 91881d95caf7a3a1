package wire

import (
	"reflect"
	"sync"
)

// ValueKind is the closed dispatch set for values crossing the call
// boundary: either a Scalar (passed as a native engine value) or
// record-like (passed as an offset into a Record).
type ValueKind int

const (
	// KindScalar values are 8/16/32/64-bit integers, floats, bool or
	// char/rune, and cross the boundary as a native scalar.
	KindScalar ValueKind = iota
	// KindRecord values are everything else: structs, slices, arrays,
	// maps, strings, pointers, anything that must be serialized into a
	// wire Record and passed by offset.
	KindRecord
)

// Scalar is the constraint satisfied by every type the engine calling
// convention can carry natively: bool, the signed/unsigned integer
// widths, and the two float widths. A rune is a 32-bit scalar.
type Scalar interface {
	~bool |
		~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64
}

var kindCache sync.Map // reflect.Type -> ValueKind

// scalarKinds is the set of reflect.Kind values that count as scalar
// for types reached only through the reflect-based Kind() path (used
// when a caller cannot express the Scalar constraint at the type
// parameter, e.g. inside the generic adapters in the root package's export.go which
// are parameterized over an argument list, not a single T).
var scalarKinds = map[reflect.Kind]bool{
	reflect.Bool:    true,
	reflect.Int:     true,
	reflect.Int8:    true,
	reflect.Int16:   true,
	reflect.Int32:   true,
	reflect.Int64:   true,
	reflect.Uint:    true,
	reflect.Uint8:   true,
	reflect.Uint16:  true,
	reflect.Uint32:  true,
	reflect.Uint64:  true,
	reflect.Float32: true,
	reflect.Float64: true,
}

// KindOf classifies T and memoizes the result per reflect.Type. Each
// call still runs reflect.TypeOf on T's zero value; repeated calls for
// the same T then take the result from a sync.Map instead of looking
// the reflect.Kind up in scalarKinds again.
func KindOf[T any]() ValueKind {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// T is an interface type, whose zero value is a nil interface:
		// treat as record-like, since a scalar type is never an interface.
		return KindRecord
	}
	if v, ok := kindCache.Load(t); ok {
		return v.(ValueKind)
	}
	kind := KindRecord
	if scalarKinds[t.Kind()] {
		kind = KindScalar
	}
	kindCache.Store(t, kind)
	return kind
}

// IsScalar reports whether T is a Scalar for the purposes of the
// lifting/lowering dispatch.
func IsScalar[T any]() bool {
	return KindOf[T]() == KindScalar
}
