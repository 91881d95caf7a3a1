// Package wire defines the on-the-wire layout used to pass structured
// values across the host/guest call boundary, and the pointer-encoding
// convention (managed vs. encoded descriptors) layered on top of it.
//
// The package is imported by both the host bridge and the guest bridge
// modules, so it must stay free of any engine or wasip1 dependency.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxPayloadBytes is the largest payload a Record can carry: the wire
// format's 16-bit length prefix caps records at 65535 payload bytes
// (spec §9 open question (iv)). Larger values are a failure of this
// layer, not a supported case.
const MaxPayloadBytes = 1<<16 - 1

// LengthPrefixBytes is the size, in bytes, of the record's length header.
const LengthPrefixBytes = 2

// ErrRecordTooLarge is returned by Encode when a value's CBOR encoding
// would not fit in the 16-bit length prefix.
var ErrRecordTooLarge = errors.New("wire: payload exceeds 65535 bytes")

// Record is a length-prefixed, codec-encoded byte sequence representing
// one structured value in linear memory:
//
//	offset 0..1  : uint16  payload_length (little-endian)
//	offset 2..2+L: bytes   CBOR-encoded payload
type Record []byte

// Payload returns the record's payload bytes (without the length
// prefix). It does not validate that the prefix matches len(payload);
// callers that read a Record off the wire should use Decode instead.
func (r Record) Payload() []byte {
	if len(r) < LengthPrefixBytes {
		return nil
	}
	return r[LengthPrefixBytes:]
}

// Len reports the payload length encoded in the record's prefix.
func (r Record) Len() (int, error) {
	if len(r) < LengthPrefixBytes {
		return 0, fmt.Errorf("wire: record shorter than length prefix (%d bytes)", len(r))
	}
	return int(binary.LittleEndian.Uint16(r[:LengthPrefixBytes])), nil
}

var encOpts = cbor.EncOptions{
	Sort: cbor.SortCanonical,
}

var decOpts = cbor.DecOptions{
	// Guest memory is attacker-influenced by construction; cap nesting
	// and sizes defensively rather than trusting the length prefix alone.
	MaxArrayElements: 1 << 16,
	MaxMapPairs:      1 << 16,
}

var encMode, _ = encOpts.EncMode()
var decMode, _ = decOpts.DecMode()

// Encode serializes v using the canonical CBOR encoding and wraps it in
// a length-prefixed Record. It returns ErrRecordTooLarge if the
// encoding does not fit in a uint16.
func Encode[T any](v T) (Record, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	if len(payload) > MaxPayloadBytes {
		return nil, ErrRecordTooLarge
	}

	rec := make(Record, LengthPrefixBytes+len(payload))
	binary.LittleEndian.PutUint16(rec[:LengthPrefixBytes], uint16(len(payload))) //nolint:gosec // bounds checked above
	copy(rec[LengthPrefixBytes:], payload)
	return rec, nil
}

// Decode parses a Record written by Encode back into a T. It validates
// that the declared length matches the number of payload bytes present
// before attempting to decode.
func Decode[T any](rec Record) (T, error) {
	var zero T

	declared, err := rec.Len()
	if err != nil {
		return zero, err
	}
	payload := rec.Payload()
	if len(payload) != declared {
		return zero, fmt.Errorf("wire: record declares %d payload bytes, got %d", declared, len(payload))
	}

	var v T
	if err := decMode.Unmarshal(payload, &v); err != nil {
		return zero, fmt.Errorf("wire: decode: %w", err)
	}
	return v, nil
}
