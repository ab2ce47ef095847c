package decoder

import (
	"math"
	"math/big"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// Value is a single decoded MMDB value. It is a closed sum over the data
// kinds that can appear in a record: every variant is defined in this
// package and pointers are resolved during decoding, so a Value never
// contains a pointer.
type Value interface {
	// Kind reports the variant.
	Kind() Kind
	// Native returns the value as plain Go data: map[string]any, []any,
	// and scalars. Uint128 becomes *big.Int.
	Native() any
}

// Bool is a boolean value.
type Bool bool

// String is a UTF-8 string.
type String string

// Bytes is a raw byte sequence.
type Bytes []byte

// Float32 is a 32-bit floating point number.
type Float32 float32

// Float64 is a 64-bit floating point number.
type Float64 float64

// Int32 is a 32-bit signed integer.
type Int32 int32

// Uint16 is a 16-bit unsigned integer.
type Uint16 uint16

// Uint32 is a 32-bit unsigned integer.
type Uint32 uint32

// Uint64 is a 64-bit unsigned integer.
type Uint64 uint64

// Uint128 is a 128-bit unsigned integer stored as two 64-bit words.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Big returns the value as a big.Int.
func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

// Slice is an ordered sequence of values.
type Slice []Value

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   string
	Value Value
}

// Map is an ordered sequence of key/value pairs. Order matches the data
// section; keys are unique within a map.
type Map []MapEntry

// Get returns the value for key, or false if the key is not present.
func (m Map) Get(key string) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Kind implements Value.
func (Bool) Kind() Kind { return KindBool }

// Kind implements Value.
func (String) Kind() Kind { return KindString }

// Kind implements Value.
func (Bytes) Kind() Kind { return KindBytes }

// Kind implements Value.
func (Float32) Kind() Kind { return KindFloat32 }

// Kind implements Value.
func (Float64) Kind() Kind { return KindFloat64 }

// Kind implements Value.
func (Int32) Kind() Kind { return KindInt32 }

// Kind implements Value.
func (Uint16) Kind() Kind { return KindUint16 }

// Kind implements Value.
func (Uint32) Kind() Kind { return KindUint32 }

// Kind implements Value.
func (Uint64) Kind() Kind { return KindUint64 }

// Kind implements Value.
func (Uint128) Kind() Kind { return KindUint128 }

// Kind implements Value.
func (Slice) Kind() Kind { return KindSlice }

// Kind implements Value.
func (Map) Kind() Kind { return KindMap }

// Native implements Value.
func (v Bool) Native() any { return bool(v) }

// Native implements Value.
func (v String) Native() any { return string(v) }

// Native implements Value.
func (v Bytes) Native() any { return []byte(v) }

// Native implements Value.
func (v Float32) Native() any { return float32(v) }

// Native implements Value.
func (v Float64) Native() any { return float64(v) }

// Native implements Value.
func (v Int32) Native() any { return int32(v) }

// Native implements Value.
func (v Uint16) Native() any { return uint16(v) }

// Native implements Value.
func (v Uint32) Native() any { return uint32(v) }

// Native implements Value.
func (v Uint64) Native() any { return uint64(v) }

// Native implements Value.
func (v Uint128) Native() any { return v.Big() }

// Native implements Value.
func (v Slice) Native() any {
	out := make([]any, len(v))
	for i, e := range v {
		out[i] = e.Native()
	}
	return out
}

// Native implements Value.
func (v Map) Native() any {
	out := make(map[string]any, len(v))
	for _, e := range v {
		out[e.Key] = e.Value.Native()
	}
	return out
}

// DecodeValue decodes the value at offset. It returns the value and the
// offset immediately after its encoding. For a pointer the returned offset
// is the position after the pointer bytes, not after the pointee.
func (d *DataDecoder) DecodeValue(offset uint) (Value, uint, error) {
	return d.decodeValue(offset, 0)
}

func (d *DataDecoder) decodeValue(offset uint, depth int) (Value, uint, error) {
	if depth > d.maxDepth {
		return nil, 0, mmdberrors.DepthExceededError{Depth: d.maxDepth}
	}

	kind, size, offset, err := d.DecodeCtrlData(offset)
	if err != nil {
		return nil, 0, err
	}

	switch kind {
	case KindPointer:
		pointer, newOffset, err := d.DecodePointer(size, offset)
		if err != nil {
			return nil, 0, err
		}
		value, _, err := d.decodeValue(pointer, depth+1)
		return value, newOffset, err
	case KindMap:
		return d.decodeMap(size, offset, depth)
	case KindSlice:
		return d.decodeSlice(size, offset, depth)
	case KindString:
		s, newOffset, err := d.decodeString(size, offset)
		return String(s), newOffset, err
	case KindBytes:
		b, newOffset, err := d.decodeBytes(size, offset)
		return Bytes(b), newOffset, err
	case KindBool:
		if size > 1 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (bool size of %d)", size,
			)
		}
		return Bool(size != 0), offset, nil
	case KindFloat32:
		if size != 4 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (float32 size of %d)", size,
			)
		}
		bits, newOffset, err := d.decodeUint(size, offset)
		return Float32(math.Float32frombits(uint32(bits))), newOffset, err
	case KindFloat64:
		if size != 8 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (float64 size of %d)", size,
			)
		}
		bits, newOffset, err := d.decodeUint(size, offset)
		return Float64(math.Float64frombits(bits)), newOffset, err
	case KindInt32:
		if size > 4 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (int32 size of %d)", size,
			)
		}
		v, newOffset, err := d.decodeInt32(size, offset)
		return Int32(v), newOffset, err
	case KindUint16:
		if size > 2 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (uint16 size of %d)", size,
			)
		}
		v, newOffset, err := d.decodeUint(size, offset)
		return Uint16(v), newOffset, err
	case KindUint32:
		if size > 4 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (uint32 size of %d)", size,
			)
		}
		v, newOffset, err := d.decodeUint(size, offset)
		return Uint32(v), newOffset, err
	case KindUint64:
		if size > 8 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (uint64 size of %d)", size,
			)
		}
		v, newOffset, err := d.decodeUint(size, offset)
		return Uint64(v), newOffset, err
	case KindUint128:
		if size > 16 {
			return nil, 0, mmdberrors.NewInvalidDatabaseError(
				"the data section contains bad data (uint128 size of %d)", size,
			)
		}
		v, newOffset, err := d.decodeUint128(size, offset)
		return v, newOffset, err
	default:
		return nil, 0, mmdberrors.NewInvalidDatabaseError(
			"unexpected kind when decoding: %v", kind,
		)
	}
}

func (d *DataDecoder) decodeMap(size, offset uint, depth int) (Value, uint, error) {
	// Each pair needs at least one key byte and one value byte, so a size
	// larger than the remaining buffer cannot be well formed. This bounds
	// the allocation below on corrupt input.
	if 2*size > uint(len(d.buffer))-offset {
		return nil, 0, mmdberrors.NewInvalidDatabaseError(
			"the data section contains bad data (map size of %d)", size,
		)
	}
	m := make(Map, 0, size)
	for range size {
		key, valueOffset, err := d.decodeKey(offset, depth+1)
		if err != nil {
			return nil, 0, err
		}
		value, newOffset, err := d.decodeValue(valueOffset, depth+1)
		if err != nil {
			return nil, 0, err
		}
		m = append(m, MapEntry{Key: key, Value: value})
		offset = newOffset
	}
	return m, offset, nil
}

func (d *DataDecoder) decodeSlice(size, offset uint, depth int) (Value, uint, error) {
	if size > uint(len(d.buffer))-offset {
		return nil, 0, mmdberrors.NewInvalidDatabaseError(
			"the data section contains bad data (slice size of %d)", size,
		)
	}
	s := make(Slice, 0, size)
	for range size {
		value, newOffset, err := d.decodeValue(offset, depth+1)
		if err != nil {
			return nil, 0, err
		}
		s = append(s, value)
		offset = newOffset
	}
	return s, offset, nil
}
