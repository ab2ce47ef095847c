package mmdb

import "github.com/ipgrid/mmdb/internal/decoder"

// Value is a single decoded database value: a closed sum over the kinds
// below. Pointers in the data section are resolved during decoding and
// never appear in a Value.
type Value = decoder.Value

// Kind identifies the variant of a Value.
type Kind = decoder.Kind

// The Value variants.
type (
	// Bool is a boolean value.
	Bool = decoder.Bool
	// String is a UTF-8 string.
	String = decoder.String
	// Bytes is a raw byte sequence.
	Bytes = decoder.Bytes
	// Float32 is a 32-bit floating point number.
	Float32 = decoder.Float32
	// Float64 is a 64-bit floating point number.
	Float64 = decoder.Float64
	// Int32 is a 32-bit signed integer.
	Int32 = decoder.Int32
	// Uint16 is a 16-bit unsigned integer.
	Uint16 = decoder.Uint16
	// Uint32 is a 32-bit unsigned integer.
	Uint32 = decoder.Uint32
	// Uint64 is a 64-bit unsigned integer.
	Uint64 = decoder.Uint64
	// Uint128 is a 128-bit unsigned integer.
	Uint128 = decoder.Uint128
	// Slice is an ordered sequence of values.
	Slice = decoder.Slice
	// Map is an ordered sequence of key/value pairs.
	Map = decoder.Map
	// MapEntry is a single key/value pair of a Map.
	MapEntry = decoder.MapEntry
)

// Kind constants for the Value variants.
const (
	KindString  = decoder.KindString
	KindFloat64 = decoder.KindFloat64
	KindBytes   = decoder.KindBytes
	KindUint16  = decoder.KindUint16
	KindUint32  = decoder.KindUint32
	KindMap     = decoder.KindMap
	KindInt32   = decoder.KindInt32
	KindUint64  = decoder.KindUint64
	KindUint128 = decoder.KindUint128
	KindSlice   = decoder.KindSlice
	KindBool    = decoder.KindBool
	KindFloat32 = decoder.KindFloat32
)
