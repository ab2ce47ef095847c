// Package mmdbtest builds small MaxMind DB files in memory for tests. It
// writes the same layout the reader consumes: search tree, 16-byte
// separator, data section, metadata marker, metadata map.
package mmdbtest

import (
	"fmt"
	"math"
	"net/netip"
	"sort"
)

// Data kind numbers as written to control bytes.
const (
	kindPointer = 1
	kindString  = 2
	kindFloat64 = 3
	kindBytes   = 4
	kindUint16  = 5
	kindUint32  = 6
	kindMap     = 7
	kindInt32   = 8
	kindUint64  = 9
	kindUint128 = 10
	kindSlice   = 11
	kindBool    = 14
	kindFloat32 = 15
)

// Raw is spliced into the data section verbatim by Encoder.Encode. It lets
// tests plant hand-crafted encodings such as pointer cycles.
type Raw []byte

// Encoder appends tagged-value encodings to a byte buffer.
type Encoder struct {
	buf []byte
}

// Offset returns the offset at which the next value will be encoded.
func (e *Encoder) Offset() uint {
	return uint(len(e.buf))
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) ctrl(kind uint, size uint) {
	var sizeCode byte
	var sizeBytes []byte
	switch {
	case size < 29:
		sizeCode = byte(size)
	case size < 285:
		sizeCode = 29
		sizeBytes = []byte{byte(size - 29)}
	case size < 65821:
		sizeCode = 30
		n := size - 285
		sizeBytes = []byte{byte(n >> 8), byte(n)}
	default:
		sizeCode = 31
		n := size - 65821
		sizeBytes = []byte{byte(n >> 16), byte(n >> 8), byte(n)}
	}
	if kind < 8 {
		e.buf = append(e.buf, byte(kind<<5)|sizeCode)
	} else {
		e.buf = append(e.buf, sizeCode, byte(kind-7))
	}
	e.buf = append(e.buf, sizeBytes...)
}

func minimalBytes(v uint64) []byte {
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v)}, b...)
		v >>= 8
	}
	return b
}

// String appends a string value.
func (e *Encoder) String(s string) {
	e.ctrl(kindString, uint(len(s)))
	e.buf = append(e.buf, s...)
}

// Bytes appends a bytes value.
func (e *Encoder) BytesValue(b []byte) {
	e.ctrl(kindBytes, uint(len(b)))
	e.buf = append(e.buf, b...)
}

// Bool appends a boolean value.
func (e *Encoder) Bool(v bool) {
	size := uint(0)
	if v {
		size = 1
	}
	e.ctrl(kindBool, size)
}

// Uint16 appends a uint16 value.
func (e *Encoder) Uint16(v uint16) {
	b := minimalBytes(uint64(v))
	e.ctrl(kindUint16, uint(len(b)))
	e.buf = append(e.buf, b...)
}

// Uint32 appends a uint32 value.
func (e *Encoder) Uint32(v uint32) {
	b := minimalBytes(uint64(v))
	e.ctrl(kindUint32, uint(len(b)))
	e.buf = append(e.buf, b...)
}

// Uint64 appends a uint64 value.
func (e *Encoder) Uint64(v uint64) {
	b := minimalBytes(v)
	e.ctrl(kindUint64, uint(len(b)))
	e.buf = append(e.buf, b...)
}

// Uint128 appends a 128-bit unsigned value given as two 64-bit words.
func (e *Encoder) Uint128(hi, lo uint64) {
	b := append(minimalBytes(hi), byte(lo>>56), byte(lo>>48), byte(lo>>40),
		byte(lo>>32), byte(lo>>24), byte(lo>>16), byte(lo>>8), byte(lo))
	if hi == 0 {
		b = minimalBytes(lo)
	}
	e.ctrl(kindUint128, uint(len(b)))
	e.buf = append(e.buf, b...)
}

// Int32 appends an int32 value using the full four bytes.
func (e *Encoder) Int32(v int32) {
	e.ctrl(kindInt32, 4)
	u := uint32(v)
	e.buf = append(e.buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// Float32 appends a 32-bit float.
func (e *Encoder) Float32(v float32) {
	e.ctrl(kindFloat32, 4)
	u := math.Float32bits(v)
	e.buf = append(e.buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// Float64 appends a 64-bit float.
func (e *Encoder) Float64(v float64) {
	e.ctrl(kindFloat64, 8)
	u := math.Float64bits(v)
	e.buf = append(e.buf, byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// MapHeader appends a map header for n key/value pairs.
func (e *Encoder) MapHeader(n uint) {
	e.ctrl(kindMap, n)
}

// SliceHeader appends an array header for n elements.
func (e *Encoder) SliceHeader(n uint) {
	e.ctrl(kindSlice, n)
}

// Pointer appends the smallest pointer encoding for the given data-section
// offset.
func (e *Encoder) Pointer(target uint) {
	e.buf = append(e.buf, EncodePointer(target)...)
}

// EncodePointer returns the smallest pointer encoding for target.
func EncodePointer(target uint) []byte {
	switch {
	case target < 2048:
		return []byte{byte(kindPointer<<5) | byte(target>>8&0x7), byte(target)}
	case target-2048 < 1<<19:
		v := target - 2048
		return []byte{
			byte(kindPointer<<5) | 0x08 | byte(v>>16&0x7),
			byte(v >> 8), byte(v),
		}
	case target-526336 < 1<<27:
		v := target - 526336
		return []byte{
			byte(kindPointer<<5) | 0x10 | byte(v>>24&0x7),
			byte(v >> 16), byte(v >> 8), byte(v),
		}
	default:
		return []byte{
			byte(kindPointer<<5) | 0x18,
			byte(target >> 24), byte(target >> 16), byte(target >> 8), byte(target),
		}
	}
}

// Encode appends v, dispatching on its Go type. Maps are written with
// sorted keys so output is deterministic.
func (e *Encoder) Encode(v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.MapHeader(uint(len(t)))
		for _, k := range keys {
			e.String(k)
			e.Encode(t[k])
		}
	case []any:
		e.SliceHeader(uint(len(t)))
		for _, elem := range t {
			e.Encode(elem)
		}
	case string:
		e.String(t)
	case []byte:
		e.BytesValue(t)
	case bool:
		e.Bool(t)
	case uint16:
		e.Uint16(t)
	case uint32:
		e.Uint32(t)
	case uint64:
		e.Uint64(t)
	case int32:
		e.Int32(t)
	case float32:
		e.Float32(t)
	case float64:
		e.Float64(t)
	case Raw:
		e.buf = append(e.buf, t...)
	default:
		panic(fmt.Sprintf("mmdbtest: cannot encode %T", v))
	}
}

type treeNode struct {
	children   [2]*treeNode
	index      uint
	dataOffset uint
	leaf       bool
}

// DB accumulates records and serializes them as a complete database file.
type DB struct {
	root *treeNode
	data Encoder

	// Metadata fields; adjust before calling Bytes.
	IPVersion    uint
	RecordSize   uint
	DatabaseType string
	Languages    []any
	Description  map[string]any
	BuildEpoch   uint64
}

// New returns a DB for the given IP version (4 or 6) and record size
// (24, 28, or 32).
func New(ipVersion, recordSize uint) *DB {
	return &DB{
		root:         &treeNode{},
		IPVersion:    ipVersion,
		RecordSize:   recordSize,
		DatabaseType: "Test-DB",
		Languages:    []any{"en"},
		Description:  map[string]any{"en": "test database"},
		BuildEpoch:   1704067200,
	}
}

// NextDataOffset returns the data-section offset the next inserted record
// will occupy. Useful with Raw to hand-craft self-referential encodings.
func (db *DB) NextDataOffset() uint {
	return db.data.Offset()
}

// Insert encodes record into the data section and registers it under
// prefix. In an IPv6 database an IPv4 prefix is placed under the 96-bit
// all-zero prefix.
func (db *DB) Insert(prefix netip.Prefix, record any) {
	offset := db.data.Offset()
	db.data.Encode(record)

	addr := prefix.Addr()
	bits := prefix.Bits()
	if db.IPVersion == 6 && addr.Is4() {
		var b16 [16]byte
		b4 := addr.As4()
		copy(b16[12:], b4[:])
		addr = netip.AddrFrom16(b16)
		bits += 96
	}
	addrBytes := addr.AsSlice()

	n := db.root
	for i := 0; i < bits; i++ {
		bit := addrBytes[i>>3] >> (7 - i%8) & 1
		if n.children[bit] == nil {
			n.children[bit] = &treeNode{}
		}
		n = n.children[bit]
	}
	n.leaf = true
	n.dataOffset = offset
}

// Bytes serializes the database.
func (db *DB) Bytes() []byte {
	var internal []*treeNode
	var index func(n *treeNode)
	index = func(n *treeNode) {
		if n == nil || n.leaf {
			return
		}
		n.index = uint(len(internal))
		internal = append(internal, n)
		index(n.children[0])
		index(n.children[1])
	}
	index(db.root)
	nodeCount := uint(len(internal))

	record := func(child *treeNode) uint {
		switch {
		case child == nil:
			return nodeCount
		case child.leaf:
			return nodeCount + 16 + child.dataOffset
		default:
			return child.index
		}
	}

	var buf []byte
	for _, n := range internal {
		left := record(n.children[0])
		right := record(n.children[1])
		switch db.RecordSize {
		case 24:
			buf = append(buf,
				byte(left>>16), byte(left>>8), byte(left),
				byte(right>>16), byte(right>>8), byte(right))
		case 28:
			buf = append(buf,
				byte(left>>16), byte(left>>8), byte(left),
				byte(left>>24&0xf)<<4|byte(right>>24&0xf),
				byte(right>>16), byte(right>>8), byte(right))
		case 32:
			buf = append(buf,
				byte(left>>24), byte(left>>16), byte(left>>8), byte(left),
				byte(right>>24), byte(right>>16), byte(right>>8), byte(right))
		default:
			panic(fmt.Sprintf("mmdbtest: unsupported record size %d", db.RecordSize))
		}
	}

	buf = append(buf, make([]byte, 16)...)
	buf = append(buf, db.data.Bytes()...)
	buf = append(buf, "\xAB\xCD\xEFMaxMind.com"...)

	var meta Encoder
	meta.Encode(map[string]any{
		"binary_format_major_version": uint16(2),
		"binary_format_minor_version": uint16(0),
		"build_epoch":                 db.BuildEpoch,
		"database_type":               db.DatabaseType,
		"description":                 db.Description,
		"ip_version":                  uint16(db.IPVersion),
		"languages":                   db.Languages,
		"node_count":                  uint32(nodeCount),
		"record_size":                 uint16(db.RecordSize),
	})
	return append(buf, meta.Bytes()...)
}
