// Package decoder decodes tagged values in the data section of a MaxMind
// DB file.
package decoder

import (
	"fmt"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// Kind constants for the different MMDB data kinds.
type Kind int

// MMDB data kind constants.
const (
	// KindExtended indicates an extended kind.
	KindExtended Kind = iota
	// KindPointer is a pointer to another location in the data section.
	KindPointer
	// KindString is a UTF-8 string.
	KindString
	// KindFloat64 is a 64-bit floating point number.
	KindFloat64
	// KindBytes is a byte slice.
	KindBytes
	// KindUint16 is a 16-bit unsigned integer.
	KindUint16
	// KindUint32 is a 32-bit unsigned integer.
	KindUint32
	// KindMap is a map from strings to other data types.
	KindMap
	// KindInt32 is a 32-bit signed integer.
	KindInt32
	// KindUint64 is a 64-bit unsigned integer.
	KindUint64
	// KindUint128 is a 128-bit unsigned integer.
	KindUint128
	// KindSlice is an array of values.
	KindSlice
	// KindContainer is a data cache container.
	KindContainer
	// KindEndMarker marks the end of the data section.
	KindEndMarker
	// KindBool is a boolean value.
	KindBool
	// KindFloat32 is a 32-bit floating point number.
	KindFloat32
)

// String returns a human-readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case KindExtended:
		return "Extended"
	case KindPointer:
		return "Pointer"
	case KindString:
		return "String"
	case KindFloat64:
		return "Float64"
	case KindBytes:
		return "Bytes"
	case KindUint16:
		return "Uint16"
	case KindUint32:
		return "Uint32"
	case KindMap:
		return "Map"
	case KindInt32:
		return "Int32"
	case KindUint64:
		return "Uint64"
	case KindUint128:
		return "Uint128"
	case KindSlice:
		return "Slice"
	case KindContainer:
		return "Container"
	case KindEndMarker:
		return "EndMarker"
	case KindBool:
		return "Bool"
	case KindFloat32:
		return "Float32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// DefaultMaxDepth is the default ceiling on pointer chains and container
// nesting. This is the value used in libmaxminddb.
const DefaultMaxDepth = 512

// DataDecoder decodes values in the MMDB data section. The buffer is the
// data section only; all offsets, including resolved pointers, are relative
// to its start. A DataDecoder is safe for concurrent use.
type DataDecoder struct {
	buffer   []byte
	cache    *StringCache
	maxDepth int
}

// NewDataDecoder creates a [DataDecoder] over the given data section.
// A maxDepth of zero or less selects [DefaultMaxDepth].
func NewDataDecoder(buffer []byte, maxDepth int) DataDecoder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return DataDecoder{
		buffer:   buffer,
		cache:    NewStringCache(),
		maxDepth: maxDepth,
	}
}

// Buffer returns the underlying data section.
func (d *DataDecoder) Buffer() []byte {
	return d.buffer
}

// MaxDepth returns the decoder's depth budget.
func (d *DataDecoder) MaxDepth() int {
	return d.maxDepth
}

// DecodeCtrlData decodes the control byte at offset and returns the kind,
// the payload size, and the offset of the first payload byte.
func (d *DataDecoder) DecodeCtrlData(offset uint) (Kind, uint, uint, error) {
	if offset >= uint(len(d.buffer)) {
		return 0, 0, 0, mmdberrors.NewOffsetError()
	}
	ctrlByte := d.buffer[offset]
	newOffset := offset + 1

	kind := Kind(ctrlByte >> 5)
	if kind == KindExtended {
		if newOffset >= uint(len(d.buffer)) {
			return 0, 0, 0, mmdberrors.NewOffsetError()
		}
		kind = Kind(d.buffer[newOffset]) + 7
		newOffset++
		if kind <= KindMap || kind > KindFloat32 {
			return 0, 0, 0, mmdberrors.NewInvalidDatabaseError(
				"invalid extended type byte (%d)", int(kind)-7,
			)
		}
	}

	size, newOffset, err := d.sizeFromCtrlByte(ctrlByte, newOffset, kind)
	return kind, size, newOffset, err
}

func (d *DataDecoder) sizeFromCtrlByte(
	ctrlByte byte,
	offset uint,
	kind Kind,
) (uint, uint, error) {
	size := uint(ctrlByte & 0x1f)
	// Pointers embed their own 2-bit size selector in the low five bits;
	// the 29/30/31 expansion below applies to every other kind.
	if kind == KindPointer || size < 29 {
		return size, offset, nil
	}

	bytesToRead := size - 28
	newOffset := offset + bytesToRead
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	sizeBytes := d.buffer[offset:newOffset]

	switch size {
	case 29:
		size = 29 + uint(sizeBytes[0])
	case 30:
		size = 285 + uintFromBytes(0, sizeBytes)
	default:
		size = 65821 + uintFromBytes(0, sizeBytes)
	}
	return size, newOffset, nil
}

// DecodePointer decodes a pointer at offset. It returns the resolved
// data-section offset and the offset immediately after the pointer
// encoding. Pointers are a back-reference mechanism: the caller resumes at
// the second return value, not after the pointee.
func (d *DataDecoder) DecodePointer(size, offset uint) (uint, uint, error) {
	pointerSize := ((size >> 3) & 0x3) + 1
	newOffset := offset + pointerSize
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	pointerBytes := d.buffer[offset:newOffset]

	var prefix uint
	if pointerSize != 4 {
		prefix = size & 0x7
	}
	unpacked := uintFromBytes(prefix, pointerBytes)

	var pointerValueOffset uint
	switch pointerSize {
	case 2:
		pointerValueOffset = 2048
	case 3:
		pointerValueOffset = 526336
	}

	return unpacked + pointerValueOffset, newOffset, nil
}

func (d *DataDecoder) decodeString(size, offset uint) (string, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return "", 0, mmdberrors.NewOffsetError()
	}
	return d.cache.InternAt(offset, size, d.buffer), newOffset, nil
}

func (d *DataDecoder) decodeBytes(size, offset uint) ([]byte, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return nil, 0, mmdberrors.NewOffsetError()
	}
	b := make([]byte, size)
	copy(b, d.buffer[offset:newOffset])
	return b, newOffset, nil
}

func (d *DataDecoder) decodeUint(size, offset uint) (uint64, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	var val uint64
	for _, b := range d.buffer[offset:newOffset] {
		val = (val << 8) | uint64(b)
	}
	return val, newOffset, nil
}

func (d *DataDecoder) decodeInt32(size, offset uint) (int32, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	var val int32
	for _, b := range d.buffer[offset:newOffset] {
		val = (val << 8) | int32(b)
	}
	return val, newOffset, nil
}

func (d *DataDecoder) decodeUint128(size, offset uint) (Uint128, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return Uint128{}, 0, mmdberrors.NewOffsetError()
	}
	var val Uint128
	for _, b := range d.buffer[offset:newOffset] {
		var carry byte
		val.Lo, carry = append64(val.Lo, b)
		val.Hi, _ = append64(val.Hi, carry)
	}
	return val, newOffset, nil
}

func append64(val uint64, b byte) (uint64, byte) {
	return (val << 8) | uint64(b), byte(val >> 56)
}

// decodeKey decodes a map key at offset, following pointers. It returns the
// key and the offset of the key's value, which is the position after the
// key encoding at the call site even when the key itself is stored behind a
// pointer.
func (d *DataDecoder) decodeKey(offset uint, depth int) (string, uint, error) {
	var after uint
	hasAfter := false
	for {
		if depth > d.maxDepth {
			return "", 0, mmdberrors.DepthExceededError{Depth: d.maxDepth}
		}
		kind, size, dataOffset, err := d.DecodeCtrlData(offset)
		if err != nil {
			return "", 0, err
		}
		if kind == KindPointer {
			pointer, ptrEnd, err := d.DecodePointer(size, dataOffset)
			if err != nil {
				return "", 0, err
			}
			if !hasAfter {
				after = ptrEnd
				hasAfter = true
			}
			offset = pointer
			depth++
			continue
		}
		if kind != KindString {
			return "", 0, mmdberrors.NewInvalidDatabaseError(
				"unexpected type for map key: %v", kind,
			)
		}
		key, keyEnd, err := d.decodeString(size, dataOffset)
		if err != nil {
			return "", 0, err
		}
		if !hasAfter {
			after = keyEnd
		}
		return key, after, nil
	}
}

// NextValueOffset returns the offset after numberToSkip values starting at
// offset, without decoding them. Pointers are stepped over, never followed,
// so the offset strictly advances and the walk always terminates.
func (d *DataDecoder) NextValueOffset(offset, numberToSkip uint) (uint, error) {
	for numberToSkip > 0 {
		kind, size, newOffset, err := d.DecodeCtrlData(offset)
		if err != nil {
			return 0, err
		}
		offset = newOffset
		switch kind {
		case KindPointer:
			_, offset, err = d.DecodePointer(size, offset)
			if err != nil {
				return 0, err
			}
		case KindMap:
			numberToSkip += 2 * size
		case KindSlice:
			numberToSkip += size
		case KindBool:
		default:
			offset += size
		}
		numberToSkip--
	}
	return offset, nil
}

func uintFromBytes(prefix uint, uintBytes []byte) uint {
	val := prefix
	for _, b := range uintBytes {
		val = (val << 8) | uint(b)
	}
	return val
}
