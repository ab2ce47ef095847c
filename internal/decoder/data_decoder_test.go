package decoder

import (
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// newTestDecoder builds a DataDecoder over a hex-encoded data section.
func newTestDecoder(t *testing.T, hexStr string) DataDecoder {
	t.Helper()
	input, err := hex.DecodeString(hexStr)
	require.NoError(t, err, "bad hex string: %s", hexStr)
	return NewDataDecoder(input, 0)
}

func makeTestName(hexStr string) string {
	if len(hexStr) <= 20 {
		return hexStr
	}
	return hexStr[:16] + "..." + hexStr[len(hexStr)-4:]
}

func TestDecodeBool(t *testing.T) {
	tests := map[string]Bool{
		"0007": false,
		"0107": true,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeFloat64(t *testing.T) {
	tests := map[string]Float64{
		"680000000000000000": 0.0,
		"683FE0000000000000": 0.5,
		"68400921FB54442EEA": 3.14159265359,
		"68405EC00000000000": 123.0,
		"6841D000000007F8F4": 1073741824.12457,
		"68BFE0000000000000": -0.5,
		"68C00921FB54442EEA": -3.14159265359,
		"68C1D000000007F8F4": -1073741824.12457,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			if expected == 0 {
				require.Equal(t, expected, value)
			} else {
				require.InEpsilon(t, float64(expected), float64(value.(Float64)), 1e-15)
			}
		})
	}

	d := newTestDecoder(t, "680000000000000000")
	value, newOffset, err := d.DecodeValue(0)
	require.NoError(t, err)
	require.Equal(t, Float64(0), value)
	require.Equal(t, uint(9), newOffset)
}

func TestDecodeFloat32(t *testing.T) {
	tests := map[string]Float32{
		"040800000000": 0.0,
		"04083F800000": 1.0,
		"04083F8CCCCD": 1.1,
		"04084048F5C3": 3.14,
		"0408461C3FF6": 9999.99,
		"0408BF800000": -1.0,
		"0408BF8CCCCD": -1.1,
		"0408C048F5C3": -3.14,
		"0408C61C3FF6": -9999.99,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			if expected == 0 {
				require.Equal(t, expected, value)
			} else {
				require.InEpsilon(t, float32(expected), float32(value.(Float32)), 1e-6)
			}
		})
	}
}

func TestDecodeInt32(t *testing.T) {
	tests := map[string]Int32{
		"0001":         0,
		"0401ffffffff": -1,
		"0101ff":       255,
		"0401ffffff01": -255,
		"020101f4":     500,
		"0401fffffe0c": -500,
		"0201ffff":     65535,
		"0401ffff0001": -65535,
		"0301ffffff":   16777215,
		"0401ff000001": -16777215,
		"04017fffffff": 2147483647,
		"040180000001": -2147483647,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeUint16(t *testing.T) {
	tests := map[string]Uint16{
		"a0":     0,
		"a1ff":   255,
		"a201f4": 500,
		"a22a78": 10872,
		"a2ffff": 65535,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeUint32(t *testing.T) {
	tests := map[string]Uint32{
		"c0":         0,
		"c1ff":       255,
		"c201f4":     500,
		"c22a78":     10872,
		"c2ffff":     65535,
		"c3ffffff":   16777215,
		"c4ffffffff": 4294967295,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeUint64(t *testing.T) {
	tests := map[string]Uint64{
		"0002":     0,
		"020201f4": 500,
		"02022a78": 10872,
		"0802" + strings.Repeat("ff", 8): math.MaxUint64,
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeUint128(t *testing.T) {
	tests := map[string]Uint128{
		"0003":     {},
		"020301f4": {Lo: 500},
		"02032a78": {Lo: 10872},
		"1003" + strings.Repeat("ff", 16): {
			Hi: math.MaxUint64,
			Lo: math.MaxUint64,
		},
	}
	for hexStr, expected := range tests {
		t.Run(makeTestName(hexStr), func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
			require.Equal(t, expected.Big(), value.(Uint128).Big())
		})
	}
}

func TestDecodeString(t *testing.T) {
	tests := map[string]String{
		"40":                   "",
		"4131":                 "1",
		"43466f6f":             "Foo",
		"43e4baba":             "人",
		"5b313233343536373839303132333435363738393031323334353637": "123456789012345678901234567",
	}
	// One-byte extended size: 29 + 0x00.
	tests["5d00"+strings.Repeat("78", 29)] = String(strings.Repeat("x", 29))
	// Two-byte extended size: 285 + 0x00d7 = 500.
	tests["5e00d7"+strings.Repeat("78", 500)] = String(strings.Repeat("x", 500))

	for hexStr, expected := range tests {
		t.Run(makeTestName(hexStr), func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeBytes(t *testing.T) {
	tests := map[string]Bytes{
		"80":         {},
		"82002a":     {0x00, 0x2a},
		"84ffffffff": {0xff, 0xff, 0xff, 0xff},
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeMap(t *testing.T) {
	tests := map[string]Map{
		"e0": {},
		"e142656e43466f6f": {
			{Key: "en", Value: String("Foo")},
		},
		"e242656e43466f6f427a6843e4baba": {
			{Key: "en", Value: String("Foo")},
			{Key: "zh", Value: String("人")},
		},
		"e1446e616d65e242656e43466f6f427a6843e4baba": {
			{Key: "name", Value: Map{
				{Key: "en", Value: String("Foo")},
				{Key: "zh", Value: String("人")},
			}},
		},
		"e1496c616e677561676573020442656e427a68": {
			{Key: "languages", Value: Slice{String("en"), String("zh")}},
		},
	}
	for hexStr, expected := range tests {
		t.Run(makeTestName(hexStr), func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodeSlice(t *testing.T) {
	tests := map[string]Slice{
		"0004":                 {},
		"010443466f6f":         {String("Foo")},
		"020443466f6f43e4baba": {String("Foo"), String("人")},
	}
	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			value, _, err := d.DecodeValue(0)
			require.NoError(t, err)
			require.Equal(t, expected, value)
		})
	}
}

func TestDecodePointers(t *testing.T) {
	// Offset 0 holds a string; a chain of pointers follows it.
	var buf []byte
	buf = append(buf, 0x4b)
	buf = append(buf, "long_value1"...) // 12 bytes total
	buf = append(buf, 0x20, 0x00)       // offset 12: pointer to 0
	buf = append(buf, 0x20, 0x0c)       // offset 14: pointer to 12

	d := NewDataDecoder(buf, 0)

	value, newOffset, err := d.DecodeValue(12)
	require.NoError(t, err)
	require.Equal(t, String("long_value1"), value)
	// next offset is after the pointer encoding, not after the pointee
	require.Equal(t, uint(14), newOffset)

	value, newOffset, err = d.DecodeValue(14)
	require.NoError(t, err)
	require.Equal(t, String("long_value1"), value)
	require.Equal(t, uint(16), newOffset)
}

func TestPointerTransparency(t *testing.T) {
	// The same map decoded inline and via a pointer must be identical.
	var buf []byte
	buf = append(buf, 0xe1, 0x42) // map size 1, key "en"
	buf = append(buf, "en"...)
	buf = append(buf, 0x43)
	buf = append(buf, "Foo"...)
	pointerOffset := uint(len(buf))
	buf = append(buf, 0x20, 0x00)

	d := NewDataDecoder(buf, 0)
	inline, _, err := d.DecodeValue(0)
	require.NoError(t, err)
	viaPointer, _, err := d.DecodeValue(pointerOffset)
	require.NoError(t, err)
	require.Equal(t, inline, viaPointer)
}

func TestDecodePointerValues(t *testing.T) {
	tests := []struct {
		ctrl     []byte
		expected uint
	}{
		{[]byte{0x20, 0x05}, 5},
		{[]byte{0x27, 0xff}, 2047},
		{[]byte{0x28, 0x00, 0x00}, 2048},
		{[]byte{0x2f, 0xff, 0xff}, 526335},
		{[]byte{0x30, 0x00, 0x00, 0x00}, 526336},
		{[]byte{0x38, 0x01, 0x02, 0x03, 0x04}, 0x01020304},
	}
	for _, test := range tests {
		d := NewDataDecoder(test.ctrl, 0)
		kind, size, offset, err := d.DecodeCtrlData(0)
		require.NoError(t, err)
		require.Equal(t, KindPointer, kind)
		pointer, newOffset, err := d.DecodePointer(size, offset)
		require.NoError(t, err)
		require.Equal(t, test.expected, pointer)
		require.Equal(t, uint(len(test.ctrl)), newOffset)
	}
}

func TestPointerCycleFailsWithDepthError(t *testing.T) {
	// Two pointers referencing each other.
	buf := []byte{0x20, 0x02, 0x20, 0x00}
	d := NewDataDecoder(buf, 0)

	_, _, err := d.DecodeValue(0)
	var depthErr mmdberrors.DepthExceededError
	require.ErrorAs(t, err, &depthErr)
	require.Equal(t, DefaultMaxDepth, depthErr.Depth)

	// A self-referential pointer behaves the same.
	d = NewDataDecoder([]byte{0x20, 0x00}, 16)
	_, _, err = d.DecodeValue(0)
	require.ErrorAs(t, err, &depthErr)
	require.Equal(t, 16, depthErr.Depth)
}

func TestNextValueOffset(t *testing.T) {
	// A map, a string, and a uint32 back to back.
	buf, err := hex.DecodeString("e142656e43466f6f" + "4131" + "c1ff")
	require.NoError(t, err)
	d := NewDataDecoder(buf, 0)

	offset, err := d.NextValueOffset(0, 0)
	require.NoError(t, err)
	require.Equal(t, uint(0), offset)

	offset, err = d.NextValueOffset(0, 1)
	require.NoError(t, err)
	require.Equal(t, uint(8), offset)

	offset, err = d.NextValueOffset(0, 2)
	require.NoError(t, err)
	require.Equal(t, uint(10), offset)

	offset, err = d.NextValueOffset(0, 3)
	require.NoError(t, err)
	require.Equal(t, uint(12), offset)
}

func TestBoundsChecking(t *testing.T) {
	cases := map[string][]byte{
		"truncated string":    {0x44, 0x41},
		"truncated bytes":     {0x84, 0x41},
		"truncated uint128":   {0x0B, 0x03},
		"truncated map":       {0xe2, 0x42},
		"truncated size byte": {0x5d},
		"empty buffer":        {},
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			d := NewDataDecoder(buf, 0)
			_, _, err := d.DecodeValue(0)
			require.Error(t, err)
			var invalidErr mmdberrors.InvalidDatabaseError
			require.True(t, errors.As(err, &invalidErr))
		})
	}
}

func TestInvalidExtendedType(t *testing.T) {
	for _, buf := range [][]byte{{0x00, 0x00}, {0x01, 0x09}, {0x01, 0xff}} {
		d := NewDataDecoder(buf, 0)
		_, _, err := d.DecodeValue(0)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid extended type")
	}
}

func TestInvalidSizes(t *testing.T) {
	cases := map[string]string{
		"bool size 2":    "0207",
		"float32 size 2": "0208",
		"float64 size 4": "64" + "00000000",
		"uint16 size 3":  "a3ffffff",
	}
	for name, hexStr := range cases {
		t.Run(name, func(t *testing.T) {
			d := newTestDecoder(t, hexStr)
			_, _, err := d.DecodeValue(0)
			require.Error(t, err)
			require.Contains(t, err.Error(), "bad data")
		})
	}
}

func TestStringInterning(t *testing.T) {
	buf, err := hex.DecodeString("43466f6f")
	require.NoError(t, err)
	d := NewDataDecoder(buf, 0)

	first, _, err := d.DecodeValue(0)
	require.NoError(t, err)
	second, _, err := d.DecodeValue(0)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
