package decoder

import (
	"strconv"
	"strings"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// A Path selects a nested value within a record. It is parsed once from a
// dotted string such as "city.names.en" or "subdivisions.0.iso_code"; a
// segment that parses as a non-negative integer addresses an array index,
// any other segment addresses a map key.
type Path struct {
	raw      string
	segments []pathSegment
}

type pathSegment struct {
	key string
	// index is the array index for numeric segments and -1 for key
	// segments.
	index int
}

// ParsePath parses a dotted path string. The empty string selects the whole
// record.
func ParsePath(raw string) Path {
	if raw == "" {
		return Path{raw: raw}
	}
	parts := strings.Split(raw, ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			segments = append(segments, pathSegment{index: n})
			continue
		}
		segments = append(segments, pathSegment{key: part, index: -1})
	}
	return Path{raw: raw, segments: segments}
}

// String returns the original dotted path.
func (p Path) String() string {
	return p.raw
}

// ProjectPaths decodes only the subtrees of the record at offset selected
// by paths. The result maps each path's string form to its decoded value;
// paths that do not exist in the record, or whose segments do not apply to
// the structure encountered, are left out. Structural problems in the
// database itself still fail the whole call.
func (d *DataDecoder) ProjectPaths(offset uint, paths []Path) (map[string]Value, error) {
	result := make(map[string]Value, len(paths))
	for _, path := range paths {
		value, found, err := d.findPath(offset, path.segments, 0)
		if err != nil {
			return nil, err
		}
		if found {
			result[path.raw] = value
		}
	}
	return result, nil
}

// findPath descends from offset along the remaining path segments. A
// missing key, an out-of-range index, or a segment that does not match the
// container kind reports absence rather than an error.
func (d *DataDecoder) findPath(
	offset uint,
	segments []pathSegment,
	depth int,
) (Value, bool, error) {
	if depth > d.maxDepth {
		return nil, false, mmdberrors.DepthExceededError{Depth: d.maxDepth}
	}
	if len(segments) == 0 {
		value, _, err := d.decodeValue(offset, depth)
		return value, true, err
	}

	kind, size, offset, err := d.DecodeCtrlData(offset)
	if err != nil {
		return nil, false, err
	}
	if kind == KindPointer {
		pointer, _, err := d.DecodePointer(size, offset)
		if err != nil {
			return nil, false, err
		}
		return d.findPath(pointer, segments, depth+1)
	}

	segment := segments[0]
	switch {
	case kind == KindMap && segment.index < 0:
		for range size {
			key, valueOffset, err := d.decodeKey(offset, depth+1)
			if err != nil {
				return nil, false, err
			}
			if key == segment.key {
				return d.findPath(valueOffset, segments[1:], depth+1)
			}
			// Skip the value we are not interested in.
			offset, err = d.NextValueOffset(valueOffset, 1)
			if err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	case kind == KindSlice && segment.index >= 0:
		if uint(segment.index) >= size {
			return nil, false, nil
		}
		elemOffset, err := d.NextValueOffset(offset, uint(segment.index))
		if err != nil {
			return nil, false, err
		}
		return d.findPath(elemOffset, segments[1:], depth+1)
	default:
		// The path does not apply to this structure.
		return nil, false, nil
	}
}
