package mmdb

import (
	"math"
	"net/netip"

	"github.com/ipgrid/mmdb/internal/decoder"
)

const notFound uint = math.MaxUint

// Result is the outcome of a Lookup call. A Result with no record is not an
// error; check Found.
type Result struct {
	decoder *decoder.DataDecoder
	err     error
	offset  uint
	prefix  netip.Prefix
}

// Err reports whether there was a structural error during the lookup. A
// missing record is not an error.
func (r Result) Err() error {
	return r.err
}

// Found reports whether the search tree holds a record for the address. It
// returns false if there was an error.
func (r Result) Found() bool {
	return r.err == nil && r.offset != notFound
}

// Prefix returns the network covered by the search tree walk: the most
// specific network containing the queried address for which the database
// has (or definitively lacks) a record. The zero Prefix is returned when
// the lookup failed.
func (r Result) Prefix() netip.Prefix {
	return r.prefix
}

// Decode materializes the whole record. It returns (nil, nil) when the
// lookup found no record.
func (r Result) Decode() (Value, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.offset == notFound {
		return nil, nil
	}
	value, _, err := r.decoder.DecodeValue(r.offset)
	return value, err
}

// DecodePaths decodes only the parts of the record selected by the given
// dotted paths. The result maps each path to its value; a path that does
// not exist in the record has no entry, so a caller requesting ten fields
// gets the nine that exist rather than a failure. Structural problems in
// the database still fail the whole call.
//
// When the lookup found no record every path is absent: the result is an
// empty map and the error is nil.
func (r Result) DecodePaths(paths ...string) (map[string]Value, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.offset == notFound {
		return map[string]Value{}, nil
	}
	parsed := make([]decoder.Path, 0, len(paths))
	for _, p := range paths {
		parsed = append(parsed, decoder.ParsePath(p))
	}
	return r.decoder.ProjectPaths(r.offset, parsed)
}

// DecodePath decodes the single value selected by path. The boolean
// reports whether the path exists in the record.
func (r Result) DecodePath(path string) (Value, bool, error) {
	values, err := r.DecodePaths(path)
	if err != nil {
		return nil, false, err
	}
	value, ok := values[path]
	return value, ok, nil
}
