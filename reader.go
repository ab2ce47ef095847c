// Package mmdb is a read-only decoder for MaxMind DB files. It maps IP
// address prefixes to structured records and supports decoding only the
// requested fields of a record via dotted paths such as "city.names.en".
//
// A Reader holds an immutable byte buffer and exposes no mutable shared
// state, so a single Reader may serve Lookup calls from any number of
// goroutines without locking.
package mmdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/ipgrid/mmdb/internal/decoder"
	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

const dataSectionSeparatorSize = 16

// defaultMetadataWindow bounds the backward scan for the metadata marker.
// The metadata block is at the tail of the file; scanning the whole file
// would be wasted work on multi-gigabyte databases.
const defaultMetadataWindow = 128 * 1024

var metadataStartMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// Reader holds an open MaxMind DB and answers IP lookups against it. Use
// [Open] or [FromBytes] to obtain one.
type Reader struct {
	buffer        []byte
	decoder       decoder.DataDecoder
	Metadata      Metadata
	ipv4Start     uint
	nodeCount     uint
	recordSize    uint
	hasMappedFile bool
}

type config struct {
	maxDepth       int
	metadataWindow int
}

// Option configures a Reader at open time.
type Option func(*config)

// WithMaxDecodeDepth sets the ceiling on pointer chains and container
// nesting while decoding. The default is 512, the value libmaxminddb uses.
// Exceeding the ceiling fails the decode with a DepthExceededError instead
// of looping on a pointer cycle.
func WithMaxDecodeDepth(depth int) Option {
	return func(c *config) {
		c.maxDepth = depth
	}
}

// WithMetadataWindow sets how many trailing bytes of the file are searched
// for the metadata marker. The default is 128 KiB.
func WithMetadataWindow(size int) Option {
	return func(c *config) {
		c.metadataWindow = size
	}
}

// Open opens the database at the given path. The file is memory-mapped on
// platforms that support it and read into memory otherwise. Call
// [Reader.Close] to release the mapping.
func Open(file string, opts ...Option) (*Reader, error) {
	mapFile, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer mapFile.Close()

	stats, err := mapFile.Stat()
	if err != nil {
		return nil, err
	}

	size64 := stats.Size()
	// mmapping an empty file returns -EINVAL on Unix platforms.
	if size64 == 0 {
		return nil, errors.New("file is empty")
	}
	size := int(size64)
	if int64(size) != size64 {
		return nil, errors.New("file too large")
	}

	data, err := mmap(int(mapFile.Fd()), size)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			data = make([]byte, size)
			if _, err := io.ReadFull(mapFile, data); err != nil {
				return nil, err
			}
			return FromBytes(data, opts...)
		}
		return nil, err
	}

	reader, err := FromBytes(data, opts...)
	if err != nil {
		_ = munmap(data)
		return nil, err
	}
	reader.hasMappedFile = true
	return reader, nil
}

// FromBytes builds a Reader over an in-memory database. The Reader borrows
// the buffer for its whole lifetime; the caller must not mutate it.
func FromBytes(buffer []byte, opts ...Option) (*Reader, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	metadataStart, err := findMetadataStart(buffer, cfg.metadataWindow)
	if err != nil {
		return nil, err
	}

	metadataDecoder := decoder.NewDataDecoder(buffer[metadataStart:], cfg.maxDepth)
	metadataValue, _, err := metadataDecoder.DecodeValue(0)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	metadata, err := metadataFromValue(metadataValue)
	if err != nil {
		return nil, err
	}

	// Guard the node count before multiplying so a bogus value cannot wrap
	// the tree size computation.
	nodeSize := metadata.RecordSize / 4
	dataSectionEnd := uint(metadataStart - len(metadataStartMarker))
	if dataSectionEnd < dataSectionSeparatorSize ||
		metadata.NodeCount > (dataSectionEnd-dataSectionSeparatorSize)/nodeSize {
		return nil, mmdberrors.NewInvalidDatabaseError(
			"the search tree overruns the data section; the database is corrupt",
		)
	}
	searchTreeSize := metadata.NodeCount * nodeSize
	dataSectionStart := searchTreeSize + dataSectionSeparatorSize

	reader := &Reader{
		buffer:     buffer,
		decoder:    decoder.NewDataDecoder(buffer[dataSectionStart:dataSectionEnd], cfg.maxDepth),
		Metadata:   metadata,
		nodeCount:  metadata.NodeCount,
		recordSize: metadata.RecordSize,
	}

	if metadata.IPVersion == 6 {
		// An IPv4 address in an IPv6 tree sits under the 96-bit all-zero
		// prefix. Resolve that walk once so IPv4 lookups can skip it.
		node := uint(0)
		for i := 0; i < 96 && node < reader.nodeCount; i++ {
			node = reader.readNode(node, 0)
		}
		reader.ipv4Start = node
	}

	return reader, nil
}

func findMetadataStart(buffer []byte, window int) (int, error) {
	if window <= 0 {
		window = defaultMetadataWindow
	}
	windowStart := 0
	if len(buffer) > window {
		windowStart = len(buffer) - window
	}
	i := bytes.LastIndex(buffer[windowStart:], metadataStartMarker)
	if i == -1 {
		return 0, mmdberrors.NewInvalidDatabaseError(
			"error opening database: the metadata marker was not found; invalid MaxMind DB file",
		)
	}
	return windowStart + i + len(metadataStartMarker), nil
}

// Lookup finds the record for ip in the search tree. A missing record is
// not an error: the returned Result reports Found() == false and decodes to
// nothing. Lookup is safe for concurrent use.
func (r *Reader) Lookup(ip netip.Addr) Result {
	if r.buffer == nil {
		return Result{err: errors.New("cannot call Lookup on a closed database")}
	}
	pointer, prefix, err := r.lookupPointer(ip)
	if err != nil {
		return Result{err: err}
	}
	if pointer == 0 {
		return Result{offset: notFound, prefix: prefix}
	}
	offset, err := r.resolveDataPointer(pointer)
	if err != nil {
		return Result{err: err}
	}
	return Result{decoder: &r.decoder, offset: offset, prefix: prefix}
}

// LookupPaths looks up ip and decodes only the given dotted paths from its
// record. Paths that do not exist in the record are absent from the result
// map; an address with no record at all yields an empty map and no error.
func (r *Reader) LookupPaths(ip netip.Addr, paths ...string) (map[string]Value, error) {
	return r.Lookup(ip).DecodePaths(paths...)
}

// resolveDataPointer converts a search tree record value into an offset
// into the data section.
func (r *Reader) resolveDataPointer(pointer uint) (uint, error) {
	resolved := pointer - r.nodeCount - dataSectionSeparatorSize
	if resolved >= uint(len(r.decoder.Buffer())) {
		return 0, mmdberrors.NewInvalidDatabaseError(
			"the search tree is corrupt: record value %d points outside the data section",
			pointer,
		)
	}
	return resolved, nil
}

// Close releases the memory mapping, if any. The Reader must not be used
// after Close.
func (r *Reader) Close() error {
	var err error
	if r.hasMappedFile {
		err = munmap(r.buffer)
		r.hasMappedFile = false
	}
	r.buffer = nil
	return err
}
