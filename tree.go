package mmdb

import (
	"errors"
	"net/netip"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// lookupPointer walks the search tree bit by bit over ip. It returns the
// matched record value (0 when the tree holds no record for ip) and the
// network prefix covered by the walk.
func (r *Reader) lookupPointer(ip netip.Addr) (uint, netip.Prefix, error) {
	if !ip.IsValid() {
		return 0, netip.Prefix{}, errors.New("invalid IP address")
	}
	ip = ip.WithZone("")

	node := uint(0)
	if ip.Is4() || ip.Is4In6() {
		ip = ip.Unmap()
		if r.Metadata.IPVersion == 6 {
			node = r.ipv4Start
		}
	} else if r.Metadata.IPVersion == 4 {
		return 0, netip.Prefix{}, InvalidIPVersionError{IP: ip}
	}

	addrBytes := ip.AsSlice()
	bitCount := uint(len(addrBytes) * 8)

	i := uint(0)
	for ; i < bitCount && node < r.nodeCount; i++ {
		bit := uint(1) & (uint(addrBytes[i>>3]) >> (7 - (i % 8)))
		node = r.readNode(node, bit)
	}

	prefix := netip.PrefixFrom(ip, int(i))
	if node == r.nodeCount {
		// Record is empty.
		return 0, prefix, nil
	}
	if node > r.nodeCount {
		return node, prefix, nil
	}
	return 0, netip.Prefix{}, mmdberrors.NewInvalidDatabaseError(
		"invalid node in search tree",
	)
}

// readNode returns the left (index 0) or right (index 1) record of the
// node. The caller guarantees nodeNumber < nodeCount; the tree region was
// bounds-checked against the buffer at open time.
func (r *Reader) readNode(nodeNumber, index uint) uint {
	baseOffset := nodeNumber * r.recordSize / 4

	switch r.recordSize {
	case 24:
		offset := baseOffset + index*3
		return recordFromBytes(0, r.buffer[offset:offset+3])
	case 28:
		// The two 28-bit records share the middle byte: its high nibble
		// holds the top bits of the left record, its low nibble the top
		// bits of the right record.
		middle := r.buffer[baseOffset+3]
		if index == 0 {
			middle >>= 4
		} else {
			middle &= 0x0f
		}
		offset := baseOffset + index*4
		return recordFromBytes(uint(middle), r.buffer[offset:offset+3])
	default: // 32
		offset := baseOffset + index*4
		return recordFromBytes(0, r.buffer[offset:offset+4])
	}
}

func recordFromBytes(prefix uint, recordBytes []byte) uint {
	val := prefix
	for _, b := range recordBytes {
		val = (val << 8) | uint(b)
	}
	return val
}
