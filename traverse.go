package mmdb

import (
	"iter"
	"net/netip"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// netNode tracks a search tree node we still need to visit.
type netNode struct {
	ip        []byte
	prefixLen uint
	pointer   uint
}

// Networks yields every network in the search tree with its lookup Result,
// in ascending address order. In an IPv6 database, IPv4 networks are
// yielded at their position under the all-zero /96 prefix.
//
// Iteration stops after yielding a Result whose Err is non-nil.
func (r *Reader) Networks() iter.Seq2[netip.Prefix, Result] {
	return func(yield func(netip.Prefix, Result) bool) {
		byteCount := 4
		if r.Metadata.IPVersion == 6 {
			byteCount = 16
		}
		bitCount := uint(byteCount * 8)

		nodes := []netNode{{ip: make([]byte, byteCount)}}
		for len(nodes) > 0 {
			node := nodes[len(nodes)-1]
			nodes = nodes[:len(nodes)-1]

			if node.pointer == r.nodeCount {
				// Empty record.
				continue
			}
			prefix := prefixFromBytes(node.ip, node.prefixLen)
			if node.pointer > r.nodeCount {
				offset, err := r.resolveDataPointer(node.pointer)
				if err != nil {
					yield(prefix, Result{err: err})
					return
				}
				if !yield(prefix, Result{decoder: &r.decoder, offset: offset, prefix: prefix}) {
					return
				}
				continue
			}

			// An inner node past the address width means the tree loops.
			if node.prefixLen >= bitCount {
				yield(prefix, Result{err: mmdberrors.NewInvalidDatabaseError(
					"invalid search tree at %s", prefix,
				)})
				return
			}

			rightIP := make([]byte, len(node.ip))
			copy(rightIP, node.ip)
			rightIP[node.prefixLen>>3] |= 1 << (7 - node.prefixLen%8)

			// Push right before left so the left branch is visited first.
			nodes = append(nodes,
				netNode{
					ip:        rightIP,
					prefixLen: node.prefixLen + 1,
					pointer:   r.readNode(node.pointer, 1),
				},
				netNode{
					ip:        node.ip,
					prefixLen: node.prefixLen + 1,
					pointer:   r.readNode(node.pointer, 0),
				},
			)
		}
	}
}

func prefixFromBytes(ip []byte, prefixLen uint) netip.Prefix {
	addr, _ := netip.AddrFromSlice(ip)
	return netip.PrefixFrom(addr, int(prefixLen))
}
