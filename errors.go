package mmdb

import (
	"fmt"
	"net/netip"

	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError = mmdberrors.InvalidDatabaseError

// DepthExceededError is returned when a pointer chain or container nesting
// in the data section exceeds the decode depth ceiling. See
// [WithMaxDecodeDepth].
type DepthExceededError = mmdberrors.DepthExceededError

// InvalidIPVersionError is returned when the queried address cannot be
// represented in the database's declared IP version.
type InvalidIPVersionError struct {
	IP netip.Addr
}

func (e InvalidIPVersionError) Error() string {
	return fmt.Sprintf(
		"error looking up '%s': you attempted to look up an IPv6 address in an IPv4-only database",
		e.IP,
	)
}
