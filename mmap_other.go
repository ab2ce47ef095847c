//go:build !unix || appengine

package mmdb

import "errors"

// Platforms without memory mapping fall back to reading the file into
// memory in Open.
func mmap(int, int) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func munmap([]byte) error {
	return nil
}
