package decoder

import "sync"

// StringCache provides bounded string interning using offset-based
// indexing. Decoded records repeat a small set of strings (language codes,
// country names) heavily via pointers, so interning by data-section offset
// removes most string allocations. Thread-safe for concurrent use.
type StringCache struct {
	// Fixed-size cache to prevent unbounded memory growth.
	cache [512]cacheEntry
	mu    sync.RWMutex
}

type cacheEntry struct {
	str    string
	offset uint
}

// NewStringCache creates a new bounded string cache.
func NewStringCache() *StringCache {
	return &StringCache{}
}

// InternAt returns a canonical string for data[offset:offset+size]. The
// caller must have bounds-checked the range.
func (sc *StringCache) InternAt(offset, size uint, data []byte) string {
	const (
		minCachedLen = 2   // single byte strings not worth caching
		maxCachedLen = 100 // upper bound for geographic strings
	)

	if size < minCachedLen || size > maxCachedLen {
		return string(data[offset : offset+size])
	}

	i := offset % uint(len(sc.cache))

	sc.mu.RLock()
	entry := sc.cache[i]
	sc.mu.RUnlock()
	if entry.offset == offset && len(entry.str) == int(size) {
		return entry.str
	}

	str := string(data[offset : offset+size])

	sc.mu.Lock()
	sc.cache[i] = cacheEntry{offset: offset, str: str}
	sc.mu.Unlock()

	return str
}
