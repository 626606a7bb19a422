package shmpool

import "github.com/pkg/errors"

// MaxCacheSize bounds the idle-region reuse cache.
const MaxCacheSize = 20

// ErrAllocationFailed wraps any failure to create a fresh shared-memory
// region.
var ErrAllocationFailed = errors.New("failed to allocate shared memory")

// Pool is the node's shared-memory region allocator. It is owned
// exclusively by the node facade and is not safe for concurrent access.
type Pool struct {
	// cache holds idle regions in FIFO insertion order: index 0 is the
	// oldest, len(cache)-1 is the most recently returned.
	cache []*Region
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Allocate returns the smallest cached region whose capacity is >= length,
// preferring the most recently inserted on ties (a reverse scan from the
// newest entry), or creates a fresh region sized exactly length if none
// qualifies.
func (p *Pool) Allocate(length int) (*Region, error) {
	bestIndex := -1
	for i := len(p.cache) - 1; i >= 0; i-- {
		if p.cache[i].Capacity() < length {
			continue
		}
		if bestIndex == -1 || p.cache[i].Capacity() < p.cache[bestIndex].Capacity() {
			bestIndex = i
		}
	}

	if bestIndex != -1 {
		region := p.cache[bestIndex]
		p.cache = append(p.cache[:bestIndex], p.cache[bestIndex+1:]...)
		if region.Capacity() < length {
			return nil, errors.New("internal error: selected cache region smaller than requested length")
		}
		return region, nil
	}

	region, err := Allocate(length)
	if err != nil {
		return nil, errors.Wrap(ErrAllocationFailed, err.Error())
	}
	if region.Capacity() < length {
		return nil, errors.New("internal error: freshly allocated region smaller than requested length")
	}
	return region, nil
}

// Return pushes an idle region onto the cache tail; while the cache
// exceeds MaxCacheSize, the oldest (head) region is evicted and freed.
func (p *Pool) Return(region *Region) {
	p.cache = append(p.cache, region)
	for len(p.cache) > MaxCacheSize {
		evicted := p.cache[0]
		p.cache = p.cache[1:]
		_ = evicted.Free()
	}
}

// Len reports the number of idle regions currently cached.
func (p *Pool) Len() int {
	return len(p.cache)
}
