// Package bufpool provides tiered, size-classed byte-slice pooling. The
// engine's journal, arena and flusher allocate their buffers directly
// and do not draw from these pools.
package bufpool

import "sync"

// Size classes. A request is rounded up to the smallest class that fits;
// requests larger than large are allocated directly and not pooled.
const (
	smallSize  = 4 * 1024
	mediumSize = 64 * 1024
	largeSize  = 1024 * 1024
)

// Pool is a tiered sync.Pool wrapper. The zero value is not usable; use
// New.
type Pool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// New constructs a Pool with the default 4KiB/64KiB/1MiB tiers.
func New() *Pool {
	p := &Pool{}
	p.small.New = func() any { return make([]byte, 0, smallSize) }
	p.medium.New = func() any { return make([]byte, 0, mediumSize) }
	p.large.New = func() any { return make([]byte, 0, largeSize) }
	return p
}

// Get returns a buffer with capacity at least size and length 0. Buffers
// larger than the large tier are allocated fresh and not returned to any
// pool by Put.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= smallSize:
		return p.small.Get().([]byte)[:0]
	case size <= mediumSize:
		return p.medium.Get().([]byte)[:0]
	case size <= largeSize:
		return p.large.Get().([]byte)[:0]
	default:
		return make([]byte, 0, size)
	}
}

// Put returns buf to the tier matching its capacity. Buffers outside the
// three tiers are dropped for the garbage collector to reclaim.
func (p *Pool) Put(buf []byte) {
	switch cap(buf) {
	case smallSize:
		p.small.Put(buf) //nolint:staticcheck // buf reused as []byte, not boxed
	case mediumSize:
		p.medium.Put(buf)
	case largeSize:
		p.large.Put(buf)
	}
}

// Default is the package-level pool used by callers that don't need an
// isolated instance.
var Default = New()

// Get returns a buffer from Default.
func Get(size int) []byte { return Default.Get(size) }

// Put returns buf to Default.
func Put(buf []byte) { Default.Put(buf) }
