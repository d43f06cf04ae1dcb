package nfa

import "fmt"

// defaultPageSize is the page granularity used by the default heap-backed
// pool.
const defaultPageSize = 4096

// PageAllocator supplies a pool with pages on demand. It allocates only:
// a Pool never frees a page back to the allocator. A Pool's backing
// memory is simply dropped by the garbage collector once the Pool itself
// becomes unreachable.
type PageAllocator func(minSize int) ([]byte, error)

type page struct {
	size int
	used int
	next *page
}

// Pool is a bump allocator that hands out memory in pages and is only
// ever freed in bulk. Allocation stays off the hot simulation path, and
// callers may choose a fixed-size pool to get a deterministic
// ErrOutOfMemory instead of unbounded growth.
type Pool struct {
	pageSize  int
	alloc     PageAllocator
	fixedCap  int // -1 means unbounded (default heap pool)
	fixedUsed int
	pages     *page
}

// NewPool returns a default, heap-backed pool with no fixed capacity.
func NewPool() *Pool {
	return &Pool{pageSize: defaultPageSize, fixedCap: -1}
}

// NewPoolWithBuffer returns a pool that never grows past len(buf) bytes of
// logical allocation, surfacing ErrOutOfMemory deterministically once
// exhausted.
func NewPoolWithBuffer(buf []byte) *Pool {
	return &Pool{pageSize: len(buf), fixedCap: len(buf)}
}

// NewPoolWithAllocator returns a pool that requests pages from a
// caller-supplied callback instead of the default heap strategy.
func NewPoolWithAllocator(alloc PageAllocator) *Pool {
	return &Pool{pageSize: defaultPageSize, alloc: alloc, fixedCap: -1}
}

// reserve accounts for n bytes of logical allocation against the pool's
// page chain, requesting a new page once the current one cannot satisfy
// the request. Every typed allocation in this package (fragment nodes,
// capture sets) goes through reserve before the corresponding Go value is
// allocated, so OutOfMemory behaviour is uniform across allocation sites
// regardless of how the value itself is represented in memory.
func (p *Pool) reserve(n int) error {
	if p.fixedCap >= 0 {
		if p.fixedUsed+n > p.fixedCap {
			return ErrOutOfMemory
		}
		p.fixedUsed += n
		return nil
	}

	cur := p.pages
	if cur == nil || cur.used+n > cur.size {
		size := p.pageSize
		if n > size {
			size = n
		}
		if p.alloc != nil {
			if _, err := p.alloc(size); err != nil {
				return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
			}
		}
		cur = &page{size: size}
		cur.next = p.pages
		p.pages = cur
	}
	cur.used += n
	return nil
}

// Free releases the whole pool at once. Allocations made from it are never
// freed individually.
func (p *Pool) Free() {
	p.pages = nil
	p.fixedUsed = 0
}

// Reset returns the pool to its initial empty state so it can be reused
// for another build cycle. For a fixed-buffer pool the full buffer becomes
// available again.
func (p *Pool) Reset() {
	p.Free()
}
