// Package alloc provides reference PageAllocator and Coherency
// implementations: a bump allocator and an mmap-backed arena for memory, a
// leak-tracking wrapper built on an ordered tree, and no-op/counting
// coherency hooks. None of these are required to use the pgtable package —
// a real IOMMU host supplies its own — but they make the library usable
// standalone for tests and the selftest driver.
package alloc

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Bump is a PageAllocator that hands out monotonically increasing
// addresses from a fixed range, but backs the actual memory with a
// sync.Pool per distinct size so freed tables are recycled instead of
// left for the garbage collector — the same pattern the teacher's node
// pool uses, with the same pair of atomic statistics counters.
type Bump struct {
	mu    sync.Mutex
	pools map[uint64]*sync.Pool
	next  uint64
	limit uint64

	totalAllocated atomic.Int64 // total number of buffers ever allocated
	currentLive    atomic.Int64 // number of pages currently checked out
}

// NewBump creates a Bump allocator handing out addresses in [base, base+size).
func NewBump(base, size uint64) *Bump {
	return &Bump{pools: make(map[uint64]*sync.Pool), next: base, limit: base + size}
}

// poolFor returns (creating if necessary) the sync.Pool backing buffers of
// the given size.
func (b *Bump) poolFor(size uint64) *sync.Pool {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[size]
	if !ok {
		p = &sync.Pool{New: func() any {
			b.totalAllocated.Add(1)
			buf := make([]byte, size)
			return &buf
		}}
		b.pools[size] = p
	}
	return p
}

// AllocPage implements table.PageAllocator.
func (b *Bump) AllocPage(size uint64) (uint64, []byte, error) {
	b.mu.Lock()
	if b.next+size > b.limit {
		b.mu.Unlock()
		return 0, nil, fmt.Errorf("alloc: bump arena exhausted (requested %d, %d remaining)", size, b.limit-b.next)
	}
	pa := b.next
	b.next += size
	b.mu.Unlock()

	buf := b.poolFor(size).Get().(*[]byte)
	for i := range *buf {
		(*buf)[i] = 0
	}
	b.currentLive.Add(1)
	return pa, *buf, nil
}

// FreePage implements table.PageAllocator. The address range is never
// reclaimed, but the backing buffer is returned to its pool for reuse.
func (b *Bump) FreePage(pa uint64, mem []byte) {
	b.currentLive.Add(-1)
	b.poolFor(uint64(len(mem))).Put(&mem)
}

// Stats reports the number of buffers ever allocated and currently live.
func (b *Bump) Stats() (totalAllocated, currentLive int64) {
	return b.totalAllocated.Load(), b.currentLive.Load()
}
