package pgtable

import (
	"fmt"
	"sync"
)

// heapAllocator is a host-memory-backed Allocator for tests: physical
// addresses are simply bump-allocated integers, with the "physical memory"
// actually just being a Go byte slice. It is not in any way a realistic DMA
// allocator; it exists to exercise the tree-management logic without real
// hardware.
type heapAllocator struct {
	mu   sync.Mutex
	next uint64
	fail bool
}

func newHeapAllocator(base uint64) *heapAllocator {
	return &heapAllocator{next: base}
}

func (a *heapAllocator) AllocPage(size uint64) (uint64, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return 0, nil, fmt.Errorf("heapAllocator: out of memory")
	}
	pa := a.next
	a.next += size
	return pa, make([]byte, size), nil
}

func (a *heapAllocator) FreePage(pa uint64, mem []byte) {}

// recordingCoherency counts flush/TLB calls so tests can assert on
// publish discipline (property P7) without caring about exact call sites.
type recordingCoherency struct {
	mu          sync.Mutex
	flushes     int
	tlbFlushes  int
	tlbAdds     int
	tlbSyncs    int
	flushedByte int
}

func (c *recordingCoherency) FlushPgtable(mem []byte, cookie any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	c.flushedByte += len(mem)
}

func (c *recordingCoherency) TLBFlushAll(cookie any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlbFlushes++
}

func (c *recordingCoherency) TLBAddFlush(iova, size uint64, leaf bool, cookie any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlbAdds++
}

func (c *recordingCoherency) TLBSync(cookie any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlbSyncs++
}

func newTestHandle(format Format, stage2PageSizes ...uint64) (*Handle, error) {
	sizes := uint64((4 << 10) | (2 << 20) | (1 << 30))
	if len(stage2PageSizes) > 0 {
		sizes = stage2PageSizes[0]
	}
	return Alloc(Config{
		IAS:       48,
		OAS:       48,
		PageSizes: sizes,
		Format:    format,
		Alloc:     newHeapAllocator(1 << 20),
		Coh:       &recordingCoherency{},
	})
}
