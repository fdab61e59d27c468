// Package coherency provides reference table.Coherency implementations:
// a no-op for tests that don't care about publish ordering, and a
// counting variant that records how many times each hook fires.
package coherency

import "sync/atomic"

// Noop implements table.Coherency for callers that don't need real cache
// or TLB maintenance: in-process tests where the "page table walker" is
// just another goroutine reading the same slice.
type Noop struct{}

func (Noop) FlushPgtable(mem []byte, cookie any)                  {}
func (Noop) TLBFlushAll(cookie any)                               {}
func (Noop) TLBAddFlush(iova, size uint64, leaf bool, cookie any) {}
func (Noop) TLBSync(cookie any)                                   {}

// Counting implements table.Coherency by recording how many times each
// hook fires, for tests that assert on publish counts or batching
// behavior.
type Counting struct {
	Flushes    atomic.Int64
	TLBFlushes atomic.Int64
	TLBAdds    atomic.Int64
	TLBSyncs   atomic.Int64
}

func (c *Counting) FlushPgtable(mem []byte, cookie any) { c.Flushes.Add(1) }
func (c *Counting) TLBFlushAll(cookie any)              { c.TLBFlushes.Add(1) }
func (c *Counting) TLBAddFlush(iova, size uint64, leaf bool, cookie any) {
	c.TLBAdds.Add(1)
}
func (c *Counting) TLBSync(cookie any) { c.TLBSyncs.Add(1) }
