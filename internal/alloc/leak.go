package alloc

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/arm-lpae/iopgtable/internal/table"
)

// interval is a btree.Item ordering outstanding allocations by their
// [PA, PA+Size) range, so LeakTracker can report them sorted without an
// extra pass.
type interval struct {
	PA, Size uint64
}

func (a interval) Less(than btree.Item) bool { return a.PA < than.(interval).PA }

// LeakTracker wraps a PageAllocator and records the [pa, pa+size) interval
// of every allocation it has handed out that has not yet come back
// through FreePage. It is meant to wrap the allocator passed to
// Config.Alloc in tests so that a forgotten FreeTable or Unmap bug
// surfaces as a reported leak instead of silent memory growth.
type LeakTracker struct {
	inner table.PageAllocator

	mu   sync.Mutex
	live *btree.BTree
}

// NewLeakTracker wraps inner, tracking every page it allocates.
func NewLeakTracker(inner table.PageAllocator) *LeakTracker {
	return &LeakTracker{inner: inner, live: btree.New(32)}
}

// AllocPage implements table.PageAllocator.
func (l *LeakTracker) AllocPage(size uint64) (uint64, []byte, error) {
	pa, mem, err := l.inner.AllocPage(size)
	if err != nil {
		return 0, nil, err
	}
	l.mu.Lock()
	l.live.ReplaceOrInsert(interval{PA: pa, Size: size})
	l.mu.Unlock()
	return pa, mem, nil
}

// FreePage implements table.PageAllocator.
func (l *LeakTracker) FreePage(pa uint64, mem []byte) {
	l.mu.Lock()
	l.live.Delete(interval{PA: pa})
	l.mu.Unlock()
	l.inner.FreePage(pa, mem)
}

// Outstanding returns the physical address of every table allocated but
// not yet freed, in ascending order.
func (l *LeakTracker) Outstanding() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]uint64, 0, l.live.Len())
	l.live.Ascend(func(it btree.Item) bool {
		out = append(out, it.(interval).PA)
		return true
	})
	return out
}

// Report returns a non-nil error naming the first outstanding table if any
// allocation has not been freed.
func (l *LeakTracker) Report() error {
	out := l.Outstanding()
	if len(out) == 0 {
		return nil
	}
	return fmt.Errorf("alloc: %d table(s) never freed, first at pa %#x", len(out), out[0])
}
