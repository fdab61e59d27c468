package table

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
)

type bumpAllocator struct {
	next  uint64
	freed int
}

func newBumpAllocator(base uint64) *bumpAllocator { return &bumpAllocator{next: base} }

func (a *bumpAllocator) AllocPage(size uint64) (uint64, []byte, error) {
	pa := a.next
	a.next += size
	return pa, make([]byte, size), nil
}

func (a *bumpAllocator) FreePage(pa uint64, mem []byte) { a.freed++ }

type failingAllocator struct{}

func (failingAllocator) AllocPage(size uint64) (uint64, []byte, error) {
	return 0, nil, fmt.Errorf("out of memory")
}
func (failingAllocator) FreePage(pa uint64, mem []byte) {}

type countingCoherency struct {
	flushes int32
}

func (c *countingCoherency) FlushPgtable(mem []byte, cookie any) { atomic.AddInt32(&c.flushes, 1) }
func (c *countingCoherency) TLBFlushAll(cookie any)              {}
func (c *countingCoherency) TLBAddFlush(iova, size uint64, leaf bool, cookie any) {}
func (c *countingCoherency) TLBSync(cookie any)                                  {}

func testGeometry(t *testing.T) geom.Geometry {
	t.Helper()
	g, err := geom.Derive(48, 4<<10, false)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestAllocTableRegistersAndPublishes(t *testing.T) {
	alloc := newBumpAllocator(0x1000)
	coh := &countingCoherency{}
	s := NewStore(alloc, coh, "cookie", testGeometry(t))

	n, err := s.AllocTable(4096)
	if err != nil {
		t.Fatal(err)
	}
	if n.PA() != 0x1000 {
		t.Fatalf("PA = %#x, want 0x1000", n.PA())
	}
	if got := s.Deref(n.PA()); got != n {
		t.Fatal("Deref did not return the allocated node")
	}
	if coh.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", coh.flushes)
	}
}

func TestAllocTableSurfacesAllocatorFailure(t *testing.T) {
	s := NewStore(failingAllocator{}, &countingCoherency{}, nil, testGeometry(t))
	if _, err := s.AllocTable(4096); err == nil {
		t.Fatal("expected an error from a failing allocator")
	}
}

func TestFreeTableRemovesFromDeref(t *testing.T) {
	alloc := newBumpAllocator(0x2000)
	s := NewStore(alloc, &countingCoherency{}, nil, testGeometry(t))
	n, _ := s.AllocTable(4096)
	s.FreeTable(n)
	if s.Deref(n.PA()) != nil {
		t.Fatal("expected Deref to return nil after FreeTable")
	}
	if alloc.freed != 1 {
		t.Fatalf("freed = %d, want 1", alloc.freed)
	}
}

func TestCounterRoundTrip(t *testing.T) {
	alloc := newBumpAllocator(0x3000)
	s := NewStore(alloc, &countingCoherency{}, nil, testGeometry(t))
	n, _ := s.AllocTable(4096)

	n.Set(5, desc.EncodeTable(0x4000, 12, 0))
	s.BumpCounter(n, 5, 3)
	if got := s.Counter(n, 5); got != 3 {
		t.Fatalf("counter = %d, want 3", got)
	}
	if got := s.SubCounter(n, 5, 2); got != 1 {
		t.Fatalf("after sub, counter = %d, want 1", got)
	}
}

func TestTeardownRecursiveFreesWholeSubtree(t *testing.T) {
	alloc := newBumpAllocator(0x10000)
	s := NewStore(alloc, &countingCoherency{}, nil, testGeometry(t))

	root, _ := s.AllocTable(4096)
	child, _ := s.AllocTable(4096)
	root.Set(0, desc.EncodeTable(child.PA(), 12, 0))
	leaf, _ := desc.EncodeLeaf(3, 0x20000, desc.ProtRead, desc.FormatS1_64, 12, 0)
	child.Set(0, leaf)

	s.TeardownRecursive(root, 0)

	if s.Deref(root.PA()) != nil || s.Deref(child.PA()) != nil {
		t.Fatal("expected both root and child to be freed")
	}
	if alloc.freed != 2 {
		t.Fatalf("freed = %d, want 2", alloc.freed)
	}
}

func TestZeroRangeClearsOnlyRequestedSpan(t *testing.T) {
	alloc := newBumpAllocator(0x30000)
	s := NewStore(alloc, &countingCoherency{}, nil, testGeometry(t))
	n, _ := s.AllocTable(4096)

	for i := uint64(0); i < 4; i++ {
		n.Set(i, desc.EncodeTable(0x1000+i, 12, 0))
	}
	s.ZeroRange(n, 1, 2)

	if desc.IsValid(n.Get(0)) == false {
		t.Fatal("entry 0 should be untouched")
	}
	if desc.IsValid(n.Get(1)) || desc.IsValid(n.Get(2)) {
		t.Fatal("entries 1,2 should have been cleared")
	}
	if desc.IsValid(n.Get(3)) == false {
		t.Fatal("entry 3 should be untouched")
	}
}
