// Package table implements the flat, hardware-walked descriptor arrays that
// back an ARM LPAE translation tree, plus the collaborator hooks a host
// environment plugs in to supply physical memory and cache coherency.
//
// Unlike a software routing trie, every table here is a dense array indexed
// directly by bits lifted out of the input address: there is nothing to
// compress, because the page-table walker hardware expects to find an entry
// at a fixed offset whether or not it is populated.
package table

import (
	"fmt"
	"unsafe"

	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
)

// PageAllocator supplies zeroed, naturally-aligned, physically-contiguous
// memory for translation tables. The returned mem is the caller's writable
// view of the memory at physical address pa; on a real IOMMU host this
// would be backed by DMA-coherent or explicitly-flushed memory, which is
// exactly what the paired Coherency hooks are for.
type PageAllocator interface {
	AllocPage(size uint64) (pa uint64, mem []byte, err error)
	FreePage(pa uint64, mem []byte)
}

// Coherency lets a host driver keep the page-table walker's view of memory,
// and its TLB, consistent with writes this package makes. cookie is
// whatever opaque value the Store was constructed with; it is threaded
// through unmodified so a host can multiplex several translation contexts
// behind one Coherency implementation.
type Coherency interface {
	// FlushPgtable publishes descriptor writes in mem to the page-table
	// walker's coherence domain.
	FlushPgtable(mem []byte, cookie any)
	// TLBFlushAll invalidates every cached translation for this context.
	TLBFlushAll(cookie any)
	// TLBAddFlush queues an invalidation for [iova, iova+size). leaf
	// indicates whether the removed descriptor was itself a leaf (as
	// opposed to a table whose whole subtree was torn down).
	TLBAddFlush(iova, size uint64, leaf bool, cookie any)
	// TLBSync blocks until every queued TLBAddFlush has completed.
	TLBSync(cookie any)
}

// Node is one physical table: a dense array of descriptors backed by
// PageAllocator-supplied memory.
type Node struct {
	entries []desc.Descriptor
	mem     []byte
	pa      uint64
}

// Entries returns the node's descriptor slots. The returned slice aliases
// the node's backing memory; callers that mutate it are responsible for
// publishing the change through a Store.
func (n *Node) Entries() []desc.Descriptor { return n.entries }

// Get reads the descriptor at idx.
func (n *Node) Get(idx uint64) desc.Descriptor { return n.entries[idx] }

// Set writes the descriptor at idx. The caller must arrange to publish the
// write via Store.PublishSlot or Store.PublishRange.
func (n *Node) Set(idx uint64, d desc.Descriptor) { n.entries[idx] = d }

// PA returns the physical address a parent table descriptor would use to
// reference this node.
func (n *Node) PA() uint64 { return n.pa }

func descriptorsOf(mem []byte) []desc.Descriptor {
	if len(mem) == 0 {
		return nil
	}
	n := len(mem) / geom.DescriptorSize
	return unsafe.Slice((*desc.Descriptor)(unsafe.Pointer(&mem[0])), n)
}

// Store owns the physical-address-to-node mapping for one translation tree
// and mediates every allocation, free, and publish against the host's
// PageAllocator and Coherency collaborators.
//
// The byPA map stands in for the "virtual-address-of-physical" lookup a
// real host environment would provide: since this package has no way to
// dereference an arbitrary physical address itself, it relies on having
// handed out that address in the first place.
type Store struct {
	alloc  PageAllocator
	coh    Coherency
	cookie any
	geo    geom.Geometry
	byPA   map[uint64]*Node
}

// NewStore creates a Store over the given collaborators and geometry.
func NewStore(alloc PageAllocator, coh Coherency, cookie any, g geom.Geometry) *Store {
	return &Store{
		alloc:  alloc,
		coh:    coh,
		cookie: cookie,
		geo:    g,
		byPA:   make(map[uint64]*Node),
	}
}

// Geometry returns the geometry this store was built with.
func (s *Store) Geometry() geom.Geometry { return s.geo }

// AllocTable allocates and registers a new table of the given size.
func (s *Store) AllocTable(size uint64) (*Node, error) {
	pa, mem, err := s.alloc.AllocPage(size)
	if err != nil {
		return nil, fmt.Errorf("table: allocate %d bytes: %w", size, err)
	}
	n := &Node{entries: descriptorsOf(mem), mem: mem, pa: pa}
	s.byPA[pa] = n
	s.coh.FlushPgtable(mem, s.cookie)
	return n, nil
}

// FreeTable releases a table previously returned by AllocTable.
func (s *Store) FreeTable(n *Node) {
	delete(s.byPA, n.pa)
	s.alloc.FreePage(n.pa, n.mem)
}

// Deref resolves the physical address embedded in a table descriptor's
// output-address field back to the live Node it was allocated as.
func (s *Store) Deref(pa uint64) *Node { return s.byPA[pa] }

// Index extracts the table index for iova at level, given this store's
// geometry.
func (s *Store) Index(iova uint64, level int) uint64 { return geom.Index(s.geo, iova, level) }

// PublishSlot flushes exactly the bytes of entry idx in n to the page-table
// walker's coherence domain.
func (s *Store) PublishSlot(n *Node, idx uint64) {
	off := idx * geom.DescriptorSize
	s.coh.FlushPgtable(n.mem[off:off+geom.DescriptorSize], s.cookie)
}

// PublishRange flushes count contiguous entries starting at first.
func (s *Store) PublishRange(n *Node, first, count uint64) {
	if count == 0 {
		return
	}
	off := first * geom.DescriptorSize
	length := count * geom.DescriptorSize
	s.coh.FlushPgtable(n.mem[off:off+length], s.cookie)
}

// ZeroRange clears count contiguous entries starting at first, without
// publishing. The caller publishes separately so batched callers can cover
// many ZeroRange calls with one flush.
func (s *Store) ZeroRange(n *Node, first, count uint64) {
	for i := uint64(0); i < count; i++ {
		n.entries[first+i] = 0
	}
}

// BumpCounter adjusts the table-use counter embedded in n's entry at idx and
// publishes the change.
func (s *Store) BumpCounter(n *Node, idx uint64, delta int32) {
	n.entries[idx] = desc.TblcntAdd(n.entries[idx], delta)
	s.PublishSlot(n, idx)
}

// BumpCounterNoPublish behaves like BumpCounter but defers publishing,
// for use inside a batched sequence that will publish once at the end.
func (s *Store) BumpCounterNoPublish(n *Node, idx uint64, delta int32) {
	n.entries[idx] = desc.TblcntAdd(n.entries[idx], delta)
}

// SubCounter decrements the counter embedded in n's entry at idx by count
// and publishes the change, returning the counter's new value.
func (s *Store) SubCounter(n *Node, idx uint64, count uint32) uint32 {
	d := desc.TblcntAdd(n.entries[idx], -int32(count))
	n.entries[idx] = d
	s.PublishSlot(n, idx)
	return desc.TblcntGet(d)
}

// Counter reads the table-use counter embedded in n's entry at idx.
func (s *Store) Counter(n *Node, idx uint64) uint32 {
	return desc.TblcntGet(n.entries[idx])
}

// TeardownRecursive frees n and, for every table descriptor it contains,
// recursively frees the referenced subtree first. level is the level n
// itself was walked at.
func (s *Store) TeardownRecursive(n *Node, level int) {
	for i := range n.entries {
		d := n.entries[i]
		if desc.IsTable(d, level) {
			if child := s.Deref(desc.OutputAddr(d, s.geo.PgShift)); child != nil {
				s.TeardownRecursive(child, level+1)
			}
		}
	}
	s.FreeTable(n)
}
