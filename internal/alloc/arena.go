package alloc

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// arenaBase is an arbitrary fake physical base so addresses handed out by
// an Arena don't collide with the zero page or with addresses from other
// allocators sharing a test process.
const arenaBase = uint64(1) << 40

// Arena is a PageAllocator backed by a single anonymous mmap reservation,
// bump-allocated internally. Unlike Bump it hands callers real memory
// pages rather than heap slices, which matters for tests that want to
// exercise alignment or page-fault behavior realistically.
type Arena struct {
	mu   sync.Mutex
	mem  []byte
	next uint64
}

// NewArena reserves size bytes of anonymous memory and returns an Arena
// that bump-allocates out of it.
func NewArena(size uint64) (*Arena, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("alloc: mmap arena: %w", err)
	}
	return &Arena{mem: mem}, nil
}

// AllocPage implements table.PageAllocator.
func (a *Arena) AllocPage(size uint64) (uint64, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next+size > uint64(len(a.mem)) {
		return 0, nil, fmt.Errorf("alloc: arena exhausted (requested %d, %d remaining)", size, uint64(len(a.mem))-a.next)
	}
	off := a.next
	a.next += size

	mem := a.mem[off : off+size]
	for i := range mem {
		mem[i] = 0
	}
	return arenaBase + off, mem, nil
}

// FreePage implements table.PageAllocator. The arena is a bump allocator
// and never reclaims individual pages; the backing mapping is released in
// full by Close.
func (a *Arena) FreePage(pa uint64, mem []byte) {}

// Close unmaps the arena's backing memory. Any Node built on pages handed
// out by this Arena becomes invalid after Close returns.
func (a *Arena) Close() error {
	return unix.Munmap(a.mem)
}
