package pgtable

import (
	"fmt"
	"io"
	"strings"

	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

// Kind identifies what a populated descriptor terminates in.
type Kind = desc.Kind

const (
	KindTable = desc.KindTable
	KindBlock = desc.KindBlock
	KindPage  = desc.KindPage
)

// WalkEntry describes one populated descriptor encountered by Walk.
type WalkEntry struct {
	Level int
	IOVA  uint64
	Kind  Kind
	Size  uint64
	PA    uint64 // child table PA for KindTable, mapped PA for a leaf
	// Counter is the embedded table-use counter; only meaningful when
	// Kind == KindTable.
	Counter uint32
}

// Walk calls fn once for every populated descriptor in the tree, in
// depth-first, ascending-index order. It is the read-only introspection
// surface Dump and external visualizers (cmd/pgtreedump) build on; it
// takes no part in any Map/Unmap/IovaToPhys invariant.
func (h *Handle) Walk(fn func(WalkEntry)) {
	h.walkNode(h.root, h.geo.StartLevel, 0, fn)
}

func (h *Handle) walkNode(n *table.Node, level int, baseIova uint64, fn func(WalkEntry)) {
	step := geom.BlockSize(h.geo, level)

	for i, d := range n.Entries() {
		if !desc.IsValid(d) {
			continue
		}
		iova := baseIova + uint64(i)*step
		pa := desc.OutputAddr(d, h.geo.PgShift)
		kind := desc.KindOf(d, level)

		if kind == desc.KindTable {
			fn(WalkEntry{Level: level, IOVA: iova, Kind: kind, Size: step, PA: pa, Counter: desc.TblcntGet(d)})
			if child := h.store.Deref(pa); child != nil {
				h.walkNode(child, level+1, iova, fn)
			}
			continue
		}
		fn(WalkEntry{Level: level, IOVA: iova, Kind: kind, Size: step, PA: pa})
	}
}

// Dump writes a human-readable rendering of the whole tree to w: one line
// per populated descriptor, indented by level, showing the iova range it
// covers, its kind, and (for table descriptors) the embedded use counter.
func (h *Handle) Dump(w io.Writer) error {
	var firstErr error
	h.Walk(func(e WalkEntry) {
		if firstErr != nil {
			return
		}
		indent := strings.Repeat("  ", e.Level-h.geo.StartLevel)

		var line string
		if e.Kind == KindTable {
			line = fmt.Sprintf("%slevel %d table @%#x [iova %#x, cnt=%d]\n", indent, e.Level, e.PA, e.IOVA, e.Counter)
		} else {
			line = fmt.Sprintf("%slevel %d %s [iova %#x, size %#x] -> pa %#x\n", indent, e.Level, e.Kind, e.IOVA, e.Size, e.PA)
		}
		if _, err := io.WriteString(w, line); err != nil {
			firstErr = err
		}
	})
	return firstErr
}

// DumpString is a convenience wrapper around Dump for tests and debugging.
func (h *Handle) DumpString() string {
	var b strings.Builder
	_ = h.Dump(&b)
	return b.String()
}
