package pgtable

import (
	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
)

// IovaToPhys walks the tree and returns the physical address iova
// translates to, or 0 if iova has no valid mapping. Because physical
// address 0 is itself a value a real mapping could legitimately use, callers
// that need to distinguish "unmapped" from "mapped to address 0" should use
// a dedicated probe (e.g. map a known sentinel page) rather than relying on
// a zero return.
func (h *Handle) IovaToPhys(iova uint64) uint64 {
	pa, ok := h.lookupLeaf(iova)
	if !ok {
		return 0
	}
	return pa
}

// lookupLeaf is the unambiguous counterpart to IovaToPhys: ok is false
// exactly when iova has no valid mapping, regardless of what physical
// address a mapping (if any) resolves to.
func (h *Handle) lookupLeaf(iova uint64) (pa uint64, ok bool) {
	level := h.geo.StartLevel
	tbl := h.root

	for {
		idx := h.store.Index(iova, level)
		d := tbl.Get(idx)
		if !desc.IsValid(d) {
			return 0, false
		}
		if desc.IsLeaf(d, level) {
			base := desc.OutputAddr(d, h.geo.PgShift)
			blk := geom.BlockSize(h.geo, level)
			return base | (iova & (blk - 1)), true
		}
		child := h.store.Deref(desc.OutputAddr(d, h.geo.PgShift))
		if child == nil {
			return 0, false
		}
		tbl = child
		level++
		if level > geom.TerminalLevel {
			return 0, false
		}
	}
}
