package pgtable

import (
	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

// blockSplit replaces the single leaf descriptor d at parent[idx] (spanning
// level's whole block) with a freshly-allocated child table at level+1,
// populated with one leaf per sub-block covering the original range except
// the sub-block that starts exactly at iova, which is left unmapped, and
// returns size. Only that one sub-block is omitted: a request smaller than a
// sub-block, or one not starting on a sub-block boundary, is not carved out
// of the range.
//
// Every new leaf keeps the protection the original block was encoded with,
// via AttrsToProt. If installing any sub-block fails, the new table is
// freed and the original block is left untouched.
func (h *Handle) blockSplit(level int, parent *table.Node, idx uint64, iova, size uint64, d desc.Descriptor) uint64 {
	blkSize := geom.BlockSize(h.geo, level)
	blkStart := iova &^ (blkSize - 1)
	origPA := desc.OutputAddr(d, h.geo.PgShift)
	prot := desc.AttrsToProt(d, h.cfg.Format)

	childLevel := level + 1
	childSize := geom.BlockSize(h.geo, childLevel)

	newTbl, err := h.store.AllocTable(h.geo.Granule)
	if err != nil {
		return 0
	}

	var count uint32
	for b := blkStart; b < blkStart+blkSize; b += childSize {
		if b == iova {
			continue // leave the requested sub-range unmapped
		}
		childIdx := h.store.Index(b, childLevel)
		childPA := origPA + (b - blkStart)
		cd, ok := desc.EncodeLeaf(childLevel, childPA, prot, h.cfg.Format, h.geo.PgShift, h.cfg.Quirks)
		if !ok {
			h.store.FreeTable(newTbl)
			return 0
		}
		newTbl.Set(childIdx, cd)
		count++
	}

	td := desc.EncodeTable(newTbl.PA(), h.geo.PgShift, h.cfg.Quirks)
	if childLevel == geom.TerminalLevel {
		td = desc.TblcntSet(td, count)
	}
	parent.Set(idx, td)
	h.store.PublishSlot(parent, idx)
	h.store.PublishRange(newTbl, 0, uint64(len(newTbl.Entries())))

	return size
}
