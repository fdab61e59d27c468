package pgtable

import (
	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

// maxUnmapChunk caps how much of a single Unmap request is processed
// between iommu_pgsize re-evaluations, so one call doesn't have to scan the
// whole remaining range before making progress.
const maxUnmapChunk = 2 << 20

// Unmap removes every mapping in [iova, iova+size) and returns the number
// of bytes actually unmapped, which is less than size if the range runs
// into an unmapped hole. It tears down any page tables left with no
// remaining leaves, and triggers one TLB invalidation pass if anything was
// removed.
func (h *Handle) Unmap(iova, size uint64) uint64 {
	var total uint64
	for total < size {
		remaining := size - total
		chunk := remaining
		if chunk > maxUnmapChunk {
			chunk = maxUnmapChunk
		}
		chunk = h.iommuPgsize(iova+total, chunk)
		if chunk == 0 {
			break
		}
		n := h.unmapLevel(h.geo.StartLevel, h.root, nil, 0, iova+total, chunk)
		if n == 0 {
			break
		}
		total += n
	}

	if total > 0 {
		h.cfg.Coh.TLBFlushAll(h.cfg.Cookie)
	}
	return total
}

func (h *Handle) iommuPgsize(iova, remaining uint64) uint64 {
	align := iova | remaining
	if align == 0 {
		align = remaining
	}
	var best uint64
	bm := h.cfg.PageSizes
	for bm != 0 {
		lsb := bm & (^bm + 1)
		bm &^= lsb
		if lsb <= remaining && align%lsb == 0 && lsb > best {
			best = lsb
		}
	}
	return best
}

// unmapLevel implements the four unmap cases: (a) an exact block/page
// match, torn down (and its subtree freed) wholesale; (b) a bulk erase of
// contiguous leaves in a penultimate-level child, decrementing and
// potentially zeroing out the parent's table-use counter; (c) a block
// larger than the requested range, which must first be split; (d) descent
// into an existing child table, which is freed once it holds no valid
// entries.
func (h *Handle) unmapLevel(level int, tbl *table.Node, parent *table.Node, parentIdx uint64, iova, size uint64) uint64 {
	idx := h.store.Index(iova, level)
	d := tbl.Get(idx)
	if !desc.IsValid(d) {
		return 0
	}

	blkSize := geom.BlockSize(h.geo, level)

	// case (a): size matches this level's block/page exactly.
	if size == blkSize {
		tbl.Set(idx, 0)
		h.store.PublishSlot(tbl, idx)
		if desc.IsTable(d, level) {
			if child := h.store.Deref(desc.OutputAddr(d, h.geo.PgShift)); child != nil {
				h.store.TeardownRecursive(child, level+1)
			}
		}
		return size
	}

	// case (b): bulk-erase contiguous page leaves in a penultimate-level
	// child table, tracked by the table-use counter embedded in d.
	if level == geom.TerminalLevel-1 && desc.IsTable(d, level) {
		child := h.store.Deref(desc.OutputAddr(d, h.geo.PgShift))
		if child == nil {
			return 0
		}
		childOffset := h.store.Index(iova, level+1)
		want := size / h.geo.Granule
		avail := uint64(len(child.Entries())) - childOffset
		entries := want
		if entries > avail {
			entries = avail
		}
		if entries == 0 {
			return 0
		}
		h.store.ZeroRange(child, childOffset, entries)
		h.store.PublishRange(child, childOffset, entries)
		if h.store.SubCounter(tbl, idx, uint32(entries)) == 0 {
			tbl.Set(idx, 0)
			h.store.PublishSlot(tbl, idx)
			h.store.FreeTable(child)
		}
		return entries * h.geo.Granule
	}

	// case (c): a leaf covering more than the requested range must split.
	if desc.IsLeaf(d, level) {
		return h.blockSplit(level, tbl, idx, iova, size, d)
	}

	// case (d): descend into the child table.
	if desc.IsTable(d, level) {
		child := h.store.Deref(desc.OutputAddr(d, h.geo.PgShift))
		if child == nil {
			return 0
		}
		n := h.unmapLevel(level+1, child, tbl, idx, iova, size)
		if n == 0 {
			return 0
		}
		for _, cd := range child.Entries() {
			if desc.IsValid(cd) {
				return n
			}
		}
		tbl.Set(idx, 0)
		h.store.PublishSlot(tbl, idx)
		h.store.FreeTable(child)
		return n
	}

	return 0
}
